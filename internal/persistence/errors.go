package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConflict is returned when a confirmed booking already occupies an
	// overlapping interval of the same room.
	ErrConflict = errors.New("persistence: booking overlaps an existing booking")
	// ErrUnavailable is returned when the backing store cannot be reached or
	// did not answer in time.
	ErrUnavailable = errors.New("persistence: store unavailable")
)
