// Package booking decides whether a proposed reservation interval may be
// admitted for a room.
package booking

import "time"

// Status is the lifecycle state of a booking.
type Status string

const (
	// StatusConfirmed is the only state that occupies a room.
	StatusConfirmed Status = "confirmed"
	// StatusCancelled is terminal; cancelled bookings cannot be edited.
	StatusCancelled Status = "cancelled"
	// StatusCompleted marks a booking whose interval has elapsed.
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has positive length.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether i and other share any instant. Adjacent intervals,
// where one ends exactly when the other starts, do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Reservation is the subset of a booking the conflict check looks at.
type Reservation struct {
	ID     string
	RoomID string
	Window Interval
	Status Status
}

// Blocks reports whether r prevents candidate from being admitted.
func (r Reservation) Blocks(candidate Reservation) bool {
	if r.Status != StatusConfirmed {
		return false
	}
	if r.RoomID != candidate.RoomID {
		return false
	}
	if candidate.ID != "" && r.ID == candidate.ID {
		return false
	}
	return r.Window.Overlaps(candidate.Window)
}

// FindConflict returns the first existing reservation that blocks candidate.
// A reservation whose ID equals excludeID is ignored, which lets an update be
// checked against everything but its own previous version.
func FindConflict(existing []Reservation, candidate Reservation, excludeID string) (Reservation, bool) {
	for _, r := range existing {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if r.Blocks(candidate) {
			return r, true
		}
	}
	return Reservation{}, false
}
