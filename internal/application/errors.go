package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/coworking-booking/internal/persistence"
)

var (
	// ErrUnauthenticated is returned when no valid bearer token identifies the caller.
	ErrUnauthenticated = errors.New("application: authentication required")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when email and password do not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrTimeWindowInvalid is returned when end <= start or start lies in the past.
	ErrTimeWindowInvalid = errors.New("application: invalid time window")
	// ErrCapacityExceeded is returned when participants exceed the room capacity.
	ErrCapacityExceeded = errors.New("application: room capacity exceeded")
	// ErrRoomUnavailable is returned when the room is missing or inactive.
	ErrRoomUnavailable = errors.New("application: room unavailable")
	// ErrBookingConflict is returned when the interval overlaps a confirmed booking.
	ErrBookingConflict = errors.New("application: booking conflict")
	// ErrStoreUnavailable is returned when the store could not answer in time.
	ErrStoreUnavailable = errors.New("application: store unavailable")
)

// detailedError attaches a caller-facing message to a sentinel.
type detailedError struct {
	kind   error
	detail string
}

func (e *detailedError) Error() string { return e.kind.Error() + ": " + e.detail }
func (e *detailedError) Unwrap() error { return e.kind }

// Detail returns the caller-facing message.
func (e *detailedError) Detail() string { return e.detail }

func withDetail(kind error, format string, args ...any) error {
	return &detailedError{kind: kind, detail: fmt.Sprintf(format, args...)}
}

// ErrorDetail returns the caller-facing message attached to err, if any.
func ErrorDetail(err error) (string, bool) {
	var d *detailedError
	if errors.As(err, &d) {
		return d.detail, true
	}
	return "", false
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// mapRepoError converts persistence errors into application sentinels.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConflict):
		return ErrBookingConflict
	case errors.Is(err, persistence.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
