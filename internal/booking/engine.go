package booking

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConflict is returned when a confirmed booking already occupies part
	// of the requested interval.
	ErrConflict = errors.New("booking: interval overlaps a confirmed booking")
	// ErrUnavailable is returned when the conflict check could not complete.
	// The engine never admits a request it could not verify.
	ErrUnavailable = errors.New("booking: conflict check unavailable")
	// ErrInvalidWindow is returned for empty or inverted intervals.
	ErrInvalidWindow = errors.New("booking: end must be after start")
)

// ConflictFinder answers whether a room has a confirmed booking overlapping
// window, ignoring excludeID.
type ConflictFinder interface {
	HasConflict(ctx context.Context, roomID string, window Interval, excludeID string) (bool, error)
}

// Outcome labels the result of an admission attempt.
type Outcome string

const (
	OutcomeAdmitted    Outcome = "admitted"
	OutcomeConflict    Outcome = "conflict"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
)

// Observer receives one call per admission attempt.
type Observer func(outcome Outcome, elapsed time.Duration)

// Request describes a proposed interval for a room. ExcludeID names the
// booking being edited, if any.
type Request struct {
	RoomID    string
	Window    Interval
	ExcludeID string
}

// Engine runs the check-then-write sequence for a room under that room's lock
// so that two overlapping requests can never both be admitted.
type Engine struct {
	finder   ConflictFinder
	locks    *RoomLocks
	timeout  time.Duration
	observer Observer
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds lock acquisition, the conflict query and the write.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLocks shares a lock table between engines.
func WithLocks(locks *RoomLocks) Option {
	return func(e *Engine) {
		if locks != nil {
			e.locks = locks
		}
	}
}

// WithObserver registers a callback for admission outcomes.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// NewEngine constructs an engine backed by finder.
func NewEngine(finder ConflictFinder, opts ...Option) *Engine {
	e := &Engine{
		finder:  finder,
		locks:   NewRoomLocks(),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Admit checks req against the stored bookings and, when clear, calls write
// while still holding the room lock. A write that reports ErrConflict is
// treated as a rejection. No write happens on rejection.
func (e *Engine) Admit(ctx context.Context, req Request, write func(ctx context.Context) error) (err error) {
	if e == nil || e.finder == nil {
		return fmt.Errorf("%w: no conflict finder configured", ErrUnavailable)
	}
	if !req.Window.Valid() {
		return ErrInvalidWindow
	}

	started := e.now()
	defer func() {
		if e.observer != nil {
			e.observer(outcomeOf(err), e.now().Sub(started))
		}
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	unlock, err := e.locks.Lock(ctx, req.RoomID)
	if err != nil {
		return fmt.Errorf("%w: waiting for room lock: %v", ErrUnavailable, err)
	}
	defer unlock()

	conflict, err := e.finder.HasConflict(ctx, req.RoomID, req.Window, req.ExcludeID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if conflict {
		return ErrConflict
	}

	if write == nil {
		return nil
	}
	return write(ctx)
}

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAdmitted
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	case errors.Is(err, ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeFailed
	}
}
