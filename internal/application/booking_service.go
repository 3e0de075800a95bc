package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/coworking-booking/internal/booking"
	"github.com/example/coworking-booking/internal/notify"
	"github.com/example/coworking-booking/internal/persistence"
)

// BookingRepository captures the persistence operations needed by the
// booking service. HasConflict backs the admission engine.
type BookingRepository interface {
	booking.ConflictFinder
	CreateBooking(ctx context.Context, b Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	UpdateBooking(ctx context.Context, b Booking) (Booking, error)
	ListBookings(ctx context.Context, userID string) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// RoomLookup resolves rooms referenced by bookings.
type RoomLookup interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// UserLookup resolves booking owners.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// Notifier receives booking lifecycle events. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, channel string, event notify.Event) error
}

// BookingService validates, admits and persists bookings.
type BookingService struct {
	bookings    BookingRepository
	rooms       RoomLookup
	users       UserLookup
	engine      *booking.Engine
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service. A nil engine is replaced by
// one backed by bookings.
func NewBookingService(bookings BookingRepository, rooms RoomLookup, users UserLookup, engine *booking.Engine, notifier Notifier, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, users, engine, notifier, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomLookup, users UserLookup, engine *booking.Engine, notifier Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if engine == nil && bookings != nil {
		engine = booking.NewEngine(bookings)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:    bookings,
		rooms:       rooms,
		users:       users,
		engine:      engine,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

func (s *BookingService) ready() error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil || s.rooms == nil {
		return fmt.Errorf("booking repositories not configured")
	}
	return nil
}

// CreateBooking validates the request and admits it through the engine.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (details BookingDetails, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input := params.Input
	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"room_id", input.RoomID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to create booking", err)
			return
		}
		logger.With(
			"booking_id", details.ID,
			"start", details.Start,
			"end", details.End,
		).InfoContext(ctx, "booking created")
	}()

	if err = requireAuthenticated(params.Principal); err != nil {
		return
	}

	now := normalizeInstant(s.now())
	draft := Booking{
		ID:           s.idGenerator(),
		RoomID:       strings.TrimSpace(input.RoomID),
		UserID:       params.Principal.UserID,
		Start:        normalizeInstant(input.Start),
		End:          normalizeInstant(input.End),
		Status:       booking.StatusConfirmed,
		Purpose:      strings.TrimSpace(input.Purpose),
		Participants: input.Participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if draft.Participants == 0 {
		draft.Participants = 1
	}

	if vErr := validateBookingFields(draft); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = checkWindow(draft.Start, draft.End, now, true); err != nil {
		return
	}

	var room Room
	room, err = s.admissibleRoom(ctx, draft.RoomID, draft.Participants, true)
	if err != nil {
		return
	}

	err = s.admit(ctx, booking.Request{RoomID: draft.RoomID, Window: draft.Window()}, func(ctx context.Context) error {
		created, werr := s.bookings.CreateBooking(ctx, draft)
		if werr != nil {
			return werr
		}
		draft = created
		return nil
	})
	if err != nil {
		return
	}

	details = BookingDetails{Booking: draft, Room: room, User: s.lookupUser(ctx, draft.UserID)}
	s.publish(ctx, notify.EventBookingCreated, details, params.Principal)
	return
}

// GetBooking returns a booking visible to the principal.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (details BookingDetails, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if err = requireAuthenticated(principal); err != nil {
		return
	}

	var b Booking
	b, err = s.owned(ctx, principal, bookingID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrForbidden) {
			logOutcome(ctx, s.loggerWith(ctx, "GetBooking", "booking_id", bookingID), "failed to get booking", err)
		}
		return
	}

	details = s.describe(ctx, b, nil, nil)
	return
}

// ListBookings returns every booking for administrators and the principal's
// own bookings otherwise, ordered by start time descending.
func (s *BookingService) ListBookings(ctx context.Context, principal Principal) (list []BookingDetails, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListBookings", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to list bookings", err)
			return
		}
		logger.With("result_count", len(list)).DebugContext(ctx, "bookings listed")
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}

	owner := principal.UserID
	if principal.IsAdmin {
		owner = ""
	}

	list, err = s.listFor(ctx, owner)
	return
}

func (s *BookingService) listFor(ctx context.Context, userID string) ([]BookingDetails, error) {
	raw, err := s.bookings.ListBookings(ctx, userID)
	if err != nil {
		return nil, mapBookingRepoError(err)
	}

	rooms := make(map[string]Room)
	users := make(map[string]User)
	list := make([]BookingDetails, 0, len(raw))
	for _, b := range raw {
		list = append(list, s.describe(ctx, b, rooms, users))
	}
	return list, nil
}

// UpdateBooking applies a partial update. Changing the room or time window
// of a confirmed booking re-runs admission excluding the booking itself.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (details BookingDetails, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to update booking", err)
			return
		}
		logger.With("status", details.Status).InfoContext(ctx, "booking updated")
	}()

	details, err = s.update(ctx, params)
	return
}

// CancelBooking moves a confirmed booking to cancelled. Cancelled bookings
// cannot be cancelled again.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (details BookingDetails, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to cancel booking", err)
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	status := string(booking.StatusCancelled)
	details, err = s.update(ctx, UpdateBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Patch:     BookingPatch{Status: &status},
	})
	return
}

func (s *BookingService) update(ctx context.Context, params UpdateBookingParams) (BookingDetails, error) {
	if err := requireAuthenticated(params.Principal); err != nil {
		return BookingDetails{}, err
	}

	existing, err := s.owned(ctx, params.Principal, params.BookingID)
	if err != nil {
		return BookingDetails{}, err
	}
	if existing.Status == booking.StatusCancelled {
		return BookingDetails{}, fieldError("status", "cancelled bookings cannot be modified")
	}

	now := normalizeInstant(s.now())
	updated := existing
	patch := params.Patch

	if patch.RoomID != nil {
		updated.RoomID = strings.TrimSpace(*patch.RoomID)
	}
	if patch.Start != nil {
		updated.Start = normalizeInstant(*patch.Start)
	}
	if patch.End != nil {
		updated.End = normalizeInstant(*patch.End)
	}
	if patch.Purpose != nil {
		updated.Purpose = strings.TrimSpace(*patch.Purpose)
	}
	if patch.Participants != nil {
		updated.Participants = *patch.Participants
	}
	if patch.Status != nil {
		status, vErr := parseStatusChange(*patch.Status)
		if vErr != nil {
			return BookingDetails{}, vErr
		}
		updated.Status = status
	}
	updated.UpdatedAt = now

	if vErr := validateBookingFields(updated); vErr.HasErrors() {
		return BookingDetails{}, vErr
	}

	roomChanged := updated.RoomID != existing.RoomID
	startChanged := !updated.Start.Equal(existing.Start)
	windowChanged := startChanged || !updated.End.Equal(existing.End)
	participantsChanged := updated.Participants != existing.Participants

	if windowChanged {
		if err := checkWindow(updated.Start, updated.End, now, startChanged); err != nil {
			return BookingDetails{}, err
		}
	}

	var room Room
	haveRoom := false
	if updated.Status == booking.StatusConfirmed && (roomChanged || windowChanged || participantsChanged) {
		room, err = s.admissibleRoom(ctx, updated.RoomID, updated.Participants, roomChanged || windowChanged)
		if err != nil {
			return BookingDetails{}, err
		}
		haveRoom = true
	}

	write := func(ctx context.Context) error {
		saved, werr := s.bookings.UpdateBooking(ctx, updated)
		if werr != nil {
			return werr
		}
		updated = saved
		return nil
	}

	if updated.Status == booking.StatusConfirmed && (roomChanged || windowChanged) {
		err = s.admit(ctx, booking.Request{
			RoomID:    updated.RoomID,
			Window:    updated.Window(),
			ExcludeID: updated.ID,
		}, write)
	} else if werr := write(ctx); werr != nil {
		err = mapBookingRepoError(werr)
	}
	if err != nil {
		return BookingDetails{}, err
	}

	var rooms map[string]Room
	if haveRoom {
		rooms = map[string]Room{room.ID: room}
	}
	details := s.describe(ctx, updated, rooms, nil)
	s.publish(ctx, notify.EventBookingUpdated, details, params.Principal)
	return details, nil
}

// DeleteBooking removes a booking permanently.
func (s *BookingService) DeleteBooking(ctx context.Context, principal Principal, bookingID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to delete booking", err)
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}

	var b Booking
	b, err = s.owned(ctx, principal, bookingID)
	if err != nil {
		return
	}

	if err = s.bookings.DeleteBooking(ctx, b.ID); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	s.publish(ctx, notify.EventBookingDeleted, s.describe(ctx, b, nil, nil), principal)
	return
}

// owned loads a booking and checks that the principal may act on it.
func (s *BookingService) owned(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	if !principal.IsAdmin && b.UserID != principal.UserID {
		return Booking{}, withDetail(ErrForbidden, "booking belongs to another user")
	}
	return b, nil
}

// admissibleRoom loads the room snapshot used for validation. The active flag
// is enforced when checkActive is set; capacity is always compared.
func (s *BookingService) admissibleRoom(ctx context.Context, roomID string, participants int, checkActive bool) (Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrNotFound) {
			return Room{}, withDetail(ErrRoomUnavailable, "room not found")
		}
		return Room{}, err
	}
	if participants > room.Capacity {
		return Room{}, withDetail(ErrCapacityExceeded, "room capacity is %d, requested %d participants", room.Capacity, participants)
	}
	if checkActive && !room.IsActive {
		return Room{}, withDetail(ErrRoomUnavailable, "room %q is not available for booking", room.Name)
	}
	return room, nil
}

func (s *BookingService) admit(ctx context.Context, req booking.Request, write func(context.Context) error) error {
	err := s.engine.Admit(ctx, req, func(ctx context.Context) error {
		werr := write(ctx)
		switch {
		case werr == nil:
			return nil
		case errors.Is(werr, persistence.ErrConflict):
			return fmt.Errorf("%w: %w", booking.ErrConflict, werr)
		case errors.Is(werr, persistence.ErrUnavailable):
			return fmt.Errorf("%w: %w", booking.ErrUnavailable, werr)
		}
		return werr
	})
	return mapAdmissionError(err)
}

func (s *BookingService) describe(ctx context.Context, b Booking, rooms map[string]Room, users map[string]User) BookingDetails {
	details := BookingDetails{Booking: b}

	if room, ok := rooms[b.RoomID]; ok {
		details.Room = room
	} else if room, err := s.rooms.GetRoom(ctx, b.RoomID); err == nil {
		details.Room = room
		if rooms != nil {
			rooms[b.RoomID] = room
		}
	}

	if user, ok := users[b.UserID]; ok {
		details.User = user
	} else {
		details.User = s.lookupUser(ctx, b.UserID)
		if users != nil && details.User.ID != "" {
			users[b.UserID] = details.User
		}
	}
	return details
}

func (s *BookingService) lookupUser(ctx context.Context, id string) User {
	if s.users == nil {
		return User{}
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return User{}
	}
	return user
}

// publish sends the event to the room, global and admin channels. Only the
// admin copy names the requester. Failures are logged and dropped.
func (s *BookingService) publish(ctx context.Context, eventType notify.EventType, details BookingDetails, actor Principal) {
	if s.notifier == nil {
		return
	}

	roomName := details.Room.Name
	if roomName == "" {
		roomName = details.RoomID
	}
	event := notify.Event{
		Type:      eventType,
		Message:   eventMessage(eventType, details.Status, roomName),
		BookingID: details.ID,
		RoomID:    details.RoomID,
		RoomName:  details.Room.Name,
		User:      actor.Username,
		Status:    string(details.Status),
		StartTime: details.Start,
		EndTime:   details.End,
		Timestamp: normalizeInstant(s.now()),
	}

	deliveries := []struct {
		channel string
		event   notify.Event
	}{
		{notify.RoomChannel(details.RoomID), event.Anonymous()},
		{notify.GlobalChannel, event.Anonymous()},
		{notify.AdminChannel, event},
	}
	for _, d := range deliveries {
		if err := s.notifier.Publish(ctx, d.channel, d.event); err != nil {
			s.loggerWith(ctx, "publish",
				"channel", d.channel,
				"event", eventType,
				"booking_id", details.ID,
			).WarnContext(ctx, "notification dropped", "error", err)
		}
	}
}

func eventMessage(eventType notify.EventType, status booking.Status, roomName string) string {
	switch {
	case eventType == notify.EventBookingCreated:
		return "New booking for " + roomName
	case eventType == notify.EventBookingDeleted:
		return "Booking deleted for " + roomName
	case status == booking.StatusCancelled:
		return "Booking cancelled for " + roomName
	}
	return "Booking updated for " + roomName
}

// checkWindow enforces end > start and, when checkPast is set, start >= now.
func checkWindow(start, end, now time.Time, checkPast bool) error {
	if !end.After(start) {
		return withDetail(ErrTimeWindowInvalid, "end time must be after start time")
	}
	if checkPast && start.Before(now) {
		return withDetail(ErrTimeWindowInvalid, "start time cannot be in the past")
	}
	return nil
}

func parseStatusChange(value string) (booking.Status, *ValidationError) {
	switch booking.Status(strings.ToLower(strings.TrimSpace(value))) {
	case booking.StatusConfirmed:
		return booking.StatusConfirmed, nil
	case booking.StatusCancelled:
		return booking.StatusCancelled, nil
	case booking.StatusCompleted:
		return "", fieldError("status", "completed is derived from the end time and cannot be set")
	}
	return "", fieldError("status", "status must be confirmed or cancelled")
}

func mapAdmissionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, booking.ErrConflict):
		return withDetail(ErrBookingConflict, "room is already booked for the selected time")
	case errors.Is(err, booking.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	case errors.Is(err, booking.ErrInvalidWindow):
		return withDetail(ErrTimeWindowInvalid, "end time must be after start time")
	}
	return mapBookingRepoError(err)
}

func mapBookingRepoError(err error) error {
	err = mapRepoError(err)
	switch {
	case errors.Is(err, ErrNotFound):
		return withDetail(ErrNotFound, "booking not found")
	case errors.Is(err, ErrBookingConflict):
		return withDetail(ErrBookingConflict, "room is already booked for the selected time")
	}
	return err
}
