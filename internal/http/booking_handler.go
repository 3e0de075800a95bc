package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/coworking-booking/internal/application"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.BookingDetails, error)
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.BookingDetails, error)
	ListBookings(ctx context.Context, principal application.Principal) ([]application.BookingDetails, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.BookingDetails, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (application.BookingDetails, error)
	DeleteBooking(ctx context.Context, principal application.Principal, bookingID string) error
}

type BookingHandler struct {
	service   bookingService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, now func() time.Time, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &BookingHandler{service: service, now: now, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	details, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking created", "booking_id", details.ID, "room_id", details.RoomID)
	h.responder.writeData(r.Context(), w, http.StatusCreated, toBookingDTO(details, h.now()))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	list, err := h.service.ListBookings(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	now := h.now()
	if until, ok := activeUntil(list, now); ok {
		w.Header().Set("Expires", until.UTC().Format(http.TimeFormat))
	}
	h.responder.writeList(r.Context(), w, toBookingDTOs(list, now), len(list))
}

// activeUntil returns the earliest end among the bookings still active at
// now, which is when the listed is_active flags stop being accurate.
func activeUntil(list []application.BookingDetails, now time.Time) (time.Time, bool) {
	var until time.Time
	found := false
	for _, details := range list {
		if !details.IsActive(now) {
			continue
		}
		if !found || details.End.Before(until) {
			until = details.End
			found = true
		}
	}
	return until, found
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())
	details, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.log(r.Context(), "Get", "booking_id", bookingID).WarnContext(r.Context(), "booking lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeData(r.Context(), w, http.StatusOK, toBookingDTO(details, h.now()))
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := r.PathValue("id")
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "booking_id", bookingID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "booking_id", bookingID)
	details, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Patch:     req.toPatch(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking update rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking updated", "status", string(details.Status))
	h.responder.writeData(r.Context(), w, http.StatusOK, toBookingDTO(details, h.now()))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "booking_id", bookingID)
	details, err := h.service.CancelBooking(r.Context(), principal, bookingID)
	if err != nil {
		logger.WarnContext(r.Context(), "booking cancel rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking cancelled")
	h.responder.writeData(r.Context(), w, http.StatusOK, toBookingDTO(details, h.now()))
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "booking_id", bookingID)
	if err := h.service.DeleteBooking(r.Context(), principal, bookingID); err != nil {
		logger.WarnContext(r.Context(), "booking delete rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking deleted")
	h.responder.writeMessage(r.Context(), w, "booking deleted")
}

type bookingRequest struct {
	RoomID       *string    `json:"room_id"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Purpose      *string    `json:"purpose"`
	Participants *int       `json:"participants"`
	Status       *string    `json:"status"`
}

func (r bookingRequest) toInput() application.BookingInput {
	var input application.BookingInput
	if r.RoomID != nil {
		input.RoomID = *r.RoomID
	}
	if r.StartTime != nil {
		input.Start = *r.StartTime
	}
	if r.EndTime != nil {
		input.End = *r.EndTime
	}
	if r.Purpose != nil {
		input.Purpose = *r.Purpose
	}
	if r.Participants != nil {
		input.Participants = *r.Participants
	}
	return input
}

func (r bookingRequest) toPatch() application.BookingPatch {
	return application.BookingPatch{
		RoomID:       r.RoomID,
		Start:        r.StartTime,
		End:          r.EndTime,
		Purpose:      r.Purpose,
		Participants: r.Participants,
		Status:       r.Status,
	}
}

type bookingDTO struct {
	ID            string          `json:"id"`
	RoomID        string          `json:"room_id"`
	UserID        string          `json:"user_id"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	Status        string          `json:"status"`
	Purpose       string          `json:"purpose"`
	Participants  int             `json:"participants"`
	DurationHours float64         `json:"duration_hours"`
	IsActive      bool            `json:"is_active"`
	Room          *roomSummaryDTO `json:"room,omitempty"`
	User          *userSummaryDTO `json:"user,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type roomSummaryDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Type     string `json:"type"`
}

type userSummaryDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func toBookingDTO(details application.BookingDetails, now time.Time) bookingDTO {
	dto := bookingDTO{
		ID:            details.ID,
		RoomID:        details.RoomID,
		UserID:        details.UserID,
		StartTime:     formatTime(details.Start),
		EndTime:       formatTime(details.End),
		Status:        string(details.Status),
		Purpose:       details.Purpose,
		Participants:  details.Participants,
		DurationHours: details.Duration().Hours(),
		IsActive:      details.IsActive(now),
		CreatedAt:     formatTime(details.CreatedAt),
		UpdatedAt:     formatTime(details.UpdatedAt),
	}
	if details.Room.ID != "" {
		dto.Room = &roomSummaryDTO{
			ID:       details.Room.ID,
			Name:     details.Room.Name,
			Capacity: details.Room.Capacity,
			Type:     string(details.Room.Type),
		}
	}
	if details.User.ID != "" {
		dto.User = &userSummaryDTO{
			ID:       details.User.ID,
			Username: details.User.Username,
			Email:    details.User.Email,
		}
	}
	return dto
}

func toBookingDTOs(list []application.BookingDetails, now time.Time) []bookingDTO {
	out := make([]bookingDTO, 0, len(list))
	for _, details := range list {
		out = append(out, toBookingDTO(details, now))
	}
	return out
}
