package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/coworking-booking/internal/application"
)

type userService interface {
	ListUsers(ctx context.Context, params application.ListUsersParams) (application.UserPage, error)
	GetUser(ctx context.Context, principal application.Principal, userID string) (application.UserWithBookings, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
	Stats(ctx context.Context, principal application.Principal) (application.UserStats, error)
}

type UserHandler struct {
	service   userService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, now func() time.Time, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &UserHandler{service: service, now: now, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	query := r.URL.Query()
	vErr := &application.ValidationError{}
	page := queryInt(query.Get("page"), "page", vErr)
	limit := queryInt(query.Get("limit"), "limit", vErr)
	if vErr.HasErrors() {
		logger.WarnContext(r.Context(), "invalid pagination parameters", "error", vErr)
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.ListUsers(r.Context(), application.ListUsersParams{
		Principal: principal,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "user list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	users := make([]userDTO, 0, len(result.Users))
	for _, user := range result.Users {
		users = append(users, toUserDTO(user))
	}
	count := len(users)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, successResponse{
		Success: true,
		Data:    users,
		Count:   &count,
		Pagination: &pagination{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
			Pages: result.TotalPages,
		},
	})
}

func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Stats", "principal_id", principal.UserID).WarnContext(r.Context(), "user stats failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeData(r.Context(), w, http.StatusOK, userStatsDTO{
		TotalUsers:          stats.TotalUsers,
		AdminUsers:          stats.AdminUsers,
		RegularUsers:        stats.RegularUsers,
		RecentRegistrations: stats.RecentRegistrations,
	})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.GetUser(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "user_id", userID).WarnContext(r.Context(), "user lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeData(r.Context(), w, http.StatusOK, userDetailDTO{
		User:     toUserDTO(result.User),
		Bookings: toBookingDTOs(result.Bookings, h.now()),
	})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := r.PathValue("id")
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "user_id", userID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode user request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "user_id", userID)
	user, err := h.service.UpdateUser(r.Context(), application.UpdateUserParams{
		Principal: principal,
		UserID:    userID,
		Input: application.UserInput{
			Username: req.Username,
			Email:    req.Email,
			Role:     req.Role,
		},
	})
	if err != nil {
		logger.WarnContext(r.Context(), "user update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user updated")
	h.responder.writeData(r.Context(), w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := r.PathValue("id")
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "user_id", userID)
	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		logger.WarnContext(r.Context(), "user delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user deleted")
	h.responder.writeMessage(r.Context(), w, "user deleted")
}

// queryInt parses an optional positive integer; zero means "use the default".
func queryInt(raw, field string, vErr *application.ValidationError) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		if vErr.FieldErrors == nil {
			vErr.FieldErrors = make(map[string]string)
		}
		vErr.FieldErrors[field] = field + " must be a positive integer"
		return 0
	}
	return n
}

type userRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
}

type userDetailDTO struct {
	User     userDTO      `json:"user"`
	Bookings []bookingDTO `json:"bookings"`
}

type userStatsDTO struct {
	TotalUsers          int `json:"total_users"`
	AdminUsers          int `json:"admin_users"`
	RegularUsers        int `json:"regular_users"`
	RecentRegistrations int `json:"recent_registrations"`
}
