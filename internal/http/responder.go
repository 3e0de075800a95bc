package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/coworking-booking/internal/application"
	"github.com/example/coworking-booking/internal/logging"
)

var (
	errBadRequestBody     = errors.New("request body is not valid JSON")
	errMissingBearerToken = errors.New("authorization token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

type successResponse struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Count      *int        `json:"count,omitempty"`
	Message    string      `json:"message,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type errorResponse struct {
	Success   bool              `json:"success"`
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	r.writeJSON(ctx, w, status, successResponse{Success: true, Data: data})
}

func (r responder) writeList(ctx context.Context, w http.ResponseWriter, data any, count int) {
	r.writeJSON(ctx, w, http.StatusOK, successResponse{Success: true, Data: data, Count: &count})
}

func (r responder) writeMessage(ctx context.Context, w http.ResponseWriter, message string) {
	r.writeJSON(ctx, w, http.StatusOK, successResponse{Success: true, Message: message})
}

// writeError reports a request level failure that never reached a service.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	status, message := describeKind(kind)
	if detail, ok := application.ErrorDetail(err); ok && status != http.StatusInternalServerError {
		message = detail
	}

	resp := errorResponse{ErrorCode: strings.ToUpper(kind), Message: message}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		resp.Errors = vErr.FieldErrors
	}
	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "service failure", "error", err, "error_kind", kind)
	}
	r.writeJSON(ctx, w, status, resp)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func describeKind(kind string) (int, string) {
	switch kind {
	case "validation":
		return http.StatusBadRequest, "validation failed"
	case "time_window_invalid":
		return http.StatusBadRequest, "invalid time window"
	case "capacity_exceeded":
		return http.StatusBadRequest, "room capacity exceeded"
	case "room_unavailable":
		return http.StatusNotFound, "room is not available"
	case "booking_conflict":
		return http.StatusConflict, "room is already booked for the selected time"
	case "not_found":
		return http.StatusNotFound, "resource not found"
	case "already_exists":
		return http.StatusConflict, "resource already exists"
	case "forbidden":
		return http.StatusForbidden, "access denied"
	case "unauthenticated":
		return http.StatusUnauthorized, "authentication required"
	case "invalid_credentials":
		return http.StatusUnauthorized, "invalid email or password"
	case "store_unavailable":
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusServiceUnavailable:
		return "STORE_UNAVAILABLE"
	default:
		return "UNEXPECTED"
	}
}
