package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/coworking-booking/internal/notify"
)

type websocketHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, sub notify.Subscriber) error
}

// NotificationHandler attaches authenticated WebSocket clients to the hub.
type NotificationHandler struct {
	hub    websocketHub
	logger *slog.Logger
}

func NewNotificationHandler(hub websocketHub, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{hub: hub, logger: defaultLogger(logger)}
}

func (h *NotificationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "NotificationHandler", operation, attrs...)
}

func (h *NotificationHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.hub == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Serve", "principal_id", principal.UserID)
	// A failed upgrade has already written its own response.
	if err := h.hub.ServeWS(w, r, notify.Subscriber{
		UserID:   principal.UserID,
		Username: principal.Username,
		IsAdmin:  principal.IsAdmin,
	}); err != nil {
		logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	logger.InfoContext(r.Context(), "websocket connected", "is_admin", principal.IsAdmin)
}
