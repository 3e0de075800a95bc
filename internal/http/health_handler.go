package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store     Pinger
	version   string
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewHealthHandler(store Pinger, version string, now func() time.Time, logger *slog.Logger) *HealthHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &HealthHandler{store: store, version: version, now: now, responder: newResponder(base), logger: base}
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.responder.writeData(r.Context(), w, http.StatusOK, welcomeDTO{
		Message:   "Coworking booking API",
		Version:   h.version,
		Timestamp: formatTime(h.now()),
	})
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := healthDTO{Status: "ok", Database: "up", Timestamp: formatTime(h.now())}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			handlerLogger(r.Context(), h.logger, "HealthHandler", "Check").ErrorContext(r.Context(), "store ping failed", "error", err)
			status.Status = "degraded"
			status.Database = "down"
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, successResponse{Success: false, Data: status})
			return
		}
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, status)
}

type welcomeDTO struct {
	Message   string `json:"message"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type healthDTO struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}
