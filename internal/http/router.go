package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/example/coworking-booking/internal/cache"
)

const (
	roomCachePattern    = cache.KeyPrefix + "/api/rooms*"
	bookingCachePattern = cache.KeyPrefix + "/api/bookings*"
)

// CacheTTLs configures how long each cached route may be served.
type CacheTTLs struct {
	RoomList time.Duration
	Room     time.Duration
	Bookings time.Duration
}

type RouterConfig struct {
	Auth          *AuthHandler
	Rooms         *RoomHandler
	Bookings      *BookingHandler
	Users         *UserHandler
	Notifications *NotificationHandler
	Health        *HealthHandler

	// Authenticator guards every route that needs a principal.
	Authenticator Authenticator
	// Cache is optional; a nil cache serves every request from the services.
	Cache    *cache.ResponseCache
	CacheTTL CacheTTLs

	Metrics        MetricsRecorder
	MetricsHandler http.Handler
	Logger         *slog.Logger
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(cfg.Authenticator, cfg.Logger)(h)
	}
	invalidates := func(h http.Handler, patterns ...string) http.Handler {
		return cfg.Cache.InvalidateOnSuccess(patterns...)(h)
	}
	cached := func(ttl time.Duration, key cache.KeyFunc, h http.Handler) http.Handler {
		return cfg.Cache.Middleware(ttl, key)(h)
	}

	if cfg.Health != nil {
		mux.HandleFunc("GET /{$}", cfg.Health.Root)
		mux.HandleFunc("GET /health", cfg.Health.Check)
	}
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /api/auth/register", cfg.Auth.Register)
		mux.HandleFunc("POST /api/auth/login", cfg.Auth.Login)
		mux.Handle("GET /api/auth/me", authed(cfg.Auth.Me))
	}

	if cfg.Rooms != nil {
		mux.Handle("GET /api/rooms", cached(cfg.CacheTTL.RoomList, cache.RequestKey, http.HandlerFunc(cfg.Rooms.List)))
		mux.Handle("GET /api/rooms/{id}", cached(cfg.CacheTTL.Room, cache.RequestKey, http.HandlerFunc(cfg.Rooms.Get)))
		mux.Handle("POST /api/rooms", authed(invalidates(http.HandlerFunc(cfg.Rooms.Create), roomCachePattern).ServeHTTP))
		mux.Handle("PUT /api/rooms/{id}", authed(invalidates(http.HandlerFunc(cfg.Rooms.Update), roomCachePattern, bookingCachePattern).ServeHTTP))
		mux.Handle("DELETE /api/rooms/{id}", authed(invalidates(http.HandlerFunc(cfg.Rooms.Delete), roomCachePattern).ServeHTTP))
	}

	if cfg.Bookings != nil {
		mutates := func(h http.HandlerFunc) http.Handler {
			return authed(invalidates(h, bookingCachePattern).ServeHTTP)
		}
		mux.Handle("GET /api/bookings", authed(cached(cfg.CacheTTL.Bookings, principalKey, http.HandlerFunc(cfg.Bookings.List)).ServeHTTP))
		mux.Handle("POST /api/bookings", mutates(cfg.Bookings.Create))
		mux.Handle("GET /api/bookings/{id}", authed(cfg.Bookings.Get))
		mux.Handle("PUT /api/bookings/{id}", mutates(cfg.Bookings.Update))
		mux.Handle("POST /api/bookings/{id}/cancel", mutates(cfg.Bookings.Cancel))
		mux.Handle("DELETE /api/bookings/{id}", mutates(cfg.Bookings.Delete))
	}

	if cfg.Users != nil {
		mux.Handle("GET /api/users", authed(cfg.Users.List))
		mux.Handle("GET /api/users/stats/overview", authed(cfg.Users.Stats))
		mux.Handle("GET /api/users/{id}", authed(cfg.Users.Get))
		mux.Handle("PUT /api/users/{id}", authed(invalidates(http.HandlerFunc(cfg.Users.Update), bookingCachePattern).ServeHTTP))
		mux.Handle("DELETE /api/users/{id}", authed(invalidates(http.HandlerFunc(cfg.Users.Delete), bookingCachePattern).ServeHTTP))
	}

	if cfg.Notifications != nil {
		mux.Handle("GET /ws", authed(cfg.Notifications.Serve))
	}

	handler := instrument(cfg.Metrics, mux)
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// principalKey scopes cached booking lists to the caller.
func principalKey(r *http.Request) string {
	principal, _ := PrincipalFromContext(r.Context())
	return cache.RequestKey(r) + "#" + principal.UserID
}
