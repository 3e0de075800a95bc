package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"

	"github.com/example/coworking-booking/internal/application"
	"github.com/example/coworking-booking/internal/booking"
	"github.com/example/coworking-booking/internal/cache"
	"github.com/example/coworking-booking/internal/config"
	httptransport "github.com/example/coworking-booking/internal/http"
	"github.com/example/coworking-booking/internal/metrics"
	"github.com/example/coworking-booking/internal/notify"
	"github.com/example/coworking-booking/internal/persistence"
	"github.com/example/coworking-booking/internal/persistence/memory"
	"github.com/example/coworking-booking/internal/persistence/sqlstore"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.bootstrap()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	var sinks []notify.Sink
	if cfg.NATS.URL != "" {
		sink, err := notify.DialNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := sink.Close(); cerr != nil {
				logger.Error("failed to drain nats", "error", cerr)
			}
		}()
		sinks = append(sinks, sink)
		logger.Info("publishing events to nats", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	handler := newAPI(cfg, store, logger, apiOptions{sinks: sinks}).handler

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("coworking API listening", "addr", server.Addr, "storage", cfg.Storage.Driver, "version", version)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	logger.Info("coworking API stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (persistence.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres:
		return openSQLStore(ctx, sqlstore.DialectPostgres, cfg.DSN())
	default:
		return openSQLStore(ctx, sqlstore.DialectSQLite, cfg.DSN())
	}
}

func openSQLStore(ctx context.Context, dialect sqlstore.Dialect, dsn string) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", dialect, err)
	}
	return store, nil
}

// api is the assembled HTTP surface together with the components tests and
// the server need to reach.
type api struct {
	handler http.Handler
	hub     *notify.Hub
	metrics *metrics.Metrics
	cache   *cache.ResponseCache
}

// apiOptions overrides process defaults; the zero value is production.
type apiOptions struct {
	now       func() time.Time
	passwords application.Argon2idParams
	sinks     []notify.Sink
}

func newAPI(cfg config.Config, store persistence.Store, logger *slog.Logger, opts apiOptions) *api {
	now := opts.now
	if now == nil {
		now = time.Now
	}
	passwords := opts.passwords
	if passwords == (application.Argon2idParams{}) {
		passwords = application.DefaultArgon2idParams
	}

	m := metrics.New()

	hub := notify.NewHub(logger, notify.WithConnectionObserver(m.SetWSActiveConnections))
	notifier := append(notify.Fanout{hub}, opts.sinks...)

	var responses *cache.ResponseCache
	if cfg.Cache.Enabled {
		responses = cache.New(cfg.Cache.Size, cfg.Cache.MaxTTL(), cache.WithClock(now), cache.WithObserver(m.ObserveCache))
	}

	idGenerator := uuid.NewString

	credentials := newCredentialStoreAdapter(store)
	userRepo := newUserRepositoryAdapter(store)
	roomRepo := newRoomRepositoryAdapter(store)
	bookingRepo := newBookingRepositoryAdapter(store)

	tokens := application.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL, now)
	engine := booking.NewEngine(bookingRepo,
		booking.WithTimeout(cfg.StoreTimeout),
		booking.WithObserver(m.ObserveAdmission),
	)

	authService := application.NewAuthServiceWithLogger(
		credentials,
		tokens,
		application.NewPasswordHasher(passwords),
		application.VerifyPassword,
		idGenerator,
		now,
		logger,
	)
	roomService := application.NewRoomServiceWithLogger(roomRepo, idGenerator, now, logger)
	bookingService := application.NewBookingServiceWithLogger(bookingRepo, roomRepo, userRepo, engine, notifier, idGenerator, now, logger)
	userService := application.NewUserServiceWithLogger(userRepo, bookingRepo, roomRepo, now, logger).WithSubscriptions(hub)

	routerCfg := httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(authService, logger),
		Rooms:         httptransport.NewRoomHandler(roomService, logger),
		Bookings:      httptransport.NewBookingHandler(bookingService, now, logger),
		Users:         httptransport.NewUserHandler(userService, now, logger),
		Notifications: httptransport.NewNotificationHandler(hub, logger),
		Health:        httptransport.NewHealthHandler(store, version, now, logger),
		Authenticator: authService,
		Cache:         responses,
		CacheTTL: httptransport.CacheTTLs{
			RoomList: cfg.Cache.RoomListTTL,
			Room:     cfg.Cache.RoomTTL,
			Bookings: cfg.Cache.BookingTTL,
		},
		Metrics: m,
		Logger:  logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			handlers.RecoveryHandler(
				handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
				handlers.PrintRecoveryStack(true),
			),
			handlers.CORS(
				handlers.AllowedOrigins(cfg.CORSOrigins),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
				handlers.ExposedHeaders([]string{cache.HeaderName, "X-Request-ID"}),
			),
		},
	}
	if cfg.MetricsEnabled {
		routerCfg.MetricsHandler = m.Handler()
	}

	return &api{
		handler: httptransport.NewRouter(routerCfg),
		hub:     hub,
		metrics: m,
		cache:   responses,
	}
}
