package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/coworking-booking/internal/application"
	"github.com/example/coworking-booking/internal/booking"
)

// TokenSecret signs tokens issued by factory built auth services.
var TokenSecret = []byte("testfixtures-secret")

// CheapArgon2 keeps password hashing fast in tests.
var CheapArgon2 = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Tokens returns an issuer sharing the factory clock.
func (f *ServiceFactory) Tokens() *application.TokenIssuer {
	return application.NewTokenIssuer(TokenSecret, time.Hour, f.Clock.NowFunc())
}

// NewAuthService builds an auth service with cheap password hashing.
func (f *ServiceFactory) NewAuthService(credentials application.CredentialStore) *application.AuthService {
	return application.NewAuthServiceWithLogger(
		credentials,
		f.Tokens(),
		application.NewPasswordHasher(CheapArgon2),
		application.VerifyPassword,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		f.Logger,
	)
}

// NewRoomService builds a room service.
func (f *ServiceFactory) NewRoomService(rooms application.RoomRepository) *application.RoomService {
	return application.NewRoomServiceWithLogger(rooms, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// BookingServiceDeps captures dependencies for constructing a booking service.
type BookingServiceDeps struct {
	Bookings application.BookingRepository
	Rooms    application.RoomLookup
	Users    application.UserLookup
	Notifier application.Notifier
	Engine   *booking.Engine
}

// NewBookingService builds a booking service. A nil engine admits through a
// default engine over deps.Bookings.
func (f *ServiceFactory) NewBookingService(deps BookingServiceDeps) *application.BookingService {
	return application.NewBookingServiceWithLogger(
		deps.Bookings,
		deps.Rooms,
		deps.Users,
		deps.Engine,
		deps.Notifier,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		f.Logger,
	)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users    application.UserRepository
	Bookings application.BookingLister
	Rooms    application.RoomLookup
}

// NewUserService builds a user service.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	return application.NewUserServiceWithLogger(deps.Users, deps.Bookings, deps.Rooms, f.Clock.NowFunc(), f.Logger)
}
