package sqlstore

import (
	"context"

	"github.com/example/coworking-booking/internal/persistence"
)

// Store bundles the SQL repositories into a persistence.Store.
type Store struct {
	*UserRepository
	*RoomRepository
	*BookingRepository

	pool *ConnectionPool
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the database described by dialect and dsn.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	pool, err := NewConnectionPool(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

// NewStore builds a Store over an existing pool.
func NewStore(pool *ConnectionPool) *Store {
	return &Store{
		UserRepository:    NewUserRepository(pool),
		RoomRepository:    NewRoomRepository(pool),
		BookingRepository: NewBookingRepository(pool),
		pool:              pool,
	}
}

// Pool exposes the connection pool.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	migrator, err := NewMigrator(s.pool)
	if err != nil {
		return err
	}
	_, err = migrator.Up(ctx)
	return err
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
