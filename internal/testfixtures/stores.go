package testfixtures

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/example/coworking-booking/internal/persistence"
	"github.com/example/coworking-booking/internal/persistence/memory"
	"github.com/example/coworking-booking/internal/persistence/sqlstore"
)

// SQLiteDSN returns a DSN for a file database at path with foreign keys,
// a busy timeout and immediate write transactions enabled.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
}

// NewSQLiteStore opens a migrated SQLite store in a temporary directory. The
// store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "coworking.db")
	store, err := sqlstore.Open(context.Background(), sqlstore.DialectSQLite, SQLiteDSN(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return store
}

// Backend names a persistence.Store implementation under test.
type Backend struct {
	Name string
	Open func(tb testing.TB) persistence.Store
}

// Backends lists every store implementation that must satisfy the
// persistence contract.
func Backends() []Backend {
	return []Backend{
		{Name: "memory", Open: func(testing.TB) persistence.Store { return memory.New() }},
		{Name: "sqlite", Open: func(tb testing.TB) persistence.Store { return NewSQLiteStore(tb) }},
	}
}

// Seed inserts users, rooms and bookings into store in that order.
func Seed(tb testing.TB, store persistence.Store, users []UserFixture, rooms []RoomFixture, bookings []BookingFixture) {
	tb.Helper()
	ctx := context.Background()

	for _, u := range users {
		if err := store.CreateUser(ctx, u.Persistence()); err != nil {
			tb.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	for _, r := range rooms {
		if err := store.CreateRoom(ctx, r.Persistence()); err != nil {
			tb.Fatalf("seed room %s: %v", r.ID, err)
		}
	}
	for _, b := range bookings {
		if err := store.CreateBooking(ctx, b.Persistence()); err != nil {
			tb.Fatalf("seed booking %s: %v", b.ID, err)
		}
	}
}
