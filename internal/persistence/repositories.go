package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	// ListUsers returns one page of users ordered by CreatedAt descending
	// together with the total number of users.
	ListUsers(ctx context.Context, offset, limit int) ([]User, int, error)
	// CountUsers aggregates role counts; Recent counts users created at or
	// after since.
	CountUsers(ctx context.Context, since time.Time) (UserStats, error)
	// DeleteUser removes the user and every booking it owns.
	DeleteUser(ctx context.Context, id string) error
}

// RoomRepository exposes the operations for rooms. There is no delete; rooms
// are deactivated through UpdateRoom.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, includeInactive bool) ([]Room, error)
}

// BookingRepository stores bookings. CreateBooking and UpdateBooking re-check
// the overlap invariant atomically with the write and return ErrConflict when
// it would be violated.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	UpdateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	// ListBookings returns bookings ordered by Start descending. An empty
	// userID lists every booking.
	ListBookings(ctx context.Context, userID string) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	// HasConflict reports whether a confirmed booking other than excludeID
	// overlaps [start, end) in the room.
	HasConflict(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error)
}

// Store groups every repository behind a single backend.
type Store interface {
	UserRepository
	RoomRepository
	BookingRepository
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
