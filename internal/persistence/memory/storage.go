// Package memory provides a process-local persistence.Store used by tests and
// by the "memory" storage driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/coworking-booking/internal/booking"
	"github.com/example/coworking-booking/internal/persistence"
)

// Storage keeps every record in maps guarded by a single RWMutex. Booking
// writes re-check overlaps under the write lock, matching the transactional
// guarantee of the SQL store.
type Storage struct {
	mu       sync.RWMutex
	users    map[string]persistence.User
	rooms    map[string]persistence.Room
	bookings map[string]persistence.Booking
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:    make(map[string]persistence.User),
		rooms:    make(map[string]persistence.Room),
		bookings: make(map[string]persistence.Booking),
	}
}

// Ping reports whether the storage is usable.
func (s *Storage) Ping(ctx context.Context) error {
	return checkContext(ctx)
}

// Migrate is a no-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return nil
}

// --- users ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%w: user %s", persistence.ErrDuplicate, user.ID)
	}
	if err := s.ensureUniqueUserLocked(user); err != nil {
		return err
	}

	s.users[user.ID] = user
	return nil
}

// UpdateUser replaces an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueUserLocked(user); err != nil {
		return err
	}

	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if err := checkContext(ctx); err != nil {
		return persistence.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return s.findUser(ctx, func(u persistence.User) bool { return strings.EqualFold(u.Email, email) })
}

// GetUserByUsername retrieves a user by exact username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	return s.findUser(ctx, func(u persistence.User) bool { return u.Username == username })
}

func (s *Storage) findUser(ctx context.Context, match func(persistence.User) bool) (persistence.User, error) {
	if err := checkContext(ctx); err != nil {
		return persistence.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if match(user) {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns a page of users, newest first.
func (s *Storage) ListUsers(ctx context.Context, offset, limit int) ([]persistence.User, int, error) {
	if err := checkContext(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	total := len(users)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return users[offset:end], total, nil
}

// CountUsers aggregates users by role.
func (s *Storage) CountUsers(ctx context.Context, since time.Time) (persistence.UserStats, error) {
	if err := checkContext(ctx); err != nil {
		return persistence.UserStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats persistence.UserStats
	for _, user := range s.users {
		stats.Total++
		if user.Role == "admin" {
			stats.Admins++
		} else {
			stats.Users++
		}
		if !user.CreatedAt.Before(since) {
			stats.Recent++
		}
	}
	return stats, nil
}

// DeleteUser removes a user and the bookings it owns.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	for bookingID, b := range s.bookings {
		if b.UserID == id {
			delete(s.bookings, bookingID)
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Storage) ensureUniqueUserLocked(user persistence.User) error {
	for _, existing := range s.users {
		if existing.ID == user.ID {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("%w: email %s", persistence.ErrDuplicate, user.Email)
		}
		if existing.Username == user.Username {
			return fmt.Errorf("%w: username %s", persistence.ErrDuplicate, user.Username)
		}
	}
	return nil
}

// --- rooms ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("%w: room %s", persistence.ErrDuplicate, room.ID)
	}
	if err := s.ensureUniqueRoomLocked(room); err != nil {
		return err
	}
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// UpdateRoom replaces an existing room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueRoomLocked(room); err != nil {
		return err
	}
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// GetRoom retrieves a room by ID regardless of its active flag.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if err := checkContext(ctx); err != nil {
		return persistence.Room{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

// ListRooms returns rooms ordered by name.
func (s *Storage) ListRooms(ctx context.Context, includeInactive bool) ([]persistence.Room, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if !includeInactive && !room.IsActive {
			continue
		}
		rooms = append(rooms, cloneRoom(room))
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

func (s *Storage) ensureUniqueRoomLocked(room persistence.Room) error {
	for _, existing := range s.rooms {
		if existing.ID != room.ID && existing.Name == room.Name {
			return fmt.Errorf("%w: room name %s", persistence.ErrDuplicate, room.Name)
		}
	}
	return nil
}

// --- bookings ---

// CreateBooking stores a booking after verifying no confirmed booking in the
// same room overlaps it.
func (s *Storage) CreateBooking(ctx context.Context, b persistence.Booking) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[b.ID]; ok {
		return fmt.Errorf("%w: booking %s", persistence.ErrDuplicate, b.ID)
	}
	if _, ok := s.rooms[b.RoomID]; !ok {
		return fmt.Errorf("memory: booking references unknown room %s", b.RoomID)
	}
	if _, ok := s.users[b.UserID]; !ok {
		return fmt.Errorf("memory: booking references unknown user %s", b.UserID)
	}
	if s.conflictsLocked(b, "") {
		return persistence.ErrConflict
	}
	s.bookings[b.ID] = b
	return nil
}

// UpdateBooking replaces a booking, re-checking overlaps against every other
// booking when the result is confirmed.
func (s *Storage) UpdateBooking(ctx context.Context, b persistence.Booking) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[b.ID]; !ok {
		return persistence.ErrNotFound
	}
	if s.conflictsLocked(b, b.ID) {
		return persistence.ErrConflict
	}
	s.bookings[b.ID] = b
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if err := checkContext(ctx); err != nil {
		return persistence.Booking{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

// ListBookings returns bookings, latest start first.
func (s *Storage) ListBookings(ctx context.Context, userID string) ([]persistence.Booking, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]persistence.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		if userID != "" && b.UserID != userID {
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.After(out[j].Start)
	})
	return out, nil
}

// DeleteBooking removes a booking.
func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

// HasConflict reports whether a confirmed booking overlaps [start, end).
func (s *Storage) HasConflict(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.conflictsLocked(persistence.Booking{
		RoomID: roomID,
		Start:  start,
		End:    end,
		Status: string(booking.StatusConfirmed),
	}, excludeID), nil
}

func (s *Storage) conflictsLocked(candidate persistence.Booking, excludeID string) bool {
	if booking.Status(candidate.Status) != booking.StatusConfirmed {
		return false
	}
	existing := make([]booking.Reservation, 0)
	for _, b := range s.bookings {
		if b.RoomID == candidate.RoomID {
			existing = append(existing, reservationOf(b))
		}
	}
	_, found := booking.FindConflict(existing, reservationOf(candidate), excludeID)
	return found
}

func reservationOf(b persistence.Booking) booking.Reservation {
	return booking.Reservation{
		ID:     b.ID,
		RoomID: b.RoomID,
		Window: booking.Interval{Start: b.Start, End: b.End},
		Status: booking.Status(b.Status),
	}
}

func cloneRoom(room persistence.Room) persistence.Room {
	if room.Amenities != nil {
		room.Amenities = append([]string(nil), room.Amenities...)
	}
	return room
}
