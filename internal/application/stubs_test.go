package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/coworking-booking/internal/booking"
	"github.com/example/coworking-booking/internal/notify"
	"github.com/example/coworking-booking/internal/persistence"
)

// fakeStore implements every repository interface of the package over maps.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]UserCredentials
	rooms    map[string]Room
	bookings map[string]Booking

	conflictErr    error
	conflictChecks int
	writes         int
	roomLookups    int
	createErr      error
	delay          time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]UserCredentials),
		rooms:    make(map[string]Room),
		bookings: make(map[string]Booking),
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, creds UserCredentials) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.User.Email, creds.User.Email) || existing.User.Username == creds.User.Username {
			return User{}, persistence.ErrDuplicate
		}
	}
	f.users[creds.User.ID] = creds
	return creds.User, nil
}

func (f *fakeStore) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, creds := range f.users {
		if creds.User.Email == email {
			return creds, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	creds, ok := f.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return creds.User, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, user User) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	creds, ok := f.users[user.ID]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	for id, other := range f.users {
		if id != user.ID && (other.User.Email == user.Email || other.User.Username == user.Username) {
			return User{}, persistence.ErrDuplicate
		}
	}
	creds.User = user
	f.users[user.ID] = creds
	return user, nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.users, id)
	for bid, b := range f.bookings {
		if b.UserID == id {
			delete(f.bookings, bid)
		}
	}
	return nil
}

func (f *fakeStore) ListUsers(ctx context.Context, offset, limit int) ([]User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]User, 0, len(f.users))
	for _, creds := range f.users {
		all = append(all, creds.User)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (f *fakeStore) CountUsers(ctx context.Context, since time.Time) (UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats UserStats
	for _, creds := range f.users {
		stats.TotalUsers++
		if creds.User.Role == RoleAdmin {
			stats.AdminUsers++
		} else {
			stats.RegularUsers++
		}
		if !creds.User.CreatedAt.Before(since) {
			stats.RecentRegistrations++
		}
	}
	return stats, nil
}

func (f *fakeStore) CreateRoom(ctx context.Context, room Room) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rooms {
		if existing.Name == room.Name {
			return Room{}, persistence.ErrDuplicate
		}
	}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeStore) GetRoom(ctx context.Context, id string) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomLookups++
	room, ok := f.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (f *fakeStore) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.ID]; !ok {
		return Room{}, persistence.ErrNotFound
	}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeStore) ListRooms(ctx context.Context, includeInactive bool) ([]Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		if includeInactive || room.IsActive {
			out = append(out, room)
		}
	}
	return out, nil
}

func (f *fakeStore) HasConflict(ctx context.Context, roomID string, window booking.Interval, excludeID string) (bool, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflictChecks++
	if f.conflictErr != nil {
		return false, f.conflictErr
	}
	_, found := booking.FindConflict(f.reservationsLocked(), booking.Reservation{RoomID: roomID, Window: window, Status: booking.StatusConfirmed}, excludeID)
	return found, nil
}

func (f *fakeStore) reservationsLocked() []booking.Reservation {
	out := make([]booking.Reservation, 0, len(f.bookings))
	for _, b := range f.bookings {
		out = append(out, booking.Reservation{ID: b.ID, RoomID: b.RoomID, Window: b.Window(), Status: b.Status})
	}
	return out
}

func (f *fakeStore) CreateBooking(ctx context.Context, b Booking) (Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Booking{}, f.createErr
	}
	f.writes++
	f.bookings[b.ID] = b
	return b, nil
}

func (f *fakeStore) GetBooking(ctx context.Context, id string) (Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) UpdateBooking(ctx context.Context, b Booking) (Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[b.ID]; !ok {
		return Booking{}, persistence.ErrNotFound
	}
	f.writes++
	f.bookings[b.ID] = b
	return b, nil
}

func (f *fakeStore) ListBookings(ctx context.Context, userID string) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Booking, 0, len(f.bookings))
	for _, b := range f.bookings {
		if userID == "" || b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

func (f *fakeStore) DeleteBooking(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.bookings, id)
	return nil
}

func (f *fakeStore) addUser(user User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = UserCredentials{User: user}
}

func (f *fakeStore) addRoom(room Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = room
}

func (f *fakeStore) addBooking(b Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[b.ID] = b
}

type published struct {
	channel string
	event   notify.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (n *recordingNotifier) Publish(ctx context.Context, channel string, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{channel: channel, event: event})
	return n.err
}

func (n *recordingNotifier) channels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, p := range n.events {
		out[i] = p.channel
	}
	return out
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

func ptr[T any](v T) *T { return &v }

var referenceNow = time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return referenceNow }

var (
	adminPrincipal = Principal{UserID: "admin-1", Username: "admin", IsAdmin: true}
	alicePrincipal = Principal{UserID: "user-alice", Username: "alice"}
	bobPrincipal   = Principal{UserID: "user-bob", Username: "bob"}
)
