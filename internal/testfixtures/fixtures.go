package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/coworking-booking/internal/application"
	"github.com/example/coworking-booking/internal/booking"
	"github.com/example/coworking-booking/internal/persistence"
)

var (
	userCounter    uint64
	roomCounter    uint64
	bookingCounter uint64
)

var referenceTime = time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         application.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := UserFixture{
		ID:           fmt.Sprintf("user-%03d", idx),
		Username:     fmt.Sprintf("member%03d", idx),
		Email:        fmt.Sprintf("member%03d@example.com", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Role:         application.RoleUser,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUsername overrides the generated username.
func WithUsername(name string) UserOption {
	return func(f *UserFixture) { f.Username = name }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// WithUserAdmin grants the admin role.
func WithUserAdmin() UserOption {
	return func(f *UserFixture) { f.Role = application.RoleAdmin }
}

// WithUserCreatedAt sets both timestamps.
func WithUserCreatedAt(t time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = t
		f.UpdatedAt = t
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:        f.ID,
		Username:  f.Username,
		Email:     f.Email,
		Role:      f.Role,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Principal returns the principal acting as the fixture user.
func (f UserFixture) Principal() application.Principal {
	return f.Application().Principal()
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Username:     f.Username,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		Role:         string(f.Role),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// RoomFixture represents a deterministic room record.
type RoomFixture struct {
	ID          string
	Name        string
	Description string
	Capacity    int
	Type        application.RoomType
	Amenities   []string
	HourlyRate  float64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns an active workspace room with capacity 4.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		ID:         fmt.Sprintf("room-%03d", idx),
		Name:       fmt.Sprintf("Room %03d", idx),
		Capacity:   4,
		Type:       application.RoomTypeWorkspace,
		Amenities:  []string{"wifi"},
		HourlyRate: 15,
		IsActive:   true,
		CreatedAt:  referenceTime.Add(-24 * time.Hour),
		UpdatedAt:  referenceTime.Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

// WithRoomCapacity overrides the default capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) { f.Capacity = capacity }
}

// WithRoomType overrides the default workspace type.
func WithRoomType(t application.RoomType) RoomOption {
	return func(f *RoomFixture) { f.Type = t }
}

// WithRoomInactive marks the room soft-deleted.
func WithRoomInactive() RoomOption {
	return func(f *RoomFixture) { f.IsActive = false }
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Capacity:    f.Capacity,
		Type:        f.Type,
		Amenities:   append([]string(nil), f.Amenities...),
		HourlyRate:  f.HourlyRate,
		IsActive:    f.IsActive,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Capacity:    f.Capacity,
		Type:        string(f.Type),
		Amenities:   append([]string(nil), f.Amenities...),
		HourlyRate:  f.HourlyRate,
		IsActive:    f.IsActive,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// BookingFixture represents a deterministic booking record.
type BookingFixture struct {
	ID           string
	RoomID       string
	UserID       string
	Start        time.Time
	End          time.Time
	Status       booking.Status
	Purpose      string
	Participants int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a confirmed one hour booking of roomID by userID
// starting an hour after ReferenceTime.
func NewBookingFixture(roomID, userID string, opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	start := referenceTime.Add(time.Hour)
	fixture := BookingFixture{
		ID:           fmt.Sprintf("booking-%03d", idx),
		RoomID:       roomID,
		UserID:       userID,
		Start:        start,
		End:          start.Add(time.Hour),
		Status:       booking.StatusConfirmed,
		Purpose:      "planning",
		Participants: 1,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) { f.ID = id }
}

// WithBookingWindow sets [start, end).
func WithBookingWindow(start, end time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Start = start
		f.End = end
	}
}

// WithBookingStatus overrides the confirmed status.
func WithBookingStatus(status booking.Status) BookingOption {
	return func(f *BookingFixture) { f.Status = status }
}

// WithBookingParticipants overrides the participant count.
func WithBookingParticipants(n int) BookingOption {
	return func(f *BookingFixture) { f.Participants = n }
}

// Application returns the fixture as an application.Booking value.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:           f.ID,
		RoomID:       f.RoomID,
		UserID:       f.UserID,
		Start:        f.Start,
		End:          f.End,
		Status:       f.Status,
		Purpose:      f.Purpose,
		Participants: f.Participants,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:           f.ID,
		RoomID:       f.RoomID,
		UserID:       f.UserID,
		Start:        f.Start,
		End:          f.End,
		Status:       string(f.Status),
		Purpose:      f.Purpose,
		Participants: f.Participants,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}
