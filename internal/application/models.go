package application

import (
	"time"

	"github.com/example/coworking-booking/internal/booking"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID   string
	Username string
	IsAdmin  bool
}

// Authenticated reports whether the principal identifies a user.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// User represents an account exposed by the application services.
type User struct {
	ID        string
	Username  string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal returns the principal acting as u.
func (u User) Principal() Principal {
	return Principal{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin()}
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RoomType classifies rooms.
type RoomType string

const (
	RoomTypeWorkspace  RoomType = "workspace"
	RoomTypeConference RoomType = "conference"
)

// Room represents a bookable space.
type Room struct {
	ID          string
	Name        string
	Description string
	Capacity    int
	Type        RoomType
	Amenities   []string
	HourlyRate  float64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoomInput captures caller provided room fields. Nil fields are left
// unchanged on update and take their defaults on create.
type RoomInput struct {
	Name        *string
	Description *string
	Capacity    *int
	Type        *string
	Amenities   []string
	HourlyRate  *float64
	IsActive    *bool
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// Booking is a reservation of a room for [Start, End).
type Booking struct {
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

// Window returns the booking interval.
func (b Booking) Window() booking.Interval {
	return booking.Interval{Start: b.Start, End: b.End}
}

// Duration returns End - Start.
func (b Booking) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// IsActive reports whether the booking is confirmed and has not ended yet.
func (b Booking) IsActive(now time.Time) bool {
	return b.Status == booking.StatusConfirmed && now.Before(b.End)
}

// BookingDetails is a booking together with the room and owner it refers to.
// Room and User are zero when the referenced record could not be loaded.
type BookingDetails struct {
	Booking
	Room Room
	User User
}

// BookingInput captures caller provided booking fields for creation.
type BookingInput struct {
	RoomID       string
	Start        time.Time
	End          time.Time
	Purpose      string
	Participants int
}

// BookingPatch captures the fields of an update; nil fields are unchanged.
type BookingPatch struct {
	RoomID       *string
	Start        *time.Time
	End          *time.Time
	Purpose      *string
	Participants *int
	Status       *string
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to update a booking.
type UpdateBookingParams struct {
	Principal Principal
	BookingID string
	Patch     BookingPatch
}

// RegisterParams captures the data required to register an account.
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// LoginParams captures the data required to log in.
type LoginParams struct {
	Email    string
	Password string
}

// AuthResult is returned by successful registration or login.
type AuthResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// UserInput captures the admin-editable user attributes; nil fields are unchanged.
type UserInput struct {
	Username *string
	Email    *string
	Role     *string
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// ListUsersParams selects one page of users.
type ListUsersParams struct {
	Principal Principal
	Page      int
	Limit     int
}

// UserPage is one page of users.
type UserPage struct {
	Users      []User
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// UserWithBookings is a user together with every booking it owns.
type UserWithBookings struct {
	User     User
	Bookings []BookingDetails
}

// UserStats summarizes registered accounts.
type UserStats struct {
	TotalUsers          int
	AdminUsers          int
	RegularUsers        int
	RecentRegistrations int
}

func requireAuthenticated(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func requireAdmin(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if !p.IsAdmin {
		return withDetail(ErrForbidden, "admin role required")
	}
	return nil
}
