package persistence

import "time"

// User represents a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room represents a bookable space. Rooms are never removed; IsActive is
// cleared instead.
type Room struct {
	ID          string
	Name        string
	Description string
	Capacity    int
	Type        string
	Amenities   []string
	HourlyRate  float64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Booking represents a reservation of a room for the half-open interval
// [Start, End).
type Booking struct {
	ID           string
	RoomID       string
	UserID       string
	Start        time.Time
	End          time.Time
	Status       string
	Purpose      string
	Participants int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStats aggregates account counts.
type UserStats struct {
	Total  int
	Admins int
	Users  int
	Recent int
}
