package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/example/coworking-booking/internal/persistence"
)

// Instants are stored as Unix milliseconds so both dialects compare them as
// plain integers.

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type userRow struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func newUserRow(u persistence.User) userRow {
	return userRow{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    toMillis(u.CreatedAt),
		UpdatedAt:    toMillis(u.UpdatedAt),
	}
}

func (r userRow) model() persistence.User {
	return persistence.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}

type roomRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Description string  `db:"description"`
	Capacity    int     `db:"capacity"`
	Type        string  `db:"type"`
	Amenities   string  `db:"amenities"`
	HourlyRate  float64 `db:"hourly_rate"`
	IsActive    bool    `db:"is_active"`
	CreatedAt   int64   `db:"created_at"`
	UpdatedAt   int64   `db:"updated_at"`
}

func newRoomRow(r persistence.Room) (roomRow, error) {
	amenities := r.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	encoded, err := json.Marshal(amenities)
	if err != nil {
		return roomRow{}, err
	}
	return roomRow{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Capacity:    r.Capacity,
		Type:        r.Type,
		Amenities:   string(encoded),
		HourlyRate:  r.HourlyRate,
		IsActive:    r.IsActive,
		CreatedAt:   toMillis(r.CreatedAt),
		UpdatedAt:   toMillis(r.UpdatedAt),
	}, nil
}

func (r roomRow) model() (persistence.Room, error) {
	var amenities []string
	if r.Amenities != "" {
		if err := json.Unmarshal([]byte(r.Amenities), &amenities); err != nil {
			return persistence.Room{}, err
		}
	}
	if len(amenities) == 0 {
		amenities = nil
	}
	return persistence.Room{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Capacity:    r.Capacity,
		Type:        r.Type,
		Amenities:   amenities,
		HourlyRate:  r.HourlyRate,
		IsActive:    r.IsActive,
		CreatedAt:   fromMillis(r.CreatedAt),
		UpdatedAt:   fromMillis(r.UpdatedAt),
	}, nil
}

type bookingRow struct {
	ID           string `db:"id"`
	RoomID       string `db:"room_id"`
	UserID       string `db:"user_id"`
	StartAt      int64  `db:"start_at"`
	EndAt        int64  `db:"end_at"`
	Status       string `db:"status"`
	Purpose      string `db:"purpose"`
	Participants int    `db:"participants"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func newBookingRow(b persistence.Booking) bookingRow {
	return bookingRow{
		ID:           b.ID,
		RoomID:       b.RoomID,
		UserID:       b.UserID,
		StartAt:      toMillis(b.Start),
		EndAt:        toMillis(b.End),
		Status:       b.Status,
		Purpose:      b.Purpose,
		Participants: b.Participants,
		CreatedAt:    toMillis(b.CreatedAt),
		UpdatedAt:    toMillis(b.UpdatedAt),
	}
}

func (r bookingRow) model() persistence.Booking {
	return persistence.Booking{
		ID:           r.ID,
		RoomID:       r.RoomID,
		UserID:       r.UserID,
		Start:        fromMillis(r.StartAt),
		End:          fromMillis(r.EndAt),
		Status:       r.Status,
		Purpose:      r.Purpose,
		Participants: r.Participants,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}
