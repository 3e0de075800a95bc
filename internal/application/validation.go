package application

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	roomNameMin        = 2
	roomNameMax        = 50
	roomDescriptionMax = 500
	roomCapacityMin    = 1
	roomCapacityMax    = 100
	bookingPurposeMax  = 200
	usernameMin        = 3
	usernameMax        = 30
	passwordMin        = 6
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}$`)

// normalizeInstant converts t to UTC with millisecond precision.
func normalizeInstant(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

func validateLength(vErr *ValidationError, field, value string, min, max int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0 && min > 0:
		vErr.add(field, field+" is required")
	case n < min:
		vErr.add(field, fmt.Sprintf("%s must be at least %d characters", field, min))
	case max > 0 && n > max:
		vErr.add(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
}

func validateUsername(vErr *ValidationError, username string) {
	validateLength(vErr, "username", username, usernameMin, usernameMax)
}

func validateEmail(vErr *ValidationError, email string) {
	if email == "" {
		vErr.add("email", "email is required")
		return
	}
	if !emailPattern.MatchString(email) {
		vErr.add("email", "email must be a valid address")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

func parseRoomType(value string) (RoomType, bool) {
	switch RoomType(strings.ToLower(strings.TrimSpace(value))) {
	case RoomTypeWorkspace:
		return RoomTypeWorkspace, true
	case RoomTypeConference:
		return RoomTypeConference, true
	}
	return "", false
}

// normalizeAmenities trims entries, drops blanks and keeps the first
// occurrence of each value.
func normalizeAmenities(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// applyRoomInput validates input and copies the provided fields onto room.
// When creating, name and capacity are required.
func applyRoomInput(room *Room, input RoomInput, creating bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		validateLength(vErr, "name", name, roomNameMin, roomNameMax)
		room.Name = name
	} else if creating {
		vErr.add("name", "name is required")
	}

	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		validateLength(vErr, "description", description, 0, roomDescriptionMax)
		room.Description = description
	}

	if input.Capacity != nil {
		if *input.Capacity < roomCapacityMin || *input.Capacity > roomCapacityMax {
			vErr.add("capacity", fmt.Sprintf("capacity must be between %d and %d", roomCapacityMin, roomCapacityMax))
		}
		room.Capacity = *input.Capacity
	} else if creating {
		vErr.add("capacity", "capacity is required")
	}

	if input.Type != nil {
		roomType, ok := parseRoomType(*input.Type)
		if !ok {
			vErr.add("type", "type must be workspace or conference")
		}
		room.Type = roomType
	} else if creating {
		room.Type = RoomTypeWorkspace
	}

	if input.Amenities != nil {
		room.Amenities = normalizeAmenities(input.Amenities)
	} else if creating {
		room.Amenities = []string{}
	}

	if input.HourlyRate != nil {
		if *input.HourlyRate < 0 {
			vErr.add("hourly_rate", "hourly_rate cannot be negative")
		}
		room.HourlyRate = *input.HourlyRate
	}

	if input.IsActive != nil {
		room.IsActive = *input.IsActive
	} else if creating {
		room.IsActive = true
	}

	return vErr
}

func validateBookingFields(b Booking) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(b.RoomID) == "" {
		vErr.add("room_id", "room_id is required")
	}
	if b.Start.IsZero() {
		vErr.add("start_time", "start_time is required")
	}
	if b.End.IsZero() {
		vErr.add("end_time", "end_time is required")
	}
	validateLength(vErr, "purpose", b.Purpose, 0, bookingPurposeMax)
	if b.Participants < 1 {
		vErr.add("participants", "participants must be at least 1")
	}
	return vErr
}
