package main

import (
	"context"
	"time"

	"github.com/example/coworking-booking/internal/application"
	"github.com/example/coworking-booking/internal/booking"
	"github.com/example/coworking-booking/internal/persistence"
)

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(creds.User, creds.PasswordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, creds.User.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// UpdateUser keeps the stored password hash; the admin surface cannot change it.
func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context, offset, limit int) ([]application.User, int, error) {
	models, total, err := a.repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, total, nil
}

func (a *userRepositoryAdapter) CountUsers(ctx context.Context, since time.Time) (application.UserStats, error) {
	stats, err := a.repo.CountUsers(ctx, since)
	if err != nil {
		return application.UserStats{}, err
	}
	return application.UserStats{
		TotalUsers:          stats.Total,
		AdminUsers:          stats.Admins,
		RegularUsers:        stats.Users,
		RecentRegistrations: stats.Recent,
	}, nil
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context, includeInactive bool) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) HasConflict(ctx context.Context, roomID string, window booking.Interval, excludeID string) (bool, error) {
	return a.repo.HasConflict(ctx, roomID, window.Start, window.End, excludeID)
}

func (a *bookingRepositoryAdapter) CreateBooking(ctx context.Context, b application.Booking) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(b)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, b.ID)
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepositoryAdapter) UpdateBooking(ctx context.Context, b application.Booking) (application.Booking, error) {
	if err := a.repo.UpdateBooking(ctx, toPersistenceBooking(b)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, b.ID)
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, userID string) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, userID)
	if err != nil {
		return nil, err
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings, nil
}

func (a *bookingRepositoryAdapter) DeleteBooking(ctx context.Context, id string) error {
	return a.repo.DeleteBooking(ctx, id)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:        model.ID,
		Username:  model.Username,
		Email:     model.Email,
		Role:      application.Role(model.Role),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: passwordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		Capacity:    model.Capacity,
		Type:        application.RoomType(model.Type),
		Amenities:   append([]string(nil), model.Amenities...),
		HourlyRate:  model.HourlyRate,
		IsActive:    model.IsActive,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		Capacity:    room.Capacity,
		Type:        string(room.Type),
		Amenities:   append([]string(nil), room.Amenities...),
		HourlyRate:  room.HourlyRate,
		IsActive:    room.IsActive,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:           model.ID,
		RoomID:       model.RoomID,
		UserID:       model.UserID,
		Start:        model.Start,
		End:          model.End,
		Status:       booking.Status(model.Status),
		Purpose:      model.Purpose,
		Participants: model.Participants,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceBooking(b application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:           b.ID,
		RoomID:       b.RoomID,
		UserID:       b.UserID,
		Start:        b.Start,
		End:          b.End,
		Status:       string(b.Status),
		Purpose:      b.Purpose,
		Participants: b.Participants,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}
