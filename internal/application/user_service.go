package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultUserPageSize = 10
	maxUserPageSize     = 100
	recentUserWindow    = 7 * 24 * time.Hour
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	// DeleteUser removes the user together with its bookings.
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, offset, limit int) ([]User, int, error)
	CountUsers(ctx context.Context, since time.Time) (UserStats, error)
}

// BookingLister lists the bookings owned by a user.
type BookingLister interface {
	ListBookings(ctx context.Context, userID string) ([]Booking, error)
}

// Subscriptions is told about account changes that affect open notification
// connections.
type Subscriptions interface {
	SetAdmin(userID string, isAdmin bool)
	Disconnect(userID string)
}

// UserService implements the administrator user management operations.
type UserService struct {
	users         UserRepository
	bookings      BookingLister
	rooms         RoomLookup
	subscriptions Subscriptions
	now           func() time.Time
	logger        *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, bookings BookingLister, rooms RoomLookup, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, bookings, rooms, now, nil)
}

// NewUserServiceWithLogger wires dependencies with a specified logger.
func NewUserServiceWithLogger(users UserRepository, bookings BookingLister, rooms RoomLookup, now func() time.Time, logger *slog.Logger) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, bookings: bookings, rooms: rooms, now: now, logger: defaultLogger(logger)}
}

// WithSubscriptions makes role changes and deletions apply to the user's open
// notification connections.
func (s *UserService) WithSubscriptions(subs Subscriptions) *UserService {
	s.subscriptions = subs
	return s
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

func (s *UserService) ready() error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	return nil
}

// ListUsers returns one page of users, newest first.
func (s *UserService) ListUsers(ctx context.Context, params ListUsersParams) (page UserPage, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if err = requireAdmin(params.Principal); err != nil {
		return
	}

	page.Page = params.Page
	if page.Page < 1 {
		page.Page = 1
	}
	page.Limit = params.Limit
	switch {
	case page.Limit < 1:
		page.Limit = defaultUserPageSize
	case page.Limit > maxUserPageSize:
		page.Limit = maxUserPageSize
	}

	page.Users, page.Total, err = s.users.ListUsers(ctx, (page.Page-1)*page.Limit, page.Limit)
	if err != nil {
		err = mapRepoError(err)
		logOutcome(ctx, s.loggerWith(ctx, "ListUsers"), "failed to list users", err)
		return
	}
	if page.Users == nil {
		page.Users = []User{}
	}
	page.TotalPages = (page.Total + page.Limit - 1) / page.Limit
	return
}

// GetUser returns a user together with its bookings.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (result UserWithBookings, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if err = requireAdmin(principal); err != nil {
		return
	}

	result.User, err = s.users.GetUser(ctx, userID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	result.Bookings = []BookingDetails{}
	if s.bookings == nil {
		return
	}

	var owned []Booking
	owned, err = s.bookings.ListBookings(ctx, userID)
	if err != nil {
		err = mapRepoError(err)
		logOutcome(ctx, s.loggerWith(ctx, "GetUser", "user_id", userID), "failed to list user bookings", err)
		return
	}

	rooms := make(map[string]Room)
	for _, b := range owned {
		details := BookingDetails{Booking: b, User: result.User}
		if room, ok := rooms[b.RoomID]; ok {
			details.Room = room
		} else if s.rooms != nil {
			if room, rerr := s.rooms.GetRoom(ctx, b.RoomID); rerr == nil {
				rooms[b.RoomID] = room
				details.Room = room
			}
		}
		result.Bookings = append(result.Bookings, details)
	}
	return
}

// UpdateUser changes the username, email or role of a user.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to update user", err)
			return
		}
		logger.With("role", user.Role).InfoContext(ctx, "user updated")
	}()

	if err = requireAdmin(params.Principal); err != nil {
		return
	}

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	updated := existing
	vErr := &ValidationError{}
	if params.Input.Username != nil {
		updated.Username = strings.TrimSpace(*params.Input.Username)
		validateUsername(vErr, updated.Username)
	}
	if params.Input.Email != nil {
		updated.Email = normalizeEmail(*params.Input.Email)
		validateEmail(vErr, updated.Email)
	}
	if params.Input.Role != nil {
		role, ok := parseRole(*params.Input.Role)
		if !ok {
			vErr.add("role", "role must be user or admin")
		}
		updated.Role = role
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	updated.UpdatedAt = normalizeInstant(s.now())

	user, err = s.users.UpdateUser(ctx, updated)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	if s.subscriptions != nil && user.Role != existing.Role {
		s.subscriptions.SetAdmin(user.ID, user.Role == RoleAdmin)
	}
	return
}

// DeleteUser removes a user and its bookings. Administrators cannot delete
// their own account.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteUser",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to delete user", err)
			return
		}
		logger.InfoContext(ctx, "user deleted")
	}()

	if err = requireAdmin(principal); err != nil {
		return
	}
	if principal.UserID == userID {
		err = withDetail(ErrForbidden, "you cannot delete your own account")
		return
	}

	if err = s.users.DeleteUser(ctx, userID); err != nil {
		err = mapUserRepoError(err)
		return
	}
	if s.subscriptions != nil {
		s.subscriptions.Disconnect(userID)
	}
	return
}

// Stats summarizes the registered accounts. Recent registrations are those
// created in the last seven days.
func (s *UserService) Stats(ctx context.Context, principal Principal) (UserStats, error) {
	if err := s.ready(); err != nil {
		return UserStats{}, err
	}
	if err := requireAdmin(principal); err != nil {
		return UserStats{}, err
	}

	stats, err := s.users.CountUsers(ctx, s.now().Add(-recentUserWindow))
	if err != nil {
		err = mapRepoError(err)
		logOutcome(ctx, s.loggerWith(ctx, "Stats"), "failed to count users", err)
		return UserStats{}, err
	}
	return stats, nil
}

func mapUserRepoError(err error) error {
	err = mapRepoError(err)
	switch {
	case errors.Is(err, ErrNotFound):
		return withDetail(ErrNotFound, "user not found")
	case errors.Is(err, ErrAlreadyExists):
		return withDetail(ErrAlreadyExists, "username or email already taken")
	}
	return err
}
