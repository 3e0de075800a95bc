package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	ListRooms(ctx context.Context, includeInactive bool) ([]Room, error)
}

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms       RoomRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

func (s *RoomService) ready() error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}
	return nil
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to create room", err)
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if err = requireAdmin(params.Principal); err != nil {
		return
	}

	draft := Room{}
	if vErr := applyRoomInput(&draft, params.Input, true); vErr.HasErrors() {
		err = vErr
		return
	}

	draft.ID = s.idGenerator()
	draft.CreatedAt = normalizeInstant(s.now())
	draft.UpdatedAt = draft.CreatedAt

	room, err = s.rooms.CreateRoom(ctx, draft)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}
	return
}

// UpdateRoom applies a partial update to an existing room for administrators.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to update room", err)
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	if err = requireAdmin(params.Principal); err != nil {
		return
	}

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	updated := existing
	if vErr := applyRoomInput(&updated, params.Input, false); vErr.HasErrors() {
		err = vErr
		return
	}
	updated.UpdatedAt = normalizeInstant(s.now())

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}
	return
}

// DeleteRoom deactivates a room. Existing bookings stay readable but the room
// no longer accepts new ones.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to delete room", err)
			return
		}
		logger.InfoContext(ctx, "room deactivated")
	}()

	if err = requireAdmin(principal); err != nil {
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room.IsActive = false
	room.UpdatedAt = normalizeInstant(s.now())
	if _, err = s.rooms.UpdateRoom(ctx, room); err != nil {
		err = mapRoomRepoError(err)
	}
	return
}

// GetRoom returns a room regardless of its active flag.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if err := s.ready(); err != nil {
		return Room{}, err
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		if !errors.Is(err, ErrNotFound) {
			logOutcome(ctx, s.loggerWith(ctx, "GetRoom", "room_id", roomID), "failed to get room", err)
		}
		return Room{}, err
	}
	return room, nil
}

// ListRooms returns the active rooms sorted by name.
func (s *RoomService) ListRooms(ctx context.Context) (rooms []Room, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListRooms")
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to list rooms", err)
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx, false)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	rooms = make([]Room, 0, len(raw))
	for _, room := range raw {
		if room.IsActive {
			rooms = append(rooms, room)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return
}

func mapRoomRepoError(err error) error {
	err = mapRepoError(err)
	switch {
	case errors.Is(err, ErrNotFound):
		return withDetail(ErrNotFound, "room not found")
	case errors.Is(err, ErrAlreadyExists):
		return withDetail(ErrAlreadyExists, "room with this name already exists")
	}
	return err
}
