package sqlstore

import (
	"context"

	"github.com/example/coworking-booking/internal/persistence"
)

const roomColumns = `id, name, description, capacity, type, amenities, hourly_rate, is_active, created_at, updated_at`

// RoomRepository implements persistence.RoomRepository.
type RoomRepository struct {
	pool *ConnectionPool
}

// NewRoomRepository creates a room repository on pool.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

// CreateRoom inserts a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	row, err := newRoomRow(room)
	if err != nil {
		return err
	}
	query := `INSERT INTO rooms (` + roomColumns + `)
		VALUES (:id, :name, :description, :capacity, :type, :amenities, :hourly_rate, :is_active, :created_at, :updated_at)`
	if _, err := r.pool.db.NamedExecContext(ctx, query, row); err != nil {
		return mapError(err)
	}
	return nil
}

// UpdateRoom updates every mutable column of an existing room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	row, err := newRoomRow(room)
	if err != nil {
		return err
	}
	query := `UPDATE rooms
		SET name = :name, description = :description, capacity = :capacity, type = :type,
			amenities = :amenities, hourly_rate = :hourly_rate, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.pool.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

// GetRoom retrieves a room by ID, active or not.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var row roomRow
	query := r.pool.db.Rebind(`SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`)
	if err := r.pool.db.GetContext(ctx, &row, query, id); err != nil {
		return persistence.Room{}, mapError(err)
	}
	return row.model()
}

// ListRooms returns rooms ordered by name.
func (r *RoomRepository) ListRooms(ctx context.Context, includeInactive bool) ([]persistence.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	args := []any{}
	if !includeInactive {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name, id`

	var rows []roomRow
	if err := r.pool.db.SelectContext(ctx, &rows, r.pool.db.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}

	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := row.model()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
