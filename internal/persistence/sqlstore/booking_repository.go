package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/coworking-booking/internal/booking"
	"github.com/example/coworking-booking/internal/persistence"
)

const bookingColumns = `id, room_id, user_id, start_at, end_at, status, purpose, participants, created_at, updated_at`

// BookingRepository implements persistence.BookingRepository. Writes run the
// overlap check and the insert or update inside one transaction.
type BookingRepository struct {
	pool *ConnectionPool
}

// NewBookingRepository creates a booking repository on pool.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

type queryer interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Rebind(query string) string
}

// CreateBooking inserts b unless a confirmed booking overlaps it.
func (r *BookingRepository) CreateBooking(ctx context.Context, b persistence.Booking) error {
	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.pool.lockRoom(ctx, tx, b.RoomID); err != nil {
			return err
		}
		if err := checkOverlap(ctx, tx, b, ""); err != nil {
			return err
		}
		query := `INSERT INTO bookings (` + bookingColumns + `)
			VALUES (:id, :room_id, :user_id, :start_at, :end_at, :status, :purpose, :participants, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, newBookingRow(b)); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// UpdateBooking replaces b, checking overlaps against every other booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, b persistence.Booking) error {
	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.pool.lockRoom(ctx, tx, b.RoomID); err != nil {
			return err
		}
		if err := r.lockBooking(ctx, tx, b.ID); err != nil {
			return err
		}
		if err := checkOverlap(ctx, tx, b, b.ID); err != nil {
			return err
		}
		query := `UPDATE bookings
			SET room_id = :room_id, start_at = :start_at, end_at = :end_at, status = :status,
				purpose = :purpose, participants = :participants, updated_at = :updated_at
			WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, query, newBookingRow(b))
		if err != nil {
			return mapError(err)
		}
		return requireAffected(res)
	})
}

// lockBooking fails with persistence.ErrNotFound when id is gone, so a
// missing booking is never reported as a conflict.
func (r *BookingRepository) lockBooking(ctx context.Context, tx *sqlx.Tx, id string) error {
	query := `SELECT id FROM bookings WHERE id = ?`
	if r.pool.dialect == DialectPostgres {
		query += ` FOR UPDATE`
	}
	var found string
	if err := tx.GetContext(ctx, &found, tx.Rebind(query), id); err != nil {
		return mapError(err)
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	var row bookingRow
	query := r.pool.db.Rebind(`SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`)
	if err := r.pool.db.GetContext(ctx, &row, query, id); err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return row.model(), nil
}

// ListBookings returns bookings ordered by start descending.
func (r *BookingRepository) ListBookings(ctx context.Context, userID string) ([]persistence.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY start_at DESC, id`

	var rows []bookingRow
	if err := r.pool.db.SelectContext(ctx, &rows, r.pool.db.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	out := make([]persistence.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// DeleteBooking removes a booking.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	res, err := r.pool.db.ExecContext(ctx, r.pool.db.Rebind(`DELETE FROM bookings WHERE id = ?`), id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

// HasConflict reports whether a confirmed booking other than excludeID
// overlaps [start, end) in roomID.
func (r *BookingRepository) HasConflict(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error) {
	candidate := persistence.Booking{RoomID: roomID, Start: start, End: end, Status: string(booking.StatusConfirmed)}
	existing, err := overlapping(ctx, r.pool.db, candidate)
	if err != nil {
		return false, err
	}
	_, found := booking.FindConflict(existing, reservationOf(candidate), excludeID)
	return found, nil
}

func checkOverlap(ctx context.Context, q queryer, b persistence.Booking, excludeID string) error {
	if booking.Status(b.Status) != booking.StatusConfirmed {
		return nil
	}
	existing, err := overlapping(ctx, q, b)
	if err != nil {
		return err
	}
	if _, found := booking.FindConflict(existing, reservationOf(b), excludeID); found {
		return persistence.ErrConflict
	}
	return nil
}

// overlapping narrows the candidate set in SQL; the final decision is made by
// booking.FindConflict.
func overlapping(ctx context.Context, q queryer, b persistence.Booking) ([]booking.Reservation, error) {
	var rows []bookingRow
	query := q.Rebind(`SELECT ` + bookingColumns + ` FROM bookings
		WHERE room_id = ? AND status = ? AND start_at < ? AND end_at > ?`)
	if err := q.SelectContext(ctx, &rows, query, b.RoomID, string(booking.StatusConfirmed), toMillis(b.End), toMillis(b.Start)); err != nil {
		return nil, mapError(err)
	}
	out := make([]booking.Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, reservationOf(row.model()))
	}
	return out, nil
}

func reservationOf(b persistence.Booking) booking.Reservation {
	return booking.Reservation{
		ID:     b.ID,
		RoomID: b.RoomID,
		Window: booking.Interval{Start: b.Start, End: b.End},
		Status: booking.Status(b.Status),
	}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
