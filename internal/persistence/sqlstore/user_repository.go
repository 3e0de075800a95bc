package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/coworking-booking/internal/persistence"
)

const userColumns = `id, username, email, password_hash, role, created_at, updated_at`

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	pool *ConnectionPool
}

// NewUserRepository creates a user repository on pool.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	row := newUserRow(user)
	row.Email = strings.ToLower(row.Email)
	query := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :username, :email, :password_hash, :role, :created_at, :updated_at)`
	if _, err := r.pool.db.NamedExecContext(ctx, query, row); err != nil {
		return mapError(err)
	}
	return nil
}

// UpdateUser updates the mutable columns of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	row := newUserRow(user)
	row.Email = strings.ToLower(row.Email)
	query := `UPDATE users
		SET username = :username, email = :email, password_hash = :password_hash, role = :role, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.pool.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetUserByEmail retrieves a user by email; emails are stored lowercased.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByUsername retrieves a user by username.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (persistence.User, error) {
	var row userRow
	query := r.pool.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)
	if err := r.pool.db.GetContext(ctx, &row, query, value); err != nil {
		return persistence.User{}, mapError(err)
	}
	return row.model(), nil
}

// ListUsers returns a page of users, newest first, and the total count.
func (r *UserRepository) ListUsers(ctx context.Context, offset, limit int) ([]persistence.User, int, error) {
	var total int
	if err := r.pool.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, mapError(err)
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = total
	}
	var rows []userRow
	query := r.pool.db.Rebind(`SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id LIMIT ? OFFSET ?`)
	if err := r.pool.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, mapError(err)
	}

	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.model())
	}
	return users, total, nil
}

// CountUsers aggregates users by role and registration time.
func (r *UserRepository) CountUsers(ctx context.Context, since time.Time) (persistence.UserStats, error) {
	var counts struct {
		Total  int `db:"total"`
		Admins int `db:"admins"`
		Recent int `db:"recent"`
	}
	query := r.pool.db.Rebind(`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0) AS admins,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS recent
		FROM users`)
	if err := r.pool.db.GetContext(ctx, &counts, query, toMillis(since)); err != nil {
		return persistence.UserStats{}, mapError(err)
	}
	return persistence.UserStats{
		Total:  counts.Total,
		Admins: counts.Admins,
		Users:  counts.Total - counts.Admins,
		Recent: counts.Recent,
	}, nil
}

// DeleteUser removes the user and its bookings in one transaction.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM bookings WHERE user_id = ?`), id); err != nil {
			return fmt.Errorf("sqlstore: delete bookings of user %s: %w", id, mapError(err))
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return mapError(err)
		}
		return requireAffected(res)
	})
}
