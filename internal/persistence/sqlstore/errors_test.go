package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/example/coworking-booking/internal/persistence"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, persistence.ErrNotFound},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), persistence.ErrUnavailable},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), persistence.ErrDuplicate},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), persistence.ErrUnavailable},
		{"postgres unique", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, persistence.ErrDuplicate},
		{"postgres lock timeout", &pgconn.PgError{Code: "55P03"}, persistence.ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, mapError(tc.in), tc.want)
		})
	}

	assert.NoError(t, mapError(nil))
	other := errors.New("syntax error")
	assert.Same(t, other, mapError(other))
}
