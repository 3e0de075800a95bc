package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/coworking-booking/internal/persistence"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
)

// mapError translates driver errors into persistence sentinels. Unknown errors
// are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return persistence.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
		case pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
		}
		return err
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", persistence.ErrDuplicate, strings.TrimSpace(msg[strings.Index(msg, "UNIQUE constraint failed")+len("UNIQUE constraint failed"):]))
	case containsAny(msg, "database is locked", "SQLITE_BUSY", "connection refused"):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
