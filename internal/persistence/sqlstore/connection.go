// Package sqlstore implements persistence.Store on top of database/sql via
// sqlx. SQLite (modernc.org/sqlite) and PostgreSQL (pgx) share one set of
// queries; placeholders are rebound per dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", d)
	}
}

// ConnectionPool wraps the sqlx handle together with its dialect.
type ConnectionPool struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewConnectionPool opens and pings a database.
func NewConnectionPool(ctx context.Context, dialect Dialect, dsn string) (*ConnectionPool, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect, mapError(err))
	}

	return &ConnectionPool{db: db, dialect: dialect}, nil
}

// DB returns the underlying database handle.
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db.DB
}

// Dialect returns the backend dialect.
func (cp *ConnectionPool) Dialect() Dialect {
	return cp.dialect
}

// Close closes the connection pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return mapError(cp.db.PingContext(ctx))
}

// TransactionFunc represents a function that executes within a transaction.
type TransactionFunc func(tx *sqlx.Tx) error

// WithTransaction executes fn within a transaction, committing when fn
// returns nil and rolling back otherwise.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", mapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit transaction: %w", mapError(err))
	}
	return nil
}

// lockRoom serializes writers of one room for the rest of tx. SQLite already
// serializes writers when the DSN requests immediate transactions.
func (cp *ConnectionPool) lockRoom(ctx context.Context, tx *sqlx.Tx, roomID string) error {
	if cp.dialect != DialectPostgres {
		return nil
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", roomID); err != nil {
		return fmt.Errorf("sqlstore: lock room %s: %w", roomID, mapError(err))
	}
	return nil
}
