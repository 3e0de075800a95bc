package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the migration files for dialect.
func MigrationsFS(dialect Dialect) (fs.FS, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("sqlstore: no migrations for dialect %q", dialect)
	}
	return fs.Sub(migrationsFS, "migrations/"+string(dialect))
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator prepares a goose provider for the pool's dialect.
func NewMigrator(pool *ConnectionPool) (*Migrator, error) {
	fsys, err := MigrationsFS(pool.Dialect())
	if err != nil {
		return nil, err
	}

	dialect := goose.DialectSQLite3
	if pool.Dialect() == DialectPostgres {
		dialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(dialect, pool.DB(), fsys)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: prepare migrations: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// MigrationStep summarizes one applied or reverted migration.
type MigrationStep struct {
	Version int64
	Path    string
}

// Up applies every pending migration and returns what it applied.
func (m *Migrator) Up(ctx context.Context) ([]MigrationStep, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: migrate up: %w", err)
	}
	steps := make([]MigrationStep, 0, len(results))
	for _, res := range results {
		steps = append(steps, MigrationStep{Version: res.Source.Version, Path: res.Source.Path})
	}
	return steps, nil
}

// Down reverts the most recent migration.
func (m *Migrator) Down(ctx context.Context) (MigrationStep, error) {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return MigrationStep{}, fmt.Errorf("sqlstore: migrate down: %w", err)
	}
	return MigrationStep{Version: res.Source.Version, Path: res.Source.Path}, nil
}

// MigrationState describes whether a migration has been applied.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

// Status lists every known migration.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: migration status: %w", err)
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, MigrationState{
			Version: st.Source.Version,
			Path:    st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return out, nil
}
