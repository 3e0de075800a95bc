package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/coworking-booking/internal/config"
	"github.com/example/coworking-booking/internal/persistence/sqlstore"
)

func newMigrateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			cfg, logger, err := c.bootstrap()
			if err != nil {
				return err
			}

			migrator, closeStore, err := openMigrator(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeStore(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()

			return runMigration(cmd.Context(), migrator, action, cmd.OutOrStdout())
		},
	}
}

func openMigrator(ctx context.Context, cfg config.StorageConfig) (*sqlstore.Migrator, func() error, error) {
	dialect := sqlstore.DialectSQLite
	switch cfg.Driver {
	case config.DriverMemory:
		return nil, nil, fmt.Errorf("migrate: the %s storage driver has no schema", cfg.Driver)
	case config.DriverPostgres:
		dialect = sqlstore.DialectPostgres
	}

	store, err := openSQLStore(ctx, dialect, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	migrator, err := sqlstore.NewMigrator(store.Pool())
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return migrator, store.Close, nil
}

func runMigration(ctx context.Context, migrator *sqlstore.Migrator, action string, out io.Writer) error {
	switch action {
	case "up":
		steps, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			fmt.Fprintln(out, "no pending migrations")
			return nil
		}
		for _, step := range steps {
			fmt.Fprintf(out, "applied %05d %s\n", step.Version, step.Path)
		}
	case "down":
		step, err := migrator.Down(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "reverted %05d %s\n", step.Version, step.Path)
	case "status":
		states, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range states {
			state := "pending"
			if st.Applied {
				state = "applied"
			}
			fmt.Fprintf(out, "%05d %-8s %s\n", st.Version, state, st.Path)
		}
	default:
		return fmt.Errorf("migrate: unknown action %q", action)
	}
	return nil
}
