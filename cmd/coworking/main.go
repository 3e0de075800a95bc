package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/coworking-booking/internal/config"
	"github.com/example/coworking-booking/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(config.Load, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries what every subcommand needs to bootstrap itself.
type cli struct {
	loadConfig func() (config.Config, error)
	logOutput  io.Writer
}

func (c *cli) bootstrap() (config.Config, *slog.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := logging.New(c.logOutput, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newRootCommand(loadConfig func() (config.Config, error), logOutput io.Writer) *cobra.Command {
	c := &cli{loadConfig: loadConfig, logOutput: logOutput}

	serve := newServeCommand(c)
	root := &cobra.Command{
		Use:           "coworking",
		Short:         "Coworking room booking API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newMigrateCommand(c), newSeedCommand(c))
	return root
}
