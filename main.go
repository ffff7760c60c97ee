// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	clocks "github.com/vimeo/go-clocks"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/danielhkuo/ballotbridge/cliparse"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/events"
	"github.com/danielhkuo/ballotbridge/metrics"
	"github.com/danielhkuo/ballotbridge/service"
)

const programName = "ballotbridge"

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

// cfg is loaded once by the root command before any subcommand runs
var cfg cliparse.Config

func setupLogging(debug bool) *slog.Logger {
	logLevel := slog.LevelInfo
	addSource := false
	if debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)

	// Configure max processes with our logger wrapper, toss undo func
	if _, err := maxprocs.Set(maxprocs.Logger(slogPrintf)); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	return logger
}

// app holds everything a subcommand needs to reach the database
type app struct {
	conn     *sql.DB
	svc      *service.Service
	bus      *events.Bus
	registry *prometheus.Registry
	clock    clocks.Clock
}

func openApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	slog.Debug("database schema ready", "type", cfg.DatabaseType)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	clock := clocks.DefaultClock()
	retry := db.DefaultRetryPolicy()
	retry.Attempts = cfg.RetryAttempts
	if cfg.RetryMinBackoff > 0 {
		retry.MinBackoff = cfg.RetryMinBackoff
	}
	if cfg.RetryMaxBackoff > 0 {
		retry.MaxBackoff = cfg.RetryMaxBackoff
	}
	retry.Clock = clock
	retry.Logger = logger

	bus := events.NewBus(registry, logger)
	svc := service.New(conn, clock, bus, metrics.New(registry), retry)
	return &app{conn: conn, svc: svc, bus: bus, registry: registry, clock: clock}, nil
}

func (a *app) Close() {
	a.bus.Stop()
	a.conn.Close()
}

func main() {
	var logger *slog.Logger

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Election lifecycle and vote ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = cliparse.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			logger = setupLogging(cfg.Debug)
			return nil
		},
	}
	cliparse.RegisterFlags(rootCmd.PersistentFlags())

	loggerFn := func() *slog.Logger { return logger }
	rootCmd.AddCommand(serveCommand(loggerFn))
	rootCmd.AddCommand(reconcileCommand(loggerFn))
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(statusCommand(loggerFn))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
