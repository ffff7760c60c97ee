// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/elections"
	"github.com/danielhkuo/ballotbridge/events"
	"github.com/danielhkuo/ballotbridge/middleware"
	"github.com/danielhkuo/ballotbridge/router"
	"github.com/danielhkuo/ballotbridge/service"
)

func serveCommand(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, logger())
			if err != nil {
				return err
			}
			defer a.Close()

			a.svc.Ledger.OnVoteRecorded(func(v events.VoteRecorded) {
				slog.Debug("vote recorded", "election_id", v.ElectionID, "vote_id", v.VoteID)
			})

			mux := router.NewRouter(a.svc, cfg, a.registry)
			server := http.Server{
				Handler: middleware.CORS(mux),
				Addr:    ":" + strconv.Itoa(cfg.Port),
			}

			go func() {
				// Wait for Ctrl-C signal
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("graceful shutdown failed", "error", err)
					server.Close()
				}
			}()

			slog.Info("Listening", "port", cfg.Port)
			err = server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server closed: %w", err)
			}
			slog.Info("Server closed")
			return nil
		},
	}
}

func reconcileCommand(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Store the current phase of every election",
		Long: "Recomputes each election's phase from the clock and records any change. " +
			"Meant to be run from cron or a scheduler; running it twice in a row is harmless.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), logger())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.svc.ReconcileAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s updated\n", n, pluralize(n, "election", "elections"))
			return nil
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(cmd.Context(), cfg.DatabaseType, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.CreateSchema(cmd.Context(), conn); err != nil {
				return err
			}
			slog.Info("Database schema ready", "type", cfg.DatabaseType)
			return nil
		},
	}
}

func statusCommand(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List elections with their current phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), logger())
			if err != nil {
				return err
			}
			defer a.Close()

			return writeStatus(cmd.Context(), cmd.OutOrStdout(), a.svc, a.clock.Now())
		},
	}
}

// writeStatus prints one row per election, with times relative to now
func writeStatus(ctx context.Context, out io.Writer, svc *service.Service, now time.Time) error {
	list, err := svc.Elections.List(ctx, elections.Filter{})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPHASE\tSTARTS\tENDS\tVOTES")
	for _, e := range list {
		turnout, err := svc.Ledger.Turnout(ctx, e.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Title, e.Phase,
			humanize.RelTime(e.StartTime, now, "ago", "from now"),
			humanize.RelTime(e.EndTime, now, "ago", "from now"),
			humanize.Comma(int64(turnout.TotalVotes)),
		)
	}
	return tw.Flush()
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
