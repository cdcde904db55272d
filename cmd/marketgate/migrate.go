package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/marketgate/internal/bootstrap"
	"github.com/target/marketgate/internal/migrate"
)

const defaultMigrationTimeout = 5 * time.Minute

func migrateCmd() *cobra.Command {
	var (
		status  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
			if err != nil {
				return fmt.Errorf("connect db: %w", err)
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					logger.Warn("db close failed", "error", closeErr)
				}
			}()

			if status {
				pending, err := migrate.Pending(ctx, db)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(pending) == 0 {
					fmt.Fprintln(out, "database is up to date")
					return nil
				}
				fmt.Fprintf(out, "%d pending migration(s):\n", len(pending))
				for _, v := range pending {
					fmt.Fprintf(out, "  %s\n", v)
				}
				return nil
			}

			return bootstrap.RunMigrations(ctx, db, logger)
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list pending migrations without applying them")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "overall timeout")
	return cmd
}
