package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/target/marketgate/internal/bootstrap"
)

func serveCmd() *cobra.Command {
	var services string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP edge and the policy watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if services != "" {
				cfg.Services = services
			}
			if err := bootstrap.ValidateServiceConfig(&cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "starting marketgate",
				"version", version,
				"auth_mode", cfg.Auth.Mode,
				"db_host", cfg.Postgres.Host,
				"db_name", cfg.Postgres.Name,
				"enabled_services", bootstrap.GetEnabledServices(&cfg),
			)

			app, err := bootstrap.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			runErr := app.Run(ctx)
			if closeErr := app.Close(); closeErr != nil {
				runErr = errors.Join(runErr, closeErr)
			}
			if runErr == nil {
				logger.Info("marketgate stopped")
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&services, "services", "", "override SERVICES (comma separated: http,policy-watcher)")
	return cmd
}
