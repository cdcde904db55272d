// Command marketgate runs the auth edge and its operator tooling.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/target/marketgate/config"
	"github.com/target/marketgate/internal/bootstrap"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1) //nolint:forbidigo // CLI must exit non-zero on failure
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "marketgate",
		Short: "Role-based auth gate for the marketplace apps",
		Long: `marketgate issues session cookies, resolves the signed-in user and
gates the admin, seller and influencer areas by role.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		userCmd(),
		tokenCmd(),
		policyCmd(),
		clientCmd(),
		versionCmd(),
	)
	return root
}

// loadRuntime reads configuration and installs the process logger.
func loadRuntime() (config.AppConfig, *slog.Logger, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return cfg, nil, err
	}
	return cfg, bootstrap.InitLogger(cfg.Observability), nil
}
