// Package cmd defines and implements the CLI commands for the hotterms executable.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotterms/internal/account"
	"github.com/JakeFAU/hotterms/internal/app"
	"github.com/JakeFAU/hotterms/internal/config"
	"github.com/JakeFAU/hotterms/internal/logging"
)

// App is the run surface commands depend on. It allows tests to inject a fake.
type App interface {
	Run(ctx context.Context, accounts []account.Account) (app.Summary, error)
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, outputDir string, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, outputDir, logger)
}

// newLogger builds the run logger once the configuration is known.
var newLogger = logging.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotterms",
		Short: "Collects trending search terms into per-account term files.",
		Long: `hotterms gathers trending search terms from public hot-search feeds and
optional per-account custom endpoints, deduplicates them, and writes one term
file per account plus a shared default.txt.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	logger, err := logging.New(false)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := newRootCmd().Execute(); err != nil {
		logger.Fatal("Command execution failed", zap.Error(err))
	}
}
