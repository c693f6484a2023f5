package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotterms/internal/account"
	"github.com/JakeFAU/hotterms/internal/config"
)

type runOptions struct {
	configPath   string
	accountsPath string
	outputDir    string
}

// newRunCmd creates and configures the 'run' subcommand.
func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one collection pass over every account",
		Long: `Builds the fallback pool from the public sources, writes default.txt, then
queries each account's custom endpoints and writes, falls back for, or removes
its term file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRunCommand(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to the JSON configuration file")
	cmd.Flags().StringVar(&opts.accountsPath, "accounts", "", "path to the JSON accounts list")
	cmd.Flags().StringVar(&opts.outputDir, "output", "", "output directory, or object prefix for the gcs backend")
	for _, name := range []string{"config", "accounts", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runRunCommand(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	accounts, err := account.Load(opts.accountsPath)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	logger.Info("Loaded accounts", zap.String("path", opts.accountsPath), zap.Int("count", len(accounts)))

	appInstance, err := newApp(cmd.Context(), cfg, opts.outputDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer appInstance.Close()

	summary, err := appInstance.Run(cmd.Context(), accounts)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	logger.Info("Run command finished.",
		zap.String("run_id", summary.RunID),
		zap.Int("accounts", len(summary.Outcomes)),
		zap.Int("failures", summary.Failures()),
	)
	return nil
}
