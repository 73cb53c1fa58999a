// Package cli provides the qrfbt command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/config"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "qrfbt",
		Short: "Rolling-origin conformal quantile backtester",
		Long: `qrfbt backtests multi-quantile forecasts over a panel of entities.

Each entity's history is split into sliding train/calibration/test windows.
Per-quantile models are fitted on the train window, shifted by conformal
residuals from the calibration window, and widened until the central
interval reaches the target coverage. Interior quantiles are interpolated
and every test row is scored.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, completion and version
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			cfg, err := config.Load(cmd.Context(), config.LoadOptions{
				Path:  cfgFile,
				Flags: cmd.Root().PersistentFlags(),
			})
			if err != nil {
				return err
			}

			if err := logger.Init(
				logger.WithOutput(cmd.ErrOrStderr()),
				logger.WithFormat(cfg.LogFormat),
			); err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $"+config.EnvConfigFile+")")
	config.BindFlags(rootCmd.PersistentFlags())

	_ = rootCmd.RegisterFlagCompletionFunc("family", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"gbt", "linear", "forest"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewSynthCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the root command with args and returns the error, already
// printed to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) (*config.Config, error) {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c, nil
	}
	return nil, ErrNoConfig
}
