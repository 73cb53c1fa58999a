package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/report"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/sink"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/source"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/app"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/config"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/regressor"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/metrics"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest a panel and write predictions and metrics",
		Long: `Run loads the input panel, backtests every entity, writes
predictions.csv and metrics.csv to the output directory (and the SQLite
database when configured), and prints a run summary.`,
		Example: `  qrfbt run -i features.csv --family linear -o out
  QRF_TARGET_COVERAGE=0.9 qrfbt run --config backtest.yaml --format markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := GetConfig(cmd.Context())
			if err != nil {
				return err
			}
			return runBacktest(cmd, cfg, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", report.FormatTable, "summary format (table|markdown|csv|json)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return report.Formats(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runBacktest(cmd *cobra.Command, cfg *config.Config, format string) error {
	ctx := cmd.Context()
	log := logger.Get().Named("run")

	if cfg.Input == "" {
		return ErrNoInput
	}
	p, rep, err := source.Load(cfg.Input, cfg.Sheet, source.Columns{
		Entity:    cfg.EntityColumn,
		Timestamp: cfg.TimestampColumn,
		Target:    cfg.TargetColumn,
		Features:  cfg.FeatureColumns,
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.Input, err)
	}
	log.Info(ctx, "panel loaded",
		logger.String("input", cfg.Input),
		logger.Int("rows", rep.Rows),
		logger.Int("kept", rep.Kept),
		logger.Int("dropped", rep.Dropped),
		logger.Any("features", rep.Features),
	)

	var hp hyperparams.Map
	if cfg.HyperparamsFile != "" {
		if hp, err = hyperparams.Load(cfg.HyperparamsFile); err != nil {
			return err
		}
	}
	pred, err := regressor.New(cfg.Family)
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithLogger(logger.Get().Named("backtest")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithPredictor(pred),
		app.WithHyperparams(hp),
		app.WithGrid(cfg.Quantiles),
		app.WithLowerAnchor(cfg.LowerAnchor),
		app.WithTargetCoverage(cfg.TargetCoverage),
		app.WithWindows(cfg.Windows()),
		app.WithWidthFraction(cfg.WidthFraction),
		app.WithMaxLambda(cfg.MaxLambda),
		app.WithStandardize(cfg.Standardize),
	)
	res, err := svc.Run(ctx, p)
	if err != nil {
		return err
	}

	if err := writeArtifacts(ctx, cfg, res); err != nil {
		return err
	}
	log.Info(ctx, "artifacts written",
		logger.String("output_dir", cfg.OutputDir),
		logger.Int("predictions", len(res.Predictions)),
		logger.Int("metrics", len(res.Metrics)),
	)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	return report.Render(cmd.OutOrStdout(), res.Summary, format)
}

func writeArtifacts(ctx context.Context, cfg *config.Config, res *app.Result) error {
	writers := sink.Fanout{sink.CSV{Dir: cfg.OutputDir}}
	if cfg.SQLitePath != "" {
		writers = append(writers, sink.SQLite{Path: filepath.Clean(cfg.SQLitePath)})
	}
	raw, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	return writers.Write(ctx, &sink.Artifacts{
		Predictions:  res.Predictions,
		Metrics:      res.Metrics,
		Summary:      res.Summary,
		ConfigDigest: cfg.Digest(),
		ConfigYAML:   raw,
	})
}
