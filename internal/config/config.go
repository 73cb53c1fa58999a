// Package config defines backtest configuration and its loading hooks.
//
// Conventions:
//   - New returns a Config holding every default.
//   - Load layers a YAML file, QRF_ environment variables and explicitly set
//     command-line flags on top of the defaults, then validates.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/conformal"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/fold"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/regressor"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" yaml:"log_format" validate:"oneof=text json"`

	// Input is the panel file (.csv or .xlsx).
	Input string `koanf:"input" yaml:"input"`

	// Sheet names the XLSX worksheet; first sheet when empty.
	Sheet string `koanf:"sheet" yaml:"sheet"`

	EntityColumn    string `koanf:"entity_column" yaml:"entity_column" validate:"required"`
	TimestampColumn string `koanf:"timestamp_column" yaml:"timestamp_column" validate:"required"`
	TargetColumn    string `koanf:"target_column" yaml:"target_column" validate:"required"`

	// FeatureColumns lists feature columns; every other column when empty.
	FeatureColumns []string `koanf:"feature_columns" yaml:"feature_columns"`

	// Quantiles is the quantile grid, ascending and symmetric around 0.5.
	Quantiles []float64 `koanf:"quantiles" yaml:"quantiles" validate:"min=3,dive,gt=0,lt=1"`

	// LowerAnchor is the lower interval level; the upper one is 1-LowerAnchor.
	LowerAnchor float64 `koanf:"lower_anchor" yaml:"lower_anchor" validate:"gt=0,lt=0.5"`

	// TargetCoverage is the central interval coverage target.
	TargetCoverage float64 `koanf:"target_coverage" yaml:"target_coverage" validate:"gt=0,lt=1"`

	// Rolling window lengths in rows; the test length is also the step.
	TrainLen int `koanf:"train_len" yaml:"train_len" validate:"gt=0"`
	CalLen   int `koanf:"cal_len" yaml:"cal_len" validate:"gt=0"`
	TestLen  int `koanf:"test_len" yaml:"test_len" validate:"gt=0"`

	// WorkerCount sets the number of entity workers; 0 means one per CPU.
	WorkerCount int `koanf:"worker_count" yaml:"worker_count" validate:"gte=0"`

	// Family selects the quantile model family.
	Family string `koanf:"family" yaml:"family" validate:"required"`

	// HyperparamsFile is a YAML or JSON map from quantile level to parameters.
	HyperparamsFile string `koanf:"hyperparams_file" yaml:"hyperparams_file"`

	// WidthFraction scales std(y_cal) into the minimum widening.
	WidthFraction float64 `koanf:"width_fraction" yaml:"width_fraction" validate:"gte=0"`

	// MaxLambda caps the coverage search.
	MaxLambda float64 `koanf:"max_lambda" yaml:"max_lambda" validate:"gt=0"`

	// Standardize scales features per fold using train statistics.
	Standardize bool `koanf:"standardize" yaml:"standardize"`

	// OutputDir receives predictions.csv and metrics.csv.
	OutputDir string `koanf:"output_dir" yaml:"output_dir" validate:"required"`

	// SQLitePath, when set, also writes results to a SQLite database.
	SQLitePath string `koanf:"sqlite_path" yaml:"sqlite_path"`

	// MetricsFile, when set, receives Prometheus metrics in text format.
	MetricsFile string `koanf:"metrics_file" yaml:"metrics_file"`
}

// New creates a Config holding the defaults. Context is accepted first to
// follow the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		EntityColumn:    "token",
		TimestampColumn: "timestamp",
		TargetColumn:    "return_72h",
		Quantiles:       quantile.Default().Levels(),
		LowerAnchor:     quantile.Default().Low(),
		TargetCoverage:  0.8,
		TrainLen:        120,
		CalLen:          24,
		TestLen:         6,
		WorkerCount:     0,
		Family:          string(regressor.FamilyGBT),
		WidthFraction:   conformal.DefaultWidthFraction,
		MaxLambda:       conformal.DefaultMaxLambda,
		Standardize:     true,
		OutputDir:       "out",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

// Validate checks field ranges and the cross-field rules of a run.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Grid(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Windows().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := regressor.New(c.Family); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cols := map[string]string{}
	for name, col := range map[string]string{
		"entity_column":    c.EntityColumn,
		"timestamp_column": c.TimestampColumn,
		"target_column":    c.TargetColumn,
	} {
		if other, ok := cols[col]; ok {
			return fmt.Errorf("%w: %s and %s both name column %q", ErrInvalidConfig, name, other, col)
		}
		cols[col] = name
	}
	for _, f := range c.FeatureColumns {
		if name, ok := cols[f]; ok {
			return fmt.Errorf("%w: feature column %q is also the %s", ErrInvalidConfig, f, name)
		}
	}
	return nil
}

// Grid returns the validated quantile grid.
func (c *Config) Grid() (quantile.Grid, error) {
	return quantile.NewGrid(c.Quantiles, c.LowerAnchor)
}

// Windows returns the rolling window lengths.
func (c *Config) Windows() fold.Lengths {
	return fold.Lengths{Train: c.TrainLen, Cal: c.CalLen, Test: c.TestLen}
}

// Digest is a short stable hash of the effective configuration.
func (c *Config) Digest() string {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// YAML renders the effective configuration.
func (c *Config) YAML() (string, error) {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
