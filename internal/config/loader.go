package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Environment conventions.
const (
	EnvPrefix     = "QRF_"
	EnvConfigFile = "QRF_CONFIG"
)

// listKeys hold comma-separated values when set from the environment.
var listKeys = map[string]bool{"quantiles": true, "feature_columns": true} //nolint:gochecknoglobals // fixed lookup table

// LoadOptions selects optional layers.
type LoadOptions struct {
	// Path is a YAML config file; QRF_CONFIG is used when empty.
	Path string
	// Flags contributes every flag that was explicitly set.
	Flags *pflag.FlagSet
}

// Load builds a Config by layering defaults, optional file, env vars and flags.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) from opts.Path or QRF_CONFIG
//  3. env (prefix QRF_, e.g. QRF_TRAIN_LEN, QRF_QUANTILES=0.1,0.5,0.9)
//  4. flags that were changed on the command line
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	path := opts.Path
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// QRF_TRAIN_LEN -> train_len; keys stay flat to match the koanf tags.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "config" {
			return "", nil
		}
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if opts.Flags != nil {
		flags := opts.Flags
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("%w: flags: %w", ErrLoadConfig, err)
		}
	}

	// Decode into a copy of the defaults. Slices are cleared first so a
	// shorter list replaces the default instead of overwriting its prefix.
	cfg := *base
	cfg.Quantiles, cfg.FeatureColumns = nil, nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoadConfig, err)
	}
	if !k.Exists("quantiles") {
		cfg.Quantiles = base.Quantiles
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BindFlags registers one flag per config key on fs. Flag names are the
// keys in kebab-case; only flags the user sets override other layers.
func BindFlags(fs *pflag.FlagSet) {
	d := New(context.Background())
	fs.String("log-level", d.LogLevel, "log level (debug|info|warn|error)")
	fs.String("log-format", d.LogFormat, "log format (text|json)")
	fs.StringP("input", "i", d.Input, "panel file (.csv or .xlsx)")
	fs.String("sheet", d.Sheet, "worksheet name for .xlsx input (default: first sheet)")
	fs.String("entity-column", d.EntityColumn, "entity id column")
	fs.String("timestamp-column", d.TimestampColumn, "timestamp column")
	fs.String("target-column", d.TargetColumn, "target column")
	fs.StringSlice("feature-columns", nil, "feature columns (default: every other column)")
	fs.StringSlice("quantiles", nil, "quantile grid, e.g. 0.05,0.1,0.25,0.5,0.75,0.9,0.95")
	fs.Float64("lower-anchor", d.LowerAnchor, "lower interval level; the upper one is 1-lower")
	fs.Float64("target-coverage", d.TargetCoverage, "central interval coverage target")
	fs.Int("train-len", d.TrainLen, "training window length in rows")
	fs.Int("cal-len", d.CalLen, "calibration window length in rows")
	fs.Int("test-len", d.TestLen, "test window length and step in rows")
	fs.IntP("worker-count", "w", d.WorkerCount, "entity workers (0: one per CPU)")
	fs.String("family", d.Family, "model family (gbt|linear|forest)")
	fs.String("hyperparams-file", d.HyperparamsFile, "YAML/JSON hyperparameters keyed by quantile level")
	fs.Float64("width-fraction", d.WidthFraction, "minimum widening as a fraction of std(y_cal)")
	fs.Float64("max-lambda", d.MaxLambda, "ceiling of the coverage search")
	fs.Bool("standardize", d.Standardize, "standardize features per fold")
	fs.StringP("output-dir", "o", d.OutputDir, "directory for predictions.csv and metrics.csv")
	fs.String("sqlite-path", d.SQLitePath, "also write results to this SQLite database")
	fs.String("metrics-file", d.MetricsFile, "write Prometheus metrics in text format to this file")
}
