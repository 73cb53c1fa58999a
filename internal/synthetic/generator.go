// Package synthetic generates heteroskedastic autoregressive panels for demos
// and end-to-end tests.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Process constants. Returns follow an AR(1) mean with GARCH(1,1)
// volatility.
const (
	arCoef     = 0.3
	garchOmega = 1e-5
	garchAlpha = 0.1
	garchBeta  = 0.85
	volWindow  = 6
	burnIn     = 50
)

// Config controls the generated panel.
type Config struct {
	Entities      int
	Rows          int
	NoiseFeatures int
	Seed          int64
	Start         time.Time
	Interval      time.Duration
	Prefix        string
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		Entities:      4,
		Rows:          200,
		NoiseFeatures: 1,
		Seed:          1,
		Start:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:      time.Hour,
	}
}

// FeatureNames returns the column names of the generated features.
func (c Config) FeatureNames() []string {
	names := []string{"ret_lag1", "vol_" + strconv.Itoa(volWindow)}
	for i := 1; i <= c.NoiseFeatures; i++ {
		names = append(names, "noise_"+strconv.Itoa(i))
	}
	return names
}

// Generate builds a panel. Output depends only on the options, so equal
// seeds give identical panels.
func Generate(ctx context.Context, opts ...Option) (*panel.Panel, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ids, err := entityIDs(cfg)
	if err != nil {
		return nil, err
	}

	blocks := make([][]panel.Row, cfg.Entities)
	eg, egctx := errgroup.WithContext(ctx)
	for i := range blocks {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			blocks[i] = series(cfg, ids[i], rand.New(rand.NewSource(cfg.Seed+int64(i)+1))) //nolint:gosec // synthetic data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("generate panel: %w", err)
	}

	rows := make([]panel.Row, 0, cfg.Entities*cfg.Rows)
	for _, b := range blocks {
		rows = append(rows, b...)
	}
	logger.Get().Debug(ctx, "synthetic panel generated",
		logger.Int("entities", cfg.Entities),
		logger.Int("rows", len(rows)),
		logger.Any("seed", cfg.Seed),
	)
	return panel.New(cfg.FeatureNames(), rows)
}

func entityIDs(cfg Config) ([]string, error) {
	ids := make([]string, cfg.Entities)
	if cfg.Prefix != "" {
		for i := range ids {
			ids[i] = fmt.Sprintf("%s-%02d", cfg.Prefix, i+1)
		}
		return ids, nil
	}
	r := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // synthetic data
	for i := range ids {
		id, err := uuid.NewRandomFromReader(r)
		if err != nil {
			return nil, fmt.Errorf("entity id: %w", err)
		}
		ids[i] = id.String()[:8]
	}
	return ids, nil
}

// series simulates one entity. Features at row t only use returns before t.
func series(cfg Config, entity string, r *rand.Rand) []panel.Row {
	total := burnIn + cfg.Rows
	ret := make([]float64, total)
	variance := garchOmega / (1 - garchAlpha - garchBeta)
	prev := 0.0
	for t := range ret {
		variance = garchOmega + garchAlpha*prev*prev + garchBeta*variance
		ret[t] = arCoef*prev + math.Sqrt(variance)*r.NormFloat64()
		prev = ret[t]
	}

	rows := make([]panel.Row, cfg.Rows)
	for i := range rows {
		t := burnIn + i
		feats := make([]float64, 0, 2+cfg.NoiseFeatures)
		feats = append(feats, ret[t-1], realizedVol(ret[t-volWindow:t]))
		for k := 0; k < cfg.NoiseFeatures; k++ {
			feats = append(feats, r.NormFloat64())
		}
		rows[i] = panel.Row{
			Entity:    entity,
			Timestamp: cfg.Start.Add(time.Duration(i) * cfg.Interval),
			Features:  feats,
			Target:    ret[t],
		}
	}
	return rows
}

func realizedVol(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x * x
	}
	return math.Sqrt(s / float64(len(xs)))
}
