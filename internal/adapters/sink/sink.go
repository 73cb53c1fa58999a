// Package sink persists run artifacts.
package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// Artifacts is everything a run persists.
type Artifacts struct {
	Predictions  []model.PredictionRecord
	Metrics      []model.FoldMetric
	Summary      model.Summary
	ConfigDigest string
	ConfigYAML   string
}

// Writer persists artifacts to one destination.
type Writer interface {
	Name() string
	Write(ctx context.Context, a *Artifacts) error
}

// Fanout writes to every destination concurrently. The first error cancels
// the others' context and is returned.
type Fanout []Writer

// Name implements Writer.
func (f Fanout) Name() string { return "fanout" }

// Write implements Writer.
func (f Fanout) Write(ctx context.Context, a *Artifacts) error {
	eg, egctx := errgroup.WithContext(ctx)
	for _, w := range f {
		eg.Go(func() error {
			if err := w.Write(egctx, a); err != nil {
				return fmt.Errorf("%s: %w", w.Name(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
