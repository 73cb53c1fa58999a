// Package conformal shifts quantile predictions by calibration residuals and
// widens the central interval until it reaches a target coverage.
package conformal

import (
	"fmt"
	"math"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/stats"
)

// Calibrator computes one-sided conformal adjustments.
type Calibrator struct {
	coverage float64
	level    float64 // 1 - alpha_tail
}

// NewCalibrator returns a calibrator for a central interval of the given
// target coverage.
func NewCalibrator(targetCoverage float64) (*Calibrator, error) {
	if !(targetCoverage > 0 && targetCoverage < 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCoverage, targetCoverage)
	}
	return &Calibrator{
		coverage: targetCoverage,
		level:    1 - quantile.AlphaTail(targetCoverage),
	}, nil
}

// Coverage returns the target coverage.
func (c *Calibrator) Coverage() float64 { return c.coverage }

// Adjustment returns the non-negative shift for level tau. Below the median
// it is the (1-alpha_tail) quantile of positive residuals y-p; above it, of
// positive -(y-p). The median is never shifted.
func (c *Calibrator) Adjustment(tau float64, yCal, pCal []float64) (float64, error) {
	if len(yCal) != len(pCal) {
		return 0, fmt.Errorf("%w: %d targets, %d predictions", ErrLengthMismatch, len(yCal), len(pCal))
	}
	if tau == quantile.Median || len(yCal) == 0 {
		return 0, nil
	}
	clipped := make([]float64, len(yCal))
	for i := range yCal {
		r := yCal[i] - pCal[i]
		if tau > quantile.Median {
			r = -r
		}
		clipped[i] = math.Max(r, 0)
	}
	return stats.Quantile(clipped, c.level), nil
}

// Apply shifts preds by adj, downwards below the median and upwards above it.
// The result is a new slice.
func (c *Calibrator) Apply(tau, adj float64, preds []float64) []float64 {
	out := make([]float64, len(preds))
	switch {
	case tau < quantile.Median:
		for i, p := range preds {
			out[i] = p - adj
		}
	case tau > quantile.Median:
		for i, p := range preds {
			out[i] = p + adj
		}
	default:
		copy(out, preds)
	}
	return out
}

// Calibrate is Adjustment followed by Apply on the test predictions.
func (c *Calibrator) Calibrate(tau float64, yCal, pCal, pTest []float64) ([]float64, float64, error) {
	adj, err := c.Adjustment(tau, yCal, pCal)
	if err != nil {
		return nil, 0, err
	}
	return c.Apply(tau, adj, pTest), adj, nil
}
