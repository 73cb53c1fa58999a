// Package evaluate scores assembled quantile forecasts.
package evaluate

import (
	"errors"
	"fmt"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/stats"
)

// Sentinel kinds for evaluation.
var (
	ErrLengthMismatch = errors.New("vectors differ in length")
	ErrZeroWeight     = errors.New("weights sum to zero")
	ErrEmpty          = errors.New("nothing to evaluate")
)

// Pinball returns the mean pinball loss of yhat against y at level tau.
func Pinball(tau float64, y, yhat []float64) (float64, error) {
	if len(y) != len(yhat) {
		return 0, fmt.Errorf("%w: %d targets, %d predictions", ErrLengthMismatch, len(y), len(yhat))
	}
	if len(y) == 0 {
		return 0, ErrEmpty
	}
	sum := 0.0
	for i := range y {
		sum += quantile.Pinball(tau, y[i], yhat[i])
	}
	return sum / float64(len(y)), nil
}

// Interval is the empirical coverage and mean width of [lower, upper].
type Interval struct {
	Coverage float64
	Width    float64
	Hits     int
	N        int
}

// IntervalScore scores a central interval on y.
func IntervalScore(lower, upper, y []float64) (Interval, error) {
	if len(lower) != len(y) || len(upper) != len(y) {
		return Interval{}, fmt.Errorf("%w: lower=%d upper=%d y=%d", ErrLengthMismatch, len(lower), len(upper), len(y))
	}
	if len(y) == 0 {
		return Interval{}, ErrEmpty
	}
	out := Interval{N: len(y)}
	widths := make([]float64, len(y))
	for i, v := range y {
		if v >= lower[i] && v <= upper[i] {
			out.Hits++
		}
		widths[i] = upper[i] - lower[i]
	}
	out.Coverage = float64(out.Hits) / float64(out.N)
	out.Width = stats.Mean(widths)
	return out, nil
}

// Aggregate is the mean of values, weighted when weights is non-nil.
func Aggregate(values, weights []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmpty
	}
	if weights == nil {
		return stats.Mean(values), nil
	}
	if len(weights) != len(values) {
		return 0, fmt.Errorf("%w: %d values, %d weights", ErrLengthMismatch, len(values), len(weights))
	}
	sum, total := 0.0, 0.0
	for i, v := range values {
		sum += v * weights[i]
		total += weights[i]
	}
	if total == 0 {
		return 0, ErrZeroWeight
	}
	return sum / total, nil
}
