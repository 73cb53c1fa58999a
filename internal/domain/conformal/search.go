package conformal

import (
	"fmt"
	"math"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/stats"
)

// Search defaults.
const (
	DefaultMaxLambda     = 10.0
	DefaultWidthFraction = 0.15
	// stepFraction of the 75th percentile interval width is the widening step.
	stepFraction = 0.02
	// minStep replaces a non-positive step.
	minStep = 1e-4
)

// SearchOptions tunes Search.
type SearchOptions struct {
	MaxLambda     float64 // ceiling on lambda; DefaultMaxLambda when <= 0
	WidthFraction float64 // floor = WidthFraction * std(y); negative disables
}

// Result is the outcome of a coverage search.
type Result struct {
	Lambda       float64 // applied to both bounds: max(SearchLambda, Floor)
	SearchLambda float64 // smallest grid lambda meeting the target, or the ceiling
	Floor        float64
	Coverage     float64 // calibration coverage at SearchLambda
	Step         float64
	Steps        int
	Degenerate   bool
}

// Err returns ErrDegenerateCalibration when the search hit its ceiling.
func (r Result) Err() error {
	if r.Degenerate {
		return ErrDegenerateCalibration
	}
	return nil
}

// Search finds the smallest lambda on a fixed step grid such that at least a
// fraction target of y lies in [lower-lambda, upper+lambda]. The grid step is
// 2% of the 75th percentile of upper-lower. The loop runs at most
// ceil(max/step)+1 times; if the target is still missed lambda is the
// ceiling and the result is flagged degenerate. The width floor is applied
// afterwards.
func Search(lower, upper, y []float64, target float64, opts SearchOptions) (Result, error) {
	if len(lower) != len(y) || len(upper) != len(y) {
		return Result{}, fmt.Errorf("%w: lower=%d upper=%d y=%d", ErrLengthMismatch, len(lower), len(upper), len(y))
	}
	if !(target > 0 && target < 1) {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidCoverage, target)
	}
	maxLambda := opts.MaxLambda
	if maxLambda <= 0 {
		maxLambda = DefaultMaxLambda
	}

	widths := make([]float64, len(y))
	for i := range y {
		widths[i] = upper[i] - lower[i]
	}
	step := stepFraction * stats.Percentile(widths, 75)
	if !(step > 0) || math.IsInf(step, 0) {
		step = minStep
	}

	res := Result{Step: step}
	limit := int(math.Ceil(maxLambda/step)) + 1
	lambda := 0.0
	for res.Steps = 1; ; res.Steps++ {
		res.Coverage = Coverage(lower, upper, y, lambda)
		if res.Coverage >= target {
			break
		}
		if res.Steps >= limit || lambda >= maxLambda {
			lambda = maxLambda
			res.Coverage = Coverage(lower, upper, y, lambda)
			res.Degenerate = res.Coverage < target
			break
		}
		lambda = math.Min(float64(res.Steps)*step, maxLambda)
	}
	res.SearchLambda = lambda
	if opts.WidthFraction >= 0 {
		res.Floor = WidthFloor(y, opts.WidthFraction)
	}
	res.Lambda = math.Max(res.SearchLambda, res.Floor)
	return res, nil
}

// Coverage is the fraction of y inside [lower-lambda, upper+lambda]; 0 for
// an empty sample.
func Coverage(lower, upper, y []float64, lambda float64) float64 {
	if len(y) == 0 {
		return 0
	}
	hits := 0
	for i, v := range y {
		if v >= lower[i]-lambda && v <= upper[i]+lambda {
			hits++
		}
	}
	return float64(hits) / float64(len(y))
}

// WidthFloor is fraction times the population standard deviation of y.
func WidthFloor(y []float64, fraction float64) float64 {
	if fraction <= 0 {
		return 0
	}
	return fraction * stats.StdPop(y)
}

// Widen returns lower-lambda and upper+lambda as new slices.
func Widen(lower, upper []float64, lambda float64) ([]float64, []float64) {
	lo := make([]float64, len(lower))
	hi := make([]float64, len(upper))
	for i := range lower {
		lo[i] = lower[i] - lambda
	}
	for i := range upper {
		hi[i] = upper[i] + lambda
	}
	return lo, hi
}
