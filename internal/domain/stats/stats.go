// Package stats holds the small set of sample statistics the backtest needs.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quantile returns the q-quantile of xs using linear interpolation between
// order statistics (the "type 7" estimator). xs is not modified. Returns NaN
// for an empty sample; q is clamped to [0,1].
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return QuantileSorted(sorted, q)
}

// QuantileSorted is Quantile for an already ascending sample.
func QuantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	q = math.Max(0, math.Min(1, q))
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// Percentile is Quantile with p in [0,100].
func Percentile(xs []float64, p float64) float64 {
	return Quantile(xs, p/100)
}

// WeightedQuantile returns the smallest value whose cumulative normalized
// weight reaches q. Values with non-positive weight are ignored.
func WeightedQuantile(values, weights []float64, q float64) float64 {
	type pair struct{ v, w float64 }
	pairs := make([]pair, 0, len(values))
	for i, v := range values {
		if weights[i] > 0 {
			pairs = append(pairs, pair{v, weights[i]})
		}
	}
	if len(pairs) == 0 {
		return math.NaN()
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })
	q = math.Max(0, math.Min(1, q))
	if q == 1 {
		return pairs[len(pairs)-1].v
	}
	xs := make([]float64, len(pairs))
	ws := make([]float64, len(pairs))
	for i, p := range pairs {
		xs[i], ws[i] = p.v, p.w
	}
	return stat.Quantile(q, stat.Empirical, xs, ws)
}

// Mean computes the arithmetic mean; 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// StdPop computes the population standard deviation (divides by n).
func StdPop(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.PopStdDev(xs, nil)
}

// AllFinite reports whether every value is neither NaN nor Inf.
func AllFinite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
