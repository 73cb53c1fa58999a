// Package quantile defines the quantile grid of a run and the roles each
// level plays in calibration and assembly.
package quantile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Median is the central quantile level.
const Median = 0.5

// symmetryTolerance absorbs decimal representation error, e.g. 1-0.9 != 0.1.
const symmetryTolerance = 1e-9

// ErrInvalidGrid is returned for grids that cannot drive a run.
var ErrInvalidGrid = errors.New("invalid quantile grid")

// Role classifies a level relative to the anchors.
type Role int

const (
	RoleExtreme  Role = iota // outside [low, high], modeled directly, no widening
	RoleAnchor               // low or high anchor, calibrated and widened
	RoleMedian               // 0.5, modeled, never shifted
	RoleInterior             // strictly between an anchor and the median, interpolated
)

func (r Role) String() string {
	switch r {
	case RoleExtreme:
		return "extreme"
	case RoleAnchor:
		return "anchor"
	case RoleMedian:
		return "median"
	case RoleInterior:
		return "interior"
	default:
		return "unknown"
	}
}

// Grid is an ascending, symmetric set of levels with a designated anchor pair.
type Grid struct {
	levels []float64
	low    float64
	high   float64
}

// NewGrid validates levels and the lower anchor. Levels must be strictly
// ascending inside (0,1), contain the median, and be symmetric around it.
// The upper anchor is 1-lowAnchor.
func NewGrid(levels []float64, lowAnchor float64) (Grid, error) {
	if len(levels) < 3 {
		return Grid{}, fmt.Errorf("%w: need at least 3 levels, got %d", ErrInvalidGrid, len(levels))
	}
	for i, tau := range levels {
		if math.IsNaN(tau) || tau <= 0 || tau >= 1 {
			return Grid{}, fmt.Errorf("%w: level %v outside (0,1)", ErrInvalidGrid, tau)
		}
		if i > 0 && tau <= levels[i-1] {
			return Grid{}, fmt.Errorf("%w: levels not strictly ascending at %v", ErrInvalidGrid, tau)
		}
	}
	g := Grid{levels: append([]float64(nil), levels...)}
	if g.index(Median) < 0 {
		return Grid{}, fmt.Errorf("%w: median 0.5 missing", ErrInvalidGrid)
	}
	for _, tau := range levels {
		if g.index(1-tau) < 0 {
			return Grid{}, fmt.Errorf("%w: level %v has no mirror %v", ErrInvalidGrid, tau, 1-tau)
		}
	}
	if !(lowAnchor > 0 && lowAnchor < Median) {
		return Grid{}, fmt.Errorf("%w: lower anchor %v must lie in (0, 0.5)", ErrInvalidGrid, lowAnchor)
	}
	li := g.index(lowAnchor)
	if li < 0 {
		return Grid{}, fmt.Errorf("%w: lower anchor %v not in grid", ErrInvalidGrid, lowAnchor)
	}
	g.low = g.levels[li]
	g.high = g.levels[g.index(1-lowAnchor)]
	return g, nil
}

// Default returns the seven-level grid {0.05,...,0.95} anchored at 0.10/0.90.
func Default() Grid {
	g, err := NewGrid([]float64{0.05, 0.10, 0.25, 0.50, 0.75, 0.90, 0.95}, 0.10)
	if err != nil {
		panic(err)
	}
	return g
}

func (g Grid) index(tau float64) int {
	i := sort.SearchFloat64s(g.levels, tau-symmetryTolerance)
	if i < len(g.levels) && math.Abs(g.levels[i]-tau) <= symmetryTolerance {
		return i
	}
	return -1
}

// Levels returns a copy of the ascending levels.
func (g Grid) Levels() []float64 { return append([]float64(nil), g.levels...) }

// Len is the number of levels.
func (g Grid) Len() int { return len(g.levels) }

// Low returns the lower anchor level.
func (g Grid) Low() float64 { return g.low }

// High returns the upper anchor level.
func (g Grid) High() float64 { return g.high }

// Contains reports whether tau is a level of the grid.
func (g Grid) Contains(tau float64) bool { return g.index(tau) >= 0 }

// RoleOf classifies tau. tau must be a level of the grid.
func (g Grid) RoleOf(tau float64) Role {
	switch {
	case math.Abs(tau-Median) <= symmetryTolerance:
		return RoleMedian
	case tau == g.low || tau == g.high:
		return RoleAnchor
	case tau < g.low || tau > g.high:
		return RoleExtreme
	default:
		return RoleInterior
	}
}

// Modeled returns, ascending, the levels that need a fitted model: extremes,
// both anchors and the median. Interior levels are interpolated instead.
func (g Grid) Modeled() []float64 {
	out := make([]float64, 0, len(g.levels))
	for _, tau := range g.levels {
		if g.RoleOf(tau) != RoleInterior {
			out = append(out, tau)
		}
	}
	return out
}

// AlphaTail is the per-side miss rate for a central interval with the given
// target coverage.
func AlphaTail(targetCoverage float64) float64 {
	return (1 - targetCoverage) / 2
}

// Format renders tau with the shortest exact decimal form, e.g. "0.1".
func Format(tau float64) string {
	return strconv.FormatFloat(tau, 'f', -1, 64)
}
