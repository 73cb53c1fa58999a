// Package assemble builds the full quantile grid for each test row from the
// modeled levels and repairs rows whose quantiles cross.
package assemble

import (
	"errors"
	"fmt"
	"sort"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
)

// Sentinel kinds for assembly.
var (
	ErrMissingLevel   = errors.New("modeled level missing")
	ErrLengthMismatch = errors.New("modeled vectors differ in length")
)

// Matrix holds one quantile vector per test row, ordered like Levels.
type Matrix struct {
	Levels []float64
	Rows   [][]float64
}

// Column returns the predictions for tau, or nil if tau is not a level.
func (m Matrix) Column(tau float64) []float64 {
	j := -1
	for i, l := range m.Levels {
		if l == tau {
			j = i
			break
		}
	}
	if j < 0 {
		return nil
	}
	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[j]
	}
	return out
}

// Assemble fills every grid level for each row. modeled must hold a vector
// for each level in grid.Modeled(): extremes and the median as calibrated,
// anchors as calibrated and widened. Interior levels are interpolated
// linearly in tau between the nearer anchor and the median. Any row that is
// not non-decreasing afterwards is sorted; the number of such rows is
// returned.
func Assemble(grid quantile.Grid, modeled map[float64][]float64) (Matrix, int, error) {
	median, ok := modeled[quantile.Median]
	if !ok {
		return Matrix{}, 0, fmt.Errorf("%w: %s", ErrMissingLevel, quantile.Format(quantile.Median))
	}
	n := len(median)
	for _, tau := range grid.Modeled() {
		v, ok := modeled[tau]
		if !ok {
			return Matrix{}, 0, fmt.Errorf("%w: %s", ErrMissingLevel, quantile.Format(tau))
		}
		if len(v) != n {
			return Matrix{}, 0, fmt.Errorf("%w: tau %s has %d rows, median has %d", ErrLengthMismatch, quantile.Format(tau), len(v), n)
		}
	}

	levels := grid.Levels()
	lower, upper := modeled[grid.Low()], modeled[grid.High()]
	lowSpan := quantile.Median - grid.Low()
	highSpan := grid.High() - quantile.Median

	m := Matrix{Levels: levels, Rows: make([][]float64, n)}
	repaired := 0
	for i := 0; i < n; i++ {
		row := make([]float64, len(levels))
		for j, tau := range levels {
			switch {
			case grid.RoleOf(tau) != quantile.RoleInterior:
				row[j] = modeled[tau][i]
			case tau < quantile.Median:
				w := (quantile.Median - tau) / lowSpan
				row[j] = w*lower[i] + (1-w)*median[i]
			default:
				w := (tau - quantile.Median) / highSpan
				row[j] = w*upper[i] + (1-w)*median[i]
			}
		}
		if !sort.Float64sAreSorted(row) {
			sort.Float64s(row)
			repaired++
		}
		m.Rows[i] = row
	}
	return m, repaired, nil
}
