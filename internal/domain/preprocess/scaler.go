// Package preprocess holds per-fold feature transforms.
package preprocess

import (
	"errors"
	"math"
)

// ErrNotFitted is returned when Transform is called before Fit.
var ErrNotFitted = errors.New("scaler not fitted")

// ErrWidthMismatch is returned when a row has a different width than the fit data.
var ErrWidthMismatch = errors.New("feature width mismatch")

// StandardScaler centres each column on the training mean and divides by the
// training population standard deviation. Constant columns keep scale 1.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// Fit learns column statistics from x. x must be non-empty and rectangular.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return ErrNotFitted
	}
	d := len(x[0])
	mean := make([]float64, d)
	for _, row := range x {
		if len(row) != d {
			return ErrWidthMismatch
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(x))
	for j := range mean {
		mean[j] /= n
	}
	scale := make([]float64, d)
	for _, row := range x {
		for j, v := range row {
			dv := v - mean[j]
			scale[j] += dv * dv
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 || math.IsNaN(scale[j]) {
			scale[j] = 1
		}
	}
	s.mean, s.scale = mean, scale
	return nil
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.mean == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(s.mean) {
			return nil, ErrWidthMismatch
		}
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = (v - s.mean[j]) / s.scale[j]
		}
		out[i] = r
	}
	return out, nil
}

// FitTransform fits on x and returns its scaled copy.
func (s *StandardScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
