// Package regressor provides per-quantile regression models behind one
// capability interface. Models are opaque handles tagged with their family.
package regressor

import (
	"context"
	"fmt"
	"strings"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/stats"
)

// Family names a model family.
type Family string

// Supported families.
const (
	FamilyGBT    Family = "gbt"
	FamilyLinear Family = "linear"
	FamilyForest Family = "forest"
)

// Families lists every supported family name.
func Families() []string {
	return []string{string(FamilyGBT), string(FamilyLinear), string(FamilyForest)}
}

// Dataset is a feature matrix with its target vector.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Y) }

// validate checks the dataset is non-empty, rectangular and finite, and
// returns its feature width.
func (d Dataset) validate() (int, error) {
	if len(d.X) == 0 || len(d.X) != len(d.Y) {
		return 0, fmt.Errorf("%w: %d feature rows for %d targets", ErrModelFit, len(d.X), len(d.Y))
	}
	width := len(d.X[0])
	for i, row := range d.X {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrModelFit, i, len(row), width)
		}
		if !stats.AllFinite(row) {
			return 0, fmt.Errorf("%w: non-finite feature in row %d", ErrModelFit, i)
		}
	}
	if !stats.AllFinite(d.Y) {
		return 0, fmt.Errorf("%w: non-finite target", ErrModelFit)
	}
	return width, nil
}

// model is the family-specific fitted variant behind a Handle.
type model interface {
	predict(row []float64) float64
}

// Handle is a fitted model for one quantile level.
type Handle struct {
	family Family
	tau    float64
	width  int
	m      model
}

// Family returns the family that produced the handle.
func (h Handle) Family() Family { return h.family }

// Tau returns the quantile level the handle answers.
func (h Handle) Tau() float64 { return h.tau }

type modelFunc func(row []float64) float64

func (f modelFunc) predict(row []float64) float64 { return f(row) }

// NewHandle wraps a prediction function for families defined outside this
// package. width is the expected feature count.
func NewHandle(family Family, tau float64, width int, fn func(row []float64) float64) Handle {
	return Handle{family: family, tau: tau, width: width, m: modelFunc(fn)}
}

// Evaluate runs h on every row of x.
func Evaluate(h Handle, x [][]float64) ([]float64, error) {
	return predictWith(h.family, h, x)
}

// HandleSet maps a quantile level to its fitted model.
type HandleSet map[float64]Handle

// Predictor fits and evaluates one model per quantile level.
type Predictor interface {
	Family() Family
	// Fit trains a model for tau. eval, when non-nil, may be used for early
	// stopping; it never influences the returned model otherwise.
	Fit(ctx context.Context, train Dataset, tau float64, eval *Dataset, params hyperparams.Params) (Handle, error)
	Predict(h Handle, x [][]float64) ([]float64, error)
}

// JointFitter is implemented by families that fit every level at once.
type JointFitter interface {
	FitJoint(ctx context.Context, train Dataset, taus []float64, eval *Dataset, params hyperparams.Params) (HandleSet, error)
}

// New returns the predictor for a family name.
func New(family string) (Predictor, error) {
	switch Family(strings.ToLower(strings.TrimSpace(family))) {
	case FamilyGBT:
		return GBT{}, nil
	case FamilyLinear:
		return Linear{}, nil
	case FamilyForest:
		return Forest{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
}

// predictWith evaluates h on every row of x after checking it belongs to fam.
func predictWith(fam Family, h Handle, x [][]float64) ([]float64, error) {
	if h.family != fam || h.m == nil {
		return nil, fmt.Errorf("%w: %s handle passed to %s", ErrFamilyMismatch, h.family, fam)
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != h.width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureWidth, i, len(row), h.width)
		}
		out[i] = h.m.predict(row)
	}
	return out, nil
}

func checkTau(tau float64) error {
	if !(tau > 0 && tau < 1) {
		return fmt.Errorf("%w: tau %v outside (0,1)", ErrModelFit, tau)
	}
	return nil
}

func pinballMean(tau float64, y, yhat []float64) float64 {
	sum := 0.0
	for i := range y {
		sum += quantile.Pinball(tau, y[i], yhat[i])
	}
	return sum / float64(len(y))
}
