package regressor

import (
	"context"
	"fmt"
	"math"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"gonum.org/v1/gonum/mat"
)

// Linear defaults.
const (
	linearL2      = 1e-4
	linearMaxIter = 5000
	linearTol     = 1e-7
	// irlsFloor bounds residual magnitudes away from zero in the weights.
	irlsFloor = 1e-6
)

// Linear is linear quantile regression with an intercept, fitted by
// iteratively reweighted least squares with a small ridge penalty on the
// slopes.
type Linear struct{}

type linearModel struct {
	coef []float64 // coef[0] is the intercept
}

func (m *linearModel) predict(row []float64) float64 {
	out := m.coef[0]
	for j, v := range row {
		out += m.coef[j+1] * v
	}
	return out
}

// Family implements Predictor.
func (Linear) Family() Family { return FamilyLinear }

// Fit implements Predictor. Params: l2, max_iter, tol. eval is unused.
// Failing to converge within max_iter is a fit failure.
func (Linear) Fit(ctx context.Context, train Dataset, tau float64, _ *Dataset, params hyperparams.Params) (Handle, error) {
	if err := checkTau(tau); err != nil {
		return Handle{}, err
	}
	width, err := train.validate()
	if err != nil {
		return Handle{}, err
	}
	l2 := params.Float("l2", linearL2)
	maxIter := params.Int("max_iter", linearMaxIter)
	tol := params.Float("tol", linearTol)
	if l2 < 0 || maxIter < 1 || tol <= 0 {
		return Handle{}, fmt.Errorf("%w: l2=%v max_iter=%d tol=%v", ErrModelFit, l2, maxIter, tol)
	}

	n := train.Len()
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	coef, err := weightedRidge(train.X, train.Y, weights, l2)
	if err != nil {
		return Handle{}, err
	}
	m := &linearModel{coef: coef}
	prev := checkLoss(m, train, tau)

	for it := 0; it < maxIter; it++ {
		if err := ctx.Err(); err != nil {
			return Handle{}, err
		}
		for i, row := range train.X {
			r := train.Y[i] - m.predict(row)
			side := tau
			if r < 0 {
				side = 1 - tau
			}
			weights[i] = side / math.Max(math.Abs(r), irlsFloor)
		}
		next, err := weightedRidge(train.X, train.Y, weights, l2)
		if err != nil {
			return Handle{}, err
		}
		m.coef = next
		loss := checkLoss(m, train, tau)
		if math.Abs(prev-loss) <= tol*math.Max(1, math.Abs(prev)) {
			return Handle{family: FamilyLinear, tau: tau, width: width, m: m}, nil
		}
		prev = loss
	}
	return Handle{}, fmt.Errorf("%w: linear tau=%v did not converge in %d iterations", ErrModelFit, tau, maxIter)
}

// Predict implements Predictor.
func (Linear) Predict(h Handle, x [][]float64) ([]float64, error) {
	return predictWith(FamilyLinear, h, x)
}

func checkLoss(m *linearModel, d Dataset, tau float64) float64 {
	pred := make([]float64, d.Len())
	for i, row := range d.X {
		pred[i] = m.predict(row)
	}
	return pinballMean(tau, d.Y, pred)
}

// weightedRidge solves (X'WX + l2*P) b = X'Wy for a design with a leading
// intercept column; P penalises slopes only.
func weightedRidge(x [][]float64, y, w []float64, l2 float64) ([]float64, error) {
	p := len(x[0]) + 1
	a := mat.NewSymDense(p, nil)
	b := mat.NewVecDense(p, nil)
	row := mat.NewVecDense(p, nil)
	for i, xi := range x {
		row.SetVec(0, 1)
		for j, v := range xi {
			row.SetVec(j+1, v)
		}
		a.SymRankOne(a, w[i], row)
		b.AddScaledVec(b, w[i]*y[i], row)
	}
	for j := 1; j < p; j++ {
		a.SetSym(j, j, a.At(j, j)+l2)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("%w: singular design matrix", ErrModelFit)
	}
	var coef mat.VecDense
	if err := chol.SolveVecTo(&coef, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFit, err)
	}
	out := make([]float64, p)
	for i := range out {
		out[i] = coef.AtVec(i)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, fmt.Errorf("%w: non-finite coefficients", ErrModelFit)
		}
	}
	return out, nil
}
