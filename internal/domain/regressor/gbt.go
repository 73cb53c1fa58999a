package regressor

import (
	"context"
	"fmt"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/stats"
)

// GBT defaults.
const (
	gbtLearningRate  = 0.05
	gbtIterations    = 200
	gbtMaxDepth      = 3
	gbtMinDataInLeaf = 5
	gbtEarlyStopping = 20
)

// GBT is gradient boosting of shallow regression trees on the pinball loss.
// Each tree is grown on the negative gradient and its leaves are re-estimated
// as the tau-quantile of the residuals they hold.
type GBT struct{}

type gbtModel struct {
	init  float64
	rate  float64
	trees []*regTree
}

func (m *gbtModel) predict(row []float64) float64 {
	out := m.init
	for _, t := range m.trees {
		out += m.rate * t.leaf(row).value
	}
	return out
}

// Family implements Predictor.
func (GBT) Family() Family { return FamilyGBT }

// Fit implements Predictor.
//
// Params: learning_rate, num_iterations (alias n_estimators), max_depth,
// min_data_in_leaf, early_stopping_round. Early stopping is active only when
// eval is non-nil; the model is truncated to the best eval iteration.
func (GBT) Fit(ctx context.Context, train Dataset, tau float64, eval *Dataset, params hyperparams.Params) (Handle, error) {
	if err := checkTau(tau); err != nil {
		return Handle{}, err
	}
	width, err := train.validate()
	if err != nil {
		return Handle{}, err
	}
	if eval != nil && eval.Len() > 0 {
		w, err := eval.validate()
		if err != nil {
			return Handle{}, fmt.Errorf("eval set: %w", err)
		}
		if w != width {
			return Handle{}, fmt.Errorf("%w: eval width %d, train width %d", ErrModelFit, w, width)
		}
	} else {
		eval = nil
	}

	rate := params.Float("learning_rate", gbtLearningRate)
	iterations := params.Int("num_iterations", params.Int("n_estimators", gbtIterations))
	cfg := treeConfig{
		maxDepth: params.Int("max_depth", gbtMaxDepth),
		minLeaf:  params.Int("min_data_in_leaf", gbtMinDataInLeaf),
	}
	patience := params.Int("early_stopping_round", gbtEarlyStopping)
	if rate <= 0 || iterations < 1 {
		return Handle{}, fmt.Errorf("%w: learning_rate=%v num_iterations=%d", ErrModelFit, rate, iterations)
	}

	n := train.Len()
	m := &gbtModel{init: stats.Quantile(train.Y, tau), rate: rate}
	fitted := make([]float64, n)
	for i := range fitted {
		fitted[i] = m.init
	}
	var evalFitted []float64
	if eval != nil {
		evalFitted = make([]float64, eval.Len())
		for i := range evalFitted {
			evalFitted[i] = m.init
		}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	grad := make([]float64, n)
	best, bestLoss, sinceBest := 0, 0.0, 0
	if eval != nil {
		bestLoss = pinballMean(tau, eval.Y, evalFitted)
	}

	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return Handle{}, err
		}
		for i := range grad {
			if train.Y[i] > fitted[i] {
				grad[i] = tau
			} else {
				grad[i] = tau - 1
			}
		}
		tree := growTree(train.X, grad, idx, cfg)
		for _, li := range tree.leaves() {
			leaf := &tree.nodes[li]
			resid := make([]float64, len(leaf.members))
			for k, i := range leaf.members {
				resid[k] = train.Y[i] - fitted[i]
			}
			leaf.value = stats.Quantile(resid, tau)
			for _, i := range leaf.members {
				fitted[i] += rate * leaf.value
			}
			leaf.members = nil
		}
		m.trees = append(m.trees, tree)

		if eval == nil {
			continue
		}
		for i, row := range eval.X {
			evalFitted[i] += rate * tree.leaf(row).value
		}
		loss := pinballMean(tau, eval.Y, evalFitted)
		if loss < bestLoss {
			best, bestLoss, sinceBest = len(m.trees), loss, 0
			continue
		}
		sinceBest++
		if patience > 0 && sinceBest >= patience {
			break
		}
	}
	if eval != nil {
		m.trees = m.trees[:best]
	}
	return Handle{family: FamilyGBT, tau: tau, width: width, m: m}, nil
}

// Predict implements Predictor.
func (GBT) Predict(h Handle, x [][]float64) ([]float64, error) {
	return predictWith(FamilyGBT, h, x)
}
