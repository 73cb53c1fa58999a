package regressor

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/stats"
)

// Forest defaults.
const (
	forestTrees       = 100
	forestMinLeaf     = 5
	forestMaxFeatures = 1.0 / 3
	forestSeed        = 42
)

// Forest is a quantile regression forest: bootstrap trees whose leaves keep
// their training targets, pooled per query row into a weighted empirical
// distribution. One ensemble answers every level.
type Forest struct{}

type forestEnsemble struct {
	y     []float64
	trees []*regTree
}

type forestModel struct {
	ens *forestEnsemble
	tau float64
}

func (m *forestModel) predict(row []float64) float64 {
	nTrees := float64(len(m.ens.trees))
	var values, weights []float64
	for _, t := range m.ens.trees {
		leaf := t.leaf(row)
		w := 1 / (float64(len(leaf.members)) * nTrees)
		for _, i := range leaf.members {
			values = append(values, m.ens.y[i])
			weights = append(weights, w)
		}
	}
	return stats.WeightedQuantile(values, weights, m.tau)
}

// Family implements Predictor.
func (Forest) Family() Family { return FamilyForest }

// Fit implements Predictor by growing an ensemble for a single level.
func (f Forest) Fit(ctx context.Context, train Dataset, tau float64, eval *Dataset, params hyperparams.Params) (Handle, error) {
	set, err := f.FitJoint(ctx, train, []float64{tau}, eval, params)
	if err != nil {
		return Handle{}, err
	}
	return set[tau], nil
}

// FitJoint implements JointFitter. Params: n_estimators, min_samples_leaf,
// max_depth, max_features (fraction of columns per split), seed. eval is unused.
func (Forest) FitJoint(ctx context.Context, train Dataset, taus []float64, _ *Dataset, params hyperparams.Params) (HandleSet, error) {
	for _, tau := range taus {
		if err := checkTau(tau); err != nil {
			return nil, err
		}
	}
	width, err := train.validate()
	if err != nil {
		return nil, err
	}
	nTrees := params.Int("n_estimators", forestTrees)
	if nTrees < 1 {
		return nil, fmt.Errorf("%w: n_estimators=%d", ErrModelFit, nTrees)
	}
	rng := rand.New(rand.NewSource(int64(params.Int("seed", forestSeed)))) //nolint:gosec // reproducible bootstrap, not security
	cfg := treeConfig{
		maxDepth:    params.Int("max_depth", 0),
		minLeaf:     params.Int("min_samples_leaf", forestMinLeaf),
		maxFeatures: maxFeatureCount(width, params.Float("max_features", forestMaxFeatures)),
		rng:         rng,
	}

	n := train.Len()
	ens := &forestEnsemble{y: append([]float64(nil), train.Y...)}
	sample := make([]int, n)
	for t := 0; t < nTrees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		ens.trees = append(ens.trees, growTree(train.X, train.Y, sample, cfg))
	}

	out := make(HandleSet, len(taus))
	for _, tau := range taus {
		out[tau] = Handle{family: FamilyForest, tau: tau, width: width, m: &forestModel{ens: ens, tau: tau}}
	}
	return out, nil
}

// Predict implements Predictor.
func (Forest) Predict(h Handle, x [][]float64) ([]float64, error) {
	return predictWith(FamilyForest, h, x)
}
