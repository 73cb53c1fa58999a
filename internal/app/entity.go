package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/assemble"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/conformal"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/evaluate"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/fold"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/preprocess"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/regressor"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/metrics"
)

// foldError tags a fold failure with its skip reason.
type foldError struct {
	reason string
	err    error
}

func (e *foldError) Error() string { return e.reason + ": " + e.err.Error() }

func (e *foldError) Unwrap() error { return e.err }

// skip classifies err. Context errors are always reported as cancellation.
func skip(reason string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = model.ReasonCanceled
	}
	return &foldError{reason: reason, err: err}
}

func reasonOf(err error) string {
	var fe *foldError
	if errors.As(err, &fe) {
		return fe.reason
	}
	return model.ReasonInternal
}

// entityProcessor runs the fold loop of one entity. It only reads the panel
// and the plan, so one instance serves every worker.
type entityProcessor struct {
	plan   *plan
	panel  *panel.Panel
	logger logger.Logger
}

// Process implements worker.Processor.
func (e *entityProcessor) Process(ctx context.Context, task model.EntityTask) model.EntityResult {
	res := model.EntityResult{Entity: task.Entity, Status: model.EntityOK}

	sp, err := fold.NewSplitter(task.Entity, task.Len(), e.plan.windows)
	if err != nil {
		res.Status = model.EntityFailed
		res.Err = err
		return res
	}
	if err := sp.Sufficient(); err != nil {
		res.Status = model.EntityInsufficient
		e.logger.Info(ctx, "entity skipped",
			logger.String("entity", task.Entity),
			logger.Int("rows", task.Len()),
			logger.Error(err),
		)
		return res
	}

	for f, ok := sp.Next(); ok; f, ok = sp.Next() {
		if err := ctx.Err(); err != nil {
			res.Folds = append(res.Folds, e.skipped(ctx, f, skip(model.ReasonCanceled, err), 0))
			break
		}
		start := time.Now()
		out, err := e.runFold(ctx, task, f)
		elapsed := time.Since(start)
		metrics.ObserveFoldDuration(float64(elapsed.Milliseconds()))
		if err != nil {
			res.Folds = append(res.Folds, e.skipped(ctx, f, err, elapsed))
			continue
		}
		out.outcome.Duration = elapsed
		metrics.RecordFold(model.FoldCompleted)
		res.Folds = append(res.Folds, out.outcome)
		res.Predictions = append(res.Predictions, out.predictions...)
		res.Metrics = append(res.Metrics, out.metrics...)
	}
	return res
}

func (e *entityProcessor) skipped(ctx context.Context, f fold.Fold, err error, elapsed time.Duration) model.FoldOutcome {
	reason := reasonOf(err)
	metrics.RecordFoldSkip(reason)
	e.logger.Warn(ctx, "fold skipped",
		logger.String("entity", f.Entity),
		logger.Int("fold", f.Index),
		logger.String("reason", reason),
		logger.Error(err),
	)
	return model.FoldOutcome{
		Entity:   f.Entity,
		Fold:     f.Index,
		Status:   model.FoldSkipped,
		Reason:   reason,
		Err:      err,
		Duration: elapsed,
	}
}

type foldOutput struct {
	outcome     model.FoldOutcome
	predictions []model.PredictionRecord
	metrics     []model.FoldMetric
}

// foldData is one fold's three slices in absolute panel coordinates.
type foldData struct {
	xTrain, xCal, xTest [][]float64
	yTrain, yCal, yTest []float64
	tsTest              []time.Time
}

func (e *entityProcessor) slices(task model.EntityTask, f fold.Fold) (foldData, error) {
	var d foldData
	train, cal, test := f.Train.Shift(task.Start), f.Cal.Shift(task.Start), f.Test.Shift(task.Start)
	d.xTrain, d.yTrain, _ = e.panel.Slice(train.Start, train.End)
	d.xCal, d.yCal, _ = e.panel.Slice(cal.Start, cal.End)
	d.xTest, d.yTest, d.tsTest = e.panel.Slice(test.Start, test.End)
	if !e.plan.standardize {
		return d, nil
	}
	var sc preprocess.StandardScaler
	var err error
	if d.xTrain, err = sc.FitTransform(d.xTrain); err != nil {
		return d, err
	}
	if d.xCal, err = sc.Transform(d.xCal); err != nil {
		return d, err
	}
	if d.xTest, err = sc.Transform(d.xTest); err != nil {
		return d, err
	}
	return d, nil
}

// levelPredictions holds raw predictions of one modeled level.
type levelPredictions struct {
	cal  []float64
	test []float64
}

func (e *entityProcessor) runFold(ctx context.Context, task model.EntityTask, f fold.Fold) (foldOutput, error) {
	d, err := e.slices(task, f)
	if err != nil {
		return foldOutput{}, skip(model.ReasonInternal, err)
	}

	raw, err := e.fit(ctx, f, d)
	if err != nil {
		return foldOutput{}, err
	}

	// Conformal shift on every modeled level; anchors also keep their
	// shifted calibration predictions for the coverage search.
	pl := e.plan
	calibrated := make(map[float64][]float64, len(raw))
	calCal := make(map[float64][]float64, 2)
	for tau, p := range raw {
		adj, err := pl.calibrator.Adjustment(tau, d.yCal, p.cal)
		if err != nil {
			return foldOutput{}, skip(model.ReasonCalibration, err)
		}
		calibrated[tau] = pl.calibrator.Apply(tau, adj, p.test)
		if tau == pl.grid.Low() || tau == pl.grid.High() {
			calCal[tau] = pl.calibrator.Apply(tau, adj, p.cal)
		}
	}

	search, err := conformal.Search(calCal[pl.grid.Low()], calCal[pl.grid.High()], d.yCal, pl.calibrator.Coverage(), pl.search)
	if err != nil {
		return foldOutput{}, skip(model.ReasonCalibration, err)
	}
	metrics.RecordCalibration(search.Lambda, search.Degenerate)
	if search.Degenerate {
		e.logger.Warn(ctx, "coverage search hit lambda ceiling",
			logger.String("entity", f.Entity),
			logger.Int("fold", f.Index),
			logger.Float64("lambda", search.Lambda),
			logger.Float64("coverage", search.Coverage),
			logger.Error(search.Err()),
		)
	}
	calibrated[pl.grid.Low()], calibrated[pl.grid.High()] = conformal.Widen(
		calibrated[pl.grid.Low()], calibrated[pl.grid.High()], search.Lambda)

	m, repaired, err := assemble.Assemble(pl.grid, calibrated)
	if err != nil {
		return foldOutput{}, skip(model.ReasonInternal, err)
	}
	metrics.RecordRepairedRows(repaired)

	out := foldOutput{
		outcome: model.FoldOutcome{
			Entity:       f.Entity,
			Fold:         f.Index,
			Status:       model.FoldCompleted,
			Degenerate:   search.Degenerate,
			RepairedRows: repaired,
		},
		predictions: make([]model.PredictionRecord, 0, len(m.Rows)*len(m.Levels)),
		metrics:     make([]model.FoldMetric, 0, len(m.Levels)+1),
	}
	for j, tau := range m.Levels {
		col := m.Column(tau)
		loss, err := evaluate.Pinball(tau, d.yTest, col)
		if err != nil {
			return foldOutput{}, skip(model.ReasonInternal, err)
		}
		out.metrics = append(out.metrics, model.FoldMetric{Entity: f.Entity, Fold: f.Index, Tau: tau, Pinball: loss})
		for i, row := range m.Rows {
			out.predictions = append(out.predictions, model.PredictionRecord{
				Entity:    f.Entity,
				Timestamp: d.tsTest[i],
				Fold:      f.Index,
				Tau:       tau,
				YTrue:     d.yTest[i],
				YPred:     row[j],
			})
		}
	}

	iv, err := evaluate.IntervalScore(m.Column(pl.grid.Low()), m.Column(pl.grid.High()), d.yTest)
	if err != nil {
		return foldOutput{}, skip(model.ReasonInternal, err)
	}
	out.metrics = append(out.metrics, model.FoldMetric{
		Entity:       f.Entity,
		Fold:         f.Index,
		Interval:     true,
		Coverage:     iv.Coverage,
		Width:        iv.Width,
		Lambda:       search.Lambda,
		LambdaSearch: search.SearchLambda,
		Degenerate:   search.Degenerate,
	})

	e.logger.Debug(ctx, "fold completed",
		logger.String("entity", f.Entity),
		logger.Int("fold", f.Index),
		logger.Float64("lambda", search.Lambda),
		logger.Float64("coverage", iv.Coverage),
		logger.Int("repaired", repaired),
	)
	return out, nil
}

// fit trains the modeled levels and predicts the calibration and test
// slices. Joint families fit once with the median's parameters.
func (e *entityProcessor) fit(ctx context.Context, f fold.Fold, d foldData) (map[float64]levelPredictions, error) {
	pl := e.plan
	train := regressor.Dataset{X: d.xTrain, Y: d.yTrain}
	eval := &regressor.Dataset{X: d.xCal, Y: d.yCal}
	family := string(pl.predictor.Family())

	handles := make(regressor.HandleSet, len(pl.modeled))
	if jf, ok := pl.predictor.(regressor.JointFitter); ok {
		params, err := e.params(ctx, f, quantile.Median)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		handles, err = jf.FitJoint(ctx, train, pl.modeled, eval, params)
		metrics.ObserveFit(family, float64(time.Since(start).Milliseconds()), err != nil)
		if err != nil {
			return nil, skip(model.ReasonModelFit, err)
		}
	} else {
		for _, tau := range pl.modeled {
			params, err := e.params(ctx, f, tau)
			if err != nil {
				return nil, err
			}
			start := time.Now()
			h, err := pl.predictor.Fit(ctx, train, tau, eval, params)
			metrics.ObserveFit(family, float64(time.Since(start).Milliseconds()), err != nil)
			if err != nil {
				return nil, skip(model.ReasonModelFit, fmt.Errorf("tau %s: %w", quantile.Format(tau), err))
			}
			handles[tau] = h
		}
	}

	out := make(map[float64]levelPredictions, len(pl.modeled))
	for _, tau := range pl.modeled {
		h, ok := handles[tau]
		if !ok {
			return nil, skip(model.ReasonModelFit, fmt.Errorf("%w: no model for tau %s", regressor.ErrModelFit, quantile.Format(tau)))
		}
		pc, err := pl.predictor.Predict(h, d.xCal)
		if err != nil {
			return nil, skip(model.ReasonModelFit, err)
		}
		pt, err := pl.predictor.Predict(h, d.xTest)
		if err != nil {
			return nil, skip(model.ReasonModelFit, err)
		}
		out[tau] = levelPredictions{cal: pc, test: pt}
	}
	return out, nil
}

func (e *entityProcessor) params(ctx context.Context, f fold.Fold, tau float64) (hyperparams.Params, error) {
	r, err := e.plan.hyper.Lookup(tau)
	if err != nil {
		return nil, skip(model.ReasonMissingHyperparameter, err)
	}
	if !r.Exact {
		e.logger.Debug(ctx, "hyperparameters from nearest level",
			logger.String("entity", f.Entity),
			logger.Int("fold", f.Index),
			logger.String("tau", quantile.Format(tau)),
			logger.String("key", r.Key),
		)
	}
	return r.Params, nil
}
