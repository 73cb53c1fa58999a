package app_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/app"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/config"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/fold"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/regressor"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/stats"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

// quantilePredictor predicts the empirical tau-quantile of the train target
// for every row.
type quantilePredictor struct{}

func (quantilePredictor) Family() regressor.Family { return "quantile" }

func (quantilePredictor) Fit(_ context.Context, train regressor.Dataset, tau float64, _ *regressor.Dataset, _ hyperparams.Params) (regressor.Handle, error) {
	q := stats.Quantile(train.Y, tau)
	return regressor.NewHandle("quantile", tau, len(train.X[0]), func([]float64) float64 { return q }), nil
}

func (quantilePredictor) Predict(h regressor.Handle, x [][]float64) ([]float64, error) {
	return regressor.Evaluate(h, x)
}

// crossingPredictor predicts 0.5-tau, so higher levels get lower values.
type crossingPredictor struct{ quantilePredictor }

func (crossingPredictor) Fit(_ context.Context, train regressor.Dataset, tau float64, _ *regressor.Dataset, _ hyperparams.Params) (regressor.Handle, error) {
	return regressor.NewHandle("quantile", tau, len(train.X[0]), func([]float64) float64 { return 0.5 - tau }), nil
}

// failingPredictor fails whenever the train slice starts with the marker
// target.
type failingPredictor struct{ quantilePredictor }

const marker = 999.0

func (f failingPredictor) Fit(ctx context.Context, train regressor.Dataset, tau float64, eval *regressor.Dataset, p hyperparams.Params) (regressor.Handle, error) {
	if train.Y[0] == marker {
		return regressor.Handle{}, fmt.Errorf("%w: marker row", regressor.ErrModelFit)
	}
	return f.quantilePredictor.Fit(ctx, train, tau, eval, p)
}

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// buildPanel makes len(sizes) entities with a smooth target and two features.
func buildPanel(sizes map[string]int) *panel.Panel {
	var rows []panel.Row
	for entity, n := range sizes {
		for i := 0; i < n; i++ {
			x := float64(i)
			rows = append(rows, panel.Row{
				Entity:    entity,
				Timestamp: t0.Add(time.Duration(i) * time.Hour),
				Features:  []float64{x, math.Sin(x)},
				Target:    0.1 * math.Sin(x/3),
			})
		}
	}
	p, err := panel.New([]string{"x", "sin"}, rows)
	So(err, ShouldBeNil)
	return p
}

var smallWindows = fold.Lengths{Train: 20, Cal: 10, Test: 5}

func newService(opts ...app.Option) *app.Service {
	base := []app.Option{
		app.WithPredictor(quantilePredictor{}),
		app.WithWindows(smallWindows),
		app.WithWorkerCount(2),
	}
	return app.New(append(base, opts...)...)
}

// monotone reports whether predictions of each (entity, fold, timestamp)
// are non-decreasing in tau.
func monotone(preds []model.PredictionRecord) bool {
	type key struct {
		entity string
		fold   int
		ts     time.Time
	}
	last := map[key]model.PredictionRecord{}
	for _, p := range preds {
		k := key{p.Entity, p.Fold, p.Timestamp}
		if prev, ok := last[k]; ok && (p.Tau < prev.Tau || p.YPred < prev.YPred) {
			return false
		}
		last[k] = p
	}
	return true
}

func TestService_Validate(t *testing.T) {
	Convey("Given a service with default options", t, func() {
		So(app.New().Validate(), ShouldBeNil)
	})

	Convey("Given invalid run parameters", t, func() {
		cases := []struct {
			name string
			opt  app.Option
		}{
			{"asymmetric grid", app.WithGrid([]float64{0.1, 0.5, 0.8})},
			{"anchor not a level", app.WithLowerAnchor(0.2)},
			{"zero test window", app.WithWindows(fold.Lengths{Train: 10, Cal: 5})},
			{"coverage of one", app.WithTargetCoverage(1)},
			{"negative ceiling", app.WithMaxLambda(-1)},
		}
		for _, tc := range cases {
			Convey("Then "+tc.name+" is a configuration error", func() {
				svc := app.New(tc.opt)
				So(errors.Is(svc.Validate(), config.ErrInvalidConfig), ShouldBeTrue)

				res, err := svc.Run(context.Background(), buildPanel(map[string]int{"A": 60}))
				So(res, ShouldBeNil)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		}
	})

	Convey("Given no panel", t, func() {
		_, err := app.New().Run(context.Background(), nil)
		So(errors.Is(err, app.ErrNilPanel), ShouldBeTrue)
	})
}

func TestService_Run(t *testing.T) {
	Convey("Given two full entities and one short entity", t, func() {
		p := buildPanel(map[string]int{"SOL": 50, "JUP": 50, "BONK": 20})

		Convey("When the backtest runs", func() {
			res, err := newService().Run(context.Background(), p)
			So(err, ShouldBeNil)
			sum := res.Summary

			Convey("Then each full entity yields four folds", func() {
				So(sum.Entities, ShouldEqual, 3)
				So(sum.EntitiesInsufficient, ShouldEqual, 1)
				So(sum.Folds, ShouldEqual, 8)
				So(sum.FoldsCompleted, ShouldEqual, 8)
				So(sum.FoldsSkipped, ShouldEqual, 0)
				So(sum.TestRows, ShouldEqual, 40)
				So(sum.RunID, ShouldNotBeBlank)
			})

			Convey("Then every grid level is predicted for every test row", func() {
				So(res.Predictions, ShouldHaveLength, 8*5*7)
				So(res.Metrics, ShouldHaveLength, 8*8)
				So(monotone(res.Predictions), ShouldBeTrue)
			})

			Convey("Then output is sorted by entity, fold and level", func() {
				first := res.Predictions[0]
				So(first.Entity, ShouldEqual, "JUP")
				So(first.Fold, ShouldEqual, 1)
				So(first.Tau, ShouldEqual, 0.05)
				So(first.Timestamp, ShouldEqual, t0.Add(30*time.Hour))

				last := res.Metrics[len(res.Metrics)-1]
				So(last.Entity, ShouldEqual, "SOL")
				So(last.Fold, ShouldEqual, 4)
				So(last.Interval, ShouldBeTrue)
			})

			Convey("Then interval rows carry the applied widening", func() {
				for _, m := range res.Metrics {
					if m.Interval {
						So(m.Lambda, ShouldBeGreaterThanOrEqualTo, m.LambdaSearch)
						So(m.Width, ShouldBeGreaterThan, 0)
					} else {
						So(m.Pinball, ShouldBeGreaterThanOrEqualTo, 0)
					}
				}
				So(sum.MeanPinball, ShouldHaveLength, 7)
				So(sum.Coverage, ShouldBeBetweenOrEqual, 0, 1)
			})
		})
	})
}

func TestService_FoldIsolation(t *testing.T) {
	Convey("Given an entity whose first fold cannot be fitted", t, func() {
		var rows []panel.Row
		for i := 0; i < 50; i++ {
			y := 0.01 * float64(i%7)
			if i == 0 {
				y = marker
			}
			rows = append(rows, panel.Row{Entity: "BAD", Timestamp: t0.Add(time.Duration(i) * time.Hour), Features: []float64{float64(i)}, Target: y})
			rows = append(rows, panel.Row{Entity: "GOOD", Timestamp: t0.Add(time.Duration(i) * time.Hour), Features: []float64{float64(i)}, Target: y + 1})
		}
		p, err := panel.New([]string{"x"}, rows)
		So(err, ShouldBeNil)

		Convey("When the backtest runs", func() {
			res, err := newService(app.WithPredictor(failingPredictor{})).Run(context.Background(), p)
			So(err, ShouldBeNil)

			Convey("Then only that fold is skipped", func() {
				So(res.Summary.FoldsSkipped, ShouldEqual, 1)
				So(res.Summary.FoldsCompleted, ShouldEqual, 7)
				So(res.Summary.SkipReasons[model.ReasonModelFit], ShouldEqual, 1)

				skipped := res.Outcomes[0]
				So(skipped.Entity, ShouldEqual, "BAD")
				So(skipped.Fold, ShouldEqual, 1)
				So(skipped.Status, ShouldEqual, model.FoldSkipped)
				So(errors.Is(skipped.Err, regressor.ErrModelFit), ShouldBeTrue)

				for _, pr := range res.Predictions {
					So(pr.Entity == "BAD" && pr.Fold == 1, ShouldBeFalse)
				}
			})
		})
	})

	Convey("Given hyperparameters without a usable key", t, func() {
		p := buildPanel(map[string]int{"SOL": 40})
		hp := hyperparams.Map{"default": {"l2": 0.1}}

		Convey("When the backtest runs", func() {
			res, err := newService(app.WithHyperparams(hp)).Run(context.Background(), p)
			So(err, ShouldBeNil)

			Convey("Then every fold is skipped as missing", func() {
				So(res.Summary.FoldsCompleted, ShouldEqual, 0)
				So(res.Summary.SkipReasons[model.ReasonMissingHyperparameter], ShouldEqual, res.Summary.Folds)
				So(res.Predictions, ShouldBeEmpty)
			})
		})
	})
}

func TestService_Crossing(t *testing.T) {
	Convey("Given a family whose levels cross", t, func() {
		p := buildPanel(map[string]int{"SOL": 45})

		Convey("When the backtest runs", func() {
			res, err := newService(app.WithPredictor(crossingPredictor{})).Run(context.Background(), p)
			So(err, ShouldBeNil)

			Convey("Then every row is repaired into order", func() {
				So(res.Summary.FoldsCompleted, ShouldEqual, 3)
				So(res.Summary.RepairedRows, ShouldEqual, 3*5)
				So(monotone(res.Predictions), ShouldBeTrue)
			})
		})
	})
}

func TestService_Degenerate(t *testing.T) {
	Convey("Given a tiny lambda ceiling", t, func() {
		p := buildPanel(map[string]int{"SOL": 35})
		svc := newService(app.WithPredictor(crossingPredictor{}), app.WithMaxLambda(0.01))

		Convey("When the backtest runs", func() {
			res, err := svc.Run(context.Background(), p)
			So(err, ShouldBeNil)

			Convey("Then the fold completes flagged degenerate", func() {
				So(res.Summary.FoldsCompleted, ShouldEqual, 1)
				So(res.Summary.FoldsDegenerate, ShouldEqual, 1)
				iv := res.Metrics[len(res.Metrics)-1]
				So(iv.Interval, ShouldBeTrue)
				So(iv.Degenerate, ShouldBeTrue)
				So(iv.LambdaSearch, ShouldEqual, 0.01)
			})
		})
	})
}

func TestService_Cancel(t *testing.T) {
	Convey("Given a canceled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("When the backtest runs", func() {
			_, err := newService().Run(ctx, buildPanel(map[string]int{"SOL": 50}))

			Convey("Then the cancellation is reported", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}
