package app_test

import (
	"context"
	"testing"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/app"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/regressor"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/synthetic"
	. "github.com/smartystreets/goconvey/convey"
)

func TestIntegration_Families(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	Convey("Given a synthetic panel of three 200-row entities", t, func() {
		ctx := context.Background()
		p, err := synthetic.Generate(ctx, synthetic.WithEntities(3), synthetic.WithRows(200), synthetic.WithSeed(11))
		So(err, ShouldBeNil)

		hp := hyperparams.Map{
			"0.05": {"num_iterations": 40, "n_estimators": 30, "tol": 1e-6},
			"0.1":  {"num_iterations": 40, "n_estimators": 30, "tol": 1e-6},
			"0.5":  {"num_iterations": 40, "n_estimators": 30, "tol": 1e-6},
			"0.9":  {"num_iterations": 40, "n_estimators": 30, "tol": 1e-6},
			"0.95": {"num_iterations": 40, "n_estimators": 30, "tol": 1e-6},
		}

		for _, family := range regressor.Families() {
			Convey("When backtesting with the "+family+" family", func() {
				pred, err := regressor.New(family)
				So(err, ShouldBeNil)
				res, err := app.New(
					app.WithPredictor(pred),
					app.WithHyperparams(hp),
					app.WithWorkerCount(3),
				).Run(ctx, p)
				So(err, ShouldBeNil)
				sum := res.Summary

				Convey("Then every entity yields nine folds", func() {
					So(sum.Entities, ShouldEqual, 3)
					So(sum.Folds, ShouldEqual, 27)
					So(sum.FoldsCompleted, ShouldEqual, 27)
					So(sum.FoldsSkipped, ShouldEqual, 0)
					So(sum.SkipReasons[model.ReasonModelFit], ShouldEqual, 0)
				})

				Convey("Then the first fold uses the documented windows", func() {
					e := p.Entities()[0]
					var firstTS []int
					for i, pr := range res.Predictions {
						if pr.Entity == e.Entity && pr.Fold == 1 && pr.Tau == 0.5 {
							firstTS = append(firstTS, i)
						}
					}
					So(firstTS, ShouldHaveLength, 6)
					So(res.Predictions[firstTS[0]].Timestamp, ShouldEqual, p.Row(e.Start+144).Timestamp)
					So(res.Predictions[firstTS[5]].Timestamp, ShouldEqual, p.Row(e.Start+149).Timestamp)
				})

				Convey("Then predictions are ordered in tau and coverage is plausible", func() {
					So(monotone(res.Predictions), ShouldBeTrue)
					So(sum.Coverage, ShouldBeBetweenOrEqual, 0.4, 1)
					So(sum.MeanWidth, ShouldBeGreaterThan, 0)
				})
			})
		}
	})
}
