package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/repository"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given results merged out of order", t, func() {
		store := repository.NewMemoryStore(repository.WithCapacityHint(8))
		err := store.Merge(ctx, []model.EntityResult{
			{
				Entity: "WIF",
				Status: model.EntityOK,
				Folds:  []model.FoldOutcome{{Entity: "WIF", Fold: 2}, {Entity: "WIF", Fold: 1}},
				Predictions: []model.PredictionRecord{
					{Entity: "WIF", Fold: 2, Tau: 0.1, Timestamp: t0},
					{Entity: "WIF", Fold: 1, Tau: 0.9, Timestamp: t0.Add(time.Hour)},
					{Entity: "WIF", Fold: 1, Tau: 0.9, Timestamp: t0},
					{Entity: "WIF", Fold: 1, Tau: 0.1, Timestamp: t0},
				},
				Metrics: []model.FoldMetric{
					{Entity: "WIF", Fold: 1, Interval: true},
					{Entity: "WIF", Fold: 1, Tau: 0.9},
					{Entity: "WIF", Fold: 1, Tau: 0.1},
				},
			},
			{
				Entity:      "BONK",
				Status:      model.EntityOK,
				Predictions: []model.PredictionRecord{{Entity: "BONK", Fold: 9, Tau: 0.5, Timestamp: t0}},
			},
		})
		So(err, ShouldBeNil)

		Convey("Then predictions sort by entity, fold, tau and timestamp", func() {
			p := store.Predictions(ctx)
			So(len(p), ShouldEqual, 5)
			So(p[0].Entity, ShouldEqual, "BONK")
			So(p[1].Fold, ShouldEqual, 1)
			So(p[1].Tau, ShouldEqual, 0.1)
			So(p[2].Tau, ShouldEqual, 0.9)
			So(p[2].Timestamp, ShouldEqual, t0)
			So(p[3].Timestamp, ShouldEqual, t0.Add(time.Hour))
			So(p[4].Fold, ShouldEqual, 2)
		})

		Convey("Then interval metrics follow the levels of their fold", func() {
			m := store.Metrics(ctx)
			So(m[0].Tau, ShouldEqual, 0.1)
			So(m[1].Tau, ShouldEqual, 0.9)
			So(m[2].Interval, ShouldBeTrue)
		})

		Convey("Then outcomes sort by fold", func() {
			o := store.Outcomes(ctx)
			So(o[0].Fold, ShouldEqual, 1)
			So(o[1].Fold, ShouldEqual, 2)
		})

		Convey("Then entities are listed and retrievable", func() {
			So(store.Count(ctx), ShouldEqual, 2)
			es := store.Entities(ctx)
			So(es[0].Entity, ShouldEqual, "BONK")
			r, err := store.Entity(ctx, "WIF")
			So(err, ShouldBeNil)
			So(len(r.Folds), ShouldEqual, 2)
			_, err = store.Entity(ctx, "JUP")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then merging an entity twice is rejected without side effects", func() {
			err := store.Merge(ctx, []model.EntityResult{{Entity: "NEW"}, {Entity: "WIF"}})
			So(errors.Is(err, repository.ErrDuplicateEntity), ShouldBeTrue)
			So(store.Count(ctx), ShouldEqual, 2)
		})

		Convey("Then returned slices are copies", func() {
			p := store.Predictions(ctx)
			p[0].Entity = "mutated"
			So(store.Predictions(ctx)[0].Entity, ShouldEqual, "BONK")
		})
	})
}
