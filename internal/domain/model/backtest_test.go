package model_test

import (
	"testing"
	"time"

	model "github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestFoldMetric(t *testing.T) {
	convey.Convey("Given fold metric rows", t, func() {
		convey.Convey("When the row is a level row", func() {
			m := model.FoldMetric{Entity: "SOL", Fold: 1, Tau: 0.05, Pinball: 0.2}

			convey.Convey("Then the label is the shortest decimal form", func() {
				convey.So(m.Label(), convey.ShouldEqual, "0.05")
			})
		})

		convey.Convey("When the row is an interval row", func() {
			m := model.FoldMetric{Entity: "SOL", Fold: 1, Interval: true, Coverage: 0.8, Width: 1.2}

			convey.Convey("Then the label is interval", func() {
				convey.So(m.Label(), convey.ShouldEqual, model.IntervalLabel)
			})
		})
	})
}

func TestEntityTask(t *testing.T) {
	convey.Convey("Given an entity task", t, func() {
		task := model.EntityTask{Entity: "JUP", Start: 200, End: 350}

		convey.Convey("Then its length is the row span", func() {
			convey.So(task.Len(), convey.ShouldEqual, 150)
		})
	})
}

func TestSummary(t *testing.T) {
	convey.Convey("Given a finished summary", t, func() {
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		s := model.Summary{Started: start, Finished: start.Add(90 * time.Second)}

		convey.Convey("Then the duration is the wall time", func() {
			convey.So(s.Duration(), convey.ShouldEqual, 90*time.Second)
		})
	})
}
