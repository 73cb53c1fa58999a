package panel_test

import (
	"errors"
	"testing"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func row(entity string, hour int, target float64) panel.Row {
	return panel.Row{Entity: entity, Timestamp: t0.Add(time.Duration(hour) * time.Hour), Features: []float64{float64(hour)}, Target: target}
}

func TestNew(t *testing.T) {
	Convey("Given rows from two entities in arbitrary order", t, func() {
		rows := []panel.Row{row("SOL", 2, 2), row("JUP", 1, 10), row("SOL", 0, 0), row("SOL", 1, 1), row("JUP", 0, 9)}
		p, err := panel.New([]string{"hour"}, rows)
		So(err, ShouldBeNil)

		Convey("Then entities are partitioned into contiguous ranges", func() {
			ents := p.Entities()
			So(ents, ShouldResemble, []panel.EntityRange{
				{Entity: "JUP", Start: 0, End: 2},
				{Entity: "SOL", Start: 2, End: 5},
			})
			So(ents[1].Len(), ShouldEqual, 3)
		})

		Convey("Then rows within an entity are time ordered", func() {
			x, y, ts := p.Slice(2, 5)
			So(y, ShouldResemble, []float64{0, 1, 2})
			So(x[2], ShouldResemble, []float64{2})
			So(ts[0].Before(ts[1]), ShouldBeTrue)
		})

		Convey("Then the caller's slice is not reordered", func() {
			So(rows[0].Entity, ShouldEqual, "SOL")
			So(p.Len(), ShouldEqual, 5)
			So(p.FeatureNames(), ShouldResemble, []string{"hour"})
		})
	})

	Convey("Given invalid rows", t, func() {
		Convey("Then an empty panel is rejected", func() {
			_, err := panel.New(nil, nil)
			So(errors.Is(err, panel.ErrEmptyPanel), ShouldBeTrue)
		})

		Convey("Then duplicate keys are rejected", func() {
			_, err := panel.New([]string{"hour"}, []panel.Row{row("SOL", 1, 0), row("SOL", 1, 5)})
			So(errors.Is(err, panel.ErrDuplicateKey), ShouldBeTrue)
		})

		Convey("Then ragged feature vectors are rejected", func() {
			bad := row("SOL", 2, 0)
			bad.Features = []float64{1, 2}
			_, err := panel.New([]string{"hour"}, []panel.Row{row("SOL", 1, 0), bad})
			So(errors.Is(err, panel.ErrRaggedRow), ShouldBeTrue)
		})

		Convey("Then rows without entity are rejected", func() {
			_, err := panel.New([]string{"hour"}, []panel.Row{row("", 1, 0)})
			So(errors.Is(err, panel.ErrMissingEntity), ShouldBeTrue)
		})
	})
}
