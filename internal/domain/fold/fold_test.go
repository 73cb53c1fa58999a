package fold_test

import (
	"errors"
	"testing"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/fold"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSplitter(t *testing.T) {
	Convey("Given an entity with 200 rows and windows 120/24/6", t, func() {
		s, err := fold.NewSplitter("SOL", 200, fold.Lengths{Train: 120, Cal: 24, Test: 6})
		So(err, ShouldBeNil)
		folds := s.All()

		Convey("Then the first fold is train=[0,120) cal=[120,144) test=[144,150)", func() {
			So(folds[0].Index, ShouldEqual, 1)
			So(folds[0].Train, ShouldResemble, fold.Window{Start: 0, End: 120})
			So(folds[0].Cal, ShouldResemble, fold.Window{Start: 120, End: 144})
			So(folds[0].Test, ShouldResemble, fold.Window{Start: 144, End: 150})
		})

		Convey("Then every fold that fits is produced and the partial tail is dropped", func() {
			So(len(folds), ShouldEqual, 9)
			So(s.Count(), ShouldEqual, 9)
			last := folds[len(folds)-1]
			So(last.Test, ShouldResemble, fold.Window{Start: 192, End: 198})
		})

		Convey("Then windows are contiguous, disjoint, ordered and full length", func() {
			for i, f := range folds {
				So(f.Train.End, ShouldEqual, f.Cal.Start)
				So(f.Cal.End, ShouldEqual, f.Test.Start)
				So(f.Train.Len(), ShouldEqual, 120)
				So(f.Cal.Len(), ShouldEqual, 24)
				So(f.Test.Len(), ShouldEqual, 6)
				So(f.Test.End, ShouldBeLessThanOrEqualTo, 200)
				So(f.Entity, ShouldEqual, "SOL")
				if i > 0 {
					So(f.Train.Start-folds[i-1].Train.Start, ShouldEqual, 6)
					So(f.Index, ShouldEqual, folds[i-1].Index+1)
				}
			}
		})

		Convey("When iterating lazily and resetting", func() {
			first, ok := s.Next()
			So(ok, ShouldBeTrue)
			_, _ = s.Next()
			s.Reset()
			again, ok := s.Next()

			Convey("Then the sequence restarts", func() {
				So(ok, ShouldBeTrue)
				So(again, ShouldResemble, first)
			})
		})

		Convey("When exhausted", func() {
			n := 0
			for _, ok := s.Next(); ok; _, ok = s.Next() {
				n++
			}

			Convey("Then Next keeps returning false", func() {
				So(n, ShouldEqual, 9)
				_, ok := s.Next()
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given an entity exactly one fold long", t, func() {
		s, _ := fold.NewSplitter("BONK", 150, fold.Lengths{Train: 120, Cal: 24, Test: 6})
		So(s.Count(), ShouldEqual, 1)
		So(s.Sufficient(), ShouldBeNil)
	})

	Convey("Given an entity shorter than one fold", t, func() {
		s, _ := fold.NewSplitter("WIF", 149, fold.Lengths{Train: 120, Cal: 24, Test: 6})

		Convey("Then it yields no folds and reports insufficient history", func() {
			_, ok := s.Next()
			So(ok, ShouldBeFalse)
			So(s.All(), ShouldBeEmpty)
			So(errors.Is(s.Sufficient(), fold.ErrInsufficientWindow), ShouldBeTrue)
		})
	})

	Convey("Given non-positive lengths", t, func() {
		_, err := fold.NewSplitter("X", 100, fold.Lengths{Train: 10, Cal: 0, Test: 5})
		So(errors.Is(err, fold.ErrInvalidLengths), ShouldBeTrue)
	})
}
