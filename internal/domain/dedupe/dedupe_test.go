package dedupe_test

import (
	"sync"
	"testing"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDeduper(t *testing.T) {
	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(16))
		ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("When a key is recorded twice", func() {
			first := d.SeenAndRecord(dedupe.KeyOf("SOL", ts))
			second := d.SeenAndRecord(dedupe.KeyOf("SOL", ts))

			Convey("Then only the second call reports a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When keys differ by entity or instant", func() {
			So(d.SeenAndRecord(dedupe.KeyOf("SOL", ts)), ShouldBeFalse)
			So(d.SeenAndRecord(dedupe.KeyOf("JUP", ts)), ShouldBeFalse)
			So(d.SeenAndRecord(dedupe.KeyOf("SOL", ts.Add(time.Hour))), ShouldBeFalse)

			Convey("Then all are new", func() {
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When a key is unrecorded", func() {
			d.SeenAndRecord(dedupe.KeyOf("SOL", ts))
			d.Unrecord(dedupe.KeyOf("SOL", ts))
			d.Unrecord(dedupe.KeyOf("missing", ts))

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(dedupe.KeyOf("SOL", ts)), ShouldBeFalse)
			})
		})

		Convey("When many goroutines race on the same key", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(dedupe.KeyOf("RACE", ts)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(fresh, ShouldEqual, 1)
			})
		})
	})
}
