package source_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/source"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"
)

var cols = source.Columns{Entity: "token", Timestamp: "timestamp", Target: "return_72h"}

const sample = `token,timestamp,ret_1h,vol_24h,return_72h
SOL,2025-01-01 00:00:00,0.1,5,0.02
SOL,2025-01-01 12:00:00,0.2,6,-0.01
JUP,2025-01-01,0.3,,0.04
JUP,1735776000,0.4,7,0.05
`

func TestReadCSV(t *testing.T) {
	Convey("Given a CSV panel with one incomplete row", t, func() {
		p, rep, err := source.ReadCSV(strings.NewReader(sample), cols)

		Convey("Then every non-key column is a feature", func() {
			So(err, ShouldBeNil)
			So(p.FeatureNames(), ShouldResemble, []string{"ret_1h", "vol_24h"})
		})

		Convey("Then the incomplete row is dropped and counted", func() {
			So(rep.Rows, ShouldEqual, 4)
			So(rep.Kept, ShouldEqual, 3)
			So(rep.Dropped, ShouldEqual, 1)
			So(p.Len(), ShouldEqual, 3)
		})

		Convey("Then unix seconds parse as UTC", func() {
			ents := p.Entities()
			So(ents[0].Entity, ShouldEqual, "JUP")
			So(p.Row(ents[0].Start).Timestamp, ShouldEqual, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
		})
	})

	Convey("Given explicit feature columns", t, func() {
		c := cols
		c.Features = []string{"vol_24h"}
		p, rep, err := source.ReadCSV(strings.NewReader(sample), c)

		So(err, ShouldBeNil)
		So(p.FeatureNames(), ShouldResemble, []string{"vol_24h"})
		So(rep.Dropped, ShouldEqual, 1)
	})

	Convey("Given a missing column", t, func() {
		c := cols
		c.Target = "return_24h"
		_, _, err := source.ReadCSV(strings.NewReader(sample), c)
		So(errors.Is(err, source.ErrMissingColumn), ShouldBeTrue)
	})

	Convey("Given a malformed value", t, func() {
		_, _, err := source.ReadCSV(strings.NewReader("token,timestamp,x,return_72h\nSOL,yesterday,1,2\n"), cols)
		So(errors.Is(err, source.ErrBadValue), ShouldBeTrue)

		_, _, err = source.ReadCSV(strings.NewReader("token,timestamp,x,return_72h\nSOL,2025-01-01,abc,2\n"), cols)
		So(errors.Is(err, source.ErrBadValue), ShouldBeTrue)
	})

	Convey("Given duplicate keys", t, func() {
		_, _, err := source.ReadCSV(strings.NewReader("token,timestamp,x,return_72h\nSOL,2025-01-01,1,2\nSOL,2025-01-01,3,4\n"), cols)
		So(errors.Is(err, panel.ErrDuplicateKey), ShouldBeTrue)
	})

	Convey("Given a header only", t, func() {
		_, _, err := source.ReadCSV(strings.NewReader("token,timestamp,return_72h\n"), cols)
		So(errors.Is(err, source.ErrEmptyTable), ShouldBeTrue)
	})
}

func TestParseTimestamp(t *testing.T) {
	Convey("Given supported layouts", t, func() {
		want := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
		for _, s := range []string{"2025-02-03T04:05:06Z", "2025-02-03 04:05:06", "2025-02-03T06:05:06+02:00", "1738555506"} {
			got, err := source.ParseTimestamp(s)
			So(err, ShouldBeNil)
			So(got.Equal(want), ShouldBeTrue)
		}
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a CSV file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "panel.csv")
		So(os.WriteFile(path, []byte(sample), 0o600), ShouldBeNil)

		p, _, err := source.Load(path, "", cols)
		So(err, ShouldBeNil)
		So(p.Len(), ShouldEqual, 3)
	})

	Convey("Given an XLSX workbook", t, func() {
		path := filepath.Join(t.TempDir(), "panel.xlsx")
		f := excelize.NewFile()
		sheet := "features"
		So(f.SetSheetName(f.GetSheetName(0), sheet), ShouldBeNil)
		lines := strings.Split(strings.TrimSpace(sample), "\n")
		for r, line := range lines {
			for c, v := range strings.Split(line, ",") {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				So(err, ShouldBeNil)
				So(f.SetCellStr(sheet, cell, v), ShouldBeNil)
			}
		}
		So(f.SaveAs(path), ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		Convey("When loading the first sheet", func() {
			p, rep, err := source.Load(path, "", cols)

			Convey("Then it matches the CSV reading", func() {
				So(err, ShouldBeNil)
				So(p.Len(), ShouldEqual, 3)
				So(rep.Dropped, ShouldEqual, 1)
				So(p.FeatureNames(), ShouldResemble, []string{"ret_1h", "vol_24h"})
			})
		})

		Convey("When naming a missing sheet", func() {
			_, _, err := source.LoadXLSX(path, "nope", cols)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given an unknown extension", t, func() {
		_, _, err := source.Load("panel.parquet", "", cols)
		So(errors.Is(err, source.ErrUnsupportedFormat), ShouldBeTrue)
	})
}

func TestWriteCSV(t *testing.T) {
	Convey("Given a loaded panel", t, func() {
		p, _, err := source.ReadCSV(strings.NewReader(sample), cols)
		So(err, ShouldBeNil)

		Convey("When written back and re-read", func() {
			var buf bytes.Buffer
			So(source.WriteCSV(&buf, p, cols), ShouldBeNil)
			again, rep, err := source.ReadCSV(&buf, cols)

			Convey("Then nothing changes", func() {
				So(err, ShouldBeNil)
				So(rep.Dropped, ShouldEqual, 0)
				So(again.Len(), ShouldEqual, p.Len())
				So(again.FeatureNames(), ShouldResemble, p.FeatureNames())
				for i := 0; i < p.Len(); i++ {
					So(again.Row(i).Timestamp.Equal(p.Row(i).Timestamp), ShouldBeTrue)
					So(again.Row(i).Features, ShouldResemble, p.Row(i).Features)
					So(again.Row(i).Target, ShouldEqual, p.Row(i).Target)
				}
			})
		})
	})
}
