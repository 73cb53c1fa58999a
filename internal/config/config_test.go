package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Quantiles, convey.ShouldResemble, []float64{0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95})
			convey.So(cfg.LowerAnchor, convey.ShouldEqual, 0.1)
			convey.So(cfg.TargetCoverage, convey.ShouldEqual, 0.8)
			convey.So(cfg.TrainLen, convey.ShouldEqual, 120)
			convey.So(cfg.CalLen, convey.ShouldEqual, 24)
			convey.So(cfg.TestLen, convey.ShouldEqual, 6)
			convey.So(cfg.Family, convey.ShouldEqual, "gbt")
			convey.So(cfg.WidthFraction, convey.ShouldEqual, 0.15)
			convey.So(cfg.MaxLambda, convey.ShouldEqual, 10.0)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the digest is stable and tracks changes", func() {
			other := config.New(context.Background())
			convey.So(cfg.Digest(), convey.ShouldEqual, other.Digest())
			other.TrainLen = 90
			convey.So(cfg.Digest(), convey.ShouldNotEqual, other.Digest())
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configurations", t, func() {
		cases := map[string]func(*config.Config){
			"asymmetric grid":       func(c *config.Config) { c.Quantiles = []float64{0.1, 0.5, 0.8} },
			"unsorted grid":         func(c *config.Config) { c.Quantiles = []float64{0.5, 0.1, 0.9} },
			"anchor not in grid":    func(c *config.Config) { c.LowerAnchor = 0.2 },
			"zero train window":     func(c *config.Config) { c.TrainLen = 0 },
			"negative test window":  func(c *config.Config) { c.TestLen = -6 },
			"coverage above one":    func(c *config.Config) { c.TargetCoverage = 1.5 },
			"unknown family":        func(c *config.Config) { c.Family = "lstm" },
			"unknown log level":     func(c *config.Config) { c.LogLevel = "trace" },
			"target reused":         func(c *config.Config) { c.TimestampColumn = c.TargetColumn },
			"target as feature":     func(c *config.Config) { c.FeatureColumns = []string{"f1", c.TargetColumn} },
			"non-positive lambda":   func(c *config.Config) { c.MaxLambda = 0 },
			"grid with level at 1":  func(c *config.Config) { c.Quantiles = []float64{0.1, 0.5, 1} },
		}
		for name, mutate := range cases {
			convey.Convey("When the config has "+name, func() {
				cfg := config.New(context.Background())
				mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then validation fails as a configuration error", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})
}
