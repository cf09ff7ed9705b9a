package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/brewcast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should carry the default form bounds", func() {
			convey.So(cfg.PredictAddr, convey.ShouldEqual, ":8501")
			convey.So(cfg.MonitorAddr, convey.ShouldEqual, ":8502")
			convey.So(cfg.LogPath, convey.ShouldEqual, "monitoring_logs.csv")
			convey.So(cfg.SizeMinKg, convey.ShouldEqual, 0.2)
			convey.So(cfg.SizeMaxKg, convey.ShouldEqual, 2.5)
			convey.So(cfg.SizeStepKg, convey.ShouldEqual, 0.1)
			convey.So(cfg.SizeDefaultKg, convey.ShouldEqual, 1.0)
			convey.So(cfg.CoffeeTypes, convey.ShouldResemble, []string{"Arabica", "Robusta", "Excelsa", "Liberica"})
			convey.So(cfg.RoastTypes, convey.ShouldResemble, []string{"Light", "Medium", "Dark"})
			convey.So(cfg.RecentCommentsLimit, convey.ShouldEqual, 10)
			convey.So(cfg.SessionTTL(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "brewcast")
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsRefresh(), convey.ShouldEqual, 10*time.Second)
		})

		convey.Convey("And the defaults should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with broken fields", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty log path", func(c *config.Config) { c.LogPath = " " }},
			{"zero step", func(c *config.Config) { c.SizeStepKg = 0 }},
			{"inverted size range", func(c *config.Config) { c.SizeMinKg, c.SizeMaxKg = 2, 1 }},
			{"default out of range", func(c *config.Config) { c.SizeDefaultKg = 9 }},
			{"no coffee types", func(c *config.Config) { c.CoffeeTypes = nil }},
			{"no roast types", func(c *config.Config) { c.RoastTypes = nil }},
			{"zero comments cap", func(c *config.Config) { c.RecentCommentsLimit = 0 }},
			{"zero session ttl", func(c *config.Config) { c.SessionTTLMinutes = 0 }},
			{"empty metrics namespace", func(c *config.Config) { c.MetricsNamespace = "" }},
			{"dashed metrics namespace", func(c *config.Config) { c.MetricsNamespace = "brew-cast" }},
			{"zero metrics refresh", func(c *config.Config) { c.MetricsRefreshSeconds = 0 }},
		}

		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" should be rejected as invalid", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
