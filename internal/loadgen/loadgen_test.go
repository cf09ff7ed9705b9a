package loadgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/brewcast/internal/adapters/http/api"
	"github.com/okian/brewcast/internal/adapters/logstore"
	"github.com/okian/brewcast/internal/adapters/session"
	service "github.com/okian/brewcast/internal/app"
	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/internal/domain/regression"
	"github.com/okian/brewcast/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startSurfaces(t *testing.T) (predictURL, monitorURL string) {
	t.Helper()
	models := filepath.Join("..", "..", "models")
	v1, err := regression.NewCache(filepath.Join(models, "revenue_model_v1.json"))
	if err != nil {
		t.Fatalf("v1: %v", err)
	}
	v2, err := regression.NewCache(filepath.Join(models, "revenue_model_v2.json"))
	if err != nil {
		t.Fatalf("v2: %v", err)
	}

	logPath := filepath.Join(t.TempDir(), "logs.csv")
	store := logstore.NewCSVStore(logPath)

	pmux := http.NewServeMux()
	api.NewPredictServer(service.NewPredictor(v1, v2, store), session.NewInMemoryStore()).Register(context.Background(), pmux)
	psrv := httptest.NewServer(pmux)
	t.Cleanup(psrv.Close)

	mmux := http.NewServeMux()
	api.NewMonitorServer(service.NewMonitor(logstore.NewCachedReader(store, logPath))).Register(context.Background(), mmux)
	msrv := httptest.NewServer(mmux)
	t.Cleanup(msrv.Close)

	return psrv.URL, msrv.URL
}

func TestRun(t *testing.T) {
	Convey("Given both surfaces running on one log", t, func() {
		predictURL, monitorURL := startSurfaces(t)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		Reset(cancel)

		Convey("A seed run writes two rows per session and verifies them", func() {
			stats, err := Run(ctx, Config{
				BaseURL: predictURL, MonitorURL: monitorURL,
				Submissions: 12, Workers: 4, Timeout: 5 * time.Second,
			})
			So(err, ShouldBeNil)
			So(stats.Successful, ShouldEqual, 12)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.RowsBefore, ShouldEqual, 0)
			So(stats.RowsAfter, ShouldEqual, 24)
			So(stats.Verified, ShouldBeTrue)

			Convey("And a second run counts from the existing rows", func() {
				again, err := Run(ctx, Config{
					BaseURL: predictURL, MonitorURL: monitorURL,
					Submissions: 3, Workers: 2,
				})
				So(err, ShouldBeNil)
				So(again.RowsBefore, ShouldEqual, 24)
				So(again.RowsAfter, ShouldEqual, 30)
			})
		})

		Convey("Without a monitor URL verification is skipped", func() {
			stats, err := Run(ctx, Config{BaseURL: predictURL, Submissions: 2, Workers: 1})
			So(err, ShouldBeNil)
			So(stats.Successful, ShouldEqual, 2)
			So(stats.Verified, ShouldBeFalse)
		})
	})
}

func TestRunErrors(t *testing.T) {
	Convey("Given bad inputs", t, func() {
		Convey("Invalid config is rejected", func() {
			_, err := Run(context.Background(), Config{BaseURL: "http://x", Submissions: 0, Workers: 1})
			So(errors.Is(err, ErrBadConfig), ShouldBeTrue)
			_, err = Run(context.Background(), Config{Submissions: 1, Workers: 1})
			So(errors.Is(err, ErrBadConfig), ShouldBeTrue)
		})

		Convey("An unreachable surface is unhealthy", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL
			srv.Close()
			_, err := Run(context.Background(), Config{BaseURL: url, Submissions: 1, Workers: 1, Timeout: time.Second})
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})
}

func TestGenerator(t *testing.T) {
	Convey("Random inputs stay inside the catalog", t, func() {
		c := feedback.DefaultCatalog()
		catalog := Catalog{
			SizeMinKg: c.SizeMinKg, SizeMaxKg: c.SizeMaxKg, SizeStepKg: c.SizeStepKg,
			CoffeeTypes: c.CoffeeTypes, RoastTypes: c.RoastTypes,
		}
		for i := 0; i < 200; i++ {
			o := randomOrder(catalog)
			So(o.SizeKg, ShouldBeBetweenOrEqual, c.SizeMinKg, c.SizeMaxKg+1e-9)
			So(c.CoffeeTypes, ShouldContain, o.CoffeeType)
			So(c.RoastTypes, ShouldContain, o.RoastType)

			fb := randomFeedback()
			So(fb.Score, ShouldBeBetweenOrEqual, feedback.MinScore, feedback.MaxScore)
		}
	})
}
