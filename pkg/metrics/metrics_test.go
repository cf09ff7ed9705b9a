package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with brewcast defaults", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "brewcast")
				So(manager.enabled, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.predictions.WithLabelValues("v1_old").Inc()

			Convey("Then metric names should carry the namespace and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_predictions_total")
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		SetEnabled(true)

		Convey("When recording predictions and feedback", func() {
			before := testutil.ToFloat64(globalManager.predictions.WithLabelValues("v2_new"))
			RecordPrediction("v2_new")
			RecordPredictionLatency(3.2)
			RecordFeedback(OutcomeSaved)
			RecordFeedback(OutcomeNoPrediction)

			Convey("Then counters should move", func() {
				So(testutil.ToFloat64(globalManager.predictions.WithLabelValues("v2_new")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.feedback.WithLabelValues(OutcomeNoPrediction)), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording log loads", func() {
			RecordLogLoad(LoadReload, 42, 3)
			RecordLogLoad(LoadHit, 0, 0)

			Convey("Then only reloads should update the row gauges", func() {
				So(testutil.ToFloat64(globalManager.logRows), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.logMalformedRows), ShouldEqual, 3)
			})
		})

		Convey("When publishing version summaries", func() {
			ResetVersionSummaries()
			score := 4.5
			UpdateVersionSummary("v1_old", 10, &score, nil)

			Convey("Then undefined aggregates should not be exported", func() {
				So(testutil.ToFloat64(globalManager.avgFeedbackScore.WithLabelValues("v1_old")), ShouldEqual, 4.5)
				So(testutil.CollectAndCount(globalManager.avgLatency), ShouldEqual, 0)
				So(testutil.ToFloat64(globalManager.rowsByVersion.WithLabelValues("v1_old")), ShouldEqual, 10)
			})
		})

		Convey("When metrics are disabled", func() {
			SetEnabled(false)
			defer SetEnabled(true)
			before := testutil.ToFloat64(globalManager.logAppendErrors)
			RecordLogAppendError()

			Convey("Then nothing should be recorded", func() {
				So(testutil.ToFloat64(globalManager.logAppendErrors), ShouldEqual, before)
			})
		})

		Convey("When scraping the custom registry", func() {
			RecordHTTPRequest("predict", "POST", "200")
			rec := httptest.NewRecorder()
			promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

			Convey("Then brewcast series should be exposed", func() {
				So(rec.Code, ShouldEqual, 200)
				So(strings.Contains(rec.Body.String(), "brewcast_http_requests_total"), ShouldBeTrue)
			})
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given a configured global manager", t, func() {
		Configure(
			WithNamespace("cafe"),
			WithCustomLabels(map[string]string{"surface": "monitor"}),
			WithRefreshInterval(3*time.Second),
		)
		Reset(func() { Configure() })

		Convey("Then series use the new namespace and labels on a fresh registry", func() {
			RecordSummaryRefresh()
			rec := httptest.NewRecorder()
			promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
			body := rec.Body.String()
			So(body, ShouldContainSubstring, `cafe_summary_refreshes_total{surface="monitor"} 1`)
			So(body, ShouldNotContainSubstring, "brewcast_")
			So(RefreshInterval(), ShouldEqual, 3*time.Second)
		})

		Convey("And disabling stops recording", func() {
			Configure(WithMetricsEnabled(false))
			RecordLogAppendError()
			So(testutil.ToFloat64(globalManager.logAppendErrors), ShouldEqual, 0)
		})
	})
}
