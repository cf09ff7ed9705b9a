// Package metrics provides Prometheus metrics for the brewcast surfaces.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Label values shared by callers.
const (
	OutcomeSaved        = "saved"
	OutcomeNoPrediction = "no_prediction"
	OutcomeInvalid      = "invalid"
	OutcomeFailed       = "failed"

	LoadHit     = "hit"
	LoadReload  = "reload"
	LoadMissing = "missing"
	LoadError   = "error"
)

// Manager manages all Prometheus metrics for brewcast.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Prediction surface
	predictions       *prometheus.CounterVec
	predictionErrors  *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	feedback          *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	modelReloads      *prometheus.CounterVec

	// Log store
	logRowsAppended  prometheus.Counter
	logAppendErrors  prometheus.Counter
	logAppendLatency prometheus.Histogram
	logLoads         *prometheus.CounterVec
	logRows          prometheus.Gauge
	logMalformedRows prometheus.Gauge
	logInvalidations prometheus.Counter

	// Monitoring surface summaries
	avgFeedbackScore *prometheus.GaugeVec
	avgLatency       *prometheus.GaugeVec
	rowsByVersion    *prometheus.GaugeVec
	summaryRefreshes prometheus.Counter

	// Mirror pipeline
	mirrorQueueSize     prometheus.Gauge
	mirrorQueueCapacity prometheus.Gauge
	mirrorEnqueueErrors prometheus.Counter
	mirrorRowsWritten   prometheus.Counter
	mirrorErrors        prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager on a fresh custom registry. Call it
// once at startup, before any handler captures GetRegistry.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "brewcast",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "predictions_total",
		Help: "Total number of model predictions served, by model version",
	}, []string{"model_version"})

	m.predictionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "prediction_errors_total",
		Help: "Total number of failed model invocations, by model version",
	}, []string{"model_version"})

	m.predictionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name:    "prediction_latency_milliseconds",
		Help:    "Wall-clock latency of the paired baseline+improved prediction call",
		Buckets: m.histogramBuckets,
	})

	m.feedback = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "feedback_submissions_total",
		Help: "Feedback submissions by outcome (saved, no_prediction, invalid, failed)",
	}, []string{"outcome"})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "sessions_active",
		Help: "Number of live prediction sessions",
	})

	m.modelReloads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "model_reloads_total",
		Help: "Model artifact loads, by artifact name and result",
	}, []string{"model", "result"})

	m.logRowsAppended = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "log_rows_appended_total",
		Help: "Rows appended to the log store",
	})

	m.logAppendErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "log_append_errors_total",
		Help: "Failed append operations against the log store",
	})

	m.logAppendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name:    "log_append_latency_milliseconds",
		Help:    "Latency of one append operation",
		Buckets: m.histogramBuckets,
	})

	m.logLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "log_loads_total",
		Help: "Log store reads by result (hit, reload, missing, error)",
	}, []string{"result"})

	m.logRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "log_rows",
		Help: "Rows in the most recent log store load",
	})

	m.logMalformedRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "log_malformed_rows",
		Help: "Rows skipped as unparsable in the most recent load",
	})

	m.logInvalidations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "log_cache_invalidations_total",
		Help: "Cache invalidations triggered by file change notifications",
	})

	m.avgFeedbackScore = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "avg_feedback_score",
		Help: "Mean feedback score per model version over the full log",
	}, []string{"model_version"})

	m.avgLatency = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "avg_latency_milliseconds",
		Help: "Mean logged latency per model version over the full log",
	}, []string{"model_version"})

	m.rowsByVersion = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "rows_by_version",
		Help: "Logged rows per model version",
	}, []string{"model_version"})

	m.summaryRefreshes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "summary_refreshes_total",
		Help: "Summary gauge refreshes",
	})

	m.mirrorQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "mirror_queue_size",
		Help: "Submissions waiting to be mirrored",
	})

	m.mirrorQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "mirror_queue_capacity",
		Help: "Capacity of the mirror queue",
	})

	m.mirrorEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "mirror_enqueue_errors_total",
		Help: "Submissions dropped because the mirror queue was full or closed",
	})

	m.mirrorRowsWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "mirror_rows_written_total",
		Help: "Rows written to the SQLite mirror",
	})

	m.mirrorErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "mirror_errors_total",
		Help: "Failed mirror writes",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "errors_by_endpoint_total",
		Help: "HTTP errors by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "system_memory_bytes",
		Help: "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: labels,
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})
}

// Prediction surface.

// RecordPrediction counts one served prediction for a model version.
func RecordPrediction(version string) {
	if !globalManager.enabled {
		return
	}
	globalManager.predictions.WithLabelValues(version).Inc()
}

// RecordPredictionError counts one failed model invocation.
func RecordPredictionError(version string) {
	if !globalManager.enabled {
		return
	}
	globalManager.predictionErrors.WithLabelValues(version).Inc()
}

// RecordPredictionLatency observes the paired call latency.
func RecordPredictionLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordFeedback counts a feedback submission by outcome.
func RecordFeedback(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.feedback.WithLabelValues(outcome).Inc()
}

// UpdateSessionsActive sets the live session count.
func UpdateSessionsActive(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsActive.Set(float64(n))
}

// RecordModelReload counts an artifact load attempt.
func RecordModelReload(model, result string) {
	if !globalManager.enabled {
		return
	}
	globalManager.modelReloads.WithLabelValues(model, result).Inc()
}

// Log store.

// RecordLogAppend records a successful append of n rows.
func RecordLogAppend(rows int, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.logRowsAppended.Add(float64(rows))
	globalManager.logAppendLatency.Observe(latencyMs)
}

// RecordLogAppendError counts a failed append.
func RecordLogAppendError() {
	if !globalManager.enabled {
		return
	}
	globalManager.logAppendErrors.Inc()
}

// RecordLogLoad records a read of the log store.
func RecordLogLoad(result string, rows, malformed int) {
	if !globalManager.enabled {
		return
	}
	globalManager.logLoads.WithLabelValues(result).Inc()
	if result == LoadReload || result == LoadMissing {
		globalManager.logRows.Set(float64(rows))
		globalManager.logMalformedRows.Set(float64(malformed))
	}
}

// RecordLogInvalidation counts a watcher-driven cache invalidation.
func RecordLogInvalidation() {
	if !globalManager.enabled {
		return
	}
	globalManager.logInvalidations.Inc()
}

// Monitoring surface.

// UpdateVersionSummary publishes the per-version aggregates. Nil means the
// aggregate is undefined and the series is removed.
func UpdateVersionSummary(version string, rows int, avgScore, avgLatency *float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.rowsByVersion.WithLabelValues(version).Set(float64(rows))
	if avgScore != nil {
		globalManager.avgFeedbackScore.WithLabelValues(version).Set(*avgScore)
	} else {
		globalManager.avgFeedbackScore.DeleteLabelValues(version)
	}
	if avgLatency != nil {
		globalManager.avgLatency.WithLabelValues(version).Set(*avgLatency)
	} else {
		globalManager.avgLatency.DeleteLabelValues(version)
	}
}

// ResetVersionSummaries drops all per-version series before a refresh.
func ResetVersionSummaries() {
	globalManager.rowsByVersion.Reset()
	globalManager.avgFeedbackScore.Reset()
	globalManager.avgLatency.Reset()
}

// RecordSummaryRefresh counts a summary refresh.
func RecordSummaryRefresh() {
	if !globalManager.enabled {
		return
	}
	globalManager.summaryRefreshes.Inc()
}

// Mirror pipeline.

// UpdateMirrorQueue sets the mirror queue depth and capacity.
func UpdateMirrorQueue(size, capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.mirrorQueueSize.Set(float64(size))
	globalManager.mirrorQueueCapacity.Set(float64(capacity))
}

// RecordMirrorEnqueueError counts a dropped mirror batch.
func RecordMirrorEnqueueError() {
	if !globalManager.enabled {
		return
	}
	globalManager.mirrorEnqueueErrors.Inc()
}

// RecordMirrorWrite counts rows written to the mirror.
func RecordMirrorWrite(rows int) {
	if !globalManager.enabled {
		return
	}
	globalManager.mirrorRowsWritten.Add(float64(rows))
}

// RecordMirrorError counts a failed mirror write.
func RecordMirrorError() {
	if !globalManager.enabled {
		return
	}
	globalManager.mirrorErrors.Inc()
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// SetEnabled toggles recording on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// RefreshInterval returns how often background gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
