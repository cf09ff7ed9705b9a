// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers defaults, an optional YAML file and BREWCAST_* env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config contains process configuration for both surfaces.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// PredictAddr is the listen address of the prediction surface.
	PredictAddr string `koanf:"predict_addr"`

	// MonitorAddr is the listen address of the monitoring surface.
	MonitorAddr string `koanf:"monitor_addr"`

	// LogPath is the shared CSV log store.
	LogPath string `koanf:"log_path"`

	// BaselineModelPath and ImprovedModelPath point at the JSON model artifacts.
	BaselineModelPath string `koanf:"baseline_model_path"`
	ImprovedModelPath string `koanf:"improved_model_path"`

	// Size bounds for the order form, in kilograms.
	SizeMinKg     float64 `koanf:"size_min_kg"`
	SizeMaxKg     float64 `koanf:"size_max_kg"`
	SizeStepKg    float64 `koanf:"size_step_kg"`
	SizeDefaultKg float64 `koanf:"size_default_kg"`

	// CoffeeTypes and RoastTypes enumerate the accepted categorical inputs.
	CoffeeTypes []string `koanf:"coffee_types"`
	RoastTypes  []string `koanf:"roast_types"`

	// RecentCommentsLimit caps the dashboard's comment list.
	RecentCommentsLimit int `koanf:"recent_comments_limit"`

	// SessionTTLMinutes expires idle prediction sessions.
	SessionTTLMinutes int `koanf:"session_ttl_minutes"`

	// SummaryRefresh is a cron spec for refreshing dashboard gauges.
	SummaryRefresh string `koanf:"summary_refresh"`

	// WatchLog enables file-change notifications on the log store.
	WatchLog bool `koanf:"watch_log"`

	// MirrorSQLitePath enables the SQLite mirror when non-empty.
	MirrorSQLitePath string `koanf:"mirror_sqlite_path"`

	// MirrorQueueSize bounds pending mirror batches.
	MirrorQueueSize int `koanf:"mirror_queue_size"`

	// MetricsNamespace prefixes every Prometheus series on /healthz.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsEnabled turns metric recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshSeconds is the system gauge sampling period.
	MetricsRefreshSeconds int `koanf:"metrics_refresh_seconds"`
}

var metricsNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		PredictAddr:         ":8501",
		MonitorAddr:         ":8502",
		LogPath:             "monitoring_logs.csv",
		BaselineModelPath:   "models/revenue_model_v1.json",
		ImprovedModelPath:   "models/revenue_model_v2.json",
		SizeMinKg:           0.2,
		SizeMaxKg:           2.5,
		SizeStepKg:          0.1,
		SizeDefaultKg:       1.0,
		CoffeeTypes:         []string{"Arabica", "Robusta", "Excelsa", "Liberica"},
		RoastTypes:          []string{"Light", "Medium", "Dark"},
		RecentCommentsLimit: 10,
		SessionTTLMinutes:   60,
		SummaryRefresh:      "@every 30s",
		WatchLog:            true,
		MirrorSQLitePath:    "",
		MirrorQueueSize:     1024,

		MetricsNamespace:      "brewcast",
		MetricsEnabled:        true,
		MetricsRefreshSeconds: 10,
	}
}

// SessionTTL returns the idle session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// MetricsRefresh returns the system gauge sampling period.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshSeconds) * time.Second
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.PredictAddr) == "":
		return fmt.Errorf("%w: predict_addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.MonitorAddr) == "":
		return fmt.Errorf("%w: monitor_addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.LogPath) == "":
		return fmt.Errorf("%w: log_path must not be empty", ErrInvalidConfig)
	case c.SizeStepKg <= 0:
		return fmt.Errorf("%w: size_step_kg must be positive", ErrInvalidConfig)
	case c.SizeMinKg <= 0 || c.SizeMaxKg < c.SizeMinKg:
		return fmt.Errorf("%w: size range [%g, %g] is invalid", ErrInvalidConfig, c.SizeMinKg, c.SizeMaxKg)
	case c.SizeDefaultKg < c.SizeMinKg || c.SizeDefaultKg > c.SizeMaxKg:
		return fmt.Errorf("%w: size_default_kg %g outside [%g, %g]", ErrInvalidConfig, c.SizeDefaultKg, c.SizeMinKg, c.SizeMaxKg)
	case len(c.CoffeeTypes) == 0:
		return fmt.Errorf("%w: coffee_types must not be empty", ErrInvalidConfig)
	case len(c.RoastTypes) == 0:
		return fmt.Errorf("%w: roast_types must not be empty", ErrInvalidConfig)
	case c.RecentCommentsLimit <= 0:
		return fmt.Errorf("%w: recent_comments_limit must be positive", ErrInvalidConfig)
	case c.SessionTTLMinutes <= 0:
		return fmt.Errorf("%w: session_ttl_minutes must be positive", ErrInvalidConfig)
	case c.MirrorQueueSize <= 0:
		return fmt.Errorf("%w: mirror_queue_size must be positive", ErrInvalidConfig)
	case !metricsNamespacePattern.MatchString(c.MetricsNamespace):
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric name prefix", ErrInvalidConfig, c.MetricsNamespace)
	case c.MetricsRefreshSeconds <= 0:
		return fmt.Errorf("%w: metrics_refresh_seconds must be positive", ErrInvalidConfig)
	}
	return nil
}
