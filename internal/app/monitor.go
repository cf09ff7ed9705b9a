package service

import (
	"context"

	"github.com/okian/brewcast/internal/adapters/logstore"
	"github.com/okian/brewcast/internal/domain/analytics"
	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/pkg/logger"
	"github.com/okian/brewcast/pkg/metrics"
)

const defaultCommentLimit = 10

// Monitor builds the dashboard from the log store.
type Monitor struct {
	reader       logstore.Loader
	commentLimit int
	logger       logger.Logger
}

// NewMonitor creates a monitor with configuration options.
func NewMonitor(reader logstore.Loader, opts ...MonitorOption) *Monitor {
	m := &Monitor{reader: reader, commentLimit: defaultCommentLimit}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("monitor")
	}
	return m
}

// Dashboard returns the view for the selected version. An absent or empty
// log yields ErrNoLogs and nothing is computed.
func (m *Monitor) Dashboard(ctx context.Context, version string) (analytics.Dashboard, error) {
	records, err := m.records(ctx)
	if err != nil {
		return analytics.Dashboard{}, err
	}
	return analytics.Build(records, version, m.commentLimit), nil
}

// Logs returns the raw rows of the selected version.
func (m *Monitor) Logs(ctx context.Context, version string) ([]feedback.Record, error) {
	records, err := m.records(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.Filter(records, analytics.NormalizeVersion(version)), nil
}

// Refresh publishes per-version gauges from the current log.
func (m *Monitor) Refresh(ctx context.Context) error {
	snap, err := m.reader.Load(ctx)
	if err != nil {
		return err
	}
	metrics.ResetVersionSummaries()
	for _, s := range analytics.CompareVersions(snap.Records) {
		metrics.UpdateVersionSummary(s.Version, s.Rows, s.AvgScore, s.AvgLatencyMS)
	}
	metrics.RecordSummaryRefresh()
	if snap.Malformed > 0 {
		m.logger.Warn(ctx, "skipped malformed log rows", logger.Int("malformed", snap.Malformed))
	}
	return nil
}

// OnLogChanged drops cached reads and refreshes the gauges. It is the
// callback of the log file watcher.
func (m *Monitor) OnLogChanged(ctx context.Context) {
	if inv, ok := m.reader.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	if err := m.Refresh(ctx); err != nil {
		m.logger.Error(ctx, "summary refresh failed", logger.Error(err))
	}
}

func (m *Monitor) records(ctx context.Context) ([]feedback.Record, error) {
	snap, err := m.reader.Load(ctx)
	if err != nil {
		m.logger.Error(ctx, "failed to load logs", logger.Error(err))
		return nil, err
	}
	if snap.Empty() {
		return nil, ErrNoLogs
	}
	return snap.Records, nil
}
