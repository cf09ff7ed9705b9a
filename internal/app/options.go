package service

import (
	"time"

	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/pkg/logger"
)

// PredictorOption applies a configuration option to the Predictor.
type PredictorOption func(*Predictor)

// WithCatalog sets the accepted order inputs.
func WithCatalog(c feedback.Catalog) PredictorOption {
	return func(p *Predictor) {
		p.catalog = c
	}
}

// WithMirror forwards every saved submission to a background sink.
func WithMirror(m Enqueuer) PredictorOption {
	return func(p *Predictor) {
		if m != nil {
			p.mirror = m
		}
	}
}

// WithClock replaces time.Now for submission timestamps.
func WithClock(now func() time.Time) PredictorOption {
	return func(p *Predictor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPredictorLogger sets a custom logger for the predictor.
func WithPredictorLogger(l logger.Logger) PredictorOption {
	return func(p *Predictor) {
		if l != nil {
			p.logger = l
		}
	}
}

// MonitorOption applies a configuration option to the Monitor.
type MonitorOption func(*Monitor)

// WithCommentLimit caps the recent comments list.
func WithCommentLimit(n int) MonitorOption {
	return func(m *Monitor) {
		if n > 0 {
			m.commentLimit = n
		}
	}
}

// WithMonitorLogger sets a custom logger for the monitor.
func WithMonitorLogger(l logger.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}
