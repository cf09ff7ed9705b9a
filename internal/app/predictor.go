// Package service wires the domain packages into the two surfaces:
// Predictor serves orders and feedback, Monitor serves the dashboard.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/brewcast/internal/adapters/logstore"
	"github.com/okian/brewcast/internal/adapters/mq/queue"
	"github.com/okian/brewcast/internal/adapters/session"
	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/internal/domain/regression"
	"github.com/okian/brewcast/pkg/logger"
	"github.com/okian/brewcast/pkg/metrics"
)

// ModelSource hands out the current version of a model.
type ModelSource interface {
	Get(ctx context.Context) (regression.Model, error)
}

// Enqueuer accepts batches for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, b queue.Batch) error
}

// Receipt describes a saved feedback submission.
type Receipt struct {
	SubmissionID string `json:"submission_id"`
	Rows         int    `json:"rows"`
}

// Predictor runs both models for an order and logs rated predictions.
type Predictor struct {
	baseline ModelSource
	improved ModelSource
	log      logstore.Appender
	mirror   Enqueuer
	catalog  feedback.Catalog
	now      func() time.Time
	logger   logger.Logger
}

// NewPredictor creates a predictor with configuration options.
func NewPredictor(baseline, improved ModelSource, log logstore.Appender, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		baseline: baseline,
		improved: improved,
		log:      log,
		catalog:  feedback.DefaultCatalog(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("predictor")
	}
	return p
}

// Catalog returns the accepted order inputs.
func (p *Predictor) Catalog() feedback.Catalog { return p.catalog }

// Predict normalizes order, runs the baseline on size alone and the improved
// model on all inputs, and stores the result as the session's pending
// prediction.
func (p *Predictor) Predict(ctx context.Context, sess *session.Session, order feedback.Order) (feedback.Prediction, error) {
	if sess == nil {
		return feedback.Prediction{}, ErrNoSession
	}
	order, err := order.Normalize(p.catalog)
	if err != nil {
		return feedback.Prediction{}, err
	}

	baseline, err := p.baseline.Get(ctx)
	if err != nil {
		return feedback.Prediction{}, fmt.Errorf("%w: %s: %w", ErrPrediction, feedback.VersionBaseline, err)
	}
	improved, err := p.improved.Get(ctx)
	if err != nil {
		return feedback.Prediction{}, fmt.Errorf("%w: %s: %w", ErrPrediction, feedback.VersionImproved, err)
	}

	start := time.Now()
	base, err := baseline.Predict(ctx, regression.Features{
		Numeric: map[string]float64{regression.FeatureSizeKg: order.SizeKg},
	})
	if err != nil {
		metrics.RecordPredictionError(string(feedback.VersionBaseline))
		return feedback.Prediction{}, fmt.Errorf("%w: %s: %w", ErrPrediction, feedback.VersionBaseline, err)
	}
	imp, err := improved.Predict(ctx, regression.Features{
		Numeric: map[string]float64{regression.FeatureSizeKg: order.SizeKg},
		Categorical: map[string]string{
			regression.FeatureCoffeeType: order.CoffeeType,
			regression.FeatureRoastType:  order.RoastType,
		},
	})
	if err != nil {
		metrics.RecordPredictionError(string(feedback.VersionImproved))
		return feedback.Prediction{}, fmt.Errorf("%w: %s: %w", ErrPrediction, feedback.VersionImproved, err)
	}
	latency := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

	pred := feedback.Prediction{
		Order:        order,
		InputSummary: order.Summary(),
		Baseline:     base,
		Improved:     imp,
		LatencyMS:    latency,
		At:           p.now().UTC(),
	}
	sess.SetPrediction(pred)

	metrics.RecordPrediction(string(feedback.VersionBaseline))
	metrics.RecordPrediction(string(feedback.VersionImproved))
	metrics.RecordPredictionLatency(latency)
	p.logger.Debug(ctx, "prediction ready",
		logger.String("session", sess.ID),
		logger.String("input", pred.InputSummary),
		logger.Float64("baseline", base),
		logger.Float64("improved", imp),
		logger.Float64("latency_ms", latency),
	)
	return pred, nil
}

// SubmitFeedback logs the session's pending prediction with fb as two rows
// in one append. Without a pending prediction nothing is written and
// ErrNoPrediction is returned.
func (p *Predictor) SubmitFeedback(ctx context.Context, sess *session.Session, fb feedback.Feedback) (Receipt, error) {
	if sess == nil {
		return Receipt{}, ErrNoSession
	}
	if err := fb.Validate(); err != nil {
		metrics.RecordFeedback(metrics.OutcomeInvalid)
		return Receipt{}, err
	}
	pred, ok := sess.Prediction()
	if !ok {
		metrics.RecordFeedback(metrics.OutcomeNoPrediction)
		return Receipt{}, ErrNoPrediction
	}

	id := feedback.NewSubmissionID()
	rows := feedback.NewSubmission(pred, fb, p.now(), id)
	if err := p.log.Append(ctx, rows...); err != nil {
		metrics.RecordFeedback(metrics.OutcomeFailed)
		p.logger.Error(ctx, "failed to append feedback",
			logger.String("session", sess.ID),
			logger.String("submission_id", id),
			logger.Error(err),
		)
		return Receipt{}, fmt.Errorf("%w: %w", ErrLogWrite, err)
	}
	metrics.RecordFeedback(metrics.OutcomeSaved)

	if p.mirror != nil {
		if err := p.mirror.Enqueue(ctx, queue.Batch{SubmissionID: id, Records: rows}); err != nil {
			p.logger.Warn(ctx, "mirror batch dropped",
				logger.String("submission_id", id),
				logger.Error(err),
			)
		}
	}

	p.logger.Info(ctx, "feedback saved",
		logger.String("session", sess.ID),
		logger.String("submission_id", id),
		logger.Int("score", fb.Score),
	)
	return Receipt{SubmissionID: id, Rows: len(rows)}, nil
}
