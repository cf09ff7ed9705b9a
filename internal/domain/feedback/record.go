// Package feedback holds the log schema shared by the prediction and
// monitoring surfaces: orders, pending predictions and log records.
package feedback

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ModelVersion identifies which model produced a row.
type ModelVersion string

// ModelType is the human label paired with a version.
type ModelType string

// Known model versions and their labels.
const (
	VersionBaseline ModelVersion = "v1_old"
	VersionImproved ModelVersion = "v2_new"

	TypeBaseline ModelType = "baseline"
	TypeImproved ModelType = "improved"
)

// Score bounds for user ratings.
const (
	MinScore     = 1
	MaxScore     = 5
	DefaultScore = 4
)

// Record is one row of the log store.
type Record struct {
	Timestamp     time.Time    `json:"timestamp"`
	SubmissionID  string       `json:"submission_id,omitempty"`
	ModelVersion  ModelVersion `json:"model_version"`
	ModelType     ModelType    `json:"model_type"`
	InputSummary  string       `json:"input_summary"`
	CoffeeType    string       `json:"coffee_type"`
	RoastType     string       `json:"roast_type"`
	Prediction    float64      `json:"prediction"`
	LatencyMS     *float64     `json:"latency_ms"`
	FeedbackScore *int         `json:"feedback_score"`
	FeedbackText  string       `json:"feedback_text"`
}

// Prediction is the pending result of one "run prediction" trigger.
type Prediction struct {
	Order        Order     `json:"order"`
	InputSummary string    `json:"input_summary"`
	Baseline     float64   `json:"baseline"`
	Improved     float64   `json:"improved"`
	LatencyMS    float64   `json:"latency_ms"`
	At           time.Time `json:"at"`
}

// Feedback is the user's rating of a prediction.
type Feedback struct {
	Score int    `json:"feedback_score"`
	Text  string `json:"feedback_text"`
}

// Validate checks the score bounds.
func (f Feedback) Validate() error {
	if f.Score < MinScore || f.Score > MaxScore {
		return fmt.Errorf("%w: score %d outside %d..%d", ErrInvalidFeedback, f.Score, MinScore, MaxScore)
	}
	return nil
}

// NewSubmissionID returns a lexically sortable identifier for one submission.
func NewSubmissionID() string {
	return ulid.Make().String()
}

// NewSubmission builds the two rows logged for one feedback event. Both rows
// share everything except model_version, model_type and prediction.
func NewSubmission(p Prediction, fb Feedback, now time.Time, id string) []Record {
	score := fb.Score
	latency := p.LatencyMS
	base := Record{
		Timestamp:     now.UTC(),
		SubmissionID:  id,
		InputSummary:  p.InputSummary,
		CoffeeType:    p.Order.CoffeeType,
		RoastType:     p.Order.RoastType,
		LatencyMS:     &latency,
		FeedbackScore: &score,
		FeedbackText:  fb.Text,
	}

	baseline := base
	baseline.ModelVersion = VersionBaseline
	baseline.ModelType = TypeBaseline
	baseline.Prediction = p.Baseline

	improved := base
	improved.ModelVersion = VersionImproved
	improved.ModelType = TypeImproved
	improved.Prediction = p.Improved

	return []Record{baseline, improved}
}
