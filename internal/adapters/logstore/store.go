// Package logstore persists feedback records to the shared CSV log and reads
// them back for the monitoring surface.
//
// The CSV file is the only channel between the two surfaces. Appends are
// serialized in-process; other processes are not coordinated, so readers
// tolerate partial lines.
package logstore

import (
	"context"

	"github.com/okian/brewcast/internal/domain/feedback"
)

// Column names in canonical order.
const (
	ColTimestamp     = "timestamp"
	ColSubmissionID  = "submission_id"
	ColModelVersion  = "model_version"
	ColModelType     = "model_type"
	ColInputSummary  = "input_summary"
	ColCoffeeType    = "coffee_type"
	ColRoastType     = "roast_type"
	ColPrediction    = "prediction"
	ColLatencyMS     = "latency_ms"
	ColFeedbackScore = "feedback_score"
	ColFeedbackText  = "feedback_text"
)

// Columns is the header written to new files.
var Columns = []string{
	ColTimestamp,
	ColSubmissionID,
	ColModelVersion,
	ColModelType,
	ColInputSummary,
	ColCoffeeType,
	ColRoastType,
	ColPrediction,
	ColLatencyMS,
	ColFeedbackScore,
	ColFeedbackText,
}

// Snapshot is the result of one full read.
type Snapshot struct {
	// Records are sorted ascending by timestamp.
	Records []feedback.Record
	// Malformed counts skipped rows.
	Malformed int
	// Exists is false when the file is absent.
	Exists bool
}

// Empty reports whether there is nothing to show.
func (s Snapshot) Empty() bool { return len(s.Records) == 0 }

// Appender writes the rows of one submission.
type Appender interface {
	Append(ctx context.Context, records ...feedback.Record) error
}

// Loader reads the whole log.
type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}
