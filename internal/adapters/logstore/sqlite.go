package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/okian/brewcast/internal/domain/feedback"
)

const mirrorSchema = `CREATE TABLE IF NOT EXISTS log_records(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	submission_id TEXT,
	model_version TEXT NOT NULL,
	model_type TEXT,
	input_summary TEXT,
	coffee_type TEXT,
	roast_type TEXT,
	prediction REAL,
	latency_ms REAL,
	feedback_score INTEGER,
	feedback_text TEXT
);
CREATE INDEX IF NOT EXISTS log_records_submission ON log_records(submission_id);`

// SQLiteMirror copies appended records into a SQLite table for ad-hoc SQL.
// The CSV file stays authoritative.
type SQLiteMirror struct {
	db *sql.DB
}

// OpenSQLiteMirror opens or creates the mirror database at path.
func OpenSQLiteMirror(ctx context.Context, path string) (*SQLiteMirror, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open mirror %s: %w", path, err)
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, mirrorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create mirror schema: %w", err)
	}
	return &SQLiteMirror{db: db}, nil
}

// Write inserts records in one transaction.
func (m *SQLiteMirror) Write(ctx context.Context, records []feedback.Record) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO log_records(
		timestamp, submission_id, model_version, model_type, input_summary,
		coffee_type, roast_type, prediction, latency_ms, feedback_score, feedback_text)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		var latency sql.NullFloat64
		if r.LatencyMS != nil {
			latency = sql.NullFloat64{Float64: *r.LatencyMS, Valid: true}
		}
		var score sql.NullInt64
		if r.FeedbackScore != nil {
			score = sql.NullInt64{Int64: int64(*r.FeedbackScore), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.Timestamp.UTC().Format(time.RFC3339Nano), r.SubmissionID,
			string(r.ModelVersion), string(r.ModelType), r.InputSummary,
			r.CoffeeType, r.RoastType, r.Prediction, latency, score, r.FeedbackText,
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.SubmissionID, err)
		}
	}
	return tx.Commit()
}

// CountBySubmission returns how many rows a submission produced.
func (m *SQLiteMirror) CountBySubmission(ctx context.Context, submissionID string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM log_records WHERE submission_id = ?`, submissionID).Scan(&n)
	return n, err
}

// Count returns the total number of mirrored rows.
func (m *SQLiteMirror) Count(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM log_records`).Scan(&n)
	return n, err
}

// Close releases the database.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}
