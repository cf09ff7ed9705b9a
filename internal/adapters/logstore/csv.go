package logstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/pkg/metrics"
)

const defaultFileMode = 0o644

// Accepted timestamp layouts, newest first. Older files were written
// without a zone and are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// CSVStore implements Appender and Loader on a single CSV file.
type CSVStore struct {
	path string
	mode uint32

	mu sync.Mutex
}

// NewCSVStore returns a store for path. The file is created lazily.
func NewCSVStore(path string, opts ...CSVOption) *CSVStore {
	s := &CSVStore{path: path, mode: defaultFileMode}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the log file location.
func (s *CSVStore) Path() string { return s.path }

// Append writes records in one write call. A new or empty file gets the
// canonical header; an existing file keeps its own column order.
func (s *CSVStore) Append(ctx context.Context, records ...feedback.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.append(records)
	if err != nil {
		metrics.RecordLogAppendError()
		return fmt.Errorf("%w: %s: %w", ErrAppend, s.path, err)
	}
	metrics.RecordLogAppend(len(records), float64(time.Since(start).Microseconds())/1000)
	return nil
}

func (s *CSVStore) append(records []feedback.Record) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fs.FileMode(s.mode))
	if err != nil {
		return err
	}
	defer f.Close()

	header, tail, err := s.existingHeader()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(tail)
	w := csv.NewWriter(&buf)
	if header == nil {
		header = Columns
		if err := w.Write(header); err != nil {
			return err
		}
	}
	for i := range records {
		if err := w.Write(encodeRow(header, &records[i])); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}
	return nil
}

// existingHeader returns the header of a non-empty file, or nil for a new
// one. tail is what must precede new rows when the last line was cut short:
// a newline, and when the cut left a quoted field open, a closing quote plus
// an extra field so the broken row fails the field count.
func (s *CSVStore) existingHeader() (header []string, tail string, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, "", err
	}
	if info.Size() == 0 {
		return nil, "", nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return nil, "", err
	}

	r := csv.NewReader(io.NewSectionReader(f, 0, info.Size()))
	r.FieldsPerRecord = -1
	header, err = r.Read()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	header = normalizeHeader(header)

	if last[0] == '\n' {
		return header, "", nil
	}
	open, err := quoteOpen(io.NewSectionReader(f, 0, info.Size()))
	if err != nil {
		return nil, "", err
	}
	if open {
		return header, "\",\n", nil
	}
	return header, "\n", nil
}

// quoteOpen reports whether r ends inside a quoted field. Complete records
// always hold an even number of quote bytes, escaped quotes included.
func quoteOpen(r io.Reader) (bool, error) {
	var (
		buf   = make([]byte, 32*1024)
		count int
	)
	for {
		n, err := r.Read(buf)
		count += bytes.Count(buf[:n], []byte{'"'})
		if errors.Is(err, io.EOF) {
			return count%2 == 1, nil
		}
		if err != nil {
			return false, err
		}
	}
}

// Load reads and parses the whole file. A missing file is an empty snapshot.
func (s *CSVStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %w", ErrLoad, s.path, err)
	}
	snap.Exists = true
	return snap, nil
}

// Decode parses a CSV log stream. Rows that do not parse are counted in
// Malformed and skipped.
func Decode(r io.Reader) (Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	header = normalizeHeader(header)
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, required := range []string{ColTimestamp, ColModelVersion} {
		if _, ok := idx[required]; !ok {
			return Snapshot{}, fmt.Errorf("%w: missing column %q", ErrInvalidHeader, required)
		}
	}

	var snap Snapshot
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			snap.Malformed++
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		if len(row) != len(header) {
			snap.Malformed++
			continue
		}
		rec, err := decodeRow(idx, row)
		if err != nil {
			snap.Malformed++
			continue
		}
		rec.BackfillCategories()
		snap.Records = append(snap.Records, rec)
	}

	sort.SliceStable(snap.Records, func(i, j int) bool {
		return snap.Records[i].Timestamp.Before(snap.Records[j].Timestamp)
	})
	return snap, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}

func encodeRow(header []string, r *feedback.Record) []string {
	row := make([]string, len(header))
	for i, col := range header {
		switch col {
		case ColTimestamp:
			row[i] = r.Timestamp.UTC().Format(time.RFC3339Nano)
		case ColSubmissionID:
			row[i] = r.SubmissionID
		case ColModelVersion:
			row[i] = string(r.ModelVersion)
		case ColModelType:
			row[i] = string(r.ModelType)
		case ColInputSummary:
			row[i] = r.InputSummary
		case ColCoffeeType:
			row[i] = r.CoffeeType
		case ColRoastType:
			row[i] = r.RoastType
		case ColPrediction:
			row[i] = formatFloat(r.Prediction)
		case ColLatencyMS:
			if r.LatencyMS != nil {
				row[i] = formatFloat(*r.LatencyMS)
			}
		case ColFeedbackScore:
			if r.FeedbackScore != nil {
				row[i] = strconv.Itoa(*r.FeedbackScore)
			}
		case ColFeedbackText:
			row[i] = r.FeedbackText
		}
	}
	return row
}

func decodeRow(idx map[string]int, row []string) (feedback.Record, error) {
	get := func(col string) string {
		if i, ok := idx[col]; ok {
			return row[i]
		}
		return ""
	}

	var rec feedback.Record
	ts, err := parseTimestamp(get(ColTimestamp))
	if err != nil {
		return rec, err
	}
	rec.Timestamp = ts
	rec.SubmissionID = get(ColSubmissionID)
	rec.ModelVersion = feedback.ModelVersion(get(ColModelVersion))
	rec.ModelType = feedback.ModelType(get(ColModelType))
	rec.InputSummary = get(ColInputSummary)
	rec.CoffeeType = strings.TrimSpace(get(ColCoffeeType))
	rec.RoastType = strings.TrimSpace(get(ColRoastType))
	rec.FeedbackText = get(ColFeedbackText)

	if v := strings.TrimSpace(get(ColPrediction)); v != "" {
		if rec.Prediction, err = strconv.ParseFloat(v, 64); err != nil {
			return rec, fmt.Errorf("prediction: %w", err)
		}
	}
	if rec.LatencyMS, err = parseOptionalFloat(get(ColLatencyMS)); err != nil {
		return rec, fmt.Errorf("latency_ms: %w", err)
	}
	score, err := parseOptionalFloat(get(ColFeedbackScore))
	if err != nil {
		return rec, fmt.Errorf("feedback_score: %w", err)
	}
	if score != nil {
		s := int(math.Round(*score))
		rec.FeedbackScore = &s
	}
	return rec, nil
}

func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: unknown layout", v)
}

// parseOptionalFloat maps blanks and NaN to nil.
func parseOptionalFloat(v string) (*float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return &f, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
