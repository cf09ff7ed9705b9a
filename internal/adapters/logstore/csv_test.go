package logstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/brewcast/internal/domain/feedback"
)

func submission(t0 time.Time, score int, text string) []feedback.Record {
	order := feedback.Order{SizeKg: 1.0, CoffeeType: "Arabica", RoastType: "Medium"}
	p := feedback.Prediction{
		Order:        order,
		InputSummary: order.Summary(),
		Baseline:     22.8,
		Improved:     25.05,
		LatencyMS:    0.731,
	}
	return feedback.NewSubmission(p, feedback.Feedback{Score: score, Text: text}, t0, feedback.NewSubmissionID())
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(raw)
}

func TestCSVStoreAppend(t *testing.T) {
	Convey("Given a store on a fresh path", t, func() {
		path := filepath.Join(t.TempDir(), "logs.csv")
		store := NewCSVStore(path)
		ctx := context.Background()
		t0 := time.Date(2026, 5, 1, 12, 0, 0, 123000000, time.UTC)

		Convey("Loading a missing file yields an empty snapshot", func() {
			snap, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(snap.Exists, ShouldBeFalse)
			So(snap.Empty(), ShouldBeTrue)
		})

		Convey("The first append writes the header and two rows", func() {
			So(store.Append(ctx, submission(t0, 4, "nice, \"strong\" brew")...), ShouldBeNil)

			lines := strings.Split(strings.TrimRight(readFile(t, path), "\n"), "\n")
			So(lines, ShouldHaveLength, 3)
			So(lines[0], ShouldEqual, strings.Join(Columns, ","))
			So(lines[1], ShouldStartWith, "2026-05-01T12:00:00.123Z,")

			snap, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(snap.Exists, ShouldBeTrue)
			So(snap.Malformed, ShouldEqual, 0)
			So(snap.Records, ShouldHaveLength, 2)

			r := snap.Records[1]
			So(r.ModelVersion, ShouldEqual, feedback.VersionImproved)
			So(r.ModelType, ShouldEqual, feedback.TypeImproved)
			So(r.InputSummary, ShouldEqual, "size=1.0kg, coffee=Arabica, roast=Medium")
			So(r.CoffeeType, ShouldEqual, "Arabica")
			So(r.Prediction, ShouldEqual, 25.05)
			So(*r.LatencyMS, ShouldEqual, 0.731)
			So(*r.FeedbackScore, ShouldEqual, 4)
			So(r.FeedbackText, ShouldEqual, "nice, \"strong\" brew")
			So(r.Timestamp.Equal(t0), ShouldBeTrue)
		})

		Convey("Later appends do not repeat the header", func() {
			So(store.Append(ctx, submission(t0, 4, "")...), ShouldBeNil)
			So(store.Append(ctx, submission(t0.Add(time.Minute), 2, "")...), ShouldBeNil)
			So(strings.Count(readFile(t, path), "timestamp,"), ShouldEqual, 1)

			snap, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(snap.Records, ShouldHaveLength, 4)
		})

		Convey("An empty file gets a header", func() {
			So(os.WriteFile(path, nil, 0o600), ShouldBeNil)
			So(store.Append(ctx, submission(t0, 3, "")...), ShouldBeNil)
			So(readFile(t, path), ShouldStartWith, "timestamp,submission_id,")
		})

		Convey("Appending nothing writes nothing", func() {
			So(store.Append(ctx), ShouldBeNil)
			_, err := os.Stat(path)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})

		Convey("Concurrent appends keep rows intact", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = store.Append(ctx, submission(t0.Add(time.Duration(i)*time.Second), 5, "ok")...)
				}(i)
			}
			wg.Wait()

			snap, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(snap.Records, ShouldHaveLength, 40)
			So(snap.Malformed, ShouldEqual, 0)
		})
	})
}

func TestCSVStoreLegacyFiles(t *testing.T) {
	Convey("Given a legacy file without structured categories", t, func() {
		path := filepath.Join(t.TempDir(), "logs.csv")
		legacy := "timestamp,model_version,model_type,input_summary,prediction,latency_ms,feedback_score,feedback_text\n" +
			"2025-11-02 10:00:01.500000,v2_new,improved,\"size=1.2kg, coffee=Robusta, roast=Dark\",31.2,1.4,5,great\n" +
			"2025-11-02 09:00:00,v1_old,baseline,size=0.5kg,12.0,,,\n"
		So(os.WriteFile(path, []byte(legacy), 0o600), ShouldBeNil)
		store := NewCSVStore(path)
		ctx := context.Background()

		Convey("Rows load sorted with categories back-filled", func() {
			snap, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(snap.Records, ShouldHaveLength, 2)

			first, second := snap.Records[0], snap.Records[1]
			So(first.ModelVersion, ShouldEqual, feedback.VersionBaseline)
			So(first.CoffeeType, ShouldBeEmpty)
			So(first.LatencyMS, ShouldBeNil)
			So(first.FeedbackScore, ShouldBeNil)
			So(second.CoffeeType, ShouldEqual, "Robusta")
			So(second.RoastType, ShouldEqual, "Dark")
			So(second.Timestamp.Nanosecond(), ShouldEqual, 500000000)
		})

		Convey("Appends follow the existing column order", func() {
			So(store.Append(ctx, submission(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 3, "")...), ShouldBeNil)

			lines := strings.Split(strings.TrimRight(readFile(t, path), "\n"), "\n")
			So(lines, ShouldHaveLength, 5)
			So(lines[3], ShouldStartWith, "2026-01-01T00:00:00Z,v1_old,baseline,")

			snap, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(snap.Records, ShouldHaveLength, 4)
			So(snap.Records[3].CoffeeType, ShouldEqual, "Arabica")
		})
	})
}

func TestDecodeMalformedRows(t *testing.T) {
	Convey("Broken rows are skipped and counted", t, func() {
		path := filepath.Join(t.TempDir(), "logs.csv")
		store := NewCSVStore(path)
		ctx := context.Background()
		So(store.Append(ctx, submission(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 4, "")...), ShouldBeNil)

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
		So(err, ShouldBeNil)
		_, err = f.WriteString("not-a-time,v1_old,baseline,x,,,1,2,3,4,\n2026-02-01T00:00:01Z,v2_new,imp")
		So(err, ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		snap, err := store.Load(ctx)
		So(err, ShouldBeNil)
		So(snap.Records, ShouldHaveLength, 2)
		So(snap.Malformed, ShouldEqual, 2)

		Convey("and the next append starts on a fresh line", func() {
			So(store.Append(ctx, submission(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), 5, "")...), ShouldBeNil)
			snap, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(snap.Records, ShouldHaveLength, 4)
			So(snap.Malformed, ShouldEqual, 2)
		})
	})

	Convey("A row cut inside a quoted comment does not swallow the next submission", t, func() {
		path := filepath.Join(t.TempDir(), "logs.csv")
		store := NewCSVStore(path)
		ctx := context.Background()
		So(store.Append(ctx, submission(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 4, "")...), ShouldBeNil)

		cut := submission(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC), 4, "great, really close")[0]
		var line bytes.Buffer
		w := csv.NewWriter(&line)
		So(w.Write(encodeRow(Columns, &cut)), ShouldBeNil)
		w.Flush()
		partial := line.String()[:strings.Index(line.String(), "great, rea")+len("great, rea")]

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
		So(err, ShouldBeNil)
		_, err = f.WriteString(partial)
		So(err, ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		next := submission(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 5, "second")
		So(store.Append(ctx, next...), ShouldBeNil)

		snap, err := store.Load(ctx)
		So(err, ShouldBeNil)
		So(snap.Records, ShouldHaveLength, 4)
		So(snap.Malformed, ShouldEqual, 1)
		So(snap.Records[2].ModelVersion, ShouldEqual, feedback.VersionBaseline)
		So(snap.Records[3].ModelVersion, ShouldEqual, feedback.VersionImproved)
		So(snap.Records[2].SubmissionID, ShouldEqual, next[0].SubmissionID)

		Convey("and later appends stay on clean lines", func() {
			So(store.Append(ctx, submission(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), 3, "")...), ShouldBeNil)
			snap, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(snap.Records, ShouldHaveLength, 6)
			So(snap.Malformed, ShouldEqual, 1)
		})
	})

	Convey("A header without required columns is rejected", t, func() {
		_, err := Decode(strings.NewReader("foo,bar\n1,2\n"))
		So(errors.Is(err, ErrInvalidHeader), ShouldBeTrue)
	})

	Convey("An empty stream is an empty snapshot", t, func() {
		snap, err := Decode(strings.NewReader(""))
		So(err, ShouldBeNil)
		So(snap.Empty(), ShouldBeTrue)
	})
}
