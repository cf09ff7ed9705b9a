// Package analytics turns log records into the monitoring dashboard view.
// Every function is pure; callers own loading and caching.
package analytics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/brewcast/internal/domain/feedback"
)

// AllVersions disables the model_version filter.
const AllVersions = "All"

// User-facing placeholders.
const (
	NoticeNoLogs     = "No monitoring logs found yet. Please run the prediction app, submit feedback at least once, and then refresh this page."
	NoCoffeeFeedback = "No coffee type feedback yet."
	NoRoastFeedback  = "No roast type feedback yet."
	NoComments       = "No qualitative comments yet."
	NotAvailable     = "N/A"
)

// Summary holds the scalar metrics of a record set.
type Summary struct {
	Rows         int      `json:"rows"`
	AvgScore     *float64 `json:"avg_feedback_score"`
	AvgLatencyMS *float64 `json:"avg_latency_ms"`
}

// VersionStats is one row of the model comparison table.
type VersionStats struct {
	Version string `json:"model_version"`
	Summary
}

// Bar is one bar of a category chart.
type Bar struct {
	Label    string  `json:"label"`
	AvgScore float64 `json:"avg_feedback_score"`
	Count    int     `json:"count"`
}

// Comment is one entry of the recent comments list.
type Comment struct {
	Timestamp    time.Time             `json:"timestamp"`
	ModelVersion feedback.ModelVersion `json:"model_version"`
	Score        *int                  `json:"feedback_score"`
	Text         string                `json:"feedback_text"`
}

// Dashboard is everything the monitoring surface renders.
type Dashboard struct {
	Selected   string            `json:"selected"`
	Options    []string          `json:"options"`
	Summary    Summary           `json:"summary"`
	Comparison []VersionStats    `json:"comparison"`
	ByCoffee   []Bar             `json:"by_coffee"`
	ByRoast    []Bar             `json:"by_roast"`
	Comments   []Comment         `json:"recent_comments"`
	Rows       []feedback.Record `json:"rows"`
}

// Build assembles the dashboard. Only the summary and the raw rows honor the
// version filter; the comparison table, charts and comments always cover the
// whole log.
func Build(records []feedback.Record, version string, commentLimit int) Dashboard {
	selected := NormalizeVersion(version)
	filtered := Filter(records, selected)
	return Dashboard{
		Selected:   selected,
		Options:    Options(records),
		Summary:    Summarize(filtered),
		Comparison: CompareVersions(records),
		ByCoffee:   MeanScoreBy(records, func(r feedback.Record) string { return r.CoffeeType }),
		ByRoast:    MeanScoreBy(records, func(r feedback.Record) string { return r.RoastType }),
		Comments:   RecentComments(records, commentLimit),
		Rows:       filtered,
	}
}

// NormalizeVersion maps an empty selection to AllVersions.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, AllVersions) {
		return AllVersions
	}
	return v
}

// Filter keeps the rows of one version. AllVersions passes everything
// through; an unknown version yields an empty set.
func Filter(records []feedback.Record, version string) []feedback.Record {
	if NormalizeVersion(version) == AllVersions {
		return records
	}
	out := make([]feedback.Record, 0, len(records)/2)
	for _, r := range records {
		if string(r.ModelVersion) == version {
			out = append(out, r)
		}
	}
	return out
}

// Versions returns the sorted distinct model versions.
func Versions(records []feedback.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[string(r.ModelVersion)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Options lists the filter choices: AllVersions then every version.
func Options(records []feedback.Record) []string {
	return append([]string{AllVersions}, Versions(records)...)
}

// Summarize computes row count and null-skipping means.
func Summarize(records []feedback.Record) Summary {
	var score, latency mean
	for _, r := range records {
		if r.FeedbackScore != nil {
			score.add(float64(*r.FeedbackScore))
		}
		if r.LatencyMS != nil {
			latency.add(*r.LatencyMS)
		}
	}
	return Summary{Rows: len(records), AvgScore: score.value(), AvgLatencyMS: latency.value()}
}

// CompareVersions summarizes each version, sorted by version.
func CompareVersions(records []feedback.Record) []VersionStats {
	groups := make(map[string][]feedback.Record)
	for _, r := range records {
		v := string(r.ModelVersion)
		groups[v] = append(groups[v], r)
	}
	out := make([]VersionStats, 0, len(groups))
	for _, v := range Versions(records) {
		out = append(out, VersionStats{Version: v, Summary: Summarize(groups[v])})
	}
	return out
}

// MeanScoreBy averages feedback_score per category. Rows without a category
// or a score are skipped, so an empty result means no chart.
func MeanScoreBy(records []feedback.Record, category func(feedback.Record) string) []Bar {
	groups := make(map[string]*mean)
	for _, r := range records {
		label := category(r)
		if label == "" || r.FeedbackScore == nil {
			continue
		}
		m, ok := groups[label]
		if !ok {
			m = &mean{}
			groups[label] = m
		}
		m.add(float64(*r.FeedbackScore))
	}
	out := make([]Bar, 0, len(groups))
	for label, m := range groups {
		out = append(out, Bar{Label: label, AvgScore: *m.value(), Count: m.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// RecentComments returns up to limit non-blank comments, newest first.
func RecentComments(records []feedback.Record, limit int) []Comment {
	out := make([]Comment, 0)
	for _, r := range records {
		if strings.TrimSpace(r.FeedbackText) == "" {
			continue
		}
		out = append(out, Comment{
			Timestamp:    r.Timestamp,
			ModelVersion: r.ModelVersion,
			Score:        r.FeedbackScore,
			Text:         r.FeedbackText,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FormatScore renders a mean score with two decimals or N/A.
func FormatScore(v *float64) string { return format(v, 2) }

// FormatLatency renders a mean latency with one decimal or N/A.
func FormatLatency(v *float64) string { return format(v, 1) }

func format(v *float64, prec int) string {
	if v == nil {
		return NotAvailable
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) { m.sum += v; m.n++ }

func (m *mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}
