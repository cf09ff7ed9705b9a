package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/okian/brewcast/internal/domain/analytics"
	"github.com/okian/brewcast/internal/domain/feedback"
)

//go:embed static/*.html
var staticFS embed.FS

var (
	predictTemplate   = mustParse("predict.html")
	dashboardTemplate = mustParse("dashboard.html")
)

var printer = message.NewPrinter(language.English)

var templateFuncs = template.FuncMap{
	"money":         func(v float64) string { return printer.Sprintf("$%.2f", v) },
	"ms":            func(v float64) string { return fmt.Sprintf("%.1f ms", v) },
	"size":          feedback.FormatSize,
	"formatScore":   analytics.FormatScore,
	"formatLatency": analytics.FormatLatency,
	"score":         formatOptionalScore,
	"latency":       formatOptionalLatency,
	"stamp":         func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") },
	"barWidth":      barWidth,
	"scores":        func() []int { return []int{1, 2, 3, 4, 5} },
}

func mustParse(name string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).ParseFS(staticFS, "static/layout.html", "static/"+name))
}

// renderPage buffers the page so a template error still yields a clean 500.
func renderPage(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		writeError(w, http.StatusInternalServerError, "render_failed", fmt.Errorf("%w: %w", ErrRender, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// predictPage is the view model of the order page.
type predictPage struct {
	Catalog    feedback.Catalog
	Order      feedback.Order
	Prediction *feedback.Prediction
	Score      int
	Text       string
	Hint       string
	Warning    string
	Success    string
	Error      string
}

// Title implements the layout contract.
func (predictPage) Title() string { return "Coffee Shop Revenue Prediction" }

// dashboardPage is the view model of the monitoring page.
type dashboardPage struct {
	Notice   string
	Error    string
	Data     analytics.Dashboard
	NoCoffee string
	NoRoast  string
	NoNotes  string
}

// Title implements the layout contract.
func (dashboardPage) Title() string { return "Coffee Shop Model Monitoring & Feedback" }

func newDashboardPage(d analytics.Dashboard) dashboardPage {
	return dashboardPage{
		Data:     d,
		NoCoffee: analytics.NoCoffeeFeedback,
		NoRoast:  analytics.NoRoastFeedback,
		NoNotes:  analytics.NoComments,
	}
}

func formatOptionalScore(v *int) string {
	if v == nil {
		return analytics.NotAvailable
	}
	return fmt.Sprintf("%d", *v)
}

func formatOptionalLatency(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *v)
}

// barWidth scales a mean score to a percentage of the maximum score.
func barWidth(avg float64) string {
	pct := avg / feedback.MaxScore * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return fmt.Sprintf("%.1f%%", pct)
}
