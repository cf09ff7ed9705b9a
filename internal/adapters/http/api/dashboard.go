package api

import (
	"errors"
	"net/http"

	service "github.com/okian/brewcast/internal/app"
	"github.com/okian/brewcast/internal/domain/analytics"
	"github.com/okian/brewcast/internal/domain/feedback"
)

// DashboardHandler serves the monitoring page and its JSON views.
type DashboardHandler struct {
	mon Monitor
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(mon Monitor) *DashboardHandler {
	return &DashboardHandler{mon: mon}
}

type dashboardResponse struct {
	Empty  bool   `json:"empty"`
	Notice string `json:"notice,omitempty"`
	*analytics.Dashboard
}

type logsResponse struct {
	Empty  bool              `json:"empty"`
	Notice string            `json:"notice,omitempty"`
	Count  int               `json:"count"`
	Rows   []feedback.Record `json:"rows"`
}

// HandleDashboardJSON handles GET /api/dashboard?model_version=.
func (h *DashboardHandler) HandleDashboardJSON(w http.ResponseWriter, r *http.Request) {
	d, err := h.mon.Dashboard(r.Context(), r.URL.Query().Get("model_version"))
	switch {
	case errors.Is(err, service.ErrNoLogs):
		writeJSON(w, http.StatusOK, dashboardResponse{Empty: true, Notice: analytics.NoticeNoLogs})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "load_failed", err)
	default:
		writeJSON(w, http.StatusOK, dashboardResponse{Dashboard: &d})
	}
}

// HandleLogsJSON handles GET /api/logs?model_version=.
func (h *DashboardHandler) HandleLogsJSON(w http.ResponseWriter, r *http.Request) {
	rows, err := h.mon.Logs(r.Context(), r.URL.Query().Get("model_version"))
	switch {
	case errors.Is(err, service.ErrNoLogs):
		writeJSON(w, http.StatusOK, logsResponse{Empty: true, Notice: analytics.NoticeNoLogs, Rows: []feedback.Record{}})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "load_failed", err)
	default:
		if rows == nil {
			rows = []feedback.Record{}
		}
		writeJSON(w, http.StatusOK, logsResponse{Count: len(rows), Rows: rows})
	}
}

// HandlePage handles GET /?model_version= with the HTML dashboard.
func (h *DashboardHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	d, err := h.mon.Dashboard(r.Context(), r.URL.Query().Get("model_version"))
	switch {
	case errors.Is(err, service.ErrNoLogs):
		renderPage(w, http.StatusOK, dashboardTemplate, dashboardPage{Notice: analytics.NoticeNoLogs})
	case err != nil:
		renderPage(w, http.StatusInternalServerError, dashboardTemplate, dashboardPage{Error: err.Error()})
	default:
		renderPage(w, http.StatusOK, dashboardTemplate, newDashboardPage(d))
	}
}
