// Package api wires the HTTP routes of the prediction and monitoring
// surfaces: server-rendered pages plus a small JSON API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/brewcast/internal/adapters/session"
	service "github.com/okian/brewcast/internal/app"
	"github.com/okian/brewcast/internal/domain/analytics"
	"github.com/okian/brewcast/internal/domain/feedback"
)

// Predictor is what the prediction surface needs from the application.
type Predictor interface {
	Catalog() feedback.Catalog
	Predict(ctx context.Context, sess *session.Session, order feedback.Order) (feedback.Prediction, error)
	SubmitFeedback(ctx context.Context, sess *session.Session, fb feedback.Feedback) (service.Receipt, error)
}

// Monitor is what the monitoring surface needs from the application.
type Monitor interface {
	Dashboard(ctx context.Context, version string) (analytics.Dashboard, error)
	Logs(ctx context.Context, version string) ([]feedback.Record, error)
}

// PredictServer wires the prediction surface routes.
type PredictServer struct {
	healthHandler  *HealthHandler
	predictHandler *PredictHandler
	sessions       session.Store
}

// NewPredictServer creates the prediction surface.
func NewPredictServer(pred Predictor, sessions session.Store) *PredictServer {
	return &PredictServer{
		healthHandler:  NewHealthHandler(),
		predictHandler: NewPredictHandler(pred),
		sessions:       sessions,
	}
}

// Register attaches all prediction routes to mux.
func (s *PredictServer) Register(_ context.Context, mux *http.ServeMux) {
	withSession := func(next http.HandlerFunc, endpoint string) http.HandlerFunc {
		return MetricsMiddleware(SessionMiddleware(s.sessions, next), endpoint)
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /api/options", MetricsMiddleware(s.predictHandler.HandleOptions, "options"))
	mux.HandleFunc("POST /api/predict", withSession(s.predictHandler.HandlePredictJSON, "api_predict"))
	mux.HandleFunc("POST /api/feedback", withSession(s.predictHandler.HandleFeedbackJSON, "api_feedback"))
	mux.HandleFunc("POST /predict", withSession(s.predictHandler.HandlePredictForm, "predict"))
	mux.HandleFunc("POST /feedback", withSession(s.predictHandler.HandleFeedbackForm, "feedback"))
	mux.HandleFunc("GET /{$}", withSession(s.predictHandler.HandlePage, "index"))
}

// MonitorServer wires the monitoring surface routes.
type MonitorServer struct {
	healthHandler    *HealthHandler
	dashboardHandler *DashboardHandler
}

// NewMonitorServer creates the monitoring surface.
func NewMonitorServer(mon Monitor) *MonitorServer {
	return &MonitorServer{
		healthHandler:    NewHealthHandler(),
		dashboardHandler: NewDashboardHandler(mon),
	}
}

// Register attaches all monitoring routes to mux.
func (s *MonitorServer) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /api/dashboard", MetricsMiddleware(s.dashboardHandler.HandleDashboardJSON, "api_dashboard"))
	mux.HandleFunc("GET /api/logs", MetricsMiddleware(s.dashboardHandler.HandleLogsJSON, "api_logs"))
	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.dashboardHandler.HandlePage, "dashboard"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps application errors to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, feedback.ErrInvalidOrder),
		errors.Is(err, feedback.ErrInvalidFeedback):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNoPrediction):
		return http.StatusConflict, "no_prediction"
	case errors.Is(err, service.ErrPrediction):
		return http.StatusInternalServerError, "prediction_failed"
	case errors.Is(err, service.ErrLogWrite):
		return http.StatusInternalServerError, "log_write_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
