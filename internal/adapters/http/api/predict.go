package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/brewcast/internal/adapters/session"
	service "github.com/okian/brewcast/internal/app"
	"github.com/okian/brewcast/internal/domain/feedback"
)

// Banner texts shown on the order page.
const (
	msgNeedPrediction = "Please run the prediction first, then submit your feedback."
	msgSaved          = "Feedback and predictions have been saved to the monitoring log. You can now view them in the monitoring dashboard."
	msgHint           = "Click Run Prediction to see model outputs before giving feedback."
)

const maxBodyBytes = 1 << 16

// PredictHandler serves the order form and the prediction JSON API.
type PredictHandler struct {
	pred Predictor
}

// NewPredictHandler creates a new prediction handler.
func NewPredictHandler(pred Predictor) *PredictHandler {
	return &PredictHandler{pred: pred}
}

type predictRequest struct {
	SizeKg     *float64 `json:"size_kg"`
	CoffeeType string   `json:"coffee_type"`
	RoastType  string   `json:"roast_type"`
}

func (p predictRequest) order() (feedback.Order, error) {
	switch {
	case p.SizeKg == nil:
		return feedback.Order{}, fmt.Errorf("%w: missing size_kg", ErrBadRequest)
	case strings.TrimSpace(p.CoffeeType) == "":
		return feedback.Order{}, fmt.Errorf("%w: missing coffee_type", ErrBadRequest)
	case strings.TrimSpace(p.RoastType) == "":
		return feedback.Order{}, fmt.Errorf("%w: missing roast_type", ErrBadRequest)
	}
	return feedback.Order{SizeKg: *p.SizeKg, CoffeeType: p.CoffeeType, RoastType: p.RoastType}, nil
}

type feedbackRequest struct {
	Score *int   `json:"feedback_score"`
	Text  string `json:"feedback_text"`
}

type predictResponse struct {
	InputSummary string         `json:"input_summary"`
	Order        feedback.Order `json:"order"`
	Predictions  []modelOutput  `json:"predictions"`
	LatencyMS    float64        `json:"latency_ms"`
}

type modelOutput struct {
	ModelVersion feedback.ModelVersion `json:"model_version"`
	ModelType    feedback.ModelType    `json:"model_type"`
	Prediction   float64               `json:"prediction"`
}

type feedbackResponse struct {
	SubmissionID string `json:"submission_id"`
	Rows         int    `json:"rows"`
}

func newPredictResponse(p feedback.Prediction) predictResponse {
	return predictResponse{
		InputSummary: p.InputSummary,
		Order:        p.Order,
		Predictions: []modelOutput{
			{ModelVersion: feedback.VersionBaseline, ModelType: feedback.TypeBaseline, Prediction: p.Baseline},
			{ModelVersion: feedback.VersionImproved, ModelType: feedback.TypeImproved, Prediction: p.Improved},
		},
		LatencyMS: p.LatencyMS,
	}
}

// HandleOptions handles GET /api/options.
func (h *PredictHandler) HandleOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.pred.Catalog())
}

// HandlePredictJSON handles POST /api/predict.
func (h *PredictHandler) HandlePredictJSON(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	var req predictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	order, err := req.order()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	pred, err := h.pred.Predict(r.Context(), sess, order)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictResponse(pred))
}

// HandleFeedbackJSON handles POST /api/feedback.
func (h *PredictHandler) HandleFeedbackJSON(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	fb := feedback.Feedback{Score: feedback.DefaultScore, Text: req.Text}
	if req.Score != nil {
		fb.Score = *req.Score
	}
	receipt, err := h.pred.SubmitFeedback(r.Context(), sess, fb)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, feedbackResponse{SubmissionID: receipt.SubmissionID, Rows: receipt.Rows})
}

// HandlePage handles GET / with the order form.
func (h *PredictHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	page := h.newPage(sess)
	renderPage(w, http.StatusOK, predictTemplate, page)
}

// HandlePredictForm handles POST /predict from the order form.
func (h *PredictHandler) HandlePredictForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	page := h.newPage(sess)

	order, err := parseOrderForm(r)
	if err == nil {
		page.Order = order
		var pred feedback.Prediction
		if pred, err = h.pred.Predict(r.Context(), sess, order); err == nil {
			page.Order = pred.Order
			page.Prediction = &pred
			renderPage(w, http.StatusOK, predictTemplate, page)
			return
		}
	}
	status, _ := classify(err)
	page.Error = err.Error()
	renderPage(w, status, predictTemplate, page)
}

// HandleFeedbackForm handles POST /feedback from the order page.
func (h *PredictHandler) HandleFeedbackForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	page := h.newPage(sess)

	fb, err := parseFeedbackForm(r)
	if err == nil {
		page.Score, page.Text = fb.Score, fb.Text
		_, err = h.pred.SubmitFeedback(r.Context(), sess, fb)
	}

	switch {
	case err == nil:
		page.Success = msgSaved
		renderPage(w, http.StatusOK, predictTemplate, page)
	case errors.Is(err, service.ErrNoPrediction):
		page.Warning = msgNeedPrediction
		renderPage(w, http.StatusOK, predictTemplate, page)
	default:
		status, _ := classify(err)
		page.Error = err.Error()
		renderPage(w, status, predictTemplate, page)
	}
}

// newPage seeds the order page from the session's pending prediction.
func (h *PredictHandler) newPage(sess *session.Session) *predictPage {
	catalog := h.pred.Catalog()
	page := &predictPage{
		Catalog: catalog,
		Order:   catalog.DefaultOrder(),
		Score:   feedback.DefaultScore,
		Hint:    msgHint,
	}
	if sess != nil {
		if pred, ok := sess.Prediction(); ok {
			page.Order = pred.Order
			page.Prediction = &pred
		}
	}
	return page
}

func parseOrderForm(r *http.Request) (feedback.Order, error) {
	if err := r.ParseForm(); err != nil {
		return feedback.Order{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	size, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("size_kg")), 64)
	if err != nil {
		return feedback.Order{}, fmt.Errorf("%w: size_kg must be a number", ErrBadRequest)
	}
	return feedback.Order{
		SizeKg:     size,
		CoffeeType: r.PostFormValue("coffee_type"),
		RoastType:  r.PostFormValue("roast_type"),
	}, nil
}

func parseFeedbackForm(r *http.Request) (feedback.Feedback, error) {
	if err := r.ParseForm(); err != nil {
		return feedback.Feedback{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	fb := feedback.Feedback{Score: feedback.DefaultScore, Text: r.PostFormValue("feedback_text")}
	if v := strings.TrimSpace(r.PostFormValue("feedback_score")); v != "" {
		score, err := strconv.Atoi(v)
		if err != nil {
			return fb, fmt.Errorf("%w: feedback_score must be an integer", ErrBadRequest)
		}
		fb.Score = score
	}
	return fb, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
