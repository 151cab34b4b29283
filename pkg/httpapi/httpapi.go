// Package httpapi exposes the synchronous intake surface: submit
// feedback, list it, fetch one submission, and a health check, per
// spec.md §4.9's synchronous intake path and the original
// backend/app/router_feedback.py routes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/loopwire/feedback-pipeline/pkg/metrics"
	"github.com/loopwire/feedback-pipeline/pkg/mid"
	"github.com/loopwire/feedback-pipeline/pkg/model"
)

const maxContentLength = 2000

var errContentRequired = errors.New("content is required")

// intake is the narrow slice of orchestrator.Orchestrator the API
// surface needs.
type intake interface {
	Intake(ctx context.Context, content string) (*model.Submission, error)
}

// submissionLister is the narrow slice of store.Store the API surface
// needs for the read endpoints.
type submissionLister interface {
	Get(ctx context.Context, reference string) (*model.Submission, error)
	List(ctx context.Context, status model.SubmissionStatus, skip, limit int) ([]model.Submission, error)
}

// Server builds the *http.ServeMux for the feedback intake API.
type Server struct {
	orchestrator intake
	store        submissionLister
	log          *slog.Logger
	corsOrigin   string
	metrics      *metrics.Registry

	submissionsCreated  *metrics.Counter
	submissionsRejected *metrics.Counter
	requestDuration     *metrics.Histogram
}

func New(orchestrator intake, store submissionLister, log *slog.Logger, corsOrigin string) *Server {
	reg := metrics.New()
	return &Server{
		orchestrator: orchestrator,
		store:        store,
		log:          log,
		corsOrigin:   corsOrigin,
		metrics:      reg,

		submissionsCreated: reg.Counter("feedback_submissions_created_total", "Total feedback submissions accepted"),
		submissionsRejected: reg.Counter("feedback_submissions_rejected_total", "Total feedback submissions rejected at intake"),
		requestDuration:      reg.Histogram("feedback_request_duration_seconds", "Intake request duration", metrics.DefaultBuckets),
	}
}

// Handler builds the routed, middleware-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/feedback", s.handleCreate)
	mux.HandleFunc("GET /api/feedback", s.handleList)
	mux.HandleFunc("GET /api/feedback/{reference}", s.handleGet)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return mid.Chain(mux,
		mid.Recover(s.log),
		mid.Logger(s.log),
		mid.CORS(s.corsOrigin),
		mid.OTel("feedback-intake"),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createFeedbackRequest struct {
	Content string `json:"content"`
}

type createFeedbackResponse struct {
	Reference string                 `json:"reference"`
	Status    model.SubmissionStatus `json:"status"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.requestDuration.Since(start) }()

	var req createFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if err := validateContent(req.Content); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sub, err := s.orchestrator.Intake(r.Context(), req.Content)
	if err != nil {
		s.log.Error("intake failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if sub.Status == model.StatusRejected {
		s.submissionsRejected.Inc()
	} else {
		s.submissionsCreated.Inc()
	}

	writeJSON(w, http.StatusCreated, createFeedbackResponse{Reference: sub.Reference, Status: sub.Status})
}

func validateContent(content string) error {
	if content == "" {
		return errContentRequired
	}
	if len(content) > maxContentLength {
		return errors.New("content exceeds maximum length")
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status model.SubmissionStatus
	if v := q.Get("status"); v != "" {
		status = model.SubmissionStatus(v)
	}

	skip := queryInt(q, "skip", 0)
	limit := queryInt(q, "limit", 50)
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	subs, err := s.store.List(r.Context(), status, skip, limit)
	if err != nil {
		s.log.Error("list feedback failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")

	sub, err := s.store.Get(r.Context(), reference)
	if err != nil {
		writeError(w, http.StatusNotFound, "feedback not found")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func queryInt(q map[string][]string, key string, fallback int) int {
	v, ok := q[key]
	if !ok || len(v) == 0 {
		return fallback
	}
	n, err := strconv.Atoi(v[0])
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
