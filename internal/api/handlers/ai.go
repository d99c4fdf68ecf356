package handlers

import (
	"context"
	"net/http"
	"strings"

	"taskflow-ai/internal/api/middleware"
	"taskflow-ai/internal/api/response"
	"taskflow-ai/internal/estimator"
	"taskflow-ai/internal/features"
	"taskflow-ai/internal/logging"
	"taskflow-ai/internal/similarity"
	"taskflow-ai/internal/suggest"
)

// Bounds of the similar-tasks endpoint
const (
	DefaultSimilarLimit = 5
	MaxSimilarLimit     = 50
)

// TimeEstimator predicts task duration
type TimeEstimator interface {
	Estimate(task features.TaskInput) (*estimator.TaskTimeEstimation, error)
	Explain(task features.TaskInput) (*estimator.TaskTimeEstimation, error)
}

// Suggester proposes attributes for a new task
type Suggester interface {
	Suggest(ctx context.Context, req suggest.SuggestionRequest) (*suggest.SuggestionResponse, error)
}

// SimilarFinder looks up an owner's nearest tasks
type SimilarFinder interface {
	Query(ctx context.Context, text string, ownerID int64, k int) ([]similarity.Match, error)
}

// EstimateTimeRequest is the body of POST /api/v1/ai/estimate-time
type EstimateTimeRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    *int        `json:"priority"`
	Deadline    interface{} `json:"deadline"`
	ProjectID   *int64      `json:"project_id"`
	CategoryID  *int64      `json:"category_id"`
	Tags        string      `json:"tags"`
}

// TaskInput converts the request for the feature extractor
func (r EstimateTimeRequest) TaskInput() features.TaskInput {
	return features.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Deadline:    r.Deadline,
		ProjectID:   r.ProjectID,
		CategoryID:  r.CategoryID,
		Tags:        r.Tags,
	}
}

// SimilarRequest is the body of POST /api/v1/ai/similar. Text wins over
// Title and Description when set.
type SimilarRequest struct {
	Text        string `json:"text"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Limit       int    `json:"limit"`
}

// SimilarResponse lists the nearest tasks, closest first
type SimilarResponse struct {
	Matches []similarity.Match `json:"matches"`
}

// AIHandler serves the estimation, suggestion and similarity endpoints
type AIHandler struct {
	estimator TimeEstimator
	suggester Suggester
	finder    SimilarFinder
	logger    logging.Logger
}

// NewAIHandler creates the AI endpoints handler
func NewAIHandler(est TimeEstimator, sug Suggester, finder SimilarFinder, logger logging.Logger) *AIHandler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &AIHandler{
		estimator: est,
		suggester: sug,
		finder:    finder,
		logger:    logger.WithComponent("api"),
	}
}

// EstimateTime handles POST /api/v1/ai/estimate-time. With ?explain=true the
// response also carries the named feature vector.
func (h *AIHandler) EstimateTime(w http.ResponseWriter, r *http.Request) {
	var req EstimateTimeRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.WriteBadRequest(w, "invalid request body", err.Error())
		return
	}

	estimate := h.estimator.Estimate
	if r.URL.Query().Get("explain") == "true" {
		estimate = h.estimator.Explain
	}

	result, err := estimate(req.TaskInput())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Time estimation failed", "error", err)
		response.WriteFromError(w, "failed to estimate task time", err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}

// Suggest handles POST /api/v1/ai/suggest
func (h *AIHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggest.SuggestionRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.WriteBadRequest(w, "invalid request body", err.Error())
		return
	}
	req.OwnerID = middleware.OwnerID(r.Context())

	result, err := h.suggester.Suggest(r.Context(), req)
	if err != nil {
		response.WriteFromError(w, "failed to suggest task attributes", err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}

// Similar handles POST /api/v1/ai/similar
func (h *AIHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.WriteBadRequest(w, "invalid request body", err.Error())
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = strings.TrimSpace(req.Title + " " + req.Description)
	}
	if text == "" {
		response.WriteValidationError(w, "text or title is required")
		return
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = DefaultSimilarLimit
	case limit > MaxSimilarLimit:
		limit = MaxSimilarLimit
	}

	matches, err := h.finder.Query(r.Context(), text, middleware.OwnerID(r.Context()), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Similarity query failed", "error", err)
		response.WriteFromError(w, "failed to query similar tasks", err)
		return
	}
	if matches == nil {
		matches = []similarity.Match{}
	}
	response.WriteJSON(w, http.StatusOK, SimilarResponse{Matches: matches})
}
