package suggest

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"taskflow-ai/internal/ai"
	"taskflow-ai/internal/catalog"
	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/features"
	"taskflow-ai/internal/logging"
	"taskflow-ai/internal/similarity"
)

// Querier finds an owner's tasks similar to a text
type Querier interface {
	Query(ctx context.Context, text string, ownerID int64, k int) ([]similarity.Match, error)
}

// Orchestrator builds the suggestion prompt, calls the model and post-processes
// its reply. It only reads from the index.
type Orchestrator struct {
	index   Querier
	llm     ai.AIClient
	catalog catalog.Store
	cfg     Config
	logger  logging.Logger
}

// NewOrchestrator wires the suggestion pipeline. catalogStore may be nil when
// callers always pass their own categories and projects.
func NewOrchestrator(index Querier, llm ai.AIClient, catalogStore catalog.Store, cfg Config, logger logging.Logger) *Orchestrator {
	if catalogStore == nil {
		catalogStore = catalog.Empty{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Orchestrator{
		index:   index,
		llm:     llm,
		catalog: catalogStore,
		cfg:     cfg.withDefaults(),
		logger:  logger.WithComponent("suggest"),
	}
}

// Suggest returns attribute suggestions for a new task. A failing model call
// yields the zero-score fallback response and no error; a reply that cannot
// be parsed yields ErrSuggestionParse.
func (o *Orchestrator) Suggest(ctx context.Context, req SuggestionRequest) (*SuggestionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	queryText := strings.TrimSpace(req.Title + " " + req.Description)
	matches, err := o.index.Query(ctx, queryText, req.OwnerID, o.cfg.SimilarLimit)
	if err != nil {
		o.logger.WarnContext(ctx, "Similar task lookup failed, continuing without context", "owner_id", req.OwnerID, "error", err)
		matches = nil
	}

	categories, projects := o.loadCatalog(ctx, req)

	prompt := buildUserPrompt(req.Title, req.Description, FormatSimilarTasks(matches), FormatCatalog(categories, projects))
	o.logger.DebugContext(ctx, "Requesting suggestions", "owner_id", req.OwnerID, "similar_tasks", len(matches))

	resp, err := o.llm.Complete(ctx, ai.CompletionRequest{
		SystemMessage: systemPrompt,
		Prompt:        prompt,
		JSONMode:      true,
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "Language model call failed, returning empty suggestion",
			"owner_id", req.OwnerID,
			"category", mcperrors.CategoryOf(err),
			"error", err,
		)
		return fallbackResponse(), nil
	}

	suggestion, err := ParseReply(resp.Content)
	if err != nil {
		o.logger.ErrorContext(ctx, "Unparsable suggestion reply", "owner_id", req.OwnerID, "error", err)
		return nil, err
	}
	o.logger.DebugContext(ctx, "Raw suggestion reply", "reply", resp.Content)

	o.postProcess(suggestion, matches, categories, projects)
	return suggestion, nil
}

func validateRequest(req SuggestionRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return mcperrors.NewValidationError("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return mcperrors.NewValidationError("title", "title must be at most %d characters", MaxTitleLen)
	}
	if req.OwnerID <= 0 {
		return mcperrors.NewValidationError("owner_id", "owner id must be positive")
	}
	return nil
}

func (o *Orchestrator) loadCatalog(ctx context.Context, req SuggestionRequest) ([]catalog.Category, []catalog.Project) {
	categories := req.Categories
	if categories == nil {
		var err error
		categories, err = o.catalog.Categories(ctx, req.OwnerID)
		if err != nil {
			o.logger.WarnContext(ctx, "Failed to load categories", "owner_id", req.OwnerID, "error", err)
			categories = nil
		}
	}

	projects := req.Projects
	if projects == nil {
		var err error
		projects, err = o.catalog.Projects(ctx, req.OwnerID)
		if err != nil {
			o.logger.WarnContext(ctx, "Failed to load projects", "owner_id", req.OwnerID, "error", err)
			projects = nil
		}
	}
	return categories, projects
}

// postProcess fills the fallback confidence, zero-defaults urgency and
// importance, clamps ranges and drops ids the owner does not have.
func (o *Orchestrator) postProcess(s *SuggestionResponse, matches []similarity.Match, categories []catalog.Category, projects []catalog.Project) {
	if s.ConfidenceScore == nil {
		c := FallbackConfidence(matches, o.cfg.MaxExpectedDistance)
		s.ConfidenceScore = &c
	}
	if s.UrgencyScore == nil {
		s.UrgencyScore = new(float64)
	}
	if s.ImportanceScore == nil {
		s.ImportanceScore = new(float64)
	}

	*s.ConfidenceScore = clampScore(*s.ConfidenceScore)
	*s.UrgencyScore = clampScore(*s.UrgencyScore)
	*s.ImportanceScore = clampScore(*s.ImportanceScore)

	if s.Priority != nil {
		p := *s.Priority
		if p < MinPriority {
			p = MinPriority
		} else if p > MaxPriority {
			p = MaxPriority
		}
		s.Priority = &p
	}

	if s.CategoryID != nil && !hasCategory(categories, *s.CategoryID) {
		s.CategoryID = nil
	}
	if s.ProjectID != nil && !hasProject(projects, *s.ProjectID) {
		s.ProjectID = nil
	}

	if s.Tags != nil {
		tags := features.ParseTags(*s.Tags)
		if len(tags) == 0 {
			s.Tags = nil
		} else {
			joined := strings.Join(tags, ",")
			s.Tags = &joined
		}
	}
}

// FallbackConfidence is max(0, 1 - avgDistance/maxExpected) over matches,
// rounded to two decimals. It is 0 without matches.
func FallbackConfidence(matches []similarity.Match, maxExpected float64) float64 {
	if len(matches) == 0 || maxExpected <= 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += m.Distance
	}
	avg := sum / float64(len(matches))
	return math.Round(math.Max(0, 1-avg/maxExpected)*100) / 100
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func hasCategory(categories []catalog.Category, id int64) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func hasProject(projects []catalog.Project, id int64) bool {
	for _, p := range projects {
		if p.ID == id {
			return true
		}
	}
	return false
}
