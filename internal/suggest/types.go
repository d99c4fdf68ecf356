// Package suggest asks a language model for task attributes, grounded on the
// owner's similar tasks and available categories and projects.
package suggest

import (
	"errors"

	"taskflow-ai/internal/catalog"
	"taskflow-ai/internal/features"
)

// Limits applied to suggestion output
const (
	MinPriority = features.MinPriority
	MaxPriority = features.MaxPriority
	MaxTitleLen = 255

	DefaultSimilarLimit        = 5
	DefaultMaxExpectedDistance = 1.0
)

// Context sentinels used when there is nothing to list
const (
	NoSimilarTasks = "No similar tasks found."
	NoCategories   = "No categories available."
	NoProjects     = "No projects available."
)

// ErrSuggestionParse is returned when the model's reply cannot be read as a
// suggestion object
var ErrSuggestionParse = errors.New("failed to parse suggestion response")

// SuggestionRequest asks for suggestions for a new task. Nil Categories or
// Projects are loaded from the catalog; an empty slice means "none".
type SuggestionRequest struct {
	Title       string             `json:"title" mapstructure:"title"`
	Description string             `json:"description,omitempty" mapstructure:"description"`
	OwnerID     int64              `json:"-" mapstructure:"owner_id"`
	Categories  []catalog.Category `json:"categories,omitempty" mapstructure:"categories"`
	Projects    []catalog.Project  `json:"projects,omitempty" mapstructure:"projects"`
}

// SuggestionResponse holds the suggested attributes. A nil field means the
// model made no suggestion for it.
type SuggestionResponse struct {
	CategoryID      *int64   `json:"category_id"`
	ProjectID       *int64   `json:"project_id"`
	Tags            *string  `json:"tags"`
	Priority        *int     `json:"priority"`
	UrgencyScore    *float64 `json:"urgency_score"`
	ImportanceScore *float64 `json:"importance_score"`
	ConfidenceScore *float64 `json:"confidence_score"`

	// RawReply is the model's unprocessed answer, empty on soft failure
	RawReply string `json:"-"`
}

// Config tunes the orchestrator
type Config struct {
	SimilarLimit        int
	MaxExpectedDistance float64
}

func (c Config) withDefaults() Config {
	if c.SimilarLimit <= 0 {
		c.SimilarLimit = DefaultSimilarLimit
	}
	if c.MaxExpectedDistance <= 0 {
		c.MaxExpectedDistance = DefaultMaxExpectedDistance
	}
	return c
}

// fallbackResponse is returned when the language model cannot be reached
func fallbackResponse() *SuggestionResponse {
	zero := func() *float64 { v := 0.0; return &v }
	return &SuggestionResponse{
		UrgencyScore:    zero(),
		ImportanceScore: zero(),
		ConfidenceScore: zero(),
	}
}
