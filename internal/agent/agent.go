// Package agent answers free-form task management questions, grounded on the
// owner's similar tasks and catalog.
package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"taskflow-ai/internal/ai"
	"taskflow-ai/internal/catalog"
	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/logging"
	"taskflow-ai/internal/similarity"
	"taskflow-ai/internal/suggest"
)

// Limits applied to a chat turn
const (
	MaxMessageLen  = 4000
	MaxHistory     = 20
	ContextTaskCap = 5
)

// Turn types accepted in ChatRequest.ChatHistory. User and assistant are
// accepted as aliases of human and ai.
const (
	TurnHuman  = "human"
	TurnAI     = "ai"
	TurnSystem = "system"
)

const systemPrompt = `You are a task management assistant.
Help the user plan, prioritise and organise their tasks. Be concise and practical.
Only refer to categories and projects from the lists below, and only to past tasks listed below.
Priority ranges from 1 (highest) to 10 (lowest).`

// Querier finds an owner's tasks similar to a text
type Querier interface {
	Query(ctx context.Context, text string, ownerID int64, k int) ([]similarity.Match, error)
}

// Turn is one earlier message of the conversation
type Turn struct {
	Type    string `json:"type" mapstructure:"type"`
	Content string `json:"content" mapstructure:"content"`
}

// ChatRequest is one user message plus optional earlier turns, oldest first
type ChatRequest struct {
	Message     string `json:"message" mapstructure:"message"`
	ChatHistory []Turn `json:"chat_history,omitempty" mapstructure:"chat_history"`
	OwnerID     int64  `json:"-" mapstructure:"owner_id"`
}

// ChatResponse carries the assistant's reply
type ChatResponse struct {
	Response string `json:"response"`
}

// Service runs chat turns against the language model
type Service struct {
	index   Querier
	llm     ai.AIClient
	catalog catalog.Store
	logger  logging.Logger
}

// NewService wires the agent. index and catalogStore may be nil, in which case
// the model gets no task context.
func NewService(index Querier, llm ai.AIClient, catalogStore catalog.Store, logger logging.Logger) *Service {
	if catalogStore == nil {
		catalogStore = catalog.Empty{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Service{
		index:   index,
		llm:     llm,
		catalog: catalogStore,
		logger:  logger.WithComponent("agent"),
	}
}

// Chat answers req.Message. Unlike suggestions, a failing model call is
// returned to the caller.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, mcperrors.NewValidationError("message", "message is required")
	}
	if utf8.RuneCountInString(message) > MaxMessageLen {
		return nil, mcperrors.NewValidationError("message", "message must be at most %d characters", MaxMessageLen)
	}
	if req.OwnerID <= 0 {
		return nil, mcperrors.NewValidationError("owner_id", "owner id must be positive")
	}

	history := s.history(ctx, req.ChatHistory)
	resp, err := s.llm.Complete(ctx, ai.CompletionRequest{
		SystemMessage: s.systemMessage(ctx, req.OwnerID, message),
		History:       history,
		Prompt:        message,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Agent chat failed",
			"owner_id", req.OwnerID,
			"category", mcperrors.CategoryOf(err),
			"error", err,
		)
		return nil, err
	}
	s.logger.DebugContext(ctx, "Agent replied", "owner_id", req.OwnerID, "history", len(history), "tokens", resp.Usage.Total)
	return &ChatResponse{Response: resp.Content}, nil
}

// history maps earlier turns to chat roles. Unknown types and blank turns are
// skipped, and only the last MaxHistory turns are kept.
func (s *Service) history(ctx context.Context, turns []Turn) []ai.Message {
	if len(turns) > MaxHistory {
		turns = turns[len(turns)-MaxHistory:]
	}
	out := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		role, ok := roleOf(t.Type)
		if !ok {
			s.logger.DebugContext(ctx, "Skipping chat turn of unknown type", "type", t.Type)
			continue
		}
		out = append(out, ai.Message{Role: role, Content: t.Content})
	}
	return out
}

func roleOf(turnType string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(turnType)) {
	case TurnHuman, ai.RoleUser:
		return ai.RoleUser, true
	case TurnAI, ai.RoleAssistant:
		return ai.RoleAssistant, true
	case TurnSystem:
		return ai.RoleSystem, true
	default:
		return "", false
	}
}

func (s *Service) systemMessage(ctx context.Context, ownerID int64, message string) string {
	var matches []similarity.Match
	if s.index != nil {
		var err error
		matches, err = s.index.Query(ctx, message, ownerID, ContextTaskCap)
		if err != nil {
			s.logger.WarnContext(ctx, "Similar task lookup failed, continuing without context", "owner_id", ownerID, "error", err)
			matches = nil
		}
	}

	categories, err := s.catalog.Categories(ctx, ownerID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load categories", "owner_id", ownerID, "error", err)
	}
	projects, err := s.catalog.Projects(ctx, ownerID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load projects", "owner_id", ownerID, "error", err)
	}

	return fmt.Sprintf("%s\n\nRelated past tasks:\n%s\n\n%s",
		systemPrompt,
		suggest.FormatSimilarTasks(matches),
		suggest.FormatCatalog(categories, projects),
	)
}
