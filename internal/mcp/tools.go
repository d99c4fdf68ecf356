package mcp

import (
	"context"
	"fmt"
	"strings"

	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/go-viper/mapstructure/v2"

	"taskflow-ai/internal/agent"
	"taskflow-ai/internal/catalog"
	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/features"
	"taskflow-ai/internal/similarity"
	"taskflow-ai/internal/suggest"
)

// Tool names
const (
	ToolEstimateTime = "task_estimate_time"
	ToolSuggest      = "task_suggest"
	ToolFindSimilar  = "task_find_similar"
	ToolAgentChat    = "task_agent_chat"
)

const (
	defaultSimilarLimit = 5
	maxSimilarLimit     = 50
)

type estimateArgs struct {
	Title       string      `mapstructure:"title"`
	Description string      `mapstructure:"description"`
	Priority    *int        `mapstructure:"priority"`
	Deadline    interface{} `mapstructure:"deadline"`
	ProjectID   *int64      `mapstructure:"project_id"`
	CategoryID  *int64      `mapstructure:"category_id"`
	Tags        string      `mapstructure:"tags"`
	Explain     bool        `mapstructure:"explain"`
}

type similarArgs struct {
	OwnerID int64  `mapstructure:"owner_id"`
	Text    string `mapstructure:"text"`
	Limit   int    `mapstructure:"limit"`
}

var ownerIDProperty = map[string]interface{}{
	"type":        "integer",
	"minimum":     1,
	"description": "Id of the user whose tasks provide context. Required over stdio; over HTTP it defaults to the authenticated user and may not name anyone else.",
}

func (ts *TaskServer) registerTools() {
	ts.mcpServer.AddTool(mcp.NewTool(
		ToolEstimateTime,
		"Estimate how many hours a task will take from its title, description, priority, deadline and tags. Set 'explain' to also get the feature values the estimate was computed from.",
		mcp.ObjectSchema("Task to estimate", map[string]interface{}{
			"title":       map[string]interface{}{"type": "string", "description": "Task title"},
			"description": map[string]interface{}{"type": "string", "description": "Task description"},
			"priority": map[string]interface{}{
				"type":        "integer",
				"minimum":     features.MinPriority,
				"maximum":     features.MaxPriority,
				"description": "1 (highest) to 10 (lowest), default 5",
			},
			"deadline":    map[string]interface{}{"type": "string", "description": "ISO 8601 timestamp or date"},
			"project_id":  map[string]interface{}{"type": "integer"},
			"category_id": map[string]interface{}{"type": "integer"},
			"tags":        map[string]interface{}{"type": "string", "description": "Comma-separated tags, e.g. 'urgent,report'"},
			"explain":     map[string]interface{}{"type": "boolean", "default": false},
		}, []string{}),
	), mcp.ToolHandlerFunc(ts.handleEstimateTime))

	ts.mcpServer.AddTool(mcp.NewTool(
		ToolSuggest,
		"Suggest category, project, tags, priority, urgency and importance for a new task, based on the user's similar past tasks. Omit 'categories' or 'projects' to use the ones stored for the user.",
		mcp.ObjectSchema("Task to suggest attributes for", map[string]interface{}{
			"owner_id":    ownerIDProperty,
			"title":       map[string]interface{}{"type": "string", "maxLength": suggest.MaxTitleLen},
			"description": map[string]interface{}{"type": "string"},
			"categories": map[string]interface{}{
				"type":  "array",
				"items": idNameSchema(),
			},
			"projects": map[string]interface{}{
				"type":  "array",
				"items": idNameSchema(),
			},
		}, []string{"title"}),
	), mcp.ToolHandlerFunc(ts.handleSuggest))

	ts.mcpServer.AddTool(mcp.NewTool(
		ToolFindSimilar,
		"Find the user's tasks most similar to a text, closest first. Distance is cosine distance: 0 is identical, 2 is opposite.",
		mcp.ObjectSchema("Similarity query", map[string]interface{}{
			"owner_id": ownerIDProperty,
			"text":     map[string]interface{}{"type": "string", "description": "Title and description of the task"},
			"limit": map[string]interface{}{
				"type":    "integer",
				"minimum": 1,
				"maximum": maxSimilarLimit,
				"default": defaultSimilarLimit,
			},
		}, []string{"text"}),
	), mcp.ToolHandlerFunc(ts.handleFindSimilar))
}

func (ts *TaskServer) registerAgentTool() {
	ts.mcpServer.AddTool(mcp.NewTool(
		ToolAgentChat,
		"Ask the task management assistant a question. It sees the user's related past tasks, categories and projects. Pass earlier turns in 'chat_history', oldest first.",
		mcp.ObjectSchema("Chat turn", map[string]interface{}{
			"owner_id": ownerIDProperty,
			"message": map[string]interface{}{
				"type":      "string",
				"maxLength": agent.MaxMessageLen,
			},
			"chat_history": map[string]interface{}{
				"type":     "array",
				"maxItems": agent.MaxHistory,
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"type": map[string]interface{}{
							"type": "string",
							"enum": []string{agent.TurnHuman, agent.TurnAI, agent.TurnSystem},
						},
						"content": map[string]interface{}{"type": "string"},
					},
					"required": []string{"type", "content"},
				},
			},
		}, []string{"message"}),
	), mcp.ToolHandlerFunc(ts.handleAgentChat))
}

func idNameSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":   map[string]interface{}{"type": "integer"},
			"name": map[string]interface{}{"type": "string"},
		},
		"required": []string{"id", "name"},
	}
}

func (ts *TaskServer) handleEstimateTime(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in estimateArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	task := features.TaskInput{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Deadline:    in.Deadline,
		ProjectID:   in.ProjectID,
		CategoryID:  in.CategoryID,
		Tags:        in.Tags,
	}
	if in.Explain {
		return ts.estimator.Explain(task)
	}
	return ts.estimator.Estimate(task)
}

func (ts *TaskServer) handleSuggest(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req suggest.SuggestionRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	// a present list, even an empty one, replaces the stored catalog
	if provided(args, "categories") && req.Categories == nil {
		req.Categories = []catalog.Category{}
	}
	if provided(args, "projects") && req.Projects == nil {
		req.Projects = []catalog.Project{}
	}
	ownerID, err := resolveOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	req.OwnerID = ownerID

	resp, err := ts.suggester.Suggest(ctx, req)
	if err != nil {
		ts.logger.ErrorContext(ctx, "Suggestion tool failed", "owner_id", req.OwnerID, "error", err)
		return nil, err
	}
	return resp, nil
}

func (ts *TaskServer) handleFindSimilar(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var in similarArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	ownerID, err := resolveOwner(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, mcperrors.NewValidationError("text", "text is required")
	}

	limit := in.Limit
	switch {
	case limit <= 0:
		limit = defaultSimilarLimit
	case limit > maxSimilarLimit:
		limit = maxSimilarLimit
	}

	matches, err := ts.finder.Query(ctx, in.Text, ownerID, limit)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []similarity.Match{}
	}
	return map[string]interface{}{"matches": matches}, nil
}

func (ts *TaskServer) handleAgentChat(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var req agent.ChatRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	ownerID, err := resolveOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	req.OwnerID = ownerID

	resp, err := ts.agent.Chat(ctx, req)
	if err != nil {
		ts.logger.ErrorContext(ctx, "Agent chat tool failed", "owner_id", ownerID, "error", err)
		return nil, err
	}
	return resp, nil
}

func provided(args map[string]interface{}, key string) bool {
	v, ok := args[key]
	return ok && v != nil
}

// decodeArgs maps loosely typed tool arguments onto out. JSON numbers arrive
// as float64, so weak typing is on.
func decodeArgs(args map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return mcperrors.WrapValidationError(fmt.Errorf("invalid arguments: %w", err), "arguments")
	}
	return nil
}
