// Package ai provides the chat completion clients used to generate task
// suggestions.
package ai

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the provider answers without any choice
var ErrEmptyResponse = errors.New("empty response from AI provider")

// AIClient defines the simplified interface for AI providers
type AIClient interface {
	// Complete sends a completion request to the AI provider
	Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)

	// Model is the default model used when a request does not name one
	Model() string
}

// Message roles accepted in a completion history
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one earlier turn of a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a request to an AI model
type CompletionRequest struct {
	Prompt        string `json:"prompt"`
	Model         string `json:"model,omitempty"`
	SystemMessage string `json:"system_message,omitempty"`

	// History is sent between the system message and Prompt, oldest first
	History []Message `json:"history,omitempty"`

	// Zero values fall back to the client's configuration
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// JSONMode asks the provider to answer with a single JSON object
	JSONMode bool `json:"json_mode,omitempty"`
}

// CompletionResponse represents a response from an AI model
type CompletionResponse struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Provider     string     `json:"provider"`
}

// TokenUsage reports token consumption for one call
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// ValidateRequest checks that a request carries a prompt
func ValidateRequest(request CompletionRequest) error {
	if strings.TrimSpace(request.Prompt) == "" {
		return errors.New("prompt cannot be empty")
	}
	for _, m := range request.History {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return errors.New("history role must be system, user or assistant")
		}
	}
	if request.MaxTokens < 0 {
		return errors.New("max tokens cannot be negative")
	}
	if request.Temperature != nil && (*request.Temperature < 0 || *request.Temperature > 2) {
		return errors.New("temperature must be between 0 and 2")
	}
	return nil
}
