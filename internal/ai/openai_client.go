package ai

import (
	"context"
	"fmt"
	"time"

	"taskflow-ai/internal/config"
	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/ratelimit"

	"github.com/sashabaranov/go-openai"
)

const providerOpenAI = "openai"

// OpenAIClient implements AIClient on the OpenAI chat completions API. Any
// OpenAI-compatible server can be used through BaseURL.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	rateLimiter *ratelimit.Limiter
}

// NewOpenAIClient creates a new OpenAI chat client
func NewOpenAIClient(cfg *config.OpenAIConfig, limiter *ratelimit.Limiter) (*OpenAIClient, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.ChatModel
	if model == "" {
		model = openai.GPT4o
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		rateLimiter: limiter,
	}, nil
}

// Model returns the default chat model
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends the system message, any history and the prompt, and returns
// the first choice
func (c *OpenAIClient) Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	if err := ValidateRequest(request); err != nil {
		return nil, mcperrors.WrapValidationError(err, "prompt")
	}

	model := request.Model
	if model == "" {
		model = c.model
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, mcperrors.WrapAIServiceError(fmt.Errorf("rate limiter: %w", err), model, "complete")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(model, request))
	if err != nil {
		return nil, mcperrors.WrapAIServiceError(fmt.Errorf("chat completion failed: %w", err), model, "complete")
	}
	if len(resp.Choices) == 0 {
		return nil, mcperrors.WrapAIServiceError(ErrEmptyResponse, model, "complete")
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Provider:     providerOpenAI,
		Usage: TokenUsage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *OpenAIClient) buildRequest(model string, request CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(request.History)+2)
	if request.SystemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.SystemMessage,
		})
	}
	for _, m := range request.History {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: request.Prompt,
	})

	maxTokens := request.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := c.temperature
	if request.Temperature != nil {
		temperature = *request.Temperature
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}
	if request.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}
