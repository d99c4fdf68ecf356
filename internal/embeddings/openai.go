package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskflow-ai/internal/config"
	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/ratelimit"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dimensions  int
	timeout     time.Duration
	rateLimiter *ratelimit.Limiter
}

// NewOpenAIEmbedder builds an embedder from the OpenAI settings. dimensions
// is forwarded to models that support shortening (text-embedding-3-*).
func NewOpenAIEmbedder(cfg *config.OpenAIConfig, dimensions int, limiter *ratelimit.Limiter) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if dimensions <= 0 {
		dimensions = ModelDimensions(cfg.EmbeddingModel)
	}

	return &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.EmbeddingModel,
		dimensions:  dimensions,
		timeout:     timeout,
		rateLimiter: limiter,
	}
}

// ModelDimensions returns the native vector size of known OpenAI models
func ModelDimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002", "text-embedding-3-small":
		return 1536
	default:
		return 1536
	}
}

// Embed returns the vector for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, mcperrors.WrapEmbeddingError(fmt.Errorf("rate limiter: %w", err), e.model, "embed")
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	}
	if strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dimensions
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(timeoutCtx, req)
	if err != nil {
		return nil, mcperrors.WrapEmbeddingError(fmt.Errorf("failed to create embedding: %w", err), e.model, "embed")
	}
	if len(resp.Data) != len(texts) {
		return nil, mcperrors.WrapEmbeddingError(
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)), e.model, "embed")
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, mcperrors.WrapEmbeddingError(errors.New("embedding index out of range"), e.model, "embed")
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if len(v) != e.dimensions {
			return nil, mcperrors.WrapEmbeddingError(
				fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), e.dimensions), e.model, "embed")
		}
	}
	return out, nil
}

// Dimensions returns the vector size
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Model returns the embedding model name
func (e *OpenAIEmbedder) Model() string { return e.model }
