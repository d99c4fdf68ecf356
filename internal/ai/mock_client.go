package ai

import (
	"context"
	"sync"
	"time"
)

// OfflineReply is the answer of the offline chat provider: no attribute
// suggested, so callers fall back to their defaults.
const OfflineReply = "{}"

// MockClient is a scripted AIClient for tests and offline runs. Responses are
// returned in order; the last one repeats once the script is exhausted.
type MockClient struct {
	Responses     []string
	Err           error
	ResponseDelay time.Duration

	mu       sync.Mutex
	requests []CompletionRequest
}

// NewOfflineClient answers every prompt with OfflineReply
func NewOfflineClient() *MockClient {
	return NewMockClient(OfflineReply)
}

// NewMockClient creates a mock answering with responses
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{Responses: responses}
}

// Model implements AIClient
func (m *MockClient) Model() string { return "mock-model-1.0" }

// Complete records the request and returns the next scripted response
func (m *MockClient) Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, request)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return nil, ErrEmptyResponse
	}

	idx := len(m.requests) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	content := m.Responses[idx]
	return &CompletionResponse{
		Content:  content,
		Model:    m.Model(),
		Provider: "mock",
		Usage: TokenUsage{
			Input:  len(request.Prompt) / 4,
			Output: len(content) / 4,
			Total:  (len(request.Prompt) + len(content)) / 4,
		},
	}, nil
}

// Requests returns a copy of the requests received so far
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}
