package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskflow-ai/internal/ai"
	"taskflow-ai/internal/catalog"
	"taskflow-ai/internal/embeddings"
	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/similarity"
	"taskflow-ai/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct{}

func (stubCatalog) Categories(context.Context, int64) ([]catalog.Category, error) {
	return []catalog.Category{{ID: 1, Name: "Work"}}, nil
}

func (stubCatalog) Projects(context.Context, int64) ([]catalog.Project, error) {
	return nil, errors.New("catalog offline")
}

type brokenQuerier struct{}

func (brokenQuerier) Query(context.Context, string, int64, int) ([]similarity.Match, error) {
	return nil, errors.New("vector store unavailable")
}

func newTestIndex(t *testing.T) *similarity.Index {
	t.Helper()
	idx := similarity.NewIndex(storage.NewMemoryStore(64), embeddings.NewHashEmbedder(64), nil)
	require.NoError(t, idx.Initialize(context.Background()))
	return idx
}

func TestChat_GroundsOnOwnerTasks(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Upsert(ctx, 1, "Prepare monthly finance report", 42, map[string]interface{}{"task_id": int64(1)}))
	require.NoError(t, idx.Upsert(ctx, 2, "Confidential salary review", 7, map[string]interface{}{"task_id": int64(2)}))

	llm := ai.NewMockClient("Start with the finance report.")
	svc := NewService(idx, llm, stubCatalog{}, nil)

	resp, err := svc.Chat(ctx, ChatRequest{Message: "What should I do about the finance report?", OwnerID: 42})
	require.NoError(t, err)
	assert.Equal(t, "Start with the finance report.", resp.Response)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "What should I do about the finance report?", reqs[0].Prompt)
	assert.Contains(t, reqs[0].SystemMessage, "Prepare monthly finance report")
	assert.NotContains(t, reqs[0].SystemMessage, "salary")
	assert.Contains(t, reqs[0].SystemMessage, "- ID: 1, Name: 'Work'")
	assert.Contains(t, reqs[0].SystemMessage, "No projects available.")
	assert.False(t, reqs[0].JSONMode)
}

func TestChat_MapsHistory(t *testing.T) {
	llm := ai.NewMockClient("ok")
	svc := NewService(nil, llm, nil, nil)

	_, err := svc.Chat(context.Background(), ChatRequest{
		Message: "and tomorrow?",
		OwnerID: 3,
		ChatHistory: []Turn{
			{Type: "system", Content: "Answer in English."},
			{Type: "human", Content: "What is due today?"},
			{Type: "ai", Content: "The report."},
			{Type: "tool", Content: "ignored"},
			{Type: "Assistant", Content: "Anything else?"},
			{Type: "user", Content: "   "},
		},
	})
	require.NoError(t, err)

	req := llm.Requests()[0]
	assert.Equal(t, []ai.Message{
		{Role: ai.RoleSystem, Content: "Answer in English."},
		{Role: ai.RoleUser, Content: "What is due today?"},
		{Role: ai.RoleAssistant, Content: "The report."},
		{Role: ai.RoleAssistant, Content: "Anything else?"},
	}, req.History)
	assert.Contains(t, req.SystemMessage, "No similar tasks found.")
}

func TestChat_TruncatesHistory(t *testing.T) {
	llm := ai.NewMockClient("ok")
	svc := NewService(nil, llm, nil, nil)

	turns := make([]Turn, MaxHistory+5)
	for i := range turns {
		turns[i] = Turn{Type: TurnHuman, Content: strings.Repeat("x", i+1)}
	}
	_, err := svc.Chat(context.Background(), ChatRequest{Message: "hi", OwnerID: 1, ChatHistory: turns})
	require.NoError(t, err)

	history := llm.Requests()[0].History
	require.Len(t, history, MaxHistory)
	assert.Equal(t, strings.Repeat("x", 6), history[0].Content)
}

func TestChat_Validation(t *testing.T) {
	svc := NewService(nil, ai.NewMockClient("ok"), nil, nil)
	ctx := context.Background()

	for _, req := range []ChatRequest{
		{Message: "  ", OwnerID: 1},
		{Message: strings.Repeat("a", MaxMessageLen+1), OwnerID: 1},
		{Message: "hello", OwnerID: 0},
	} {
		_, err := svc.Chat(ctx, req)
		require.Error(t, err)
		assert.True(t, mcperrors.IsValidation(err))
	}
}

func TestChat_ModelFailureIsReturned(t *testing.T) {
	llm := ai.NewMockClient()
	llm.Err = mcperrors.WrapAIServiceError(errors.New("503 service unavailable"), "gpt-4o", "complete")
	svc := NewService(brokenQuerier{}, llm, nil, nil)

	_, err := svc.Chat(context.Background(), ChatRequest{Message: "plan my week", OwnerID: 1})
	require.Error(t, err)
	assert.Equal(t, mcperrors.CategoryOf(llm.Err), mcperrors.CategoryOf(err))
}
