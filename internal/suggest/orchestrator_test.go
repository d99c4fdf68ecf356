package suggest

import (
	"context"
	"errors"
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

type stubCatalog struct {
	categories []catalog.Category
	projects   []catalog.Project
	err        error
	calls      int
}

func (s *stubCatalog) Categories(context.Context, int64) ([]catalog.Category, error) {
	s.calls++
	return s.categories, s.err
}

func (s *stubCatalog) Projects(context.Context, int64) ([]catalog.Project, error) {
	s.calls++
	return s.projects, s.err
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

func defaultCatalog() *stubCatalog {
	return &stubCatalog{
		categories: []catalog.Category{{ID: 1, Name: "Work"}, {ID: 2, Name: "Personal"}},
		projects:   []catalog.Project{{ID: 10, Name: "Reporting"}},
	}
}

func TestSuggest_HappyPath(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Upsert(ctx, 1, "Prepare monthly finance report", 42, map[string]interface{}{"category_id": int64(1)}))

	llm := ai.NewMockClient(`{"category_id": 1, "project_id": 10, "tags": "Finance, Report", "priority": 2, "urgency_score": 0.6, "importance_score": 0.8, "confidence_score": 0.75}`)
	o := NewOrchestrator(idx, llm, defaultCatalog(), Config{}, nil)

	resp, err := o.Suggest(ctx, SuggestionRequest{Title: "Prepare quarterly finance report", OwnerID: 42})
	require.NoError(t, err)

	assert.Equal(t, int64(1), *resp.CategoryID)
	assert.Equal(t, int64(10), *resp.ProjectID)
	assert.Equal(t, "finance,report", *resp.Tags)
	assert.Equal(t, 2, *resp.Priority)
	assert.InDelta(t, 0.6, *resp.UrgencyScore, 1e-9)
	assert.InDelta(t, 0.8, *resp.ImportanceScore, 1e-9)
	assert.InDelta(t, 0.75, *resp.ConfidenceScore, 1e-9)
	assert.NotEmpty(t, resp.RawReply)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].JSONMode)
	assert.Equal(t, systemPrompt, reqs[0].SystemMessage)
	assert.Contains(t, reqs[0].Prompt, "Task ID: 1, Title: 'Prepare monthly finance report...'")
	assert.Contains(t, reqs[0].Prompt, "- ID: 10, Name: 'Reporting'")
}

func TestSuggest_FallbackConfidenceAndDefaults(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Upsert(ctx, 1, "Renew passport", 5, nil))

	llm := ai.NewMockClient(`{"priority": 3}`)
	o := NewOrchestrator(idx, llm, defaultCatalog(), Config{}, nil)

	resp, err := o.Suggest(ctx, SuggestionRequest{Title: "Renew passport", OwnerID: 5})
	require.NoError(t, err)

	// identical text has distance 0, so confidence is 1
	require.NotNil(t, resp.ConfidenceScore)
	assert.Equal(t, 1.0, *resp.ConfidenceScore)
	assert.Equal(t, 0.0, *resp.UrgencyScore)
	assert.Equal(t, 0.0, *resp.ImportanceScore)
	assert.Nil(t, resp.CategoryID)
	assert.Nil(t, resp.Tags)
}

func TestSuggest_NoSimilarTasksGivesZeroConfidence(t *testing.T) {
	llm := ai.NewMockClient(`{}`)
	o := NewOrchestrator(newTestIndex(t), llm, defaultCatalog(), Config{}, nil)

	resp, err := o.Suggest(context.Background(), SuggestionRequest{Title: "Something new", OwnerID: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, *resp.ConfidenceScore)
	assert.Contains(t, llm.Requests()[0].Prompt, NoSimilarTasks)
}

func TestSuggest_ClampsAndDropsUnknownIDs(t *testing.T) {
	llm := ai.NewMockClient(`{"category_id": 99, "project_id": 10, "priority": 42, "urgency_score": 1.7, "importance_score": -0.2, "confidence_score": 3, "tags": " , "}`)
	o := NewOrchestrator(newTestIndex(t), llm, defaultCatalog(), Config{}, nil)

	resp, err := o.Suggest(context.Background(), SuggestionRequest{Title: "Plan", OwnerID: 1})
	require.NoError(t, err)

	assert.Nil(t, resp.CategoryID)
	assert.Equal(t, int64(10), *resp.ProjectID)
	assert.Equal(t, MaxPriority, *resp.Priority)
	assert.Equal(t, 1.0, *resp.UrgencyScore)
	assert.Equal(t, 0.0, *resp.ImportanceScore)
	assert.Equal(t, 1.0, *resp.ConfidenceScore)
	assert.Nil(t, resp.Tags)
}

func TestSuggest_ModelFailureReturnsFallback(t *testing.T) {
	llm := &ai.MockClient{Err: mcperrors.WrapAIServiceError(errors.New("429 too many requests"), "gpt-4o", "chat_completion")}
	o := NewOrchestrator(newTestIndex(t), llm, defaultCatalog(), Config{}, nil)

	resp, err := o.Suggest(context.Background(), SuggestionRequest{Title: "Plan", OwnerID: 1})
	require.NoError(t, err)

	assert.Nil(t, resp.CategoryID)
	assert.Nil(t, resp.ProjectID)
	assert.Nil(t, resp.Tags)
	assert.Nil(t, resp.Priority)
	assert.Equal(t, 0.0, *resp.UrgencyScore)
	assert.Equal(t, 0.0, *resp.ImportanceScore)
	assert.Equal(t, 0.0, *resp.ConfidenceScore)
	assert.Empty(t, resp.RawReply)
}

func TestSuggest_UnparsableReply(t *testing.T) {
	o := NewOrchestrator(newTestIndex(t), ai.NewMockClient("no idea"), defaultCatalog(), Config{}, nil)

	_, err := o.Suggest(context.Background(), SuggestionRequest{Title: "Plan", OwnerID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSuggestionParse)
}

func TestSuggest_SimilarityFailureIsNotFatal(t *testing.T) {
	llm := ai.NewMockClient(`{"priority": 5}`)
	o := NewOrchestrator(brokenQuerier{}, llm, defaultCatalog(), Config{}, nil)

	resp, err := o.Suggest(context.Background(), SuggestionRequest{Title: "Plan", OwnerID: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, *resp.Priority)
	assert.Contains(t, llm.Requests()[0].Prompt, NoSimilarTasks)
}

func TestSuggest_RequestCatalogOverridesStore(t *testing.T) {
	store := defaultCatalog()
	llm := ai.NewMockClient(`{"category_id": 1}`)
	o := NewOrchestrator(newTestIndex(t), llm, store, Config{}, nil)

	resp, err := o.Suggest(context.Background(), SuggestionRequest{
		Title:      "Plan",
		OwnerID:    1,
		Categories: []catalog.Category{},
		Projects:   []catalog.Project{{ID: 3, Name: "Garden"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.calls)
	assert.Nil(t, resp.CategoryID, "category 1 is not in the request's empty list")
	prompt := llm.Requests()[0].Prompt
	assert.Contains(t, prompt, NoCategories)
	assert.Contains(t, prompt, "- ID: 3, Name: 'Garden'")
}

func TestSuggest_CatalogErrorIsNotFatal(t *testing.T) {
	store := &stubCatalog{err: errors.New("db down")}
	llm := ai.NewMockClient(`{}`)
	o := NewOrchestrator(newTestIndex(t), llm, store, Config{}, nil)

	_, err := o.Suggest(context.Background(), SuggestionRequest{Title: "Plan", OwnerID: 1})
	require.NoError(t, err)
	assert.Contains(t, llm.Requests()[0].Prompt, NoProjects)
}

func TestSuggest_Validation(t *testing.T) {
	llm := ai.NewMockClient(`{}`)
	o := NewOrchestrator(newTestIndex(t), llm, nil, Config{}, nil)
	long := make([]rune, MaxTitleLen+1)
	for i := range long {
		long[i] = 'x'
	}

	for name, req := range map[string]SuggestionRequest{
		"empty title": {Title: "   ", OwnerID: 1},
		"long title":  {Title: string(long), OwnerID: 1},
		"no owner":    {Title: "Plan"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := o.Suggest(context.Background(), req)
			require.Error(t, err)
			assert.True(t, mcperrors.IsValidation(err))
		})
	}
	assert.Empty(t, llm.Requests())
}

func TestFallbackConfidence(t *testing.T) {
	m := func(ds ...float64) []similarity.Match {
		out := make([]similarity.Match, len(ds))
		for i, d := range ds {
			out[i] = similarity.Match{TaskID: int64(i), Distance: d}
		}
		return out
	}

	assert.Equal(t, 0.0, FallbackConfidence(nil, 1))
	assert.Equal(t, 0.8, FallbackConfidence(m(0.1, 0.3), 1))
	assert.Equal(t, 0.0, FallbackConfidence(m(1.5), 1))
	assert.Equal(t, 0.25, FallbackConfidence(m(1.5), 2))
	assert.Equal(t, 0.67, FallbackConfidence(m(1.0/3), 1))
}
