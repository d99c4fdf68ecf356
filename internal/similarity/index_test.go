package similarity

import (
	"context"
	"errors"
	"testing"

	"taskflow-ai/internal/embeddings"
	"taskflow-ai/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex() (*Index, *storage.MemoryStore) {
	store := storage.NewMemoryStore(128)
	return NewIndex(store, embeddings.NewHashEmbedder(128), nil), store
}

type failingEmbedder struct{ embeddings.Embedder }

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func TestIndex_SelfQueryIsNearest(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex()

	require.NoError(t, idx.Upsert(ctx, 1, "Prepare quarterly finance report", 10, nil))
	require.NoError(t, idx.Upsert(ctx, 2, "Team meeting about sprint planning", 10, nil))
	require.NoError(t, idx.Upsert(ctx, 3, "Fix login page crash on Safari", 10, nil))

	matches, err := idx.Query(ctx, "Prepare quarterly finance report", 10, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, int64(1), matches[0].TaskID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
	assert.Equal(t, "Prepare quarterly finance report", matches[0].Document)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].Distance, matches[i].Distance)
	}
}

func TestIndex_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex()

	require.NoError(t, idx.Upsert(ctx, 1, "Write onboarding docs", 1, nil))
	require.NoError(t, idx.Upsert(ctx, 2, "Write onboarding docs", 2, nil))

	matches, err := idx.Query(ctx, "Write onboarding docs", 2, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].TaskID)

	matches, err = idx.Query(ctx, "Write onboarding docs", 3, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_MetadataCarriesIdentity(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex()

	meta := map[string]interface{}{"status": "Done", "owner_id": int64(999)}
	require.NoError(t, idx.Upsert(ctx, 5, "Deploy release", 4, meta))

	matches, err := idx.Query(ctx, "Deploy release", 4, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	typed, err := matches[0].Typed()
	require.NoError(t, err)
	assert.Equal(t, int64(4), typed.OwnerID)
	assert.Equal(t, int64(5), typed.TaskID)
	assert.Equal(t, "Done", typed.Status)
	// Caller's map is untouched.
	assert.Equal(t, int64(999), meta["owner_id"])
}

func TestIndex_BlankTextSkipped(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex()

	require.NoError(t, idx.Upsert(ctx, 1, "   \n\t", 1, nil))
	assert.Equal(t, 0, store.Len())

	matches, err := idx.Query(ctx, "  ", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_QueryLimits(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex()

	for id, text := range map[int64]string{1: "alpha task", 2: "beta task", 3: "gamma task"} {
		require.NoError(t, idx.Upsert(ctx, id, text, 1, nil))
	}

	matches, err := idx.Query(ctx, "task", 1, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = idx.Query(ctx, "task", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_Delete(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex()

	require.NoError(t, idx.Upsert(ctx, 1, "Renew SSL certificate", 1, nil))
	require.NoError(t, idx.Delete(ctx, 1))
	require.NoError(t, idx.Delete(ctx, 12345))
	assert.Equal(t, 0, store.Len())

	matches, err := idx.Query(ctx, "Renew SSL certificate", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex()

	require.NoError(t, idx.Upsert(ctx, 1, "Draft budget", 1, nil))
	require.NoError(t, idx.Upsert(ctx, 1, "Draft marketing plan", 1, nil))
	assert.Equal(t, 1, store.Len())

	matches, err := idx.Query(ctx, "Draft marketing plan", 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Draft marketing plan", matches[0].Document)
}

func TestIndex_EmbedderFailure(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(storage.NewMemoryStore(8), failingEmbedder{}, nil)

	err := idx.Upsert(ctx, 1, "anything", 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")

	_, err = idx.Query(ctx, "anything", 1, 3)
	require.Error(t, err)
}

func TestDecodeMetadata(t *testing.T) {
	raw := map[string]interface{}{
		"owner_id":                float64(3),
		"task_id":                 int64(9),
		"project_id":              int64(-1),
		"priority":                int64(2),
		"status":                  "In Progress",
		"tags":                    "urgent,report",
		"urgency_score":           0.9,
		"actual_time_spent_hours": int64(4),
		"importance_score":        nil,
	}

	meta, err := DecodeMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.OwnerID)
	assert.Equal(t, int64(9), meta.TaskID)
	require.NotNil(t, meta.ProjectID)
	assert.Equal(t, int64(-1), *meta.ProjectID)
	assert.Nil(t, meta.CategoryID)
	require.NotNil(t, meta.Priority)
	assert.Equal(t, 2, *meta.Priority)
	assert.Equal(t, "In Progress", meta.Status)
	assert.Equal(t, "urgent,report", meta.Tags)
	require.NotNil(t, meta.UrgencyScore)
	assert.Equal(t, 0.9, *meta.UrgencyScore)
	assert.Nil(t, meta.ImportanceScore)
	require.NotNil(t, meta.ActualTimeSpentHours)
	assert.Equal(t, 4.0, *meta.ActualTimeSpentHours)
}
