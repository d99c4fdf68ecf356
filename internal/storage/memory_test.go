package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineDistance(tt.a, tt.b), 1e-9)
		})
	}
}

func TestMemoryStore_SearchOrdersAndScopes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	require.NoError(t, store.Upsert(ctx, Record{TaskID: 3, OwnerID: 1, Text: "c", Vector: []float32{0, 1}}))
	require.NoError(t, store.Upsert(ctx, Record{TaskID: 1, OwnerID: 1, Text: "a", Vector: []float32{1, 0}}))
	require.NoError(t, store.Upsert(ctx, Record{TaskID: 2, OwnerID: 1, Text: "b", Vector: []float32{2, 0}}))
	require.NoError(t, store.Upsert(ctx, Record{TaskID: 9, OwnerID: 2, Text: "other", Vector: []float32{1, 0}}))

	hits, err := store.Search(ctx, []float32{1, 0}, 1, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Tasks 1 and 2 tie at distance 0; the lower id comes first.
	assert.Equal(t, int64(1), hits[0].TaskID)
	assert.Equal(t, int64(2), hits[1].TaskID)
	assert.Equal(t, int64(3), hits[2].TaskID)
	assert.InDelta(t, 1.0, hits[2].Distance, 1e-9)
	assert.Equal(t, "a", hits[0].Text)
	assert.Equal(t, int64(1), hits[0].Metadata[PayloadOwnerID])
	assert.Equal(t, int64(1), hits[0].Metadata[PayloadTaskID])

	hits, err = store.Search(ctx, []float32{1, 0}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = store.Search(ctx, []float32{1, 0}, 42, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStore_NonPositiveK(t *testing.T) {
	store := NewMemoryStore(2)
	require.NoError(t, store.Upsert(context.Background(), Record{TaskID: 1, OwnerID: 1, Vector: []float32{1, 0}}))

	for _, k := range []int{0, -3} {
		hits, err := store.Search(context.Background(), []float32{1, 0}, 1, k)
		require.NoError(t, err)
		assert.Empty(t, hits)
	}
}

func TestMemoryStore_UpsertReplacesAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Upsert(ctx, Record{TaskID: 7, OwnerID: 1, Text: "old", Vector: []float32{1, 0}}))
	require.NoError(t, store.Upsert(ctx, Record{TaskID: 7, OwnerID: 1, Text: "new", Vector: []float32{0, 1}}))
	assert.Equal(t, 1, store.Len())

	hits, err := store.Search(ctx, []float32{0, 1}, 1, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Text)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)

	require.NoError(t, store.Delete(ctx, 7))
	require.NoError(t, store.Delete(ctx, 7))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Upsert(ctx, Record{TaskID: 1, OwnerID: 1, Vector: []float32{1, 0, 0}}))

	err := store.Upsert(ctx, Record{TaskID: 2, OwnerID: 1, Vector: []float32{1, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.Search(ctx, []float32{1, 0}, 1, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	assert.Error(t, store.Upsert(ctx, Record{TaskID: 3, OwnerID: 1}))
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	vec := []float32{1, 0}
	meta := map[string]interface{}{"status": "Done"}
	require.NoError(t, store.Upsert(ctx, Record{TaskID: 1, OwnerID: 1, Vector: vec, Metadata: meta}))

	vec[0], vec[1] = 0, 1
	meta["status"] = "Blocked"

	hits, err := store.Search(ctx, []float32{1, 0}, 1, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)
	assert.Equal(t, "Done", hits[0].Metadata["status"])
	_, hasOwner := meta[PayloadOwnerID]
	assert.False(t, hasOwner)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore(2).Search(ctx, []float32{1, 0}, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortHits(t *testing.T) {
	hits := []SearchHit{{TaskID: 5, Distance: 0.5}, {TaskID: 2, Distance: 0.5}, {TaskID: 9, Distance: 0.1}}
	SortHits(hits)
	assert.Equal(t, []int64{9, 2, 5}, []int64{hits[0].TaskID, hits[1].TaskID, hits[2].TaskID})
}
