package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore keeps records in process and searches them exhaustively
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[int64]Record
	dimensions int
}

// NewMemoryStore creates an empty store. dimensions <= 0 accepts the size of
// the first vector written.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{
		records:    make(map[int64]Record),
		dimensions: dimensions,
	}
}

func (m *MemoryStore) Initialize(ctx context.Context) error {
	return nil
}

// Upsert stores a copy of record, replacing any earlier one for the task
func (m *MemoryStore) Upsert(ctx context.Context, record Record) error {
	if len(record.Vector) == 0 {
		return fmt.Errorf("record %d has no vector", record.TaskID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimensions <= 0 {
		m.dimensions = len(record.Vector)
	}
	if len(record.Vector) != m.dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(record.Vector), m.dimensions)
	}

	stored := record
	stored.Vector = append([]float32(nil), record.Vector...)
	stored.Metadata = copyMetadata(record.Metadata)
	stored.Metadata[PayloadOwnerID] = record.OwnerID
	stored.Metadata[PayloadTaskID] = record.TaskID
	m.records[record.TaskID] = stored
	return nil
}

// Search returns up to k records of ownerID ordered by cosine distance, ties by task id
func (m *MemoryStore) Search(ctx context.Context, vector []float32, ownerID int64, k int) ([]SearchHit, error) {
	if k <= 0 {
		return []SearchHit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dimensions > 0 && len(vector) != m.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), m.dimensions)
	}

	hits := make([]SearchHit, 0, len(m.records))
	for _, rec := range m.records {
		if rec.OwnerID != ownerID {
			continue
		}
		hits = append(hits, SearchHit{
			TaskID:   rec.TaskID,
			Distance: CosineDistance(vector, rec.Vector),
			Text:     rec.Text,
			Metadata: copyMetadata(rec.Metadata),
		})
	}

	SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStore) Delete(ctx context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, taskID)
	return nil
}

func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len reports how many records are stored
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// CosineDistance is 1 - cosine similarity. A zero vector is at distance 1
// from everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

// SortHits orders hits by ascending distance, then by task id
func SortHits(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].TaskID < hits[j].TaskID
	})
}

func copyMetadata(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src)+2)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
