// Package storage holds the vector store backends behind the similarity index.
package storage

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector does not match the store's size
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Record is one embedded task document
type Record struct {
	TaskID   int64
	OwnerID  int64
	Text     string
	Vector   []float32
	Metadata map[string]interface{}
}

// SearchHit is a stored record returned by a nearest-neighbour search.
// Distance is cosine distance, 0 for identical direction and 2 for opposite.
type SearchHit struct {
	TaskID   int64
	Distance float64
	Text     string
	Metadata map[string]interface{}
}

// VectorStore persists task embeddings and answers owner-scoped
// nearest-neighbour queries. Upsert replaces any previous record for the
// same task id. Delete of a missing id is not an error.
type VectorStore interface {
	Initialize(ctx context.Context) error
	Upsert(ctx context.Context, record Record) error
	Search(ctx context.Context, vector []float32, ownerID int64, k int) ([]SearchHit, error)
	Delete(ctx context.Context, taskID int64) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// Payload keys written alongside every vector
const (
	PayloadOwnerID  = "owner_id"
	PayloadTaskID   = "task_id"
	PayloadDocument = "document"
)
