// Package embeddings turns task text into fixed-length vectors.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when asked to embed blank text
var ErrEmptyText = errors.New("text cannot be empty")

// Embedder produces fixed-length vectors for text. Every vector returned by
// one Embedder has Dimensions() entries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}
