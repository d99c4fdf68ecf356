// Package similarity keeps an owner-scoped vector index of task documents.
package similarity

import (
	"context"
	"fmt"
	"strings"

	"taskflow-ai/internal/embeddings"
	"taskflow-ai/internal/logging"
	"taskflow-ai/internal/storage"
)

// Match is one similar task returned by Query
type Match struct {
	TaskID   int64                  `json:"task_id"`
	Distance float64                `json:"distance"`
	Document string                 `json:"document"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Index embeds task text and stores it in a vector store. Distances are
// cosine distances on every backend.
type Index struct {
	store    storage.VectorStore
	embedder embeddings.Embedder
	logger   logging.Logger
}

// NewIndex creates an index over store using embedder
func NewIndex(store storage.VectorStore, embedder embeddings.Embedder, logger logging.Logger) *Index {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Index{
		store:    store,
		embedder: embedder,
		logger:   logger.WithComponent("similarity_index"),
	}
}

// Initialize prepares the underlying store
func (i *Index) Initialize(ctx context.Context) error {
	return i.store.Initialize(ctx)
}

// Upsert embeds text and stores it under taskID, replacing any earlier entry.
// Blank text is skipped without error.
func (i *Index) Upsert(ctx context.Context, taskID int64, text string, ownerID int64, metadata map[string]interface{}) error {
	text = strings.TrimSpace(text)
	if text == "" {
		i.logger.InfoContext(ctx, "Task has no text, skipping embedding", "task_id", taskID)
		return nil
	}

	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed task %d: %w", taskID, err)
	}

	meta := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[storage.PayloadOwnerID] = ownerID
	meta[storage.PayloadTaskID] = taskID

	if err := i.store.Upsert(ctx, storage.Record{
		TaskID:   taskID,
		OwnerID:  ownerID,
		Text:     text,
		Vector:   vec,
		Metadata: meta,
	}); err != nil {
		return err
	}

	i.logger.DebugContext(ctx, "Task embedding stored", "task_id", taskID, "owner_id", ownerID)
	return nil
}

// Query returns at most k of ownerID's tasks nearest to text, by ascending
// distance then task id. Blank text or k <= 0 yields no matches.
func (i *Index) Query(ctx context.Context, text string, ownerID int64, k int) ([]Match, error) {
	text = strings.TrimSpace(text)
	if text == "" || k <= 0 {
		return []Match{}, nil
	}

	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := i.store.Search(ctx, vec, ownerID, k)
	if err != nil {
		return nil, err
	}
	storage.SortHits(hits)

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, Match{
			TaskID:   hit.TaskID,
			Distance: hit.Distance,
			Document: hit.Text,
			Metadata: hit.Metadata,
		})
	}

	i.logger.DebugContext(ctx, "Similarity query completed", "owner_id", ownerID, "requested", k, "results", len(matches))
	return matches, nil
}

// Delete removes taskID from the index. Missing ids are a no-op.
func (i *Index) Delete(ctx context.Context, taskID int64) error {
	return i.store.Delete(ctx, taskID)
}

// HealthCheck reports whether the backing store is reachable
func (i *Index) HealthCheck(ctx context.Context) error {
	return i.store.HealthCheck(ctx)
}

// Close releases the backing store
func (i *Index) Close() error {
	return i.store.Close()
}
