package tasks

import (
	"context"
	"errors"
	"fmt"

	"taskflow-ai/internal/logging"
)

// Indexer is the part of the similarity index the syncer writes to
type Indexer interface {
	Upsert(ctx context.Context, taskID int64, text string, ownerID int64, metadata map[string]interface{}) error
	Delete(ctx context.Context, taskID int64) error
}

// Source streams tasks from the system of record
type Source interface {
	// EachTask calls fn for every task, or for ownerID's tasks when ownerID > 0.
	// Iteration stops at the first error returned by fn.
	EachTask(ctx context.Context, ownerID int64, fn func(Task) error) error
	GetTask(ctx context.Context, id int64) (*Task, error)
}

// ErrTaskNotFound is returned by a Source for unknown ids
var ErrTaskNotFound = errors.New("task not found")

// ReindexResult summarizes a Reindex run
type ReindexResult struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Syncer applies task lifecycle events to the similarity index
type Syncer struct {
	index   Indexer
	source  Source
	flatten bool
	logger  logging.Logger
}

// NewSyncer creates a syncer. source may be nil when only lifecycle hooks are
// used. flatten reduces Markdown descriptions to plain text before embedding.
func NewSyncer(index Indexer, source Source, flatten bool, logger logging.Logger) *Syncer {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Syncer{
		index:   index,
		source:  source,
		flatten: flatten,
		logger:  logger.WithComponent("task_syncer"),
	}
}

// OnCreated embeds a new task. Tasks without text are skipped.
func (s *Syncer) OnCreated(ctx context.Context, t Task) error {
	_, err := s.write(ctx, t)
	return err
}

// OnUpdated re-embeds the task only when NeedsReembed says so. It reports
// whether the index was written.
func (s *Syncer) OnUpdated(ctx context.Context, old, updated Task) (bool, error) {
	if !NeedsReembed(old, updated) {
		s.logger.DebugContext(ctx, "No relevant fields changed, skipping re-embed", "task_id", updated.ID)
		return false, nil
	}
	return s.write(ctx, updated)
}

// OnDeleted removes the task's embedding
func (s *Syncer) OnDeleted(ctx context.Context, taskID int64) error {
	if err := s.index.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete embedding for task %d: %w", taskID, err)
	}
	s.logger.InfoContext(ctx, "Task embedding deleted", "task_id", taskID)
	return nil
}

// Reindex streams every task of ownerID (all owners when ownerID <= 0) into
// the index. Per-task failures are counted and logged; only a failing source
// or a cancelled context aborts the run.
func (s *Syncer) Reindex(ctx context.Context, ownerID int64) (ReindexResult, error) {
	var result ReindexResult
	if s.source == nil {
		return result, errors.New("reindex requires a task source")
	}

	err := s.source.EachTask(ctx, ownerID, func(t Task) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		written, err := s.write(ctx, t)
		switch {
		case err != nil:
			result.Failed++
			s.logger.WarnContext(ctx, "Failed to index task", "task_id", t.ID, "error", err)
		case written:
			result.Indexed++
		default:
			result.Skipped++
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("reindex aborted: %w", err)
	}

	s.logger.InfoContext(ctx, "Reindex completed",
		"owner_id", ownerID,
		"indexed", result.Indexed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// ReindexTask re-embeds one task read from the source. A task the source no
// longer has is removed from the index. It reports whether the index was
// written.
func (s *Syncer) ReindexTask(ctx context.Context, taskID int64) (bool, error) {
	if s.source == nil {
		return false, errors.New("reindex requires a task source")
	}
	t, err := s.source.GetTask(ctx, taskID)
	if errors.Is(err, ErrTaskNotFound) {
		s.logger.InfoContext(ctx, "Task no longer exists, removing embedding", "task_id", taskID)
		return false, s.OnDeleted(ctx, taskID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to load task %d: %w", taskID, err)
	}
	return s.write(ctx, *t)
}

func (s *Syncer) write(ctx context.Context, t Task) (bool, error) {
	doc := Document(t, s.flatten)
	if doc == "" {
		s.logger.InfoContext(ctx, "Task has no text, skipping embedding", "task_id", t.ID)
		return false, nil
	}
	if err := s.index.Upsert(ctx, t.ID, doc, t.OwnerID, Metadata(t)); err != nil {
		return false, fmt.Errorf("failed to index task %d: %w", t.ID, err)
	}
	return true, nil
}
