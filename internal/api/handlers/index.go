package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskflow-ai/internal/api/middleware"
	"taskflow-ai/internal/api/response"
	"taskflow-ai/internal/logging"
	"taskflow-ai/internal/tasks"
)

// TaskIndexer keeps the similarity index in step with the task store
type TaskIndexer interface {
	OnCreated(ctx context.Context, t tasks.Task) error
	OnUpdated(ctx context.Context, old, updated tasks.Task) (bool, error)
	OnDeleted(ctx context.Context, taskID int64) error
}

// IndexTaskRequest is the body of PUT /api/v1/index/tasks/{id}: the task as
// stored now and, for updates, the task as it was before. With Previous set
// the embedding is only rewritten when a field it depends on changed.
type IndexTaskRequest struct {
	tasks.Task
	Previous *tasks.Task `json:"previous,omitempty"`
}

// IndexedResponse acknowledges an index write
type IndexedResponse struct {
	TaskID  int64 `json:"task_id"`
	Indexed bool  `json:"indexed"`
}

// IndexHandler exposes the task lifecycle hooks to the main application
type IndexHandler struct {
	indexer TaskIndexer
	logger  logging.Logger
}

// NewIndexHandler creates the index hook handler
func NewIndexHandler(indexer TaskIndexer, logger logging.Logger) *IndexHandler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &IndexHandler{indexer: indexer, logger: logger.WithComponent("api")}
}

// Upsert handles PUT /api/v1/index/tasks/{id}. The path id and the caller's
// owner id override whatever the body says. Out-of-range values are rejected.
func (h *IndexHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.WriteBadRequest(w, "invalid task id", chi.URLParam(r, "id"))
		return
	}

	var req IndexTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.WriteBadRequest(w, "invalid request body", err.Error())
		return
	}
	if err := req.Task.Validate(); err != nil {
		response.WriteFromError(w, "invalid task", err)
		return
	}

	ownerID := middleware.OwnerID(r.Context())
	task := req.Task
	task.ID = id
	task.OwnerID = ownerID

	indexed := true
	var err error
	if req.Previous != nil {
		previous := *req.Previous
		previous.ID = id
		previous.OwnerID = ownerID
		indexed, err = h.indexer.OnUpdated(r.Context(), previous, task)
	} else {
		err = h.indexer.OnCreated(r.Context(), task)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to index task", "task_id", id, "error", err)
		response.WriteFromError(w, "failed to index task", err)
		return
	}
	response.WriteJSON(w, http.StatusOK, IndexedResponse{TaskID: id, Indexed: indexed})
}

// Delete handles DELETE /api/v1/index/tasks/{id}. Unknown ids succeed.
func (h *IndexHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.WriteBadRequest(w, "invalid task id", chi.URLParam(r, "id"))
		return
	}

	if err := h.indexer.OnDeleted(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to remove task from index", "task_id", id, "error", err)
		response.WriteFromError(w, "failed to remove task from index", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
