// Package tasks models the task records owned by the main application and
// keeps the similarity index in step with them.
package tasks

import (
	"math"
	"strings"
	"time"

	"taskflow-ai/internal/documents"
	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/features"
)

// Status is a task's workflow state
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	StatusOnHold     Status = "On Hold"
	StatusCancelled  Status = "Cancelled"
	StatusBlocked    Status = "Blocked"

	// statusUnknown is written to the index when a task has no status
	statusUnknown = "Unknown"
	// missingRef stands in for a nil project or category id in index metadata
	missingRef int64 = -1
)

// AllStatuses lists the valid statuses in workflow order
var AllStatuses = []Status{StatusToDo, StatusInProgress, StatusDone, StatusOnHold, StatusCancelled, StatusBlocked}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus matches name case-insensitively against the known statuses
func ParseStatus(name string) (Status, bool) {
	name = strings.TrimSpace(name)
	for _, v := range AllStatuses {
		if strings.EqualFold(name, string(v)) {
			return v, true
		}
	}
	return "", false
}

// Task mirrors a row of the tasks table
type Task struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	Tags        *string    `json:"tags,omitempty"`

	UrgencyScore    *float64 `json:"urgency_score,omitempty"`
	ImportanceScore *float64 `json:"importance_score,omitempty"`

	InitialEstimatedTimeHours *float64 `json:"initial_estimated_time_hours,omitempty"`
	AIEstimatedTimeHours      *float64 `json:"ai_estimated_time_hours,omitempty"`
	ConfidenceScore           *float64 `json:"confidence_score,omitempty"`
	ActualTimeSpentHours      *float64 `json:"actual_time_spent_hours,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Validate rejects out-of-range values before they reach index metadata,
// which later feeds suggestion prompts.
func (t Task) Validate() error {
	if t.Status != "" && !t.Status.Valid() {
		return mcperrors.NewValidationError("status", "invalid task status %q", string(t.Status))
	}
	if err := features.ValidatePriority(t.Priority); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"urgency_score", t.UrgencyScore},
		{"importance_score", t.ImportanceScore},
		{"confidence_score", t.ConfidenceScore},
	} {
		if f.v != nil && (math.IsNaN(*f.v) || *f.v < 0 || *f.v > 1) {
			return mcperrors.NewValidationError(f.name, "%s must be between 0 and 1, got %v", f.name, *f.v)
		}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"initial_estimated_time_hours", t.InitialEstimatedTimeHours},
		{"ai_estimated_time_hours", t.AIEstimatedTimeHours},
		{"actual_time_spent_hours", t.ActualTimeSpentHours},
	} {
		if f.v != nil && (math.IsNaN(*f.v) || *f.v < 0) {
			return mcperrors.NewValidationError(f.name, "%s must not be negative, got %v", f.name, *f.v)
		}
	}
	return nil
}

// ComputeActualTime derives hours spent from the start and completion
// timestamps of a finished task. It returns nil unless the task is Done and
// completed no earlier than it started.
func ComputeActualTime(t Task) *float64 {
	if t.Status != StatusDone || t.StartedAt == nil || t.CompletedAt == nil {
		return nil
	}
	if t.CompletedAt.Before(*t.StartedAt) {
		return nil
	}
	hours := math.Round(t.CompletedAt.Sub(*t.StartedAt).Hours()*100) / 100
	return &hours
}

// Metadata builds the payload stored next to the task's embedding. Missing
// project and category become -1, priority defaults to 5 and an empty status
// becomes "Unknown". Nil scores and times are left out.
func Metadata(t Task) map[string]interface{} {
	meta := map[string]interface{}{
		"owner_id":    t.OwnerID,
		"task_id":     t.ID,
		"project_id":  refOrMissing(t.ProjectID),
		"category_id": refOrMissing(t.CategoryID),
		"priority":    features.DefaultPriority,
		"status":      statusUnknown,
	}
	if t.Priority != nil {
		meta["priority"] = *t.Priority
	}
	if t.Status != "" {
		meta["status"] = string(t.Status)
	}
	if t.Tags != nil {
		meta["tags"] = *t.Tags
	}
	putFloat(meta, "urgency_score", t.UrgencyScore)
	putFloat(meta, "importance_score", t.ImportanceScore)
	putFloat(meta, "ai_estimated_time_hours", t.AIEstimatedTimeHours)

	actual := t.ActualTimeSpentHours
	if actual == nil {
		actual = ComputeActualTime(t)
	}
	putFloat(meta, "actual_time_spent_hours", actual)
	return meta
}

// Document is the text embedded for t: title and description joined by a
// space and trimmed. With flatten the description is reduced from Markdown to
// plain text first.
func Document(t Task, flatten bool) string {
	desc := ""
	if t.Description != nil {
		desc = *t.Description
	}
	if flatten {
		desc = documents.PlainText(desc)
	}
	return strings.TrimSpace(t.Title + " " + desc)
}

// NeedsReembed reports whether any field that feeds the document or its
// metadata differs between old and updated.
func NeedsReembed(old, updated Task) bool {
	switch {
	case old.Title != updated.Title,
		!eqString(old.Description, updated.Description),
		!eqString(old.Tags, updated.Tags),
		!eqInt64(old.ProjectID, updated.ProjectID),
		!eqInt64(old.CategoryID, updated.CategoryID),
		!eqInt(old.Priority, updated.Priority),
		old.Status != updated.Status,
		!eqFloat(old.UrgencyScore, updated.UrgencyScore),
		!eqFloat(old.ImportanceScore, updated.ImportanceScore),
		!eqFloat(old.AIEstimatedTimeHours, updated.AIEstimatedTimeHours),
		!eqFloat(old.ActualTimeSpentHours, updated.ActualTimeSpentHours),
		!eqTime(old.StartedAt, updated.StartedAt),
		!eqTime(old.CompletedAt, updated.CompletedAt):
		return true
	}
	return false
}

// FeatureInput is the view of t read by the estimator
func (t Task) FeatureInput() features.TaskInput {
	in := features.TaskInput{
		Title:      t.Title,
		Priority:   t.Priority,
		ProjectID:  t.ProjectID,
		CategoryID: t.CategoryID,
	}
	if t.Description != nil {
		in.Description = *t.Description
	}
	if t.Deadline != nil {
		in.Deadline = *t.Deadline
	}
	if t.Tags != nil {
		in.Tags = *t.Tags
	}
	return in
}

func refOrMissing(id *int64) int64 {
	if id == nil {
		return missingRef
	}
	return *id
}

func putFloat(m map[string]interface{}, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
