package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/persistence"
)

const taskColumns = `id, owner_id, title, description, status, deadline, priority,
	urgency_score, importance_score, project_id, category_id, tags,
	initial_estimated_time_hours, ai_estimated_time_hours, confidence_score,
	actual_time_spent_hours, started_at, completed_at`

// SQLSource reads tasks from the application's tasks table
type SQLSource struct {
	db *persistence.DB
}

// NewSQLSource creates a source over db
func NewSQLSource(db *persistence.DB) *SQLSource {
	return &SQLSource{db: db}
}

// EachTask streams tasks ordered by id
func (s *SQLSource) EachTask(ctx context.Context, ownerID int64, fn func(Task) error) error {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []interface{}
	if ownerID > 0 {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return mcperrors.WrapDatabaseError(fmt.Errorf("failed to query tasks: %w", err), "list_tasks")
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return mcperrors.WrapDatabaseError(err, "list_tasks")
		}
		if err := fn(*t); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return mcperrors.WrapDatabaseError(err, "list_tasks")
	}
	return nil
}

// GetTask loads one task. Unknown ids yield ErrTaskNotFound.
func (s *SQLSource) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, mcperrors.WrapDatabaseError(err, "get_task")
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t                                          Task
		description, status, tags                  sql.NullString
		deadline, startedAt, completedAt           sql.NullTime
		priority                                   sql.NullInt64
		projectID, categoryID                      sql.NullInt64
		urgency, importance                        sql.NullFloat64
		initialEst, aiEst, confidence, actualSpent sql.NullFloat64
	)

	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &description, &status, &deadline, &priority,
		&urgency, &importance, &projectID, &categoryID, &tags,
		&initialEst, &aiEst, &confidence,
		&actualSpent, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = nullString(description)
	t.Tags = nullString(tags)
	if status.Valid {
		t.Status = Status(status.String)
	}
	t.Deadline = nullTime(deadline)
	t.StartedAt = nullTime(startedAt)
	t.CompletedAt = nullTime(completedAt)
	if priority.Valid {
		p := int(priority.Int64)
		t.Priority = &p
	}
	t.ProjectID = nullInt64(projectID)
	t.CategoryID = nullInt64(categoryID)
	t.UrgencyScore = nullFloat(urgency)
	t.ImportanceScore = nullFloat(importance)
	t.InitialEstimatedTimeHours = nullFloat(initialEst)
	t.AIEstimatedTimeHours = nullFloat(aiEst)
	t.ConfidenceScore = nullFloat(confidence)
	t.ActualTimeSpentHours = nullFloat(actualSpent)
	return &t, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
