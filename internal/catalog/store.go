// Package catalog reads the categories and projects a user can assign tasks to.
package catalog

import (
	"context"
	"fmt"

	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/persistence"
)

// Category is a user-defined task category
type Category struct {
	ID   int64  `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

// Project groups tasks of one user
type Project struct {
	ID          int64  `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// Store lists an owner's categories and projects
type Store interface {
	Categories(ctx context.Context, ownerID int64) ([]Category, error)
	Projects(ctx context.Context, ownerID int64) ([]Project, error)
}

// SQLStore reads the categories and projects tables
type SQLStore struct {
	db *persistence.DB
}

// NewSQLStore creates a catalog over db
func NewSQLStore(db *persistence.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Categories returns ownerID's categories ordered by id
func (s *SQLStore) Categories(ctx context.Context, ownerID int64) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT id, name FROM categories WHERE owner_id = ? ORDER BY id`), ownerID)
	if err != nil {
		return nil, mcperrors.WrapDatabaseError(fmt.Errorf("failed to query categories: %w", err), "list_categories")
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, mcperrors.WrapDatabaseError(err, "list_categories")
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mcperrors.WrapDatabaseError(err, "list_categories")
	}
	return categories, nil
}

// Projects returns ownerID's projects ordered by id
func (s *SQLStore) Projects(ctx context.Context, ownerID int64) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT id, name, COALESCE(description, '') FROM projects WHERE owner_id = ? ORDER BY id`), ownerID)
	if err != nil {
		return nil, mcperrors.WrapDatabaseError(fmt.Errorf("failed to query projects: %w", err), "list_projects")
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, mcperrors.WrapDatabaseError(err, "list_projects")
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mcperrors.WrapDatabaseError(err, "list_projects")
	}
	return projects, nil
}

// Empty is a Store with nothing in it, used when no database is configured
type Empty struct{}

func (Empty) Categories(context.Context, int64) ([]Category, error) { return []Category{}, nil }
func (Empty) Projects(context.Context, int64) ([]Project, error)    { return []Project{}, nil }
