package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// TaskStore provides task CRUD scoped to an owning user.
type TaskStore struct {
	store *Store
}

// NewTaskStore creates a new task store.
func NewTaskStore(store *Store) *TaskStore {
	return &TaskStore{store: store}
}

// Create inserts a task under one of the user's projects.
func (s *TaskStore) Create(ctx context.Context, userID, projectID int64, name string) (*models.Task, error) {
	if name == "" {
		return nil, apperr.Invalidf("task name is required")
	}
	// Ownership of the parent project gates creation.
	var project Project
	err := s.store.DB.WithContext(ctx).First(&project, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("project %d", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project.UserID != userID {
		return nil, fmt.Errorf("%w: project %d", apperr.ErrForbidden, projectID)
	}

	row := Task{UserID: userID, ProjectID: projectID, Name: name}
	if err := s.store.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return row.toModel(), nil
}

// GetByID fetches a task, distinguishing missing from foreign-owned.
func (s *TaskStore) GetByID(ctx context.Context, userID, id int64) (*models.Task, error) {
	var row Task
	err := s.store.DB.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("task %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if row.UserID != userID {
		return nil, fmt.Errorf("%w: task %d", apperr.ErrForbidden, id)
	}
	return row.toModel(), nil
}

// List returns the user's tasks, optionally filtered by project.
func (s *TaskStore) List(ctx context.Context, userID int64, projectID *int64) ([]*models.Task, error) {
	q := s.store.DB.WithContext(ctx).Where("user_id = ?", userID)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}
	var rows []Task
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]*models.Task, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// Update modifies name or completed state. Nil fields are untouched.
func (s *TaskStore) Update(ctx context.Context, userID, id int64, name *string, completed *bool) (*models.Task, error) {
	if _, err := s.GetByID(ctx, userID, id); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if name != nil {
		if *name == "" {
			return nil, apperr.Invalidf("task name is required")
		}
		updates["name"] = *name
	}
	if completed != nil {
		updates["completed"] = *completed
	}
	if len(updates) > 0 {
		if err := s.store.DB.WithContext(ctx).
			Model(&Task{}).Where("id = ?", id).
			Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update task: %w", err)
		}
	}
	return s.GetByID(ctx, userID, id)
}

// Delete removes a task and its entries.
func (s *TaskStore) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.GetByID(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&TimeEntry{}).Error; err != nil {
			return fmt.Errorf("delete task entries: %w", err)
		}
		if err := tx.Delete(&Task{}, id).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}
