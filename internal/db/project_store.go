package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// ProjectStore provides project CRUD scoped to an owning user.
type ProjectStore struct {
	store *Store
}

// NewProjectStore creates a new project store.
func NewProjectStore(store *Store) *ProjectStore {
	return &ProjectStore{store: store}
}

// Create inserts a project for the user.
func (s *ProjectStore) Create(ctx context.Context, userID int64, name, color string) (*models.Project, error) {
	if name == "" {
		return nil, apperr.Invalidf("project name is required")
	}
	row := Project{UserID: userID, Name: name, Color: color}
	if err := s.store.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return row.toModel(), nil
}

// GetByID fetches a project, distinguishing missing from foreign-owned.
func (s *ProjectStore) GetByID(ctx context.Context, userID, id int64) (*models.Project, error) {
	var row Project
	err := s.store.DB.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("project %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if row.UserID != userID {
		return nil, fmt.Errorf("%w: project %d", apperr.ErrForbidden, id)
	}
	return row.toModel(), nil
}

// List returns the user's projects, optionally including archived ones.
func (s *ProjectStore) List(ctx context.Context, userID int64, includeArchived bool) ([]*models.Project, error) {
	q := s.store.DB.WithContext(ctx).Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	var rows []Project
	if err := q.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]*models.Project, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// Update modifies name, color or archived state. Nil fields are untouched.
func (s *ProjectStore) Update(ctx context.Context, userID, id int64, name, color *string, archived *bool) (*models.Project, error) {
	if _, err := s.GetByID(ctx, userID, id); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if name != nil {
		if *name == "" {
			return nil, apperr.Invalidf("project name is required")
		}
		updates["name"] = *name
	}
	if color != nil {
		updates["color"] = *color
	}
	if archived != nil {
		updates["archived"] = *archived
	}
	if len(updates) > 0 {
		if err := s.store.DB.WithContext(ctx).
			Model(&Project{}).Where("id = ?", id).
			Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update project: %w", err)
		}
	}
	return s.GetByID(ctx, userID, id)
}

// Delete removes a project and its tasks and entries.
func (s *ProjectStore) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.GetByID(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"task_id IN (?)",
			tx.Model(&Task{}).Select("id").Where("project_id = ?", id),
		).Delete(&TimeEntry{}).Error; err != nil {
			return fmt.Errorf("delete project entries: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&Task{}).Error; err != nil {
			return fmt.Errorf("delete project tasks: %w", err)
		}
		if err := tx.Delete(&Project{}, id).Error; err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
}
