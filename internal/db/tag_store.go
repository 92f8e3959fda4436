package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// TagStore provides tag CRUD and entry-tag assignment.
type TagStore struct {
	store *Store
}

// NewTagStore creates a new tag store.
func NewTagStore(store *Store) *TagStore {
	return &TagStore{store: store}
}

// Create inserts a tag; names are unique per user.
func (s *TagStore) Create(ctx context.Context, userID int64, name, color string) (*models.Tag, error) {
	if name == "" {
		return nil, apperr.Invalidf("tag name is required")
	}
	row := Tag{UserID: userID, Name: name, Color: color}
	if err := s.store.DB.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: tag %q already exists", apperr.ErrConflict, name)
		}
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	return row.toModel(), nil
}

// GetByID fetches a tag, distinguishing missing from foreign-owned.
func (s *TagStore) GetByID(ctx context.Context, userID, id int64) (*models.Tag, error) {
	var row Tag
	err := s.store.DB.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("tag %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	if row.UserID != userID {
		return nil, fmt.Errorf("%w: tag %d", apperr.ErrForbidden, id)
	}
	return row.toModel(), nil
}

// List returns the user's tags.
func (s *TagStore) List(ctx context.Context, userID int64) ([]*models.Tag, error) {
	var rows []Tag
	if err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make([]*models.Tag, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// Delete removes a tag and its entry assignments.
func (s *TagStore) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.GetByID(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&EntryTag{}).Error; err != nil {
			return fmt.Errorf("delete tag assignments: %w", err)
		}
		if err := tx.Delete(&Tag{}, id).Error; err != nil {
			return fmt.Errorf("delete tag: %w", err)
		}
		return nil
	})
}

// Assign attaches a tag to one of the user's entries. Both sides are
// ownership-checked.
func (s *TagStore) Assign(ctx context.Context, userID, entryID, tagID int64) error {
	if _, err := s.GetByID(ctx, userID, tagID); err != nil {
		return err
	}
	var entry TimeEntry
	err := s.store.DB.WithContext(ctx).First(&entry, entryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundf("entry %d", entryID)
	}
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}
	if entry.UserID != userID {
		return fmt.Errorf("%w: entry %d", apperr.ErrForbidden, entryID)
	}

	link := EntryTag{EntryID: entryID, TagID: tagID}
	if err := s.store.DB.WithContext(ctx).Create(&link).Error; err != nil {
		if isUniqueViolation(err) {
			return nil // already assigned
		}
		return fmt.Errorf("assign tag: %w", err)
	}
	return nil
}

// EntryTags lists tags assigned to an entry.
func (s *TagStore) EntryTags(ctx context.Context, userID, entryID int64) ([]*models.Tag, error) {
	var rows []Tag
	err := s.store.DB.WithContext(ctx).
		Joins("JOIN entry_tags ON entry_tags.tag_id = tags.id").
		Where("entry_tags.entry_id = ? AND tags.user_id = ?", entryID, userID).
		Order("tags.name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list entry tags: %w", err)
	}
	out := make([]*models.Tag, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}
