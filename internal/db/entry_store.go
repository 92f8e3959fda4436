package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// EntryStore provides time-entry database operations.
type EntryStore struct {
	store *Store
}

// NewEntryStore creates a new entry store.
func NewEntryStore(store *Store) *EntryStore {
	return &EntryStore{store: store}
}

// FindOpen returns the user's currently open entry, or nil if no timer is
// running. The one-open-row index guarantees at most one result.
func (s *EntryStore) FindOpen(ctx context.Context, userID int64) (*models.TimeEntry, error) {
	var row TimeEntry
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ? AND end_time IS NULL", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open entry: %w", err)
	}
	return row.toModel(), nil
}

// StartOpen opens a new entry for the user, closing any pre-existing open
// entry in the same transaction so two open rows never coexist. The closed
// entry (if any) is returned alongside the new one.
//
// If a concurrent start wins the race, the insert trips the one-open-row
// index and the call fails with apperr.ErrConflict; callers reconcile and
// retry.
func (s *EntryStore) StartOpen(ctx context.Context, userID, taskID int64, start time.Time, description string) (*models.TimeEntry, *models.TimeEntry, error) {
	var opened, closed *models.TimeEntry

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev TimeEntry
		err := tx.Where("user_id = ? AND end_time IS NULL", userID).First(&prev).Error
		switch {
		case err == nil:
			end := start
			if end.Before(prev.StartTime) {
				end = prev.StartTime
			}
			dur := durationSec(prev.StartTime, end)
			res := tx.Model(&TimeEntry{}).
				Where("id = ? AND end_time IS NULL", prev.ID).
				Updates(map[string]any{
					"end_time":         end,
					"duration_seconds": dur,
					"updated_at":       time.Now().UTC(),
				})
			if res.Error != nil {
				return fmt.Errorf("close previous entry: %w", res.Error)
			}
			prev.EndTime = &end
			prev.DurationSec = &dur
			closed = prev.toModel()
		case errors.Is(err, gorm.ErrRecordNotFound):
			// nothing running
		default:
			return fmt.Errorf("find open entry: %w", err)
		}

		row := TimeEntry{
			UserID:      userID,
			TaskID:      taskID,
			StartTime:   start,
			Description: description,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert open entry: %w", err)
		}
		opened = row.toModel()
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, fmt.Errorf("%w: another timer was started concurrently", apperr.ErrConflict)
		}
		return nil, nil, err
	}
	return opened, closed, nil
}

// CloseOpen closes the user's open entry at end, deriving the duration from
// the stored start time. Returns (nil, nil) when no entry is open; the
// caller decides whether that is a stale-cache condition.
func (s *EntryStore) CloseOpen(ctx context.Context, userID int64, end time.Time, description *string) (*models.TimeEntry, error) {
	var closed *models.TimeEntry

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row TimeEntry
		err := tx.Where("user_id = ? AND end_time IS NULL", userID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find open entry: %w", err)
		}

		if end.Before(row.StartTime) {
			end = row.StartTime
		}
		dur := durationSec(row.StartTime, end)
		updates := map[string]any{
			"end_time":         end,
			"duration_seconds": dur,
			"updated_at":       time.Now().UTC(),
		}
		if description != nil {
			updates["description"] = *description
		}
		if err := tx.Model(&TimeEntry{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("close entry: %w", err)
		}

		row.EndTime = &end
		row.DurationSec = &dur
		if description != nil {
			row.Description = *description
		}
		closed = row.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// DeleteOpen removes the user's open entry, if any, and returns it.
func (s *EntryStore) DeleteOpen(ctx context.Context, userID int64) (*models.TimeEntry, error) {
	var deleted *models.TimeEntry

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row TimeEntry
		err := tx.Where("user_id = ? AND end_time IS NULL", userID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find open entry: %w", err)
		}
		if err := tx.Delete(&TimeEntry{}, row.ID).Error; err != nil {
			return fmt.Errorf("delete open entry: %w", err)
		}
		deleted = row.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Create inserts a closed entry. Validation (end after start, no future
// instants) happens upstream in the timer manager; the store only derives
// the duration when the caller left it unset.
func (s *EntryStore) Create(ctx context.Context, entry *models.TimeEntry) (*models.TimeEntry, error) {
	if entry.EndTime == nil {
		return nil, apperr.Invalidf("entry must be closed; use StartOpen for running timers")
	}
	dur := durationSec(entry.StartTime, *entry.EndTime)
	row := TimeEntry{
		UserID:      entry.UserID,
		TaskID:      entry.TaskID,
		StartTime:   entry.StartTime,
		EndTime:     entry.EndTime,
		DurationSec: &dur,
		Description: entry.Description,
	}
	if err := s.store.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	return row.toModel(), nil
}

// GetByID fetches an entry, distinguishing missing rows from rows owned by
// another user.
func (s *EntryStore) GetByID(ctx context.Context, userID, id int64) (*models.TimeEntry, error) {
	var row TimeEntry
	err := s.store.DB.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("entry %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if row.UserID != userID {
		return nil, fmt.Errorf("%w: entry %d", apperr.ErrForbidden, id)
	}
	return row.toModel(), nil
}

// Update applies a partial patch. When the patch carries an end time but no
// duration the duration is recomputed server-side from the effective start;
// a client-supplied duration is only honored when no end time accompanies
// it (manual correction path).
func (s *EntryStore) Update(ctx context.Context, userID, id int64, patch models.EntryPatch) (*models.TimeEntry, error) {
	current, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	start := current.StartTime
	if patch.StartTime != nil {
		start = *patch.StartTime
		updates["start_time"] = start
	}
	if patch.TaskID != nil {
		updates["task_id"] = *patch.TaskID
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}

	switch {
	case patch.EndTime != nil:
		// A retroactive close must produce a positive duration; only the
		// live stop path (CloseOpen) clamps to zero.
		if !patch.EndTime.After(start) {
			return nil, apperr.Invalidf("end time must be after start time")
		}
		dur := durationSec(start, *patch.EndTime)
		updates["end_time"] = *patch.EndTime
		updates["duration_seconds"] = dur
	case patch.DurationSec != nil:
		if *patch.DurationSec < 0 {
			return nil, apperr.Invalidf("negative duration")
		}
		updates["duration_seconds"] = *patch.DurationSec
	case patch.StartTime != nil && current.EndTime != nil:
		// start moved on a closed entry: keep end, recompute duration
		if current.EndTime.Before(start) {
			return nil, apperr.Invalidf("start time after end time")
		}
		updates["duration_seconds"] = durationSec(start, *current.EndTime)
	}

	if err := s.store.DB.WithContext(ctx).
		Model(&TimeEntry{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return s.GetByID(ctx, userID, id)
}

// Delete removes an entry owned by the user.
func (s *EntryStore) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.GetByID(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DB.WithContext(ctx).Delete(&TimeEntry{}, id).Error; err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// List returns the user's entries, newest first, honoring the filter.
func (s *EntryStore) List(ctx context.Context, userID int64, filter models.EntryFilter) ([]*models.TimeEntry, error) {
	q := s.store.DB.WithContext(ctx).
		Model(&TimeEntry{}).
		Where("time_entries.user_id = ?", userID)

	if filter.From != nil {
		q = q.Where("time_entries.start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("time_entries.start_time < ?", *filter.To)
	}
	if filter.TaskID != nil {
		q = q.Where("time_entries.task_id = ?", *filter.TaskID)
	}
	if filter.ProjectID != nil {
		q = q.Joins("JOIN tasks ON tasks.id = time_entries.task_id").
			Where("tasks.project_id = ?", *filter.ProjectID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []TimeEntry
	if err := q.Order("time_entries.start_time DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	out := make([]*models.TimeEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// CountOpen returns the number of open entries for the user. Used by tests
// to assert the single-open invariant directly against the table.
func (s *EntryStore) CountOpen(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.store.DB.WithContext(ctx).
		Model(&TimeEntry{}).
		Where("user_id = ? AND end_time IS NULL", userID).
		Count(&n).Error
	return n, err
}
