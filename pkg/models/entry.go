// Package models contains the domain models shared across kaizen.
package models

import "time"

// TimeEntry represents a single tracked interval of work. An entry with a
// nil EndTime is open, i.e. its timer is currently running.
type TimeEntry struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	TaskID      int64      `db:"task_id" json:"task_id"`
	StartTime   time.Time  `db:"start_time" json:"start_time"`
	EndTime     *time.Time `db:"end_time" json:"end_time,omitempty"`
	DurationSec *int64     `db:"duration_seconds" json:"duration_seconds,omitempty"`
	Description string     `db:"description" json:"description"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether the entry is still running.
func (e *TimeEntry) Open() bool {
	return e.EndTime == nil
}

// Elapsed returns the number of whole seconds tracked so far, using now as
// the reference point for open entries.
func (e *TimeEntry) Elapsed(now time.Time) int64 {
	end := now
	if e.EndTime != nil {
		end = *e.EndTime
	}
	sec := int64(end.Sub(e.StartTime) / time.Second)
	if sec < 0 {
		return 0
	}
	return sec
}

// EntryPatch is a partial update applied to an existing entry. Nil fields
// are left untouched. When EndTime is supplied without DurationSec the store
// recomputes the duration from the entry's start time.
type EntryPatch struct {
	TaskID      *int64     `json:"task_id,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	DurationSec *int64     `json:"duration_seconds,omitempty"`
	Description *string    `json:"description,omitempty"`
}

// EntryFilter narrows List queries over a user's entries.
type EntryFilter struct {
	From      *time.Time
	To        *time.Time
	TaskID    *int64
	ProjectID *int64
	Limit     int
}
