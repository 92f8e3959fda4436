package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// GORM models. Conversions to/from pkg/models keep GORM tags out of the
// domain types.

// User is an account row.
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	CreatedAt    time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (u *User) toModel() *models.User {
	return &models.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		CreatedAt:    u.CreatedAt,
	}
}

// Project is a project row.
type Project struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"index:idx_projects_user;not null"`
	Name      string `gorm:"not null"`
	Color     string
	Archived  bool      `gorm:"default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (p *Project) toModel() *models.Project {
	return &models.Project{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		Color:     p.Color,
		Archived:  p.Archived,
		CreatedAt: p.CreatedAt,
	}
}

// Task is a task row.
type Task struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"index:idx_tasks_user;not null"`
	ProjectID int64  `gorm:"index:idx_tasks_project;not null"`
	Name      string `gorm:"not null"`
	Completed bool      `gorm:"default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Task) TableName() string { return "tasks" }

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (t *Task) toModel() *models.Task {
	return &models.Task{
		ID:        t.ID,
		UserID:    t.UserID,
		ProjectID: t.ProjectID,
		Name:      t.Name,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
	}
}

// Tag is a tag row, unique per user by name.
type Tag struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	UserID int64  `gorm:"uniqueIndex:idx_tags_user_name,priority:1;not null"`
	Name   string `gorm:"uniqueIndex:idx_tags_user_name,priority:2;not null"`
	Color  string
}

func (Tag) TableName() string { return "tags" }

func (t *Tag) toModel() *models.Tag {
	return &models.Tag{ID: t.ID, UserID: t.UserID, Name: t.Name, Color: t.Color}
}

// EntryTag links entries to tags.
type EntryTag struct {
	EntryID int64 `gorm:"primaryKey"`
	TagID   int64 `gorm:"primaryKey"`
}

func (EntryTag) TableName() string { return "entry_tags" }

// TimeEntry is a tracked interval row. A NULL end_time marks the entry as
// open; the partial unique index created in migration 002 guarantees at
// most one open row per user even under concurrent starts.
type TimeEntry struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	UserID      int64      `gorm:"index:idx_entries_user;not null"`
	TaskID      int64      `gorm:"index:idx_entries_task;not null"`
	StartTime   time.Time  `gorm:"index:idx_entries_start;not null"`
	EndTime     *time.Time `gorm:"index:idx_entries_end"`
	DurationSec *int64     `gorm:"column:duration_seconds"`
	Description string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (TimeEntry) TableName() string { return "time_entries" }

func (e *TimeEntry) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	return nil
}

func (e *TimeEntry) toModel() *models.TimeEntry {
	return &models.TimeEntry{
		ID:          e.ID,
		UserID:      e.UserID,
		TaskID:      e.TaskID,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		DurationSec: e.DurationSec,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
