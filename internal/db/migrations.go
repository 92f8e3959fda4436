package db

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: core tables
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&User{},
					&Project{},
					&Task{},
					&Tag{},
					&TimeEntry{},
					&EntryTag{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"entry_tags", "time_entries", "tags", "tasks", "projects", "users",
				)
			},
		},

		// Migration 002: at most one open entry per user. The partial
		// unique index is the authoritative backstop for the invariant;
		// the close-then-insert transaction in EntryStore.StartOpen is
		// the cooperative path. Valid on both Postgres and SQLite.
		{
			ID: "002_open_entry_unique",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_one_open
					 ON time_entries (user_id) WHERE end_time IS NULL`,
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_entries_one_open").Error
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}
