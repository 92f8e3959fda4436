package db

import (
	"context"
	"fmt"
	"time"

	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// StatsStore provides read-only rollups over closed entries. Open entries
// never count toward totals.
type StatsStore struct {
	store *Store
}

// NewStatsStore creates a new stats store.
func NewStatsStore(store *Store) *StatsStore {
	return &StatsStore{store: store}
}

// sumRange sums closed-entry durations whose start falls in [from, to).
func (s *StatsStore) sumRange(ctx context.Context, userID int64, from, to time.Time) (int64, int, error) {
	var row struct {
		Seconds int64
		Entries int
	}
	err := s.store.DB.WithContext(ctx).
		Model(&TimeEntry{}).
		Select("COALESCE(SUM(duration_seconds), 0) AS seconds, COUNT(*) AS entries").
		Where("user_id = ? AND end_time IS NOT NULL AND start_time >= ? AND start_time < ?",
			userID, from, to).
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("sum range: %w", err)
	}
	return row.Seconds, row.Entries, nil
}

// Summary returns today/week/month totals relative to now. The week starts
// on Monday, the month on the 1st, both in now's location.
func (s *StatsStore) Summary(ctx context.Context, userID int64, now time.Time) (*models.StatsSummary, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday counts as day 7
	}
	weekStart := dayStart.AddDate(0, 0, -(weekday - 1))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	horizon := dayStart.AddDate(0, 0, 1)

	today, todayEntries, err := s.sumRange(ctx, userID, dayStart, horizon)
	if err != nil {
		return nil, err
	}
	week, _, err := s.sumRange(ctx, userID, weekStart, horizon)
	if err != nil {
		return nil, err
	}
	month, _, err := s.sumRange(ctx, userID, monthStart, horizon)
	if err != nil {
		return nil, err
	}

	return &models.StatsSummary{
		TodaySeconds: today,
		WeekSeconds:  week,
		MonthSeconds: month,
		TodayEntries: todayEntries,
	}, nil
}

// Daily buckets the user's closed entries by calendar day over the last
// `days` days ending at now. Bucketing happens in Go so the query stays
// portable across dialects; every day in the range appears, zero or not.
func (s *StatsStore) Daily(ctx context.Context, userID int64, now time.Time, days int) ([]models.DayTotal, error) {
	if days <= 0 {
		days = 7
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := dayStart.AddDate(0, 0, -(days - 1))
	to := dayStart.AddDate(0, 0, 1)

	var rows []TimeEntry
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ? AND end_time IS NOT NULL AND start_time >= ? AND start_time < ?",
			userID, from, to).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("daily rollup: %w", err)
	}

	byDay := make(map[string]*models.DayTotal, days)
	out := make([]models.DayTotal, days)
	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, i).Format("2006-01-02")
		out[i] = models.DayTotal{Date: d}
		byDay[d] = &out[i]
	}
	for i := range rows {
		d := rows[i].StartTime.In(now.Location()).Format("2006-01-02")
		bucket, ok := byDay[d]
		if !ok {
			continue
		}
		if rows[i].DurationSec != nil {
			bucket.Seconds += *rows[i].DurationSec
		}
		bucket.Entries++
	}
	return out, nil
}

// ByProject returns per-project totals over [from, to), largest first.
func (s *StatsStore) ByProject(ctx context.Context, userID int64, from, to time.Time) ([]models.ProjectTotal, error) {
	var rows []models.ProjectTotal
	err := s.store.DB.WithContext(ctx).
		Model(&TimeEntry{}).
		Select(`projects.id AS project_id, projects.name AS name, projects.color AS color,
			COALESCE(SUM(time_entries.duration_seconds), 0) AS seconds,
			COUNT(*) AS entries`).
		Joins("JOIN tasks ON tasks.id = time_entries.task_id").
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("time_entries.user_id = ? AND time_entries.end_time IS NOT NULL", userID).
		Where("time_entries.start_time >= ? AND time_entries.start_time < ?", from, to).
		Group("projects.id, projects.name, projects.color").
		Order("seconds DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("project rollup: %w", err)
	}
	return rows, nil
}
