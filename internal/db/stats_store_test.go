package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

type StatsStoreSuite struct {
	suite.Suite
	store   *Store
	cleanup func()
	entries *EntryStore
	stats   *StatsStore
	userID  int64
	taskA   int64
	taskB   int64
	projA   int64
	projB   int64
}

func (s *StatsStoreSuite) SetupTest() {
	s.store, s.cleanup = testStore(s.T())
	s.entries = NewEntryStore(s.store)
	s.stats = NewStatsStore(s.store)
	s.userID = testUser(s.T(), s.store, "stats@example.com")
	s.projA, s.taskA = testTask(s.T(), s.store, s.userID, "Client A", "Design")
	s.projB, s.taskB = testTask(s.T(), s.store, s.userID, "Client B", "Build")
}

func (s *StatsStoreSuite) TearDownTest() {
	s.cleanup()
}

func TestStatsStoreSuite(t *testing.T) {
	suite.Run(t, new(StatsStoreSuite))
}

// addClosed inserts a closed entry of the given length starting at start.
func (s *StatsStoreSuite) addClosed(taskID int64, start time.Time, d time.Duration) {
	s.T().Helper()
	end := start.Add(d)
	_, err := s.entries.Create(context.Background(), &models.TimeEntry{
		UserID: s.userID, TaskID: taskID, StartTime: start, EndTime: &end,
	})
	s.Require().NoError(err)
}

func (s *StatsStoreSuite) TestSummary() {
	now := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC) // a Wednesday

	s.addClosed(s.taskA, now.Add(-2*time.Hour), 30*time.Minute)                // today
	s.addClosed(s.taskA, now.AddDate(0, 0, -1).Add(-time.Hour), 20*time.Minute) // Tuesday, same week
	s.addClosed(s.taskB, now.AddDate(0, 0, -7), 10*time.Minute)                // last week, same month
	s.addClosed(s.taskB, now.AddDate(0, -2, 0), time.Hour)                     // outside month

	summary, err := s.stats.Summary(context.Background(), s.userID, now)
	s.Require().NoError(err)
	s.Equal(int64(1800), summary.TodaySeconds)
	s.Equal(1, summary.TodayEntries)
	s.Equal(int64(1800+1200), summary.WeekSeconds)
	s.Equal(int64(1800+1200+600), summary.MonthSeconds)
}

func (s *StatsStoreSuite) TestSummaryExcludesOpenEntries() {
	now := time.Now()
	_, _, err := s.entries.StartOpen(context.Background(), s.userID, s.taskA, now.Add(-time.Hour), "")
	s.Require().NoError(err)

	summary, err := s.stats.Summary(context.Background(), s.userID, now)
	s.Require().NoError(err)
	s.Zero(summary.TodaySeconds)
	s.Zero(summary.TodayEntries)
}

func (s *StatsStoreSuite) TestDailyBucketsEveryDay() {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

	s.addClosed(s.taskA, now.Add(-time.Hour), 15*time.Minute)
	s.addClosed(s.taskA, now.AddDate(0, 0, -2), 45*time.Minute)

	totals, err := s.stats.Daily(context.Background(), s.userID, now, 7)
	s.Require().NoError(err)
	s.Require().Len(totals, 7)

	s.Equal("2024-03-07", totals[0].Date)
	s.Equal("2024-03-13", totals[6].Date)
	s.Equal(int64(900), totals[6].Seconds)
	s.Equal(int64(2700), totals[4].Seconds)
	s.Zero(totals[0].Seconds)
}

func (s *StatsStoreSuite) TestByProject() {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

	s.addClosed(s.taskA, now.Add(-3*time.Hour), time.Hour)
	s.addClosed(s.taskA, now.Add(-5*time.Hour), 30*time.Minute)
	s.addClosed(s.taskB, now.Add(-2*time.Hour), 45*time.Minute)

	totals, err := s.stats.ByProject(context.Background(), s.userID, now.AddDate(0, 0, -1), now)
	s.Require().NoError(err)
	s.Require().Len(totals, 2)

	// Largest first.
	s.Equal(s.projA, totals[0].ProjectID)
	s.Equal(int64(5400), totals[0].Seconds)
	s.Equal(2, totals[0].Entries)
	s.Equal(s.projB, totals[1].ProjectID)
	s.Equal(int64(2700), totals[1].Seconds)
}
