package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// fakeEntryStore is an in-memory EntryStore with the same contract as the
// database store: close-then-insert on StartOpen, derived durations, at
// most one open row per user.
type fakeEntryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*models.TimeEntry
	failAll error // when set, every call fails with this error
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{entries: make(map[int64]*models.TimeEntry)}
}

func (f *fakeEntryStore) findOpenLocked(userID int64) *models.TimeEntry {
	for _, e := range f.entries {
		if e.UserID == userID && e.EndTime == nil {
			return e
		}
	}
	return nil
}

func (f *fakeEntryStore) FindOpen(ctx context.Context, userID int64) (*models.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	if e := f.findOpenLocked(userID); e != nil {
		copy := *e
		return &copy, nil
	}
	return nil, nil
}

func (f *fakeEntryStore) StartOpen(ctx context.Context, userID, taskID int64, start time.Time, description string) (*models.TimeEntry, *models.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, nil, f.failAll
	}

	var closed *models.TimeEntry
	if prev := f.findOpenLocked(userID); prev != nil {
		end := start
		if end.Before(prev.StartTime) {
			end = prev.StartTime
		}
		dur := int64(end.Sub(prev.StartTime) / time.Second)
		prev.EndTime = &end
		prev.DurationSec = &dur
		copy := *prev
		closed = &copy
	}

	f.nextID++
	entry := &models.TimeEntry{
		ID:          f.nextID,
		UserID:      userID,
		TaskID:      taskID,
		StartTime:   start,
		Description: description,
	}
	f.entries[entry.ID] = entry
	copy := *entry
	return &copy, closed, nil
}

func (f *fakeEntryStore) CloseOpen(ctx context.Context, userID int64, end time.Time, description *string) (*models.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	open := f.findOpenLocked(userID)
	if open == nil {
		return nil, nil
	}
	if end.Before(open.StartTime) {
		end = open.StartTime
	}
	dur := int64(end.Sub(open.StartTime) / time.Second)
	open.EndTime = &end
	open.DurationSec = &dur
	if description != nil {
		open.Description = *description
	}
	copy := *open
	return &copy, nil
}

func (f *fakeEntryStore) DeleteOpen(ctx context.Context, userID int64) (*models.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	open := f.findOpenLocked(userID)
	if open == nil {
		return nil, nil
	}
	delete(f.entries, open.ID)
	return open, nil
}

func (f *fakeEntryStore) Create(ctx context.Context, entry *models.TimeEntry) (*models.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	f.nextID++
	stored := *entry
	stored.ID = f.nextID
	dur := int64(stored.EndTime.Sub(stored.StartTime) / time.Second)
	stored.DurationSec = &dur
	f.entries[stored.ID] = &stored
	copy := stored
	return &copy, nil
}

func (f *fakeEntryStore) Update(ctx context.Context, userID, id int64, patch models.EntryPatch) (*models.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	entry, ok := f.entries[id]
	if !ok || entry.UserID != userID {
		return nil, apperr.NotFoundf("entry %d", id)
	}
	if patch.StartTime != nil {
		entry.StartTime = *patch.StartTime
	}
	if patch.Description != nil {
		entry.Description = *patch.Description
	}
	if patch.EndTime != nil {
		dur := int64(patch.EndTime.Sub(entry.StartTime) / time.Second)
		entry.EndTime = patch.EndTime
		entry.DurationSec = &dur
	}
	copy := *entry
	return &copy, nil
}

// openCount counts open rows for the user, for invariant assertions.
func (f *fakeEntryStore) openCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.UserID == userID && e.EndTime == nil {
			n++
		}
	}
	return n
}

// fakeLookup serves fixed tasks and projects.
type fakeLookup struct {
	tasks    map[int64]*models.Task
	projects map[int64]*models.Project
}

type taskLookup struct{ *fakeLookup }
type projectLookup struct{ *fakeLookup }

func (l taskLookup) GetByID(ctx context.Context, userID, id int64) (*models.Task, error) {
	task, ok := l.tasks[id]
	if !ok {
		return nil, apperr.NotFoundf("task %d", id)
	}
	if task.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return task, nil
}

func (l projectLookup) GetByID(ctx context.Context, userID, id int64) (*models.Project, error) {
	project, ok := l.projects[id]
	if !ok {
		return nil, apperr.NotFoundf("project %d", id)
	}
	if project.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return project, nil
}

const testUserID = int64(7)

// ManagerSuite is a test suite for the timer lifecycle manager.
type ManagerSuite struct {
	suite.Suite
	store   *fakeEntryStore
	lookup  *fakeLookup
	cache   *MemoryCache
	manager *Manager
	clock   time.Time
}

func (s *ManagerSuite) SetupTest() {
	s.store = newFakeEntryStore()
	s.lookup = &fakeLookup{
		tasks: map[int64]*models.Task{
			1: {ID: 1, UserID: testUserID, ProjectID: 10, Name: "Write spec"},
			2: {ID: 2, UserID: testUserID, ProjectID: 10, Name: "Review code"},
		},
		projects: map[int64]*models.Project{
			10: {ID: 10, UserID: testUserID, Name: "Kaizen", Color: "#00aa88"},
		},
	}
	s.cache = NewMemoryCache()
	s.manager = s.newManager(s.cache)
	s.clock = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	s.manager.now = func() time.Time { return s.clock }
}

// newManager builds a manager sharing the suite's store but with its own
// cache, simulating another tab or device.
func (s *ManagerSuite) newManager(cache SessionCache) *Manager {
	m := NewManager(s.store, taskLookup{s.lookup}, projectLookup{s.lookup}, cache)
	m.now = func() time.Time { return s.clock }
	return m
}

func (s *ManagerSuite) advance(d time.Duration) {
	s.clock = s.clock.Add(d)
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) TestStartStopRoundTrip() {
	ctx := context.Background()

	result, err := s.manager.Start(ctx, testUserID, 1, "x")
	s.Require().NoError(err)
	s.True(result.State.Running)
	s.Nil(result.Closed)
	s.Equal("Write spec", result.State.Session.TaskName)
	s.Equal("Kaizen", result.State.Session.ProjectName)

	s.advance(95 * time.Second)

	stop, err := s.manager.Stop(ctx, testUserID)
	s.Require().NoError(err)
	s.False(stop.Stale)
	s.Require().NotNil(stop.Entry)
	s.Equal(int64(1), stop.Entry.TaskID)
	s.Equal("x", stop.Entry.Description)
	s.Require().NotNil(stop.Entry.DurationSec)
	s.Equal(int64(95), *stop.Entry.DurationSec)

	state, err := s.manager.Current(ctx, testUserID)
	s.Require().NoError(err)
	s.False(state.Running)
	s.Zero(s.store.openCount(testUserID))
}

func (s *ManagerSuite) TestTaskSwitchStopsThenStarts() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)

	s.advance(10 * time.Minute)

	result, err := s.manager.Start(ctx, testUserID, 2, "")
	s.Require().NoError(err)
	s.Require().NotNil(result.Closed)
	s.Equal(int64(1), result.Closed.TaskID)
	s.Require().NotNil(result.Closed.DurationSec)
	s.Equal(int64(600), *result.Closed.DurationSec)

	s.Equal(1, s.store.openCount(testUserID))
	open, err := s.store.FindOpen(ctx, testUserID)
	s.Require().NoError(err)
	s.Equal(int64(2), open.TaskID)
}

func (s *ManagerSuite) TestStartUnknownTask() {
	_, err := s.manager.Start(context.Background(), testUserID, 99, "")
	s.ErrorIs(err, apperr.ErrNotFound)
	s.Zero(s.store.openCount(testUserID))
}

func (s *ManagerSuite) TestStopWithStaleCacheClearsSession() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)

	// The timer is stopped "elsewhere": the open row vanishes but the
	// local cache still believes Running.
	_, err = s.store.DeleteOpen(ctx, testUserID)
	s.Require().NoError(err)

	stop, err := s.manager.Stop(ctx, testUserID)
	s.Require().NoError(err)
	s.True(stop.Stale)
	s.Nil(stop.Entry)

	session, err := s.cache.Get(ctx, testUserID)
	s.NoError(err)
	s.Nil(session)
}

func (s *ManagerSuite) TestStopWhenIdleIsConflict() {
	_, err := s.manager.Stop(context.Background(), testUserID)
	s.ErrorIs(err, apperr.ErrConflict)
}

func (s *ManagerSuite) TestDiscardDeletesOpenRow() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)

	s.Require().NoError(s.manager.Discard(ctx, testUserID))

	s.Zero(s.store.openCount(testUserID))
	state, err := s.manager.Current(ctx, testUserID)
	s.Require().NoError(err)
	s.False(state.Running)
}

func (s *ManagerSuite) TestAdjustStartTime() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)

	s.advance(30 * time.Minute)
	newStart := s.clock.Add(-time.Hour)

	state, err := s.manager.AdjustStartTime(ctx, testUserID, newStart)
	s.Require().NoError(err)
	s.True(state.Running)
	s.True(state.Session.StartTime.Equal(newStart))
	s.Equal(int64(3600), state.ElapsedSec)

	open, err := s.store.FindOpen(ctx, testUserID)
	s.Require().NoError(err)
	s.True(open.StartTime.Equal(newStart))
}

func (s *ManagerSuite) TestAdjustStartTimeFutureRejected() {
	ctx := context.Background()

	started, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)
	original := started.State.Session.StartTime

	_, err = s.manager.AdjustStartTime(ctx, testUserID, s.clock.Add(time.Hour))
	s.ErrorIs(err, apperr.ErrInvalidInput)

	open, err := s.store.FindOpen(ctx, testUserID)
	s.Require().NoError(err)
	s.True(open.StartTime.Equal(original))
}

func (s *ManagerSuite) TestSetDescription() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)

	state, err := s.manager.SetDescription(ctx, testUserID, "deep focus")
	s.Require().NoError(err)
	s.Equal("deep focus", state.Session.Description)

	s.advance(time.Minute)
	stop, err := s.manager.Stop(ctx, testUserID)
	s.Require().NoError(err)
	s.Equal("deep focus", stop.Entry.Description)
}

func (s *ManagerSuite) TestSetDescriptionStaleCacheClearsSession() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)

	// The timer is stopped elsewhere; the cache still believes Running.
	_, err = s.store.DeleteOpen(ctx, testUserID)
	s.Require().NoError(err)

	_, err = s.manager.SetDescription(ctx, testUserID, "phantom")
	s.ErrorIs(err, apperr.ErrConflict)

	session, err := s.cache.Get(ctx, testUserID)
	s.NoError(err)
	s.Nil(session)

	state, err := s.manager.Current(ctx, testUserID)
	s.Require().NoError(err)
	s.False(state.Running)
}

func (s *ManagerSuite) TestCreatePastEntry() {
	entry, err := s.manager.CreatePastEntry(context.Background(), testUserID, PastEntryInput{
		TaskID: 1,
		Date:   "2024-01-05",
		Start:  "09:00",
		End:    "10:30",
	})
	s.Require().NoError(err)
	s.Require().NotNil(entry.DurationSec)
	s.Equal(int64(5400), *entry.DurationSec)
	s.False(entry.Open())
}

func (s *ManagerSuite) TestCreatePastEntryMidnightRollover() {
	entry, err := s.manager.CreatePastEntry(context.Background(), testUserID, PastEntryInput{
		TaskID: 1,
		Date:   "2024-01-05",
		Start:  "23:30",
		End:    "00:15",
	})
	s.Require().NoError(err)
	s.Require().NotNil(entry.DurationSec)
	s.Equal(int64(45*60), *entry.DurationSec)
	s.Equal(6, entry.EndTime.Day())
}

func (s *ManagerSuite) TestCreatePastEntryRejectsFuture() {
	// Clock is 2024-01-10 09:00 UTC; an afternoon entry for the same day
	// lies in the future.
	_, err := s.manager.CreatePastEntry(context.Background(), testUserID, PastEntryInput{
		TaskID: 1,
		Date:   "2024-01-10",
		Start:  "14:00",
		End:    "15:00",
	})
	s.ErrorIs(err, apperr.ErrInvalidInput)
}

func (s *ManagerSuite) TestCreatePastEntryRejectsZeroDuration() {
	_, err := s.manager.CreatePastEntry(context.Background(), testUserID, PastEntryInput{
		TaskID: 1,
		Date:   "2024-01-05",
		Start:  "09:00",
		End:    "09:00",
	})
	s.ErrorIs(err, apperr.ErrInvalidInput)
}

func (s *ManagerSuite) TestReconcileAdoptsForeignStart() {
	ctx := context.Background()

	// Tab 1 starts a timer.
	_, err := s.manager.Start(ctx, testUserID, 1, "from tab 1")
	s.Require().NoError(err)

	// Tab 2 shares the store but has a fresh, idle cache.
	tab2 := s.newManager(NewMemoryCache())
	state, err := tab2.Reconcile(ctx, testUserID)
	s.Require().NoError(err)
	s.True(state.Running)
	s.Equal(int64(1), state.Session.TaskID)
	s.Equal("Write spec", state.Session.TaskName)

	open, err := s.store.FindOpen(ctx, testUserID)
	s.Require().NoError(err)
	s.True(state.Session.StartTime.Equal(open.StartTime))
}

func (s *ManagerSuite) TestReconcileClearsStaleCache() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)
	_, err = s.store.DeleteOpen(ctx, testUserID)
	s.Require().NoError(err)

	state, err := s.manager.Reconcile(ctx, testUserID)
	s.Require().NoError(err)
	s.False(state.Running)

	session, err := s.cache.Get(ctx, testUserID)
	s.NoError(err)
	s.Nil(session)
}

func (s *ManagerSuite) TestReconcileIdempotent() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)

	first, err := s.manager.Reconcile(ctx, testUserID)
	s.Require().NoError(err)
	second, err := s.manager.Reconcile(ctx, testUserID)
	s.Require().NoError(err)

	s.Equal(first.Running, second.Running)
	s.Equal(first.Session, second.Session)

	// And when idle.
	_, err = s.manager.Stop(ctx, testUserID)
	s.Require().NoError(err)
	third, err := s.manager.Reconcile(ctx, testUserID)
	s.Require().NoError(err)
	fourth, err := s.manager.Reconcile(ctx, testUserID)
	s.Require().NoError(err)
	s.Equal(third, fourth)
}

func (s *ManagerSuite) TestReconcileRefreshesDivergedSession() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)

	// Another tab switches the task; our cache still shows task 1.
	s.advance(time.Minute)
	_, _, err = s.store.StartOpen(ctx, testUserID, 2, s.clock, "")
	s.Require().NoError(err)

	state, err := s.manager.Reconcile(ctx, testUserID)
	s.Require().NoError(err)
	s.True(state.Running)
	s.Equal(int64(2), state.Session.TaskID)
}

func (s *ManagerSuite) TestInvariantUnderInterleavedStarts() {
	ctx := context.Background()

	// Two tabs with independent caches issue interleaved starts.
	tab2 := s.newManager(NewMemoryCache())
	for i := 0; i < 20; i++ {
		m := s.manager
		if i%2 == 1 {
			m = tab2
		}
		_, err := m.Start(ctx, testUserID, int64(i%2+1), "")
		s.Require().NoError(err)
		s.advance(time.Second)
		s.LessOrEqual(s.store.openCount(testUserID), 1)
	}
	s.Equal(1, s.store.openCount(testUserID))
}

func (s *ManagerSuite) TestStoreFailureLeavesStateUnchanged() {
	ctx := context.Background()

	_, err := s.manager.Start(ctx, testUserID, 1, "important work")
	s.Require().NoError(err)

	s.store.failAll = errors.New("connection refused")

	_, err = s.manager.Stop(ctx, testUserID)
	s.Error(err)

	// The session survives the failed stop; nothing was half-applied.
	session, err := s.cache.Get(ctx, testUserID)
	s.Require().NoError(err)
	s.Require().NotNil(session)
	s.Equal(int64(1), session.TaskID)

	s.store.failAll = nil
	stop, err := s.manager.Stop(ctx, testUserID)
	s.Require().NoError(err)
	s.NotNil(stop.Entry)
}

func (s *ManagerSuite) TestNotifyFiresOnTransitions() {
	ctx := context.Background()

	var mu sync.Mutex
	var states []bool
	s.manager.SetNotify(func(userID int64, state *models.TimerState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, state.Running)
	})

	_, err := s.manager.Start(ctx, testUserID, 1, "")
	s.Require().NoError(err)
	s.advance(time.Second)
	_, err = s.manager.Stop(ctx, testUserID)
	s.Require().NoError(err)

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]bool{true, false}, states)
}
