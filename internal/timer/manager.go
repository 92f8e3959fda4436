package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// EntryStore is the slice of the persistent store the manager needs. The
// store owns durable rows; the manager owns the cached TimerSession.
type EntryStore interface {
	FindOpen(ctx context.Context, userID int64) (*models.TimeEntry, error)
	StartOpen(ctx context.Context, userID, taskID int64, start time.Time, description string) (*models.TimeEntry, *models.TimeEntry, error)
	CloseOpen(ctx context.Context, userID int64, end time.Time, description *string) (*models.TimeEntry, error)
	DeleteOpen(ctx context.Context, userID int64) (*models.TimeEntry, error)
	Create(ctx context.Context, entry *models.TimeEntry) (*models.TimeEntry, error)
	Update(ctx context.Context, userID, id int64, patch models.EntryPatch) (*models.TimeEntry, error)
}

// TaskLookup resolves tasks for session snapshots.
type TaskLookup interface {
	GetByID(ctx context.Context, userID, id int64) (*models.Task, error)
}

// ProjectLookup resolves projects for session snapshots.
type ProjectLookup interface {
	GetByID(ctx context.Context, userID, id int64) (*models.Project, error)
}

// Manager enforces the single-open-entry rule and serves a consistent
// Running/Idle view. All mutating operations leave both cache and store
// unchanged when the store call fails; state only advances on confirmed
// success.
type Manager struct {
	entries  EntryStore
	tasks    TaskLookup
	projects ProjectLookup
	cache    SessionCache

	now      func() time.Time
	onChange func(userID int64, state *models.TimerState)
}

// NewManager creates a timer lifecycle manager.
func NewManager(entries EntryStore, tasks TaskLookup, projects ProjectLookup, cache SessionCache) *Manager {
	return &Manager{
		entries:  entries,
		tasks:    tasks,
		projects: projects,
		cache:    cache,
		now:      time.Now,
	}
}

// SetNotify registers a callback fired after every confirmed state change,
// used to push timer events to other connected tabs.
func (m *Manager) SetNotify(fn func(userID int64, state *models.TimerState)) {
	m.onChange = fn
}

// StartResult reports a successful Start: the new running state plus the
// entry that was auto-closed by the task switch, if any.
type StartResult struct {
	State  *models.TimerState `json:"state"`
	Closed *models.TimeEntry  `json:"closed_entry,omitempty"`
}

// StopResult reports a Stop. Stale is set when the cache believed a timer
// was running but the store had no open entry (stopped elsewhere); the
// stale session is cleared and no entry is produced.
type StopResult struct {
	Entry *models.TimeEntry `json:"entry,omitempty"`
	Stale bool              `json:"stale,omitempty"`
}

// Start begins a timer on the task. A task switch never runs two timers:
// any open entry is closed inside the same store transaction that inserts
// the new one, so the invariant holds even when the client believed it was
// Idle.
func (m *Manager) Start(ctx context.Context, userID, taskID int64, description string) (*StartResult, error) {
	task, err := m.tasks.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	project, err := m.projects.GetByID(ctx, userID, task.ProjectID)
	if err != nil {
		return nil, err
	}

	start := m.now()
	opened, closed, err := m.entries.StartOpen(ctx, userID, taskID, start, description)
	if err != nil {
		return nil, err
	}

	session := &models.TimerSession{
		TaskID:       task.ID,
		TaskName:     task.Name,
		ProjectID:    project.ID,
		ProjectName:  project.Name,
		ProjectColor: project.Color,
		StartTime:    opened.StartTime,
		Description:  description,
	}
	if err := m.cache.Put(ctx, userID, session); err != nil {
		// The store transition succeeded, so the timer IS running; a cache
		// write failure only costs display state until reconciliation.
		log.Warn().Err(err).Int64("user", userID).Msg("Failed to cache timer session")
	}

	state := m.runningState(session)
	m.notify(userID, state)
	return &StartResult{State: state, Closed: closed}, nil
}

// Stop closes the running timer. The open entry is queried fresh from the
// store, never assumed from the cache (the cache holds no entry id). The
// cached description is persisted onto the closed entry.
func (m *Manager) Stop(ctx context.Context, userID int64) (*StopResult, error) {
	session, err := m.cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var description *string
	if session != nil {
		description = &session.Description
	}

	closed, err := m.entries.CloseOpen(ctx, userID, m.now(), description)
	if err != nil {
		// Store failure: session stays cached, the timer keeps running.
		return nil, err
	}
	if closed == nil {
		// Cache/store divergence: the timer was stopped elsewhere. Clear
		// the stale session instead of failing destructively.
		if session != nil {
			if err := m.cache.Delete(ctx, userID); err != nil {
				return nil, err
			}
			m.notify(userID, idleState())
			return &StopResult{Stale: true}, nil
		}
		return nil, fmt.Errorf("%w: no timer is running", apperr.ErrConflict)
	}

	if err := m.cache.Delete(ctx, userID); err != nil {
		log.Warn().Err(err).Int64("user", userID).Msg("Failed to clear timer session")
	}
	m.notify(userID, idleState())
	return &StopResult{Entry: closed}, nil
}

// Discard abandons the running timer without recording an entry. The
// server-side open row is deleted as well: leaving it would turn the next
// Start into a spurious long closed entry.
func (m *Manager) Discard(ctx context.Context, userID int64) error {
	if _, err := m.entries.DeleteOpen(ctx, userID); err != nil {
		return err
	}
	if err := m.cache.Delete(ctx, userID); err != nil {
		return err
	}
	m.notify(userID, idleState())
	return nil
}

// AdjustStartTime moves the running timer's start anchor. Future anchors
// are rejected; the elapsed display recalculates from the new anchor on the
// next tick.
func (m *Manager) AdjustStartTime(ctx context.Context, userID int64, newStart time.Time) (*models.TimerState, error) {
	now := m.now()
	if newStart.After(now) {
		return nil, apperr.Invalidf("start time cannot be in the future")
	}

	open, err := m.entries.FindOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		if err := m.cache.Delete(ctx, userID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: no timer is running", apperr.ErrConflict)
	}

	if _, err := m.entries.Update(ctx, userID, open.ID, models.EntryPatch{StartTime: &newStart}); err != nil {
		return nil, err
	}

	session, err := m.cache.Get(ctx, userID)
	if err != nil || session == nil {
		// Cache was empty or unreadable; rebuild it from the store row.
		return m.Reconcile(ctx, userID)
	}
	session.StartTime = newStart
	if err := m.cache.Put(ctx, userID, session); err != nil {
		log.Warn().Err(err).Int64("user", userID).Msg("Failed to cache adjusted session")
	}

	state := m.runningState(session)
	m.notify(userID, state)
	return state, nil
}

// SetDescription updates the running timer's description. The open row is
// the gate: with no open entry the cached session is stale and gets cleared,
// never narrated back as a running timer. The patch on the open row is
// best-effort; Stop persists the cached description authoritatively.
func (m *Manager) SetDescription(ctx context.Context, userID int64, text string) (*models.TimerState, error) {
	open, err := m.entries.FindOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	session, err := m.cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		if session != nil {
			if err := m.cache.Delete(ctx, userID); err != nil {
				return nil, err
			}
			m.notify(userID, idleState())
		}
		return nil, fmt.Errorf("%w: no timer is running", apperr.ErrConflict)
	}

	if session == nil {
		session = m.sessionFromEntry(ctx, userID, open)
	}
	session.Description = text
	if err := m.cache.Put(ctx, userID, session); err != nil {
		return nil, err
	}

	if _, err := m.entries.Update(ctx, userID, open.ID, models.EntryPatch{Description: &text}); err != nil {
		log.Warn().Err(err).Int64("user", userID).Msg("Deferred description persist to stop")
	}

	state := m.runningState(session)
	m.notify(userID, state)
	return state, nil
}

// PastEntryInput describes a retroactive closed entry as entered in the UI:
// a date plus wall-clock start and end times.
type PastEntryInput struct {
	TaskID      int64  `json:"task_id"`
	Date        string `json:"date"`  // YYYY-MM-DD
	Start       string `json:"start"` // HH:MM, 24h
	End         string `json:"end"`   // HH:MM, 24h
	Description string `json:"description"`
}

// CreatePastEntry records a fully-closed entry for a past interval,
// independent of Running/Idle state. An end clock-time numerically earlier
// than the start is assumed to cross midnight and rolls to the next day.
// Both resolved instants must lie in the past and the derived duration must
// be positive; the duration is never trusted from the caller.
func (m *Manager) CreatePastEntry(ctx context.Context, userID int64, in PastEntryInput) (*models.TimeEntry, error) {
	if _, err := m.tasks.GetByID(ctx, userID, in.TaskID); err != nil {
		return nil, err
	}

	loc := m.now().Location()
	start, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.Start, loc)
	if err != nil {
		return nil, apperr.Invalidf("bad start time %q", in.Start)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.End, loc)
	if err != nil {
		return nil, apperr.Invalidf("bad end time %q", in.End)
	}
	if end.Before(start) {
		// Midnight rollover: 23:30 -> 00:15 ends the next day.
		end = end.AddDate(0, 0, 1)
	}

	now := m.now()
	if start.After(now) || end.After(now) {
		return nil, apperr.Invalidf("entry cannot lie in the future")
	}
	if !end.After(start) {
		return nil, apperr.Invalidf("entry duration must be positive")
	}

	return m.entries.Create(ctx, &models.TimeEntry{
		UserID:      userID,
		TaskID:      in.TaskID,
		StartTime:   start,
		EndTime:     &end,
		Description: in.Description,
	})
}

// Reconcile aligns the cached session with the store's open entry and
// returns the resulting state. The store is always asked, never trusted to
// match the client's memory:
//
//  1. store open, cache idle  -> adopt the store row (timer started elsewhere)
//  2. store idle, cache running -> clear the stale session
//  3. both running            -> store row wins on any disagreement
//  4. both idle               -> nothing to do
//
// Running it twice without an intervening store change is a no-op.
func (m *Manager) Reconcile(ctx context.Context, userID int64) (*models.TimerState, error) {
	open, err := m.entries.FindOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	session, err := m.cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case open == nil && session == nil:
		return idleState(), nil

	case open == nil && session != nil:
		if err := m.cache.Delete(ctx, userID); err != nil {
			return nil, err
		}
		log.Debug().Int64("user", userID).Msg("Cleared stale timer session")
		return idleState(), nil

	case open != nil && session == nil:
		session = m.sessionFromEntry(ctx, userID, open)
		if err := m.cache.Put(ctx, userID, session); err != nil {
			log.Warn().Err(err).Int64("user", userID).Msg("Failed to cache adopted session")
		}
		return m.runningState(session), nil

	default:
		if session.TaskID != open.TaskID || !session.StartTime.Equal(open.StartTime) {
			session = m.sessionFromEntry(ctx, userID, open)
			if err := m.cache.Put(ctx, userID, session); err != nil {
				log.Warn().Err(err).Int64("user", userID).Msg("Failed to refresh cached session")
			}
		}
		return m.runningState(session), nil
	}
}

// Current returns the reconciled timer state.
func (m *Manager) Current(ctx context.Context, userID int64) (*models.TimerState, error) {
	return m.Reconcile(ctx, userID)
}

// ClearCache drops the user's cached session, e.g. on logout. The store is
// untouched; a running timer keeps running and is re-adopted on next login.
func (m *Manager) ClearCache(ctx context.Context, userID int64) error {
	return m.cache.Delete(ctx, userID)
}

// sessionFromEntry rebuilds a display session from the authoritative open
// row. Lookup failures degrade to an unnamed snapshot rather than blocking
// adoption.
func (m *Manager) sessionFromEntry(ctx context.Context, userID int64, open *models.TimeEntry) *models.TimerSession {
	session := &models.TimerSession{
		TaskID:      open.TaskID,
		StartTime:   open.StartTime,
		Description: open.Description,
	}
	task, err := m.tasks.GetByID(ctx, userID, open.TaskID)
	if err != nil {
		log.Warn().Err(err).Int64("task", open.TaskID).Msg("Adopted timer without task snapshot")
		return session
	}
	session.TaskName = task.Name
	session.ProjectID = task.ProjectID
	if project, err := m.projects.GetByID(ctx, userID, task.ProjectID); err == nil {
		session.ProjectName = project.Name
		session.ProjectColor = project.Color
	}
	return session
}

func (m *Manager) runningState(session *models.TimerSession) *models.TimerState {
	return &models.TimerState{
		Running:    true,
		Session:    session,
		ElapsedSec: session.Elapsed(m.now()),
	}
}

func idleState() *models.TimerState {
	return &models.TimerState{Running: false}
}

func (m *Manager) notify(userID int64, state *models.TimerState) {
	if m.onChange != nil {
		m.onChange(userID, state)
	}
}
