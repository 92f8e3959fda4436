package models

import "time"

// TimerSession is the client-local cache of the believed-running timer.
// It carries display snapshots so the timer bar can render without extra
// lookups. The open TimeEntry row in the store stays authoritative; the
// session holds no entry id and is never trusted over the store.
type TimerSession struct {
	TaskID       int64     `json:"task_id"`
	TaskName     string    `json:"task_name"`
	ProjectID    int64     `json:"project_id"`
	ProjectName  string    `json:"project_name"`
	ProjectColor string    `json:"project_color"`
	StartTime    time.Time `json:"start_time"`
	Description  string    `json:"description"`
}

// Elapsed returns whole seconds since the session started. Recomputed from
// the start anchor on every call so the value self-corrects after tab
// suspension or clock drift.
func (s *TimerSession) Elapsed(now time.Time) int64 {
	sec := int64(now.Sub(s.StartTime) / time.Second)
	if sec < 0 {
		return 0
	}
	return sec
}

// TimerState is the reconciled view served to consumers of the timer.
type TimerState struct {
	Running    bool          `json:"running"`
	Session    *TimerSession `json:"session,omitempty"`
	ElapsedSec int64         `json:"elapsed_seconds"`
}
