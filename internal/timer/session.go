// Package timer implements the timer lifecycle manager: it owns the
// "at most one open entry per user" rule, the start/stop/discard and
// retroactive-adjust operations, and the reconciliation of the cached
// TimerSession against the authoritative open-entry row in the store.
package timer

import (
	"context"

	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// SessionCache holds the per-user serialized TimerSession. It is a cache of
// display state, never a source of truth: it must survive process restarts
// (file and redis backends) but the store's open entry always wins on
// disagreement. Get returns (nil, nil) when no session is cached.
type SessionCache interface {
	Get(ctx context.Context, userID int64) (*models.TimerSession, error)
	Put(ctx context.Context, userID int64, session *models.TimerSession) error
	Delete(ctx context.Context, userID int64) error
}
