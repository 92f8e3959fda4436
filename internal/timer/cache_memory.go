package timer

import (
	"context"
	"sync"

	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// MemoryCache is a process-local SessionCache. It does not survive a
// restart, which is fine for tests and single-process deployments where the
// store reconciliation recovers the session anyway.
type MemoryCache struct {
	mu       sync.RWMutex
	sessions map[int64]models.TimerSession
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{sessions: make(map[int64]models.TimerSession)}
}

// Get returns the cached session for the user, or nil.
func (c *MemoryCache) Get(ctx context.Context, userID int64) (*models.TimerSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[userID]
	if !ok {
		return nil, nil
	}
	copy := s
	return &copy, nil
}

// Put stores the session for the user.
func (c *MemoryCache) Put(ctx context.Context, userID int64, session *models.TimerSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[userID] = *session
	return nil
}

// Delete removes the user's session.
func (c *MemoryCache) Delete(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, userID)
	return nil
}
