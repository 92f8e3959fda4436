package timer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// FileCache persists one JSON session file per user under a directory. It
// survives restarts, so a desktop or single-node deployment recovers the
// running-timer display without waiting for the first reconciliation.
type FileCache struct {
	dir string
	mu  sync.Mutex
}

// NewFileCache creates a file-backed cache rooted at dir.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory; the fsnotify watcher points here.
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) path(userID int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("user-%d.json", userID))
}

// Get reads the user's session file, returning nil when absent.
func (c *FileCache) Get(ctx context.Context, userID int64) (*models.TimerSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(userID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session cache: %w", err)
	}
	var session models.TimerSession
	if err := json.Unmarshal(data, &session); err != nil {
		// A corrupt cache file is treated as absent; the store is
		// authoritative and reconciliation rebuilds it.
		return nil, nil
	}
	return &session, nil
}

// Put writes the session file atomically (write then rename).
func (c *FileCache) Put(ctx context.Context, userID int64, session *models.TimerSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tmp := c.path(userID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	if err := os.Rename(tmp, c.path(userID)); err != nil {
		return fmt.Errorf("publish session cache: %w", err)
	}
	return nil
}

// Delete removes the user's session file.
func (c *FileCache) Delete(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(userID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session cache: %w", err)
	}
	return nil
}
