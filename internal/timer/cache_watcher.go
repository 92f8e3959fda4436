package timer

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// CacheWatcher monitors the file cache directory for session files written
// or removed by another process (the multi-tab analogue) and invokes
// onChange with the affected user id so consumers can re-reconcile.
type CacheWatcher struct {
	dir      string
	onChange func(userID int64)
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
	debounce time.Duration
	lastSeen map[int64]time.Time
}

// NewCacheWatcher creates a watcher over the file cache directory.
func NewCacheWatcher(dir string, onChange func(userID int64)) (*CacheWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheWatcher{
		dir:      dir,
		onChange: onChange,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
		debounce: 100 * time.Millisecond,
		lastSeen: make(map[int64]time.Time),
	}, nil
}

// Start begins watching for session file events.
func (w *CacheWatcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		log.Warn().Err(err).Str("dir", w.dir).Msg("Failed to watch session cache dir")
		return err
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *CacheWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *CacheWatcher) watchLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			userID, ok := userIDFromPath(event.Name)
			if !ok {
				continue
			}
			w.mu.Lock()
			last := w.lastSeen[userID]
			now := time.Now()
			fire := now.Sub(last) >= w.debounce
			if fire {
				w.lastSeen[userID] = now
			}
			w.mu.Unlock()
			if fire && w.onChange != nil {
				w.onChange(userID)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Session cache watcher error")
		}
	}
}

// userIDFromPath extracts the user id from a "user-<id>.json" cache file.
func userIDFromPath(path string) (int64, bool) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".json")
	name = strings.TrimSuffix(name, ".json.tmp")
	if !strings.HasPrefix(name, "user-") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(name, "user-"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
