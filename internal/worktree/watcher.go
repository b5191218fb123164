// pattern: Imperative Shell

package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"worktreehub/internal/logging"
)

// DefaultDebounce coalesces bursts of filesystem events (a checkout
// creates many entries) into one notification.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes made to a project's worktrees and metadata roots
// from outside the manager, such as a user deleting a checkout by hand.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	onChange func()
	logger   *logging.ScopedLogger
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
}

// NewWatcher watches the manager's roots and calls onChange after each
// debounced burst of events.
func NewWatcher(m *Manager, onChange func(), logger *logging.ScopedLogger) (*Watcher, error) {
	return newWatcher([]string{m.WorktreesRoot(), m.MetadataRoot()}, DefaultDebounce, onChange, logger)
}

func newWatcher(dirs []string, debounce time.Duration, onChange func(), logger *logging.ScopedLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{
		dirs:     dirs,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
	}, nil
}

// Run watches until ctx is cancelled or the watcher is closed. The watched
// directories are created if missing.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create watched directory: %w", err)
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory: %w", err)
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ignoredEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close stops the watcher. Safe to call multiple times.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.watcher.Close()
}

// ignoredEvent filters the manager's own lock and temp files.
func ignoredEvent(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	base := filepath.Base(ev.Name)
	return base == ".lock" || strings.HasSuffix(base, ".tmp")
}
