// pattern: Imperative Shell
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	lockFileName = "worktreehub.lock"
	portFileName = "worktreehub.port"
)

// ErrAlreadyRunning is returned by Lock when another server holds the lock.
var ErrAlreadyRunning = errors.New("another worktreehub server is already running")

// Lock acquires an exclusive file lock for single-instance enforcement,
// creating dataDir if needed. The caller must Cleanup the returned handle.
func Lock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return fl, nil
}

// WritePort records the server's listener address for clients.
func WritePort(dataDir, addr string) error {
	return os.WriteFile(filepath.Join(dataDir, portFileName), []byte(addr), 0600)
}

// Cleanup removes the port file and releases the file lock.
func Cleanup(dataDir string, fl *flock.Flock) {
	_ = os.Remove(filepath.Join(dataDir, portFileName))
	if fl != nil {
		_ = fl.Unlock()
	}
}

// RemoveStale deletes a port file left by a server that exited without
// cleaning up. It refuses while a live server holds the lock.
func RemoveStale(dataDir string) (bool, error) {
	lockPath := filepath.Join(dataDir, lockFileName)
	if _, err := os.Stat(lockPath); err == nil {
		fl := flock.New(lockPath)
		locked, err := fl.TryLock()
		if err != nil {
			return false, fmt.Errorf("failed to check lock: %w", err)
		}
		if !locked {
			return false, ErrAlreadyRunning
		}
		defer func() { _ = fl.Unlock() }()
	}

	err := os.Remove(filepath.Join(dataDir, portFileName))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
