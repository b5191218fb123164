// pattern: Imperative Shell
package instance

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const healthTimeout = 2 * time.Second

// ErrNotRunning is returned by Discover when no server holds the lock.
var ErrNotRunning = errors.New("no running worktreehub server found (start one with 'worktreehub serve')")

// Discover returns the base URL of the running server, such as
// "http://127.0.0.1:12345". It fails when no server holds the lock, the
// port file is missing, or the health check fails.
func Discover(dataDir string) (string, error) {
	lockPath := filepath.Join(dataDir, lockFileName)
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return "", ErrNotRunning
	}

	// If the lock can be taken, nothing is running.
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return "", fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		_ = fl.Unlock()
		return "", ErrNotRunning
	}

	data, err := os.ReadFile(filepath.Join(dataDir, portFileName))
	if err != nil {
		return "", fmt.Errorf("server detected but port file missing (try 'worktreehub cleanup'): %w", err)
	}
	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return "", fmt.Errorf("port file is empty (try 'worktreehub cleanup')")
	}
	baseURL := "http://" + addr

	client := &http.Client{Timeout: healthTimeout}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return "", fmt.Errorf("server not responding (try 'worktreehub cleanup'): %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("health check failed (status %d)", resp.StatusCode)
	}
	return baseURL, nil
}
