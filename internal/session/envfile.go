// pattern: Imperative Shell

package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// BackupSuffix is appended to a user's .env while an injected one is live.
const BackupSuffix = ".worktreehub-backup"

// EnvFile writes a transient .env into a service directory, moving any
// existing file aside and putting it back on Restore.
type EnvFile struct {
	dir  string
	text string

	mu       sync.Mutex
	injected bool
}

// NewEnvFile returns an injector for dir, or nil when text is blank.
func NewEnvFile(dir, text string) *EnvFile {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return &EnvFile{dir: dir, text: text}
}

// Path is the injected .env location.
func (e *EnvFile) Path() string {
	return filepath.Join(e.dir, ".env")
}

// BackupPath is where a pre-existing .env is kept while injected.
func (e *EnvFile) BackupPath() string {
	return e.Path() + BackupSuffix
}

// Inject backs up an existing .env and writes the configured text. A backup
// left behind by a session that never cleaned up is the user's original
// file, so it is kept and the stale .env is simply overwritten.
func (e *EnvFile) Inject() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	path, backup := e.Path(), e.BackupPath()
	if !exists(backup) && exists(path) {
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("backing up .env: %w", err)
		}
	}

	tmp, err := os.CreateTemp(e.dir, ".env.*.tmp")
	if err != nil {
		return fmt.Errorf("writing .env: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(e.text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing .env: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing .env: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing .env: %w", err)
	}
	e.injected = true
	return nil
}

// Restore deletes the injected file and moves the backup back. It is safe
// to call any number of times, including when Inject failed part way.
func (e *EnvFile) Restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	path, backup := e.Path(), e.BackupPath()
	var errs []error
	if e.injected {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing injected .env: %w", err))
		}
		e.injected = false
	}
	if exists(backup) && !exists(path) {
		if err := os.Rename(backup, path); err != nil {
			errs = append(errs, fmt.Errorf("restoring .env: %w", err))
		}
	}
	return errors.Join(errs...)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
