// pattern: Imperative Shell

package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store keeps one JSON record per worktree under a project's metadata root.
// It holds no state; callers serialize mutations per project.
type Store struct {
	root string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the metadata directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the record file for the worktree directory name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name+".json")
}

// Exists reports whether a record is stored for name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Load reads and upgrades the record for name. A missing record returns an
// error matching fs.ErrNotExist.
func (s *Store) Load(name string) (Record, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding metadata %s: %w", name, err)
	}
	rec.Upgrade(name)
	return rec, nil
}

// Save writes rec for name atomically.
func (s *Store) Save(name string, rec Record) error {
	rec.Upgrade(name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata %s: %w", name, err)
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing metadata %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing metadata %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing metadata %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing metadata %s: %w", name, err)
	}
	return nil
}

// Update applies fn to the stored record for name and writes the result.
func (s *Store) Update(name string, fn func(*Record) error) error {
	rec, err := s.Load(name)
	if err != nil {
		return err
	}
	if err := fn(&rec); err != nil {
		return err
	}
	return s.Save(name, rec)
}

// Delete removes the record for name. Deleting a missing record succeeds.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
