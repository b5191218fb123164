// pattern: Imperative Shell

package project

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// MaxRecents bounds the recent-projects list.
const MaxRecents = 5

// State is the per-project selection remembered between runs.
type State struct {
	BaseBranch       string   `yaml:"base_branch,omitempty" json:"base_branch"`
	SelectedWorktree string   `yaml:"selected_worktree,omitempty" json:"selected_worktree"`
	OpenTabs         []string `yaml:"open_tabs,omitempty" json:"open_tabs"`
	ActiveTab        string   `yaml:"active_tab,omitempty" json:"active_tab"`
}

type storeFile struct {
	Favorites []Ref            `yaml:"favorites"`
	Recents   []Ref            `yaml:"recents"`
	Current   string           `yaml:"current,omitempty"`
	States    map[string]State `yaml:"states,omitempty"`
}

// Store persists favorites, recents, the current project and per-project
// state as YAML. Projects whose directories vanished are dropped on load.
type Store struct {
	path string

	mu   sync.Mutex
	data storeFile
}

// OpenStore loads the store at path. A missing file yields an empty store.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading project state: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &s.data); err != nil {
			return nil, fmt.Errorf("parsing project state: %w", err)
		}
	}

	s.data.Favorites = slices.DeleteFunc(s.data.Favorites, missing)
	s.data.Recents = slices.DeleteFunc(s.data.Recents, missing)
	if s.data.Current != "" && !dirExists(s.data.Current) {
		s.data.Current = ""
	}
	if s.data.States == nil {
		s.data.States = make(map[string]State)
	}
	return s, nil
}

// Favorites returns the favorite projects in insertion order.
func (s *Store) Favorites() []Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.Favorites)
}

// Recents returns recently opened projects, most recent first.
func (s *Store) Recents() []Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.Recents)
}

// Current returns the last selected project.
func (s *Store) Current() (Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Current == "" {
		return Ref{}, false
	}
	return NewRef(s.data.Current), true
}

// SetCurrent selects ref and records it as recently opened.
func (s *Store) SetCurrent(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Current = ref.Path
	s.recordRecentLocked(ref)
	return s.saveLocked()
}

// RecordRecent moves ref to the front of the recents list. Favorites are
// never duplicated into recents.
func (s *Store) RecordRecent(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordRecentLocked(ref)
	return s.saveLocked()
}

func (s *Store) recordRecentLocked(ref Ref) {
	s.data.Recents = slices.DeleteFunc(s.data.Recents, func(r Ref) bool { return r.Path == ref.Path })
	if slices.ContainsFunc(s.data.Favorites, func(r Ref) bool { return r.Path == ref.Path }) {
		return
	}
	s.data.Recents = slices.Insert(s.data.Recents, 0, ref)
	if len(s.data.Recents) > MaxRecents {
		s.data.Recents = s.data.Recents[:MaxRecents]
	}
}

// AddFavorite marks ref as a favorite and removes it from recents.
func (s *Store) AddFavorite(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.data.Favorites, func(r Ref) bool { return r.Path == ref.Path }) {
		s.data.Favorites = append(s.data.Favorites, ref)
	}
	s.data.Recents = slices.DeleteFunc(s.data.Recents, func(r Ref) bool { return r.Path == ref.Path })
	return s.saveLocked()
}

// RemoveFavorite unmarks the project at path.
func (s *Store) RemoveFavorite(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Favorites = slices.DeleteFunc(s.data.Favorites, func(r Ref) bool { return r.Path == path })
	return s.saveLocked()
}

// Forget drops every trace of the project at path.
func (s *Store) Forget(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	match := func(r Ref) bool { return r.Path == path }
	s.data.Favorites = slices.DeleteFunc(s.data.Favorites, match)
	s.data.Recents = slices.DeleteFunc(s.data.Recents, match)
	delete(s.data.States, path)
	if s.data.Current == path {
		s.data.Current = ""
	}
	return s.saveLocked()
}

// State returns the remembered state for the project at path.
func (s *Store) State(path string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.data.States[path]
	st.OpenTabs = slices.Clone(st.OpenTabs)
	return st
}

// SetState replaces the remembered state for the project at path.
func (s *Store) SetState(path string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.States[path] = st
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("encoding project state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing project state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing project state: %w", err)
	}
	return nil
}

func missing(r Ref) bool {
	return !dirExists(r.Path)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
