// pattern: Imperative Shell

package worktree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"worktreehub/internal/metadata"
)

// LoadManagedWorktrees returns the worktrees created from branch, newest first.
func (m *Manager) LoadManagedWorktrees(branch string) []*Worktree {
	all := m.LoadAllManagedWorktrees()
	out := make([]*Worktree, 0, len(all))
	for _, wt := range all {
		if wt.OriginalBranch == branch {
			out = append(out, wt)
		}
	}
	return out
}

// LoadAllManagedWorktrees enumerates the worktrees root, preferring each
// directory's metadata record and falling back to name inference for
// legacy entries. Unrecognized directories are ignored. A failure to read
// the root yields an empty list and sets LastError.
func (m *Manager) LoadAllManagedWorktrees() []*Worktree {
	entries, err := os.ReadDir(m.worktreesRoot)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.setLastError(fmt.Sprintf("Failed to list worktrees: %v", err))
		}
		return nil
	}

	var out []*Worktree
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if wt := m.load(e.Name()); wt != nil {
			out = append(out, wt)
		}
	}

	slices.SortStableFunc(out, func(a, b *Worktree) int {
		return createdAt(b).Compare(createdAt(a))
	})
	return out
}

// Find returns the worktree with the given directory name.
func (m *Manager) Find(name string) (*Worktree, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return nil, ErrNotFound
	}
	info, err := os.Stat(m.pathFor(name))
	if err != nil || !info.IsDir() {
		return nil, ErrNotFound
	}
	wt := m.load(name)
	if wt == nil {
		return nil, ErrNotFound
	}
	return wt, nil
}

func (m *Manager) load(name string) *Worktree {
	path := m.pathFor(name)

	rec, err := m.meta.Load(name)
	if err == nil {
		created := rec.CreatedAt
		wt := &Worktree{
			Name:            name,
			Path:            path,
			OriginalBranch:  rec.OriginalBranch,
			AgentBranch:     rec.AgentBranch,
			DisplayName:     rec.DisplayName,
			PreviewServices: rec.PreviewServices,
		}
		if !created.IsZero() {
			wt.CreatedAt = &created
		}
		return wt
	}
	if !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("unreadable metadata, inferring from name", "name", name, "error", err)
	}

	branch, ok := InferBranch(name)
	if !ok {
		return nil
	}
	wt := &Worktree{
		Name:            name,
		Path:            path,
		OriginalBranch:  branch,
		AgentBranch:     name,
		DisplayName:     name,
		PreviewServices: []metadata.PreviewServiceConfig{},
		Inferred:        true,
	}
	if info, err := os.Stat(path); err == nil {
		mod := info.ModTime().UTC()
		wt.CreatedAt = &mod
	}
	return wt
}

func createdAt(wt *Worktree) time.Time {
	if wt.CreatedAt == nil {
		return time.Time{}
	}
	return *wt.CreatedAt
}
