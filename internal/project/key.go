// pattern: Functional Core

package project

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Key derives the on-disk namespace for a project: its directory name
// followed by the first 8 hex characters of the SHA-256 of its absolute path.
func Key(path string) string {
	abs := absPath(path)
	name := strings.ReplaceAll(filepath.Base(abs), "/", "-")
	if name == "" || name == "." || name == "-" {
		name = "root"
	}
	sum := sha256.Sum256([]byte(abs))
	return name + "-" + hex.EncodeToString(sum[:])[:8]
}

// Ref identifies a project root. ID is the absolute path.
type Ref struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path" yaml:"path"`
	Name string `json:"name" yaml:"name"`
}

// NewRef builds a Ref for path, made absolute and cleaned.
func NewRef(path string) Ref {
	abs := absPath(path)
	return Ref{ID: abs, Path: abs, Name: filepath.Base(abs)}
}

// Key returns the project's namespace key.
func (r Ref) Key() string {
	return Key(r.Path)
}

// Layout maps project keys to their directories under a data root.
type Layout struct {
	DataDir string
}

// WorktreesBase is the parent of every project's worktrees root.
func (l Layout) WorktreesBase() string {
	return filepath.Join(l.DataDir, "worktrees")
}

// WorktreesRoot holds the managed worktree checkouts for key.
func (l Layout) WorktreesRoot(key string) string {
	return filepath.Join(l.WorktreesBase(), key)
}

// MetadataRoot holds one JSON record per managed worktree for key.
func (l Layout) MetadataRoot(key string) string {
	return filepath.Join(l.DataDir, "metadata", key)
}

// StatePath is the YAML file recording favorites, recents and per-project state.
func (l Layout) StatePath() string {
	return filepath.Join(l.DataDir, "projects.yaml")
}

// Contains reports whether path lies inside the managed worktrees tree.
func (l Layout) Contains(path string) bool {
	base := resolve(l.WorktreesBase())
	p := resolve(path)
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// absPath keeps symlinks so a key stays tied to the path the project was
// opened under.
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

func resolve(path string) string {
	abs := absPath(path)
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
