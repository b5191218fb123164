// pattern: Imperative Shell

package discovery

import (
	"os"
	"path/filepath"
	"sort"

	"worktreehub/internal/project"
)

// Repository is a git repository found under a scan path.
type Repository struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Key  string `json:"key"`
}

// Scanner finds git repositories one level below configured scan paths.
type Scanner struct {
	exclude func(path string) bool
}

// NewScanner creates a scanner. Directories for which exclude returns true
// are skipped; exclude may be nil.
func NewScanner(exclude func(path string) bool) *Scanner {
	return &Scanner{exclude: exclude}
}

// ScanAll scans every path and returns the repositories found, sorted by
// name. Unreadable scan paths are skipped.
func (s *Scanner) ScanAll(paths []string) []Repository {
	var repos []Repository
	seen := make(map[string]bool)

	for _, scanPath := range paths {
		entries, err := os.ReadDir(scanPath)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			repoPath := filepath.Join(scanPath, entry.Name())

			resolved, err := filepath.EvalSymlinks(repoPath)
			if err != nil {
				resolved = repoPath
			}
			if seen[resolved] {
				continue
			}
			seen[resolved] = true

			if s.exclude != nil && s.exclude(resolved) {
				continue
			}
			if !isGitRepo(resolved) {
				continue
			}

			repos = append(repos, Repository{
				Name: entry.Name(),
				Path: resolved,
				Key:  project.Key(resolved),
			})
		}
	}

	sort.Slice(repos, func(i, j int) bool {
		if repos[i].Name != repos[j].Name {
			return repos[i].Name < repos[j].Name
		}
		return repos[i].Path < repos[j].Path
	})
	return repos
}

// isGitRepo reports whether dir is the top of a checkout. A .git file
// marks a linked worktree, which is not offered as a project.
func isGitRepo(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && fi.IsDir()
}
