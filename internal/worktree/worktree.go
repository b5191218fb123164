// pattern: Imperative Shell

package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"worktreehub/internal/events"
	"worktreehub/internal/git"
	"worktreehub/internal/logging"
	"worktreehub/internal/metadata"
	"worktreehub/internal/project"
)

var (
	// ErrDepthLimitExceeded is returned when the project root is itself a
	// managed worktree; managed worktrees never nest.
	ErrDepthLimitExceeded = errors.New("cannot create a worktree from another managed worktree (depth limit 1)")

	// ErrEmptyName is returned when a rename target is blank.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrWorktreeDirtyRequiresForce marks a removal refused because the tree
	// has local changes. Deletion retries once with force before reporting it.
	ErrWorktreeDirtyRequiresForce = errors.New("worktree contains modified or untracked files")

	// ErrNotFound is returned when a named worktree does not exist.
	ErrNotFound = errors.New("worktree not found")
)

// Worktree is a managed checkout. Its identity is Path.
type Worktree struct {
	Name            string                          `json:"name"`
	Path            string                          `json:"path"`
	OriginalBranch  string                          `json:"originalBranch"`
	AgentBranch     string                          `json:"agentBranch"`
	CreatedAt       *time.Time                      `json:"createdAt,omitempty"`
	DisplayName     string                          `json:"displayName"`
	PreviewServices []metadata.PreviewServiceConfig `json:"previewServices"`

	// Inferred is set when no metadata record exists and the branch and
	// creation time were guessed from the directory name and timestamps.
	Inferred bool `json:"inferred,omitempty"`
}

// SessionController stops and relabels live sessions bound to a worktree.
type SessionController interface {
	// StopForRemoval stops every session rooted at worktreePath and waits
	// for them to finish cleanup.
	StopForRemoval(ctx context.Context, worktreePath string)
	// Retitle updates the display title of the worktree's agent session.
	Retitle(worktreePath, title string)
}

// Options configures a Manager.
type Options struct {
	ProjectPath string
	Layout      project.Layout
	Git         *git.Client
	Sessions    SessionController
	Events      *events.Broker
	Logger      *logging.ScopedLogger

	// Now and Suffix are overridable for tests.
	Now    func() time.Time
	Suffix func() string
}

// Manager creates, discovers, renames and deletes the managed worktrees of
// one project. Mutations are serialized by an in-process mutex and a file
// lock in the metadata root.
type Manager struct {
	projectPath   string
	key           string
	repo          git.RepoInfo
	layout        project.Layout
	worktreesRoot string
	git           *git.Client
	meta          *metadata.Store
	sessions      SessionController
	events        *events.Broker
	logger        *logging.ScopedLogger
	now           func() time.Time
	suffix        func() string

	mu    sync.Mutex
	flock *flock.Flock

	errMu   sync.Mutex
	lastErr string
}

// NewManager inspects the project path and returns its manager.
func NewManager(ctx context.Context, opts Options) *Manager {
	ref := project.NewRef(opts.ProjectPath)
	key := ref.Key()

	m := &Manager{
		projectPath:   ref.Path,
		key:           key,
		layout:        opts.Layout,
		worktreesRoot: opts.Layout.WorktreesRoot(key),
		git:           opts.Git,
		meta:          metadata.NewStore(opts.Layout.MetadataRoot(key)),
		sessions:      opts.Sessions,
		events:        opts.Events,
		logger:        opts.Logger,
		now:           opts.Now,
		suffix:        opts.Suffix,
		flock:         flock.New(filepath.Join(opts.Layout.MetadataRoot(key), ".lock")),
	}
	if m.logger == nil {
		m.logger = logging.NopLogger()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.suffix == nil {
		m.suffix = RandomSuffix
	}
	if m.git == nil {
		m.git = git.NewClient(git.NewExecRunner(), m.logger)
	}
	m.repo = m.git.DetectRepo(ctx, ref.Path)
	return m
}

// Key returns the project key namespacing this manager's state.
func (m *Manager) Key() string { return m.key }

// ProjectPath returns the absolute project path the manager was opened on.
func (m *Manager) ProjectPath() string { return m.projectPath }

// Repo returns the detected repository.
func (m *Manager) Repo() git.RepoInfo { return m.repo }

// WorktreesRoot returns the directory holding this project's worktrees.
func (m *Manager) WorktreesRoot() string { return m.worktreesRoot }

// MetadataRoot returns the directory holding this project's metadata records.
func (m *Manager) MetadataRoot() string { return m.meta.Root() }

// IsManagedRoot reports whether the project itself lives inside the managed
// worktrees tree.
func (m *Manager) IsManagedRoot() bool {
	return m.layout.Contains(m.projectPath) || m.layout.Contains(m.repo.Root)
}

// LastError returns the most recent failure message, or "" after a success.
func (m *Manager) LastError() string {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(msg string) {
	m.errMu.Lock()
	m.lastErr = msg
	m.errMu.Unlock()
	if msg != "" {
		m.logger.Warn("worktree operation failed", "error", msg)
	}
}

// withLock serializes a mutation across goroutines and processes.
func (m *Manager) withLock(ctx context.Context, fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.meta.Root(), 0755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	locked, err := m.flock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring project lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquiring project lock: %w", ctx.Err())
	}
	defer func() { _ = m.flock.Unlock() }()

	return fn()
}

func (m *Manager) publish(path string) {
	m.events.Publish(events.Event{Kind: events.KindWorktrees, ProjectKey: m.key, Worktree: path})
}

func (m *Manager) pathFor(name string) string {
	return filepath.Join(m.worktreesRoot, name)
}
