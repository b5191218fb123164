// pattern: Imperative Shell

package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"worktreehub/internal/events"
	"worktreehub/internal/git"
	"worktreehub/internal/logging"
	"worktreehub/internal/project"
	"worktreehub/internal/worktree"
)

// ErrProjectNotFound is returned for an unknown project key.
var ErrProjectNotFound = errors.New("project not open")

// Options configures a Hub.
type Options struct {
	Layout        project.Layout
	Store         *project.Store // optional; records recents when set
	Git           *git.Client
	Events        *events.Broker
	Logs          LogProvider
	AgentPath     string
	Shell         string
	Env           []string
	StopGrace     time.Duration
	MinimumUptime time.Duration

	// DisableWatch skips the filesystem watcher, for tests.
	DisableWatch bool
}

// Project is an open project: its worktree manager, its live sessions and
// the watcher reporting outside changes to its worktrees.
type Project struct {
	Ref       project.Ref
	Worktrees *worktree.Manager
	Sessions  *Registry

	watcher *worktree.Watcher
	cancel  context.CancelFunc
}

// Key returns the project key.
func (p *Project) Key() string { return p.Worktrees.Key() }

// Branches lists the local branches a new worktree may be created from,
// without the branches managed worktrees generate for themselves.
func (p *Project) Branches(ctx context.Context, g *git.Client) ([]string, error) {
	all, err := g.ListBranches(ctx, p.Worktrees.Repo().Root)
	if err != nil {
		return nil, err
	}
	return worktree.FilterCreatableBranches(all), nil
}

// Worktree finds a managed worktree by directory name.
func (p *Project) Worktree(name string) (*worktree.Worktree, error) {
	return p.Worktrees.Find(name)
}

// DeleteWorktree stops the named worktree's sessions and deletes it.
func (p *Project) DeleteWorktree(ctx context.Context, name string) error {
	wt, err := p.Worktrees.Find(name)
	if err != nil {
		return err
	}
	return p.Worktrees.DeleteWorktree(ctx, wt)
}

// Hub is the explicit registry of open projects, keyed by project key.
type Hub struct {
	opts   Options
	logger *logging.ScopedLogger

	mu       sync.Mutex
	projects map[string]*Project
}

// New returns a hub with no open projects.
func New(opts Options) *Hub {
	if opts.Git == nil {
		opts.Git = git.NewClient(git.NewExecRunner(), logging.NopLogger())
	}
	h := &Hub{opts: opts, projects: make(map[string]*Project)}
	h.logger = h.loggerFor("hub")
	return h
}

func (h *Hub) loggerFor(scope string) *logging.ScopedLogger {
	if h.opts.Logs == nil {
		return logging.NopLogger()
	}
	return h.opts.Logs.For(scope)
}

// Git returns the git client shared by every project.
func (h *Hub) Git() *git.Client { return h.opts.Git }

// Events returns the broker change notifications are published on.
func (h *Hub) Events() *events.Broker { return h.opts.Events }

// Layout returns where worktrees and metadata are kept.
func (h *Hub) Layout() project.Layout { return h.opts.Layout }

// Store returns the persisted project list, or nil.
func (h *Hub) Store() *project.Store { return h.opts.Store }

// Open returns the project at path, opening it on first use. Only git
// repositories can be opened.
func (h *Hub) Open(ctx context.Context, path string) (*Project, error) {
	ref := project.NewRef(path)
	key := ref.Key()

	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.projects[key]; ok {
		return p, nil
	}

	sessions := NewRegistry(RegistryOptions{
		ProjectKey:    key,
		AgentPath:     h.opts.AgentPath,
		Shell:         h.opts.Shell,
		Env:           h.opts.Env,
		StopGrace:     h.opts.StopGrace,
		MinimumUptime: h.opts.MinimumUptime,
		Events:        h.opts.Events,
		Logs:          h.opts.Logs,
	})
	mgr := worktree.NewManager(ctx, worktree.Options{
		ProjectPath: ref.Path,
		Layout:      h.opts.Layout,
		Git:         h.opts.Git,
		Sessions:    sessions,
		Events:      h.opts.Events,
		Logger:      h.loggerFor("worktree." + key),
	})
	if !mgr.Repo().IsGitRepo {
		return nil, fmt.Errorf("%s: %w", ref.Path, git.ErrNotAGitRepository)
	}

	p := &Project{Ref: ref, Worktrees: mgr, Sessions: sessions}
	if !h.opts.DisableWatch {
		h.startWatcher(p)
	}
	h.projects[key] = p

	if h.opts.Store != nil {
		if err := h.opts.Store.RecordRecent(ref); err != nil {
			h.logger.Warn("failed to record recent project", "path", ref.Path, "error", err)
		}
		if err := h.opts.Store.SetCurrent(ref); err != nil {
			h.logger.Warn("failed to save current project", "path", ref.Path, "error", err)
		}
	}

	h.logger.Info("project opened", "key", key, "path", ref.Path)
	h.opts.Events.Publish(events.Event{Kind: events.KindProject, ProjectKey: key})
	return p, nil
}

func (h *Hub) startWatcher(p *Project) {
	key := p.Key()
	w, err := worktree.NewWatcher(p.Worktrees, func() {
		h.opts.Events.Publish(events.Event{Kind: events.KindWorktrees, ProjectKey: key})
	}, h.loggerFor("worktree."+key))
	if err != nil {
		h.logger.Warn("worktree watcher unavailable", "key", key, "error", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.watcher, p.cancel = w, cancel
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("worktree watcher stopped", "key", key, "error", err)
		}
	}()
}

// Get returns an open project.
func (h *Hub) Get(key string) (*Project, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.projects[key]
	return p, ok
}

// Projects returns the open projects ordered by name.
func (h *Hub) Projects() []*Project {
	h.mu.Lock()
	list := make([]*Project, 0, len(h.projects))
	for _, p := range h.projects {
		list = append(list, p)
	}
	h.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Ref.Name != list[j].Ref.Name {
			return list[i].Ref.Name < list[j].Ref.Name
		}
		return list[i].Ref.Path < list[j].Ref.Path
	})
	return list
}

// Evict closes a project: its sessions are stopped, its watcher closed and
// its loggers released. Worktrees on disk are left alone.
func (h *Hub) Evict(key string) bool {
	h.mu.Lock()
	p, ok := h.projects[key]
	delete(h.projects, key)
	h.mu.Unlock()
	if !ok {
		return false
	}

	p.Sessions.StopAll()
	if p.cancel != nil {
		p.cancel()
	}
	if p.watcher != nil {
		_ = p.watcher.Close()
	}
	if c, ok := h.opts.Logs.(interface{ Cleanup(string) }); ok {
		c.Cleanup("worktree." + key)
		c.Cleanup("hub." + key)
	}

	h.logger.Info("project closed", "key", key)
	h.opts.Events.Publish(events.Event{Kind: events.KindProject, ProjectKey: key})
	return true
}

// Remove deletes every managed worktree of the project, closes it and
// forgets it from the saved project list. Worktrees that fail to delete
// are reported and the project stays open.
func (h *Hub) Remove(ctx context.Context, key string) error {
	p, ok := h.Get(key)
	if !ok {
		return ErrProjectNotFound
	}

	var errs []error
	for _, wt := range p.Worktrees.LoadAllManagedWorktrees() {
		if err := p.Worktrees.DeleteWorktree(ctx, wt); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	h.Evict(key)
	if h.opts.Store != nil {
		if err := h.opts.Store.Forget(p.Ref.Path); err != nil {
			return fmt.Errorf("forgetting project: %w", err)
		}
	}
	return nil
}

// Close evicts every open project.
func (h *Hub) Close() {
	for _, p := range h.Projects() {
		h.Evict(p.Key())
	}
}
