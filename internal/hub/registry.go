// pattern: Imperative Shell

package hub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"worktreehub/internal/events"
	"worktreehub/internal/logging"
	"worktreehub/internal/metadata"
	"worktreehub/internal/session"
	"worktreehub/internal/worktree"
)

var (
	// ErrAgentUnavailable is returned when no agent executable was resolved.
	ErrAgentUnavailable = errors.New("agent executable not found")

	// ErrNoEnabledPreviews is returned by StartPreviews when the worktree
	// has no enabled preview service.
	ErrNoEnabledPreviews = errors.New("add and enable at least one preview service before starting previews")

	// ErrPreviewCommandRequired is returned for a service with a blank command.
	ErrPreviewCommandRequired = errors.New("preview service command is required")

	// ErrPreviewRootInvalid is returned when a service root is not a directory.
	ErrPreviewRootInvalid = errors.New("preview service root is not a directory")
)

// LogProvider hands out scoped loggers. Both the production and the test
// log managers satisfy it.
type LogProvider interface {
	For(scope string) *logging.ScopedLogger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	ProjectKey    string
	AgentPath     string
	Shell         string
	Env           []string
	StopGrace     time.Duration
	MinimumUptime time.Duration
	Events        *events.Broker
	Logs          LogProvider
}

type previewKey struct {
	worktree string
	service  string
}

// Registry indexes the live sessions of one project: at most one agent per
// worktree and at most one preview per worktree and service.
type Registry struct {
	opts   RegistryOptions
	logger *logging.ScopedLogger

	mu       sync.Mutex
	agents   map[string]*session.Session
	previews map[previewKey]*session.Session
}

// NewRegistry returns an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		opts:     opts,
		agents:   make(map[string]*session.Session),
		previews: make(map[previewKey]*session.Session),
	}
	r.logger = r.loggerFor("hub." + opts.ProjectKey)
	return r
}

func (r *Registry) loggerFor(scope string) *logging.ScopedLogger {
	if r.opts.Logs == nil {
		return logging.NopLogger()
	}
	return r.opts.Logs.For(scope)
}

func (r *Registry) publish(worktreePath string, s *session.Session) {
	r.opts.Events.Publish(events.Event{
		Kind:       events.KindSession,
		ProjectKey: r.opts.ProjectKey,
		Worktree:   worktreePath,
		SessionID:  s.ID(),
	})
}

// StartAgent starts the agent for wt, or resizes the one already running.
func (r *Registry) StartAgent(wt *worktree.Worktree, cols, rows int) (*session.Session, error) {
	return r.startAgent(wt, cols, rows, false)
}

// ResumeAgent starts the agent in resume mode, continuing its last
// conversation. A running agent is reused as is.
func (r *Registry) ResumeAgent(wt *worktree.Worktree, cols, rows int) (*session.Session, error) {
	return r.startAgent(wt, cols, rows, true)
}

func (r *Registry) startAgent(wt *worktree.Worktree, cols, rows int, resume bool) (*session.Session, error) {
	if r.opts.AgentPath == "" {
		return nil, ErrAgentUnavailable
	}

	r.mu.Lock()
	s, ok := r.agents[wt.Path]
	if !ok || s.State() == session.StateStopped {
		s = session.NewAgent(session.AgentOptions{
			Title:     wt.DisplayName,
			Dir:       wt.Path,
			Branch:    wt.AgentBranch,
			AgentPath: r.opts.AgentPath,
			Shell:     r.opts.Shell,
			Resume:    resume,
			Env:       r.opts.Env,
			StopGrace: r.opts.StopGrace,
			Logger:    r.loggerFor("session.agent"),
		})
		r.agents[wt.Path] = s
		path := wt.Path
		s.OnExit(func(exited *session.Session) {
			r.mu.Lock()
			if r.agents[path] == exited {
				delete(r.agents, path)
			}
			r.mu.Unlock()
			r.publish(path, exited)
		})
		r.logger.Info("starting agent", "worktree", wt.Name, "resume", resume, "session", s.ID())
	}
	r.mu.Unlock()

	err := s.Start(cols, rows)
	r.publish(wt.Path, s)
	return s, err
}

// StopAgent stops the worktree's agent. It reports whether one was live.
func (r *Registry) StopAgent(worktreePath string) bool {
	r.mu.Lock()
	s, ok := r.agents[worktreePath]
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Stop()
	return true
}

// Agent returns the worktree's live agent session, or nil.
func (r *Registry) Agent(worktreePath string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[worktreePath]
}

// StartPreview starts one preview service, reusing a live session for the
// same service.
func (r *Registry) StartPreview(wt *worktree.Worktree, cfg metadata.PreviewServiceConfig, cols, rows int) (*session.Session, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("%w: %s", ErrPreviewCommandRequired, cfg.DisplayName())
	}
	root := cfg.ResolveRoot(wt.Path)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPreviewRootInvalid, root)
	}

	key := previewKey{worktree: wt.Path, service: cfg.ID}

	r.mu.Lock()
	s, ok := r.previews[key]
	if !ok || s.State() == session.StateStopped {
		s = session.NewPreview(session.PreviewOptions{
			Title:         cfg.DisplayName(),
			ServiceID:     cfg.ID,
			Root:          root,
			Branch:        wt.AgentBranch,
			Command:       cfg.Command,
			EnvText:       cfg.EnvText,
			Shell:         r.opts.Shell,
			Env:           r.opts.Env,
			StopGrace:     r.opts.StopGrace,
			MinimumUptime: r.opts.MinimumUptime,
			Logger:        r.loggerFor("session.preview"),
		})
		r.previews[key] = s
		s.OnExit(func(exited *session.Session) {
			r.mu.Lock()
			if r.previews[key] == exited {
				delete(r.previews, key)
			}
			r.mu.Unlock()
			r.publish(key.worktree, exited)
		})
		r.logger.Info("starting preview", "worktree", wt.Name, "service", cfg.DisplayName(), "session", s.ID())
	}
	r.mu.Unlock()

	err := s.Start(cols, rows)
	r.publish(wt.Path, s)
	return s, err
}

// StartPreviews starts every enabled preview service of wt. Services that
// fail to launch are reported together; the others keep running.
func (r *Registry) StartPreviews(wt *worktree.Worktree, cols, rows int) ([]*session.Session, error) {
	var enabled []metadata.PreviewServiceConfig
	for _, cfg := range wt.PreviewServices {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoEnabledPreviews
	}

	var started []*session.Session
	var errs []error
	for _, cfg := range enabled {
		s, err := r.StartPreview(wt, cfg, cols, rows)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cfg.DisplayName(), err))
		}
		if s != nil {
			started = append(started, s)
		}
	}
	return started, errors.Join(errs...)
}

// StopPreview stops one preview service. It reports whether it was live.
func (r *Registry) StopPreview(worktreePath, serviceID string) bool {
	r.mu.Lock()
	s, ok := r.previews[previewKey{worktree: worktreePath, service: serviceID}]
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Stop()
	return true
}

// StopPreviews stops every preview of a worktree concurrently and waits.
func (r *Registry) StopPreviews(worktreePath string) {
	stopAll(r.Previews(worktreePath))
}

// Preview returns the live session for one service, or nil.
func (r *Registry) Preview(worktreePath, serviceID string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previews[previewKey{worktree: worktreePath, service: serviceID}]
}

// Previews returns the worktree's live preview sessions ordered by title.
func (r *Registry) Previews(worktreePath string) []*session.Session {
	r.mu.Lock()
	var list []*session.Session
	for key, s := range r.previews {
		if key.worktree == worktreePath {
			list = append(list, s)
		}
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Title() != list[j].Title() {
			return list[i].Title() < list[j].Title()
		}
		return list[i].ServiceID() < list[j].ServiceID()
	})
	return list
}

// PreviewRunning reports whether any preview of the worktree is running.
func (r *Registry) PreviewRunning(worktreePath string) bool {
	for _, s := range r.Previews(worktreePath) {
		if s.IsRunning() {
			return true
		}
	}
	return false
}

// StopForRemoval stops every session rooted at worktreePath. Preview roots
// may be absolute paths outside the worktree, so previews are matched by
// the worktree they were started for.
func (r *Registry) StopForRemoval(ctx context.Context, worktreePath string) {
	r.mu.Lock()
	var list []*session.Session
	if s, ok := r.agents[worktreePath]; ok {
		list = append(list, s)
	}
	for key, s := range r.previews {
		if key.worktree == worktreePath {
			list = append(list, s)
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		stopAll(list)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("gave up waiting for sessions to stop", "worktree", worktreePath, "error", ctx.Err())
	}
}

// Retitle renames the worktree's agent session.
func (r *Registry) Retitle(worktreePath, title string) {
	r.mu.Lock()
	s, ok := r.agents[worktreePath]
	r.mu.Unlock()
	if ok {
		s.SetTitle(title)
		r.publish(worktreePath, s)
	}
}

// StopAll stops every session of the project and waits for them.
func (r *Registry) StopAll() {
	r.mu.Lock()
	list := make([]*session.Session, 0, len(r.agents)+len(r.previews))
	for _, s := range r.agents {
		list = append(list, s)
	}
	for _, s := range r.previews {
		list = append(list, s)
	}
	r.mu.Unlock()
	stopAll(list)
}

// Sessions returns every live session, agents first.
func (r *Registry) Sessions() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*session.Session, 0, len(r.agents)+len(r.previews))
	for _, s := range r.agents {
		list = append(list, s)
	}
	for _, s := range r.previews {
		list = append(list, s)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Kind() != list[j].Kind() {
			return list[i].Kind() == session.KindAgent
		}
		return list[i].ID() < list[j].ID()
	})
	return list
}

func stopAll(list []*session.Session) {
	var wg sync.WaitGroup
	for _, s := range list {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
}

var _ worktree.SessionController = (*Registry)(nil)
