// pattern: Imperative Shell

package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"worktreehub/internal/agentcli"
	"worktreehub/internal/config"
	"worktreehub/internal/discovery"
	"worktreehub/internal/hub"
	"worktreehub/internal/logging"
)

// LogProvider hands out scoped loggers and exposes recent entries. Both
// *logging.Manager and *logging.TestLogManager satisfy it.
type LogProvider interface {
	For(scope string) *logging.ScopedLogger
	Recent(prefix string, limit int) []logging.LogEntry
}

// Server is the local HTTP API over the hub.
type Server struct {
	httpServer *http.Server
	hub        *hub.Hub
	auth       *agentcli.Client
	logs       LogProvider
	logger     *logging.ScopedLogger
	addr       string
	listener   net.Listener
	cols, rows int
	scanPaths  []string
	scanner    *discovery.Scanner
}

// Config holds web server configuration.
type Config struct {
	Bind string
	Port int

	// Cols and Rows size sessions started without an explicit size.
	Cols int
	Rows int

	// ScanPaths are searched for repositories by the discover endpoint.
	ScanPaths []string
}

// New creates a web server. auth may be nil when no agent executable was
// found; the auth endpoints then report the agent as unavailable.
func New(cfg Config, h *hub.Hub, auth *agentcli.Client, logProvider LogProvider) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		hub:    h,
		auth:   auth,
		logs:   logProvider,
		logger: logProvider.For("web"),
		addr:   addr,
		cols:   cfg.Cols,
		rows:   cfg.Rows,

		scanPaths: cfg.ScanPaths,
		scanner:   discovery.NewScanner(h.Layout().Contains),
	}
	if s.cols <= 0 {
		s.cols = config.DefaultCols
	}
	if s.rows <= 0 {
		s.rows = config.DefaultRows
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/logs", s.handleLogs)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleOpenProject)
	mux.HandleFunc("GET /api/projects/discover", s.handleDiscoverProjects)
	mux.HandleFunc("POST /api/projects/favorites", s.handleAddFavorite)
	mux.HandleFunc("DELETE /api/projects/favorites", s.handleRemoveFavorite)
	mux.HandleFunc("DELETE /api/projects/{key}", s.handleCloseProject)
	mux.HandleFunc("GET /api/projects/{key}/branches", s.handleListBranches)
	mux.HandleFunc("GET /api/projects/{key}/state", s.handleGetProjectState)
	mux.HandleFunc("PUT /api/projects/{key}/state", s.handlePutProjectState)

	mux.HandleFunc("GET /api/projects/{key}/worktrees", s.handleListWorktrees)
	mux.HandleFunc("POST /api/projects/{key}/worktrees", s.handleCreateWorktree)
	mux.HandleFunc("PATCH /api/projects/{key}/worktrees/{name}", s.handleRenameWorktree)
	mux.HandleFunc("DELETE /api/projects/{key}/worktrees/{name}", s.handleDeleteWorktree)
	mux.HandleFunc("PUT /api/projects/{key}/worktrees/{name}/previews", s.handleUpdatePreviews)

	mux.HandleFunc("POST /api/projects/{key}/worktrees/{name}/agent", s.handleStartAgent)
	mux.HandleFunc("DELETE /api/projects/{key}/worktrees/{name}/agent", s.handleStopAgent)
	mux.HandleFunc("POST /api/projects/{key}/worktrees/{name}/agent/input", s.handleAgentInput)
	mux.HandleFunc("GET /api/projects/{key}/worktrees/{name}/agent/output", s.handleAgentOutput)
	mux.HandleFunc("GET /api/projects/{key}/worktrees/{name}/agent/terminal", s.handleAgentTerminal)

	mux.HandleFunc("POST /api/projects/{key}/worktrees/{name}/previews/start", s.handleStartPreviews)
	mux.HandleFunc("DELETE /api/projects/{key}/worktrees/{name}/previews/running", s.handleStopPreviews)
	mux.HandleFunc("POST /api/projects/{key}/worktrees/{name}/previews/{id}/run", s.handleStartPreview)
	mux.HandleFunc("DELETE /api/projects/{key}/worktrees/{name}/previews/{id}/run", s.handleStopPreview)
	mux.HandleFunc("GET /api/projects/{key}/worktrees/{name}/previews/{id}/terminal", s.handlePreviewTerminal)

	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /api/auth/login", s.handleAuthLogin)

	return s
}

// Listen binds the server to its configured address and returns the listener.
// Call Serve() after Listen() to start accepting connections.
// This two-step approach allows callers to obtain the actual bound address
// (useful for ephemeral port 0 in tests) before the server blocks on Serve().
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("web server listen: %w", err)
	}
	s.listener = ln
	return ln, nil
}

// Serve accepts connections on the listener. Blocks until the server stops.
// Must call Listen() first.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("web server started", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Start is a convenience that calls Listen() then Serve(). Blocks until the server stops.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Addr returns the address the server is listening on.
// Only valid after Listen() or Start() has been called.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("web server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
