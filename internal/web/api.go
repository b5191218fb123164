// pattern: Imperative Shell

package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"worktreehub/internal/discovery"
	"worktreehub/internal/git"
	"worktreehub/internal/hub"
	"worktreehub/internal/logging"
	"worktreehub/internal/metadata"
	"worktreehub/internal/project"
	"worktreehub/internal/session"
	"worktreehub/internal/worktree"
)

// ProjectResponse is the JSON representation of an open project.
type ProjectResponse struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	RepoRoot      string `json:"repo_root"`
	WorktreesRoot string `json:"worktrees_root"`
	ManagedRoot   bool   `json:"managed_root"`
	LastError     string `json:"last_error,omitempty"`
}

// ProjectsListResponse lists open projects with the saved recents and
// favorites.
type ProjectsListResponse struct {
	Open      []ProjectResponse `json:"open"`
	Recents   []project.Ref     `json:"recents"`
	Favorites []project.Ref     `json:"favorites"`
}

// SessionResponse is the JSON representation of an agent or preview session.
type SessionResponse struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	ServiceID string     `json:"service_id,omitempty"`
	State     string     `json:"state"`
	Running   bool       `json:"running"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// WorktreeResponse is the JSON representation of a managed worktree and its
// live sessions.
type WorktreeResponse struct {
	Name            string                          `json:"name"`
	Path            string                          `json:"path"`
	DisplayName     string                          `json:"display_name"`
	OriginalBranch  string                          `json:"original_branch"`
	AgentBranch     string                          `json:"agent_branch"`
	CreatedAt       *time.Time                      `json:"created_at,omitempty"`
	Inferred        bool                            `json:"inferred,omitempty"`
	PreviewServices []metadata.PreviewServiceConfig `json:"preview_services"`
	Agent           *SessionResponse                `json:"agent"`
	Previews        []SessionResponse               `json:"previews"`
}

// CreateWorktreeRequest is the body of POST /api/projects/{key}/worktrees.
type CreateWorktreeRequest struct {
	Branch     string `json:"branch"`
	StartPoint string `json:"start_point"`
}

// RenameWorktreeRequest is the body of PATCH /api/projects/{key}/worktrees/{name}.
type RenameWorktreeRequest struct {
	DisplayName string `json:"display_name"`
}

// UpdatePreviewsRequest is the body of PUT .../previews.
type UpdatePreviewsRequest struct {
	Services []metadata.PreviewServiceConfig `json:"services"`
}

func projectResponse(p *hub.Project) ProjectResponse {
	return ProjectResponse{
		Key:           p.Key(),
		Name:          p.Ref.Name,
		Path:          p.Ref.Path,
		RepoRoot:      p.Worktrees.Repo().Root,
		WorktreesRoot: p.Worktrees.WorktreesRoot(),
		ManagedRoot:   p.Worktrees.IsManagedRoot(),
		LastError:     p.Worktrees.LastError(),
	}
}

func sessionResponse(s *session.Session) SessionResponse {
	resp := SessionResponse{
		ID:        s.ID(),
		Kind:      string(s.Kind()),
		Title:     s.Title(),
		ServiceID: s.ServiceID(),
		State:     s.State().String(),
		Running:   s.IsRunning(),
	}
	if started := s.StartedAt(); !started.IsZero() {
		resp.StartedAt = &started
	}
	if s.State() == session.StateStopped {
		if code := s.ExitCode(); code >= 0 {
			resp.ExitCode = &code
		}
	}
	if err := s.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func worktreeResponse(p *hub.Project, wt *worktree.Worktree) WorktreeResponse {
	resp := WorktreeResponse{
		Name:            wt.Name,
		Path:            wt.Path,
		DisplayName:     wt.DisplayName,
		OriginalBranch:  wt.OriginalBranch,
		AgentBranch:     wt.AgentBranch,
		CreatedAt:       wt.CreatedAt,
		Inferred:        wt.Inferred,
		PreviewServices: wt.PreviewServices,
		Previews:        []SessionResponse{},
	}
	if resp.PreviewServices == nil {
		resp.PreviewServices = []metadata.PreviewServiceConfig{}
	}
	if s := p.Sessions.Agent(wt.Path); s != nil {
		sr := sessionResponse(s)
		resp.Agent = &sr
	}
	for _, s := range p.Sessions.Previews(wt.Path) {
		resp.Previews = append(resp.Previews, sessionResponse(s))
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// removalTimeout bounds a worktree or project removal once it has begun.
const removalTimeout = 2 * time.Minute

// removalContext outlives the request: a removal runs to completion after
// the client disconnects.
func removalContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), removalTimeout)
}

// decodeJSON reads a JSON request body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// lookupProject resolves {key}, writing a 404 when the project is not open.
func (s *Server) lookupProject(w http.ResponseWriter, r *http.Request) (*hub.Project, bool) {
	p, ok := s.hub.Get(r.PathValue("key"))
	if !ok {
		writeError(w, http.StatusNotFound, "project not open")
		return nil, false
	}
	return p, true
}

// lookupWorktree resolves {key} and {name}, writing a 404 on failure.
func (s *Server) lookupWorktree(w http.ResponseWriter, r *http.Request) (*hub.Project, *worktree.Worktree, bool) {
	p, ok := s.lookupProject(w, r)
	if !ok {
		return nil, nil, false
	}
	wt, err := p.Worktree(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "worktree not found")
		return nil, nil, false
	}
	return p, wt, true
}

// handleListProjects handles GET /api/projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	resp := ProjectsListResponse{
		Open:      []ProjectResponse{},
		Recents:   []project.Ref{},
		Favorites: []project.Ref{},
	}
	for _, p := range s.hub.Projects() {
		resp.Open = append(resp.Open, projectResponse(p))
	}
	if store := s.hub.Store(); store != nil {
		resp.Recents = append(resp.Recents, store.Recents()...)
		resp.Favorites = append(resp.Favorites, store.Favorites()...)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DiscoveredProject is a repository found under a scan path.
type DiscoveredProject struct {
	discovery.Repository
	Open bool `json:"open"`
}

// handleDiscoverProjects handles GET /api/projects/discover, listing git
// repositories one level below the configured scan paths.
func (s *Server) handleDiscoverProjects(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Projects []DiscoveredProject `json:"projects"`
	}{Projects: []DiscoveredProject{}}
	for _, repo := range s.scanner.ScanAll(s.scanPaths) {
		_, open := s.hub.Get(repo.Key)
		resp.Projects = append(resp.Projects, DiscoveredProject{Repository: repo, Open: open})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleOpenProject handles POST /api/projects with body {"path": "..."}.
func (s *Server) handleOpenProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	p, err := s.hub.Open(r.Context(), req.Path)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, git.ErrNotAGitRepository) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projectResponse(p))
}

// handleCloseProject handles DELETE /api/projects/{key}. With ?remove=true
// every managed worktree is deleted and the project is forgotten.
func (s *Server) handleCloseProject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if remove, _ := strconv.ParseBool(r.URL.Query().Get("remove")); remove {
		ctx, cancel := removalContext(r)
		defer cancel()
		if err := s.hub.Remove(ctx, key); err != nil {
			if errors.Is(err, hub.ErrProjectNotFound) {
				writeError(w, http.StatusNotFound, "project not open")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !s.hub.Evict(key) {
		writeError(w, http.StatusNotFound, "project not open")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListBranches handles GET /api/projects/{key}/branches.
func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupProject(w, r)
	if !ok {
		return
	}
	branches, err := p.Branches(r.Context(), s.hub.Git())
	if err != nil {
		writeError(w, http.StatusInternalServerError, git.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"branches": branches})
}

// handleListWorktrees handles GET /api/projects/{key}/worktrees[?branch=b].
func (s *Server) handleListWorktrees(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupProject(w, r)
	if !ok {
		return
	}

	var list []*worktree.Worktree
	if branch := r.URL.Query().Get("branch"); branch != "" {
		list = p.Worktrees.LoadManagedWorktrees(branch)
	} else {
		list = p.Worktrees.LoadAllManagedWorktrees()
	}

	result := make([]WorktreeResponse, 0, len(list))
	for _, wt := range list {
		result = append(result, worktreeResponse(p, wt))
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCreateWorktree handles POST /api/projects/{key}/worktrees.
func (s *Server) handleCreateWorktree(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupProject(w, r)
	if !ok {
		return
	}

	var req CreateWorktreeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Branch == "" {
		writeError(w, http.StatusBadRequest, "branch is required")
		return
	}

	wt, err := p.Worktrees.CreateManagedWorktree(r.Context(), req.Branch, req.StartPoint)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, worktree.ErrDepthLimitExceeded) {
			status = http.StatusConflict
		}
		writeError(w, status, p.Worktrees.LastError())
		return
	}
	writeJSON(w, http.StatusCreated, worktreeResponse(p, wt))
}

// handleRenameWorktree handles PATCH /api/projects/{key}/worktrees/{name}.
func (s *Server) handleRenameWorktree(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}

	var req RenameWorktreeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.Worktrees.Rename(r.Context(), wt, req.DisplayName); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, worktree.ErrEmptyName) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, worktreeResponse(p, wt))
}

// handleDeleteWorktree handles DELETE /api/projects/{key}/worktrees/{name}.
// Live sessions are stopped before the checkout is removed.
func (s *Server) handleDeleteWorktree(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	ctx, cancel := removalContext(r)
	defer cancel()
	if err := p.Worktrees.DeleteWorktree(ctx, wt); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdatePreviews handles PUT /api/projects/{key}/worktrees/{name}/previews.
func (s *Server) handleUpdatePreviews(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}

	var req UpdatePreviewsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Services == nil {
		req.Services = []metadata.PreviewServiceConfig{}
	}
	if err := p.Worktrees.UpdatePreviewServices(r.Context(), wt, req.Services); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, worktreeResponse(p, wt))
}

// handleLogs handles GET /api/logs[?scope=prefix&limit=n].
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries := s.logs.Recent(r.URL.Query().Get("scope"), limit)
	if entries == nil {
		entries = []logging.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
