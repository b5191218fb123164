// pattern: Imperative Shell

package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/x/ansi"

	"worktreehub/internal/hub"
	"worktreehub/internal/metadata"
	"worktreehub/internal/session"
)

// StartSessionRequest is the optional body of session start endpoints.
type StartSessionRequest struct {
	Cols   int  `json:"cols"`
	Rows   int  `json:"rows"`
	Resume bool `json:"resume"`
}

// InputRequest is the body of POST .../agent/input. Enter appends a
// carriage return, submitting the text as a line.
type InputRequest struct {
	Text  string `json:"text"`
	Enter bool   `json:"enter"`
}

// OutputResponse carries a session's retained output.
type OutputResponse struct {
	Output  string `json:"output"`
	Running bool   `json:"running"`
}

func (s *Server) size(req StartSessionRequest) (int, int) {
	cols, rows := req.Cols, req.Rows
	if cols <= 0 {
		cols = s.cols
	}
	if rows <= 0 {
		rows = s.rows
	}
	return cols, rows
}

// handleStartAgent handles POST .../agent. A running agent is reused and
// only resized.
func (s *Server) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	var req StartSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cols, rows := s.size(req)

	start := p.Sessions.StartAgent
	if req.Resume {
		start = p.Sessions.ResumeAgent
	}
	sess, err := start(wt, cols, rows)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, hub.ErrAgentUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	s.logger.Info("agent started", "worktree", wt.Name, "session", sess.ID())
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// handleStopAgent handles DELETE .../agent.
func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	if !p.Sessions.StopAgent(wt.Path) {
		writeError(w, http.StatusNotFound, "agent not running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAgentInput handles POST .../agent/input.
func (s *Server) handleAgentInput(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	var req InputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := p.Sessions.Agent(wt.Path)
	if sess == nil || !sess.IsRunning() {
		writeError(w, http.StatusNotFound, "agent not running")
		return
	}
	if req.Enter {
		sess.SendLine(req.Text)
	} else {
		sess.Send([]byte(req.Text))
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAgentOutput handles GET .../agent/output[?raw=true]. Escape
// sequences are stripped unless raw is set.
func (s *Server) handleAgentOutput(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	sess := p.Sessions.Agent(wt.Path)
	if sess == nil {
		writeError(w, http.StatusNotFound, "agent not running")
		return
	}
	out := string(sess.Output())
	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); !raw {
		out = ansi.Strip(out)
	}
	writeJSON(w, http.StatusOK, OutputResponse{Output: out, Running: sess.IsRunning()})
}

// handleStartPreviews handles POST .../previews/start, starting every
// enabled service. Services that started are returned even when others
// failed.
func (s *Server) handleStartPreviews(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	var req StartSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cols, rows := s.size(req)

	started, err := p.Sessions.StartPreviews(wt, cols, rows)
	if errors.Is(err, hub.ErrNoEnabledPreviews) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := struct {
		Sessions []SessionResponse `json:"sessions"`
		Error    string            `json:"error,omitempty"`
	}{Sessions: []SessionResponse{}}
	for _, sess := range started {
		resp.Sessions = append(resp.Sessions, sessionResponse(sess))
	}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// handleStopPreviews handles DELETE .../previews/running.
func (s *Server) handleStopPreviews(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	p.Sessions.StopPreviews(wt.Path)
	w.WriteHeader(http.StatusNoContent)
}

// handleStartPreview handles POST .../previews/{id}/run.
func (s *Server) handleStartPreview(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	cfg, ok := findService(wt.PreviewServices, r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "preview service not found")
		return
	}
	var req StartSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cols, rows := s.size(req)

	sess, err := p.Sessions.StartPreview(wt, cfg, cols, rows)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, hub.ErrPreviewCommandRequired) || errors.Is(err, hub.ErrPreviewRootInvalid) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// handleStopPreview handles DELETE .../previews/{id}/run.
func (s *Server) handleStopPreview(w http.ResponseWriter, r *http.Request) {
	p, wt, ok := s.lookupWorktree(w, r)
	if !ok {
		return
	}
	if !p.Sessions.StopPreview(wt.Path, r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "preview not running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func findService(list []metadata.PreviewServiceConfig, id string) (metadata.PreviewServiceConfig, bool) {
	for _, cfg := range list {
		if cfg.ID == id {
			return cfg, true
		}
	}
	return metadata.PreviewServiceConfig{}, false
}

// handleAuthStatus handles GET /api/auth/status.
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "agent executable not found")
		return
	}
	res, err := s.auth.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAuthLogin handles POST /api/auth/login. The request blocks until
// the agent's login flow finishes.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "agent executable not found")
		return
	}
	res, err := s.auth.Login(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// agentOrPreview resolves the session a terminal request targets.
func (s *Server) agentOrPreview(p *hub.Project, worktreePath, serviceID string) *session.Session {
	if serviceID == "" {
		return p.Sessions.Agent(worktreePath)
	}
	return p.Sessions.Preview(worktreePath, serviceID)
}
