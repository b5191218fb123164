// pattern: Imperative Shell

package instance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a thin HTTP client for a running worktreehub server. Methods
// return the raw JSON response body.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL.
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 30*time.Second)
}

// NewClientWithTimeout creates a Client with a custom timeout. Login waits
// on a browser flow and needs a long one.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do sends a request with an optional JSON body and returns the response
// body, failing on any non-2xx status.
func (c *Client) do(method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to worktreehub: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Message: extractErrorMessage(respBody)}
	}
	return respBody, nil
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("worktreehub returned status %d: %s", e.Code, e.Message)
}

// extractErrorMessage attempts to extract the error message from a JSON response body.
// If the body is not valid JSON or doesn't have an "error" field, returns the raw body string.
func extractErrorMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(body)
}

func projectPath(key string) string {
	return "/api/projects/" + url.PathEscape(key)
}

func worktreePath(key, name string) string {
	return projectPath(key) + "/worktrees/" + url.PathEscape(name)
}

// ListProjects fetches open, recent and favorite projects.
func (c *Client) ListProjects() ([]byte, error) {
	return c.do(http.MethodGet, "/api/projects", nil)
}

// DiscoverProjects lists repositories found under the server's scan paths.
func (c *Client) DiscoverProjects() ([]byte, error) {
	return c.do(http.MethodGet, "/api/projects/discover", nil)
}

// OpenProject opens the repository at path.
func (c *Client) OpenProject(path string) ([]byte, error) {
	return c.do(http.MethodPost, "/api/projects", map[string]string{"path": path})
}

// AddFavorite marks the directory at path as a favorite project.
func (c *Client) AddFavorite(path string) ([]byte, error) {
	return c.do(http.MethodPost, "/api/projects/favorites", map[string]string{"path": path})
}

// RemoveFavorite unmarks the favorite project at path.
func (c *Client) RemoveFavorite(path string) ([]byte, error) {
	return c.do(http.MethodDelete, "/api/projects/favorites?path="+url.QueryEscape(path), nil)
}

// ProjectState fetches the remembered selection for an open project.
func (c *Client) ProjectState(key string) ([]byte, error) {
	return c.do(http.MethodGet, projectPath(key)+"/state", nil)
}

// SetProjectState replaces the remembered selection for an open project.
func (c *Client) SetProjectState(key string, state any) ([]byte, error) {
	return c.do(http.MethodPut, projectPath(key)+"/state", state)
}

// CloseProject closes a project. With remove set, every managed worktree
// is deleted and the project is forgotten.
func (c *Client) CloseProject(key string, remove bool) error {
	path := projectPath(key)
	if remove {
		path += "?remove=true"
	}
	_, err := c.do(http.MethodDelete, path, nil)
	return err
}

// Branches lists the branches a worktree can be created from.
func (c *Client) Branches(key string) ([]byte, error) {
	return c.do(http.MethodGet, projectPath(key)+"/branches", nil)
}

// ListWorktrees lists managed worktrees, optionally for one branch.
func (c *Client) ListWorktrees(key, branch string) ([]byte, error) {
	path := projectPath(key) + "/worktrees"
	if branch != "" {
		path += "?branch=" + url.QueryEscape(branch)
	}
	return c.do(http.MethodGet, path, nil)
}

// CreateWorktree creates a managed worktree from branch, or from
// startPoint when set.
func (c *Client) CreateWorktree(key, branch, startPoint string) ([]byte, error) {
	return c.do(http.MethodPost, projectPath(key)+"/worktrees", map[string]string{
		"branch":      branch,
		"start_point": startPoint,
	})
}

// RenameWorktree sets a worktree's display name.
func (c *Client) RenameWorktree(key, name, displayName string) ([]byte, error) {
	return c.do(http.MethodPatch, worktreePath(key, name), map[string]string{"display_name": displayName})
}

// DeleteWorktree stops a worktree's sessions and deletes it.
func (c *Client) DeleteWorktree(key, name string) error {
	_, err := c.do(http.MethodDelete, worktreePath(key, name), nil)
	return err
}

// StartAgent starts the worktree's agent, resuming its last conversation
// when resume is set.
func (c *Client) StartAgent(key, name string, resume bool) ([]byte, error) {
	return c.do(http.MethodPost, worktreePath(key, name)+"/agent", map[string]bool{"resume": resume})
}

// StopAgent stops the worktree's agent.
func (c *Client) StopAgent(key, name string) error {
	_, err := c.do(http.MethodDelete, worktreePath(key, name)+"/agent", nil)
	return err
}

// SendInput types text into the agent, followed by Enter when enter is set.
func (c *Client) SendInput(key, name, text string, enter bool) error {
	_, err := c.do(http.MethodPost, worktreePath(key, name)+"/agent/input", map[string]any{
		"text":  text,
		"enter": enter,
	})
	return err
}

// AgentOutput returns the agent's retained output.
func (c *Client) AgentOutput(key, name string, raw bool) ([]byte, error) {
	return c.do(http.MethodGet, worktreePath(key, name)+"/agent/output?raw="+strconv.FormatBool(raw), nil)
}

// StartPreviews starts every enabled preview service of a worktree.
func (c *Client) StartPreviews(key, name string) ([]byte, error) {
	return c.do(http.MethodPost, worktreePath(key, name)+"/previews/start", nil)
}

// StopPreviews stops every running preview service of a worktree.
func (c *Client) StopPreviews(key, name string) error {
	_, err := c.do(http.MethodDelete, worktreePath(key, name)+"/previews/running", nil)
	return err
}

// StartPreview starts one preview service.
func (c *Client) StartPreview(key, name, serviceID string) ([]byte, error) {
	return c.do(http.MethodPost, worktreePath(key, name)+"/previews/"+url.PathEscape(serviceID)+"/run", nil)
}

// StopPreview stops one preview service.
func (c *Client) StopPreview(key, name, serviceID string) error {
	_, err := c.do(http.MethodDelete, worktreePath(key, name)+"/previews/"+url.PathEscape(serviceID)+"/run", nil)
	return err
}

// AuthStatus reports whether the agent is logged in.
func (c *Client) AuthStatus() ([]byte, error) {
	return c.do(http.MethodGet, "/api/auth/status", nil)
}

// AuthLogin runs the agent's login flow on the server host.
func (c *Client) AuthLogin() ([]byte, error) {
	return c.do(http.MethodPost, "/api/auth/login", nil)
}

// Logs fetches recent log entries under a scope prefix.
func (c *Client) Logs(scope string, limit int) ([]byte, error) {
	q := url.Values{}
	if scope != "" {
		q.Set("scope", scope)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.do(http.MethodGet, path, nil)
}
