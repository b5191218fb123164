// Package agentcli locates the agent executable and drives its login flow.
package agentcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"worktreehub/internal/logging"
)

// ErrNotFound is returned when no executable candidate exists.
var ErrNotFound = errors.New("agent executable not found")

// wellKnownDirs are searched before $PATH so a GUI-launched process with a
// minimal PATH still finds package-manager installs.
var wellKnownDirs = []string{"/usr/local/bin", "/opt/homebrew/bin", "/usr/bin"}

// LookPathFunc is the function signature for looking up executables.
type LookPathFunc func(name string) (string, error)

// Resolve returns the first executable among the preferred path, the
// well-known install locations for name, and name on $PATH.
func Resolve(name, preferred string, lookPath LookPathFunc) (string, error) {
	var candidates []string
	if preferred != "" {
		candidates = append(candidates, preferred)
	}
	for _, dir := range wellKnownDirs {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, c := range candidates {
		if isExecutable(c) {
			return c, nil
		}
	}
	if lookPath != nil {
		if p, err := lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// Status is the agent's authentication state.
type Status string

const (
	StatusLoggedIn  Status = "logged_in"
	StatusLoggedOut Status = "logged_out"
)

// Result carries a status and the command's combined output.
type Result struct {
	Status Status `json:"status"`
	Output string `json:"output,omitempty"`
}

// Client runs the agent's login subcommands.
type Client struct {
	path   string
	logger *logging.ScopedLogger
}

// NewClient returns a client for the agent at path.
func NewClient(path string, logger *logging.ScopedLogger) *Client {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Client{path: path, logger: logger}
}

// Path returns the agent executable.
func (c *Client) Path() string { return c.path }

// Status runs "<agent> login status". Exit status zero means logged in, any
// other exit status means logged out; a launch failure is an error.
func (c *Client) Status(ctx context.Context) (Result, error) {
	code, out, err := c.run(ctx, "login", "status")
	if err != nil {
		return Result{}, err
	}
	res := Result{Status: StatusLoggedOut, Output: out}
	if code == 0 {
		res.Status = StatusLoggedIn
	}
	c.logger.Debug("agent login status", "status", string(res.Status))
	return res, nil
}

// Login runs "<agent> login", which opens a browser flow and returns once
// the user has completed it.
func (c *Client) Login(ctx context.Context) (Result, error) {
	code, out, err := c.run(ctx, "login")
	if err != nil {
		return Result{}, err
	}
	if code != 0 {
		c.logger.Warn("agent login failed", "exit_code", code)
		return Result{Status: StatusLoggedOut, Output: out},
			fmt.Errorf("%s login failed (exit code %d)", filepath.Base(c.path), code)
	}
	c.logger.Info("agent logged in")
	return Result{Status: StatusLoggedIn, Output: out}, nil
}

func (c *Client) run(ctx context.Context, args ...string) (int, string, error) {
	if !isExecutable(c.path) {
		return 0, "", fmt.Errorf("%w at %s", ErrNotFound, c.path)
	}
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := strings.TrimSpace(buf.String())

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, out, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		return exitErr.ExitCode(), out, nil
	default:
		return 0, out, fmt.Errorf("failed to launch %s: %w", filepath.Base(c.path), err)
	}
}
