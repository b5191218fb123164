// pattern: Imperative Shell

package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"worktreehub/internal/logging"
)

// RepoInfo describes the repository enclosing a directory.
type RepoInfo struct {
	Root      string
	IsGitRepo bool
}

// Client issues the small set of git commands the worktree manager needs.
type Client struct {
	runner Runner
	logger *logging.ScopedLogger
}

// NewClient wraps runner. A nil logger disables logging.
func NewClient(runner Runner, logger *logging.ScopedLogger) *Client {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Client{runner: runner, logger: logger}
}

// DetectRepo resolves the top-level directory of the repository containing dir.
// Not being in a repository is reported through IsGitRepo, never as an error.
func (c *Client) DetectRepo(ctx context.Context, dir string) RepoInfo {
	out, err := c.runner.Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		c.logger.Debug("not a git repository", "dir", dir, "error", Message(err))
		return RepoInfo{Root: dir, IsGitRepo: false}
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return RepoInfo{Root: dir, IsGitRepo: false}
	}
	return RepoInfo{Root: root, IsGitRepo: true}
}

// ListBranches returns local branch names in ref order.
func (c *Client) ListBranches(ctx context.Context, root string) ([]string, error) {
	out, err := c.runner.Run(ctx, root, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return splitLines(string(out)), nil
}

// AddWorktree checks out a new worktree at path. When newBranch is set the
// branch is created from base; otherwise base is checked out directly.
func (c *Client) AddWorktree(ctx context.Context, root, path, newBranch, base string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating worktrees directory: %w", err)
	}

	args := []string{"worktree", "add"}
	if newBranch != "" {
		args = append(args, "-b", newBranch)
	}
	args = append(args, path, base)

	if _, err := c.runner.Run(ctx, root, args...); err != nil {
		c.logger.Warn("worktree add failed", "path", path, "branch", newBranch, "error", Message(err))
		return err
	}
	c.logger.Info("worktree added", "path", path, "branch", newBranch, "base", base)
	return nil
}

// RemoveWorktree runs "worktree remove", adding --force when requested.
func (c *Client) RemoveWorktree(ctx context.Context, root, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	if _, err := c.runner.Run(ctx, root, args...); err != nil {
		return err
	}
	c.logger.Info("worktree removed", "path", path, "force", force)
	return nil
}

// PruneWorktrees drops administrative records for worktrees whose
// directories no longer exist.
func (c *Client) PruneWorktrees(ctx context.Context, root string) error {
	_, err := c.runner.Run(ctx, root, "worktree", "prune")
	return err
}

// DeleteBranch force-deletes a local branch.
func (c *Client) DeleteBranch(ctx context.Context, root, branch string) error {
	if _, err := c.runner.Run(ctx, root, "branch", "-D", branch); err != nil {
		return err
	}
	c.logger.Info("branch deleted", "branch", branch)
	return nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
