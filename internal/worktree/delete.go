// pattern: Imperative Shell

package worktree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"worktreehub/internal/git"
)

// DeleteError reports the parts of a deletion that failed. Worktree is the
// removal failure and Branch the branch deletion failure; either may be nil.
type DeleteError struct {
	Name     string
	Worktree error
	Branch   error
	Metadata error
}

func (e *DeleteError) Error() string {
	switch {
	case e.Worktree != nil && e.Branch != nil:
		return fmt.Sprintf("Failed to remove worktree %s: %s (branch delete also failed: %s)",
			e.Name, git.Message(e.Worktree), git.Message(e.Branch))
	case e.Worktree != nil:
		return fmt.Sprintf("Failed to remove worktree %s: %s", e.Name, git.Message(e.Worktree))
	case e.Branch != nil:
		return fmt.Sprintf("Failed to delete branch for %s: %s", e.Name, git.Message(e.Branch))
	case e.Metadata != nil:
		return fmt.Sprintf("Failed to remove metadata for %s: %v", e.Name, e.Metadata)
	default:
		return "delete failed"
	}
}

func (e *DeleteError) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.Worktree, e.Branch, e.Metadata} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// DeleteWorktree stops the worktree's live sessions, removes the checkout
// (retrying once with force when it has local changes) and deletes its
// generated branch regardless of the removal outcome. The metadata record
// is removed only when both steps succeed.
func (m *Manager) DeleteWorktree(ctx context.Context, wt *Worktree) error {
	if !m.repo.IsGitRepo {
		m.setLastError("Failed to delete worktree: " + git.ErrNotAGitRepository.Error())
		return git.ErrNotAGitRepository
	}

	if m.sessions != nil {
		m.sessions.StopForRemoval(ctx, wt.Path)
	}

	err := m.withLock(ctx, func() error {
		return m.delete(ctx, wt)
	})
	if err != nil {
		m.setLastError(err.Error())
		return err
	}

	m.setLastError("")
	m.logger.Info("managed worktree deleted", "name", wt.Name, "branch", wt.AgentBranch)
	m.publish(wt.Path)
	return nil
}

func (m *Manager) delete(ctx context.Context, wt *Worktree) error {
	derr := &DeleteError{Name: wt.Name}
	derr.Worktree = m.removeCheckout(ctx, wt.Path)

	if wt.AgentBranch != "" {
		derr.Branch = m.git.DeleteBranch(ctx, m.repo.Root, wt.AgentBranch)
	}
	if derr.Worktree != nil || derr.Branch != nil {
		return derr
	}

	if err := m.meta.Delete(wt.Name); err != nil {
		derr.Metadata = err
		return derr
	}
	return nil
}

// removeCheckout removes the worktree directory through git. A directory
// that already vanished only needs its administrative record pruned.
func (m *Manager) removeCheckout(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		m.logger.Info("worktree directory already gone, pruning", "path", path)
		return m.git.PruneWorktrees(ctx, m.repo.Root)
	}

	err := m.git.RemoveWorktree(ctx, m.repo.Root, path, false)
	if err == nil {
		return nil
	}
	if git.IsMissingWorktree(err) {
		m.logger.Info("git no longer tracks worktree, removing leftover directory", "path", path)
		if rerr := os.RemoveAll(path); rerr != nil {
			return fmt.Errorf("removing leftover directory: %w", rerr)
		}
		return m.git.PruneWorktrees(ctx, m.repo.Root)
	}
	if !git.IsDirtyRemoval(err) {
		return err
	}

	m.logger.Info("worktree has local changes, retrying removal with force", "path", path)
	if ferr := m.git.RemoveWorktree(ctx, m.repo.Root, path, true); ferr != nil {
		return fmt.Errorf("%w: %w", ErrWorktreeDirtyRequiresForce, ferr)
	}
	return nil
}
