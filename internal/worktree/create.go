// pattern: Imperative Shell

package worktree

import (
	"context"
	"fmt"
	"os"
	"strings"

	"worktreehub/internal/git"
	"worktreehub/internal/metadata"
)

// CreateManagedWorktree checks out a new worktree on a fresh generated
// branch started from startPoint, or from branch when startPoint is empty.
// On failure nothing is left behind and LastError describes the cause.
func (m *Manager) CreateManagedWorktree(ctx context.Context, branch, startPoint string) (*Worktree, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		m.setLastError("Failed to create worktree: branch is required")
		return nil, fmt.Errorf("branch is required")
	}
	if !m.repo.IsGitRepo {
		m.setLastError("Failed to create worktree: " + git.ErrNotAGitRepository.Error())
		return nil, git.ErrNotAGitRepository
	}
	if m.IsManagedRoot() {
		m.setLastError(ErrDepthLimitExceeded.Error())
		return nil, ErrDepthLimitExceeded
	}

	var wt *Worktree
	err := m.withLock(ctx, func() error {
		var err error
		wt, err = m.create(ctx, branch, startPoint)
		return err
	})
	if err != nil {
		m.setLastError("Failed to create worktree: " + git.Message(err))
		return nil, err
	}

	m.setLastError("")
	m.publish(wt.Path)
	return wt, nil
}

func (m *Manager) create(ctx context.Context, branch, startPoint string) (*Worktree, error) {
	name := NewName(branch, m.suffix())
	path := m.pathFor(name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("worktree %q already exists at %s", name, path)
	}
	if m.meta.Exists(name) {
		return nil, fmt.Errorf("worktree %q already has a metadata record", name)
	}

	base := startPoint
	if base == "" {
		base = branch
	}
	if err := m.git.AddWorktree(ctx, m.repo.Root, path, name, base); err != nil {
		return nil, err
	}

	created := m.now().UTC()
	rec := metadata.Record{
		OriginalBranch:  branch,
		AgentBranch:     name,
		CreatedAt:       created,
		DisplayName:     name,
		PreviewServices: []metadata.PreviewServiceConfig{},
	}
	if err := m.meta.Save(name, rec); err != nil {
		m.rollback(ctx, path, name)
		return nil, fmt.Errorf("saving metadata: %w", err)
	}

	m.logger.Info("managed worktree created", "name", name, "branch", branch, "base", base)
	return &Worktree{
		Name:            name,
		Path:            path,
		OriginalBranch:  branch,
		AgentBranch:     name,
		CreatedAt:       &created,
		DisplayName:     name,
		PreviewServices: []metadata.PreviewServiceConfig{},
	}, nil
}

// rollback undoes a checkout whose metadata could not be written.
func (m *Manager) rollback(ctx context.Context, path, branch string) {
	if err := m.git.RemoveWorktree(ctx, m.repo.Root, path, true); err != nil {
		m.logger.Error("rollback: worktree remove failed", "path", path, "error", git.Message(err))
	}
	if err := m.git.DeleteBranch(ctx, m.repo.Root, branch); err != nil {
		m.logger.Error("rollback: branch delete failed", "branch", branch, "error", git.Message(err))
	}
}
