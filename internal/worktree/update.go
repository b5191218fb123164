// pattern: Imperative Shell

package worktree

import (
	"context"
	"errors"
	"io/fs"
	"slices"
	"strings"

	"github.com/google/uuid"

	"worktreehub/internal/metadata"
)

// Rename changes the worktree's display label, persisting it and retitling
// any live session. The directory and branch are never renamed.
func (m *Manager) Rename(ctx context.Context, wt *Worktree, newName string) error {
	name := strings.TrimSpace(newName)
	if name == "" {
		m.setLastError("Failed to rename worktree: " + ErrEmptyName.Error())
		return ErrEmptyName
	}

	err := m.withLock(ctx, func() error {
		return m.updateRecord(wt, func(rec *metadata.Record) {
			rec.DisplayName = name
		})
	})
	if err != nil {
		m.setLastError("Failed to rename worktree: " + err.Error())
		return err
	}

	wt.DisplayName = name
	if m.sessions != nil {
		m.sessions.Retitle(wt.Path, name)
	}
	m.setLastError("")
	m.publish(wt.Path)
	return nil
}

// UpdatePreviewServices replaces the worktree's preview-service list.
// Configs without an id are assigned one. Other fields are untouched.
func (m *Manager) UpdatePreviewServices(ctx context.Context, wt *Worktree, configs []metadata.PreviewServiceConfig) error {
	configs = slices.Clone(configs)
	if configs == nil {
		configs = []metadata.PreviewServiceConfig{}
	}
	for i := range configs {
		if configs[i].ID == "" {
			configs[i].ID = uuid.NewString()
		}
	}

	err := m.withLock(ctx, func() error {
		return m.updateRecord(wt, func(rec *metadata.Record) {
			rec.PreviewServices = configs
		})
	})
	if err != nil {
		m.setLastError("Failed to save preview services: " + err.Error())
		return err
	}

	wt.PreviewServices = configs
	m.setLastError("")
	m.publish(wt.Path)
	return nil
}

// updateRecord applies fn to the stored record, creating one from the
// in-memory entry when the worktree predates metadata.
func (m *Manager) updateRecord(wt *Worktree, fn func(*metadata.Record)) error {
	err := m.meta.Update(wt.Name, func(rec *metadata.Record) error {
		fn(rec)
		return nil
	})
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	rec := metadata.Record{
		OriginalBranch:  wt.OriginalBranch,
		AgentBranch:     wt.AgentBranch,
		DisplayName:     wt.DisplayName,
		PreviewServices: wt.PreviewServices,
	}
	if wt.CreatedAt != nil {
		rec.CreatedAt = *wt.CreatedAt
	}
	fn(&rec)
	if err := m.meta.Save(wt.Name, rec); err != nil {
		return err
	}
	wt.Inferred = false
	return nil
}
