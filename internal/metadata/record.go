// pattern: Functional Core

package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is written into every record. Version 1 records predate
// display names and preview services; version 0 means the field was absent.
const SchemaVersion = 2

// referenceEpoch is the zero point of numeric createdAt values written by
// early releases (seconds since 2001-01-01 UTC).
var referenceEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// PreviewServiceConfig describes a long-running process started alongside a
// worktree's agent, such as a dev server.
type PreviewServiceConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Command  string `json:"command"`
	RootPath string `json:"rootPath"`
	EnvText  string `json:"envText"`
	Enabled  bool   `json:"enabled"`
}

// NewPreviewServiceConfig returns an enabled config with a fresh id.
func NewPreviewServiceConfig(name, command string) PreviewServiceConfig {
	return PreviewServiceConfig{
		ID:      uuid.NewString(),
		Name:    name,
		Command: command,
		Enabled: true,
	}
}

// UnmarshalJSON fills defaults for fields older records may lack: a missing
// id gets a new UUID and a missing enabled flag means enabled.
func (c *PreviewServiceConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Command  string `json:"command"`
		RootPath string `json:"rootPath"`
		EnvText  string `json:"envText"`
		Enabled  *bool  `json:"enabled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = PreviewServiceConfig{
		ID:       raw.ID,
		Name:     raw.Name,
		Command:  raw.Command,
		RootPath: raw.RootPath,
		EnvText:  raw.EnvText,
		Enabled:  raw.Enabled == nil || *raw.Enabled,
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ResolveRoot returns the directory the service runs in. An empty root
// means the worktree itself; relative roots are joined to the worktree.
func (c PreviewServiceConfig) ResolveRoot(worktreePath string) string {
	root := strings.TrimSpace(c.RootPath)
	if root == "" {
		return worktreePath
	}
	if filepath.IsAbs(root) {
		return filepath.Clean(root)
	}
	root = strings.TrimPrefix(root, "./")
	return filepath.Join(worktreePath, root)
}

// DisplayName returns the service name, or its command when unnamed.
func (c PreviewServiceConfig) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return strings.TrimSpace(c.Command)
}

// Record is the durable description of one managed worktree.
type Record struct {
	Version         int                    `json:"version"`
	OriginalBranch  string                 `json:"originalBranch"`
	AgentBranch     string                 `json:"agentBranch"`
	CreatedAt       time.Time              `json:"createdAt"`
	DisplayName     string                 `json:"displayName,omitempty"`
	PreviewServices []PreviewServiceConfig `json:"previewServices"`
}

// UnmarshalJSON accepts createdAt either as an RFC 3339 string or as
// numeric seconds since the reference epoch.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var raw struct {
		plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record(raw.plain)

	created, err := decodeTimestamp(raw.CreatedAt)
	if err != nil {
		return fmt.Errorf("createdAt: %w", err)
	}
	r.CreatedAt = created
	return nil
}

func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, nil
	}
	if s[0] == '"' {
		var t time.Time
		err := json.Unmarshal(raw, &t)
		return t, err
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, err
	}
	whole := math.Floor(secs)
	frac := time.Duration((secs - whole) * float64(time.Second))
	return referenceEpoch.Add(time.Duration(whole) * time.Second).Add(frac), nil
}

// Upgrade fills defaults for fields missing from older records and stamps
// the current schema version. name is the worktree directory name.
func (r *Record) Upgrade(name string) {
	if strings.TrimSpace(r.DisplayName) == "" {
		r.DisplayName = name
	}
	if r.PreviewServices == nil {
		r.PreviewServices = []PreviewServiceConfig{}
	}
	if r.AgentBranch == "" {
		r.AgentBranch = name
	}
	r.Version = SchemaVersion
}
