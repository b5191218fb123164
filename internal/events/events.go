// Package events carries change notifications from the engine to its callers.
package events

// Kind classifies what changed.
type Kind string

const (
	KindProject   Kind = "project"   // a project was opened, evicted or removed
	KindWorktrees Kind = "worktrees" // the worktree list or a worktree's metadata changed
	KindSession   Kind = "session"   // a session started, stopped or was retitled
)

// Event is a coarse "state changed" signal. Subscribers re-read state from
// the engine rather than relying on the event payload.
type Event struct {
	Kind       Kind   `json:"kind"`
	ProjectKey string `json:"projectKey,omitempty"`
	Worktree   string `json:"worktree,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}
