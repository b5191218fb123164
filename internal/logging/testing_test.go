package logging

import "testing"

func TestNopLogger_Discards(t *testing.T) {
	var zero *ScopedLogger
	for _, l := range []*ScopedLogger{NopLogger(), NopLogger().With("k", "v"), zero} {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x", "err", "boom")
	}
}

func TestTestLogManager_RecordsDebug(t *testing.T) {
	lm := NewTestLogManager(5)
	defer func() { _ = lm.Close() }()

	lm.For("session.abc").Debug("session started", "pid", 42)
	lm.For("worktree.repo").Warn("removal retried")

	if !lm.HasMessage("session.", "session started") {
		t.Error("HasMessage should find the debug entry")
	}
	if lm.HasMessage("session.", "removal retried") {
		t.Error("HasMessage should respect the scope prefix")
	}
	if got := lm.Recent("", 0); len(got) != 2 {
		t.Errorf("Recent() = %d entries, want 2", len(got))
	}
}
