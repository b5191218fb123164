// pattern: Imperative Shell

package logging

import "go.uber.org/zap/zapcore"

// TestLogManager keeps debug-level entries in memory only, for assertions
// in tests.
type TestLogManager struct {
	*scopes
	history *HistorySink
}

// NewTestLogManager retains up to historySize entries.
func NewTestLogManager(historySize int) *TestLogManager {
	history := NewHistorySink(historySize)
	core := zapcore.NewCore(jsonEncoder(), zapcore.AddSync(history), zapcore.DebugLevel)
	return &TestLogManager{scopes: newScopes(core, zapcore.DebugLevel), history: history}
}

func (m *TestLogManager) For(scope string) *ScopedLogger {
	return m.get(scope)
}

// Recent returns retained entries matching the scope prefix.
func (m *TestLogManager) Recent(prefix string, limit int) []LogEntry {
	return m.history.Recent(prefix, limit)
}

// Cleanup forgets cached loggers under scopePrefix.
func (m *TestLogManager) Cleanup(scopePrefix string) {
	m.drop(scopePrefix)
}

// HasMessage reports whether any retained entry under prefix carries msg.
func (m *TestLogManager) HasMessage(prefix, msg string) bool {
	for _, e := range m.history.Recent(prefix, 0) {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func (m *TestLogManager) Close() error {
	return m.history.Close()
}
