// pattern: Functional Core

package logging

import (
	"strings"
	"time"
)

// LogEntry is one retained log line as served by GET /api/logs.
type LogEntry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	Scope     string         `json:"scope"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// MatchesScope reports whether the entry lies under prefix. Scopes are
// dotted, so "worktree." selects every project's worktree logger.
func (e LogEntry) MatchesScope(prefix string) bool {
	return strings.HasPrefix(e.Scope, prefix)
}

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// ParseLevel maps a zap level name to the upper-case form used in entries.
// Unknown names map to INFO.
func ParseLevel(level string) string {
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return "INFO"
}
