// pattern: Imperative Shell

package logging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// HistorySink implements zapcore.WriteSyncer and keeps the most recent
// parsed log entries in a bounded ring so the web API can serve a log tail.
// When the ring is full the oldest entry is overwritten.
type HistorySink struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
	closed  bool
}

// NewHistorySink creates a sink that retains up to size entries.
func NewHistorySink(size int) *HistorySink {
	if size <= 0 {
		size = 1
	}
	return &HistorySink{entries: make([]LogEntry, size)}
}

// Write implements io.Writer. It parses the JSON log line from zap and
// records it. Unparseable lines are dropped without failing the logger.
func (s *HistorySink) Write(p []byte) (int, error) {
	entry, err := parseEntry(p)
	if err != nil {
		return len(p), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("write to closed history sink")
	}

	s.entries[s.next] = entry
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. No-op for the history sink.
func (s *HistorySink) Sync() error {
	return nil
}

// Close stops accepting writes. Safe to call multiple times.
func (s *HistorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Recent returns up to limit entries whose scope matches prefix, oldest first.
// A limit <= 0 returns every retained match.
func (s *HistorySink) Recent(prefix string, limit int) []LogEntry {
	s.mu.Lock()
	ordered := make([]LogEntry, 0, len(s.entries))
	if s.full {
		ordered = append(ordered, s.entries[s.next:]...)
	}
	ordered = append(ordered, s.entries[:s.next]...)
	s.mu.Unlock()

	matched := make([]LogEntry, 0, len(ordered))
	for _, e := range ordered {
		if e.MatchesScope(prefix) {
			matched = append(matched, e)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// parseEntry converts JSON log data from zap into a LogEntry.
func parseEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Fields:    make(map[string]any),
	}

	if msg, ok := raw["msg"].(string); ok {
		entry.Message = msg
		delete(raw, "msg")
	}

	if level, ok := raw["level"].(string); ok {
		entry.Level = ParseLevel(level)
		delete(raw, "level")
	} else {
		entry.Level = "INFO"
	}

	if logger, ok := raw["logger"].(string); ok {
		entry.Scope = logger
		delete(raw, "logger")
	} else {
		entry.Scope = "app"
	}

	// Preserve nanosecond precision from the epoch float.
	if ts, ok := raw["ts"].(float64); ok {
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * 1e9)
		entry.Timestamp = time.Unix(sec, nsec)
		delete(raw, "ts")
	}

	delete(raw, "caller")
	delete(raw, "stacktrace")

	for k, v := range raw {
		entry.Fields[k] = v
	}

	return entry, nil
}
