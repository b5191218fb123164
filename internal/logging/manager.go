// pattern: Imperative Shell

package logging

import (
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the rotating log file and the in-memory tail.
type Config struct {
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	Level       string // debug, info, warn or error; anything else means info
	HistorySize int
}

func (c Config) withDefaults() Config {
	if c.HistorySize <= 0 {
		c.HistorySize = 1000
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
	return c
}

// Manager tees every scoped logger into a lumberjack-rotated JSON file and
// a bounded history served by the logs endpoint.
type Manager struct {
	*scopes
	history *HistorySink
	file    *lumberjack.Logger
}

// NewManager opens the log file's directory and builds the logging cores.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("log file path is required")
	}
	cfg = cfg.withDefaults()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	history := NewHistorySink(cfg.HistorySize)
	core := zapcore.NewTee(
		zapcore.NewCore(jsonEncoder(), zapcore.AddSync(file), level),
		zapcore.NewCore(jsonEncoder(), zapcore.AddSync(history), level),
	)

	return &Manager{scopes: newScopes(core, level), history: history, file: file}, nil
}

// For returns the cached logger for scope, creating it on first use.
func (m *Manager) For(scope string) *ScopedLogger {
	return m.get(scope)
}

// Recent returns up to limit retained entries whose scope starts with prefix.
func (m *Manager) Recent(prefix string, limit int) []LogEntry {
	return m.history.Recent(prefix, limit)
}

// Cleanup forgets cached loggers under scopePrefix, for evicted projects.
func (m *Manager) Cleanup(scopePrefix string) {
	m.drop(scopePrefix)
}

func (m *Manager) Sync() error {
	return m.base.Sync()
}

// Close flushes pending entries and closes the log file.
func (m *Manager) Close() error {
	_ = m.Sync()
	_ = m.history.Close()
	return m.file.Close()
}
