// pattern: Functional Core

package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ScopedLogger writes structured entries under a dotted scope such as
// "worktree.repo-1a2b3c4d". The zero value and NopLogger discard everything.
type ScopedLogger struct {
	slog  *slog.Logger
	scope string
}

// NopLogger returns a logger that discards all output.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

func (l *ScopedLogger) log(level slog.Level, msg string, args []any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Log(context.Background(), level, msg, args...)
}

func (l *ScopedLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *ScopedLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *ScopedLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *ScopedLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

// With returns a logger that adds args to every entry.
func (l *ScopedLogger) With(args ...any) *ScopedLogger {
	if l == nil || l.slog == nil {
		return l
	}
	return &ScopedLogger{slog: l.slog.With(args...), scope: l.scope}
}

// Scope returns the logger's dotted scope.
func (l *ScopedLogger) Scope() string {
	return l.scope
}

// scopes caches one ScopedLogger per scope over a shared zap core.
type scopes struct {
	base  *zap.Logger
	level zapcore.Level

	mu      sync.Mutex
	loggers map[string]*ScopedLogger
}

func newScopes(core zapcore.Core, level zapcore.Level) *scopes {
	return &scopes{base: zap.New(core), level: level, loggers: make(map[string]*ScopedLogger)}
}

func (s *scopes) get(scope string) *ScopedLogger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.loggers[scope]; ok {
		return l
	}
	h := &zapHandler{zap: s.base.Named(scope), level: s.level}
	l := &ScopedLogger{slog: slog.New(h), scope: scope}
	s.loggers[scope] = l
	return l
}

func (s *scopes) drop(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for scope := range s.loggers {
		if strings.HasPrefix(scope, prefix) {
			delete(s.loggers, scope)
		}
	}
}

// jsonEncoder is shared by the file and history cores; the history sink
// parses its output back into LogEntry values.
func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.EpochTimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// zapHandler is a slog.Handler writing through zap. Attributes inside a
// group are keyed "group.key".
type zapHandler struct {
	zap    *zap.Logger
	level  zapcore.Level
	fields []zap.Field
	prefix string
}

func (h *zapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return zapLevel(level) >= h.level
}

func (h *zapHandler) Handle(_ context.Context, r slog.Record) error {
	ce := h.zap.Check(zapLevel(r.Level), r.Message)
	if ce == nil {
		return nil
	}
	fields := make([]zap.Field, 0, len(h.fields)+r.NumAttrs())
	fields = append(fields, h.fields...)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, h.field(a))
		return true
	})
	ce.Write(fields...)
	return nil
}

func (h *zapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = append(make([]zap.Field, 0, len(h.fields)+len(attrs)), h.fields...)
	for _, a := range attrs {
		next.fields = append(next.fields, h.field(a))
	}
	return &next
}

func (h *zapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *zapHandler) field(a slog.Attr) zap.Field {
	return zap.Any(h.prefix+a.Key, a.Value.Resolve().Any())
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
