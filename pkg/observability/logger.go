package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
)

// LogLevel is the minimum severity a Logger writes
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var slogLevels = map[LogLevel]slog.Level{
	DebugLevel: slog.LevelDebug,
	InfoLevel:  slog.LevelInfo,
	WarnLevel:  slog.LevelWarn,
	ErrorLevel: slog.LevelError,
}

func (l LogLevel) slog() slog.Level {
	if lvl, ok := slogLevels[l]; ok {
		return lvl
	}
	return slog.LevelInfo
}

func (l LogLevel) String() string {
	return l.slog().String()
}

// ParseLevel converts a level name to a LogLevel, defaulting to InfoLevel
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	}
	return InfoLevel
}

// redactedKeys never reach the output with their real value. Invitation
// tokens are bearer credentials.
var redactedKeys = map[string]bool{
	"token":         true,
	"password":      true,
	"secret":        true,
	"authorization": true,
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

// Logger writes JSON lines through slog with logrus-style field chaining
type Logger struct {
	logger *slog.Logger
}

// NewLogger returns a JSON logger writing entries at or above level to
// output, or to stdout when output is nil.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:       level.slog(),
		ReplaceAttr: redact,
	})
	return &Logger{logger: slog.New(handler)}
}

// WithField returns a child logger that adds key to every entry
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With(key, value)}
}

// WithFields returns a child logger carrying fields, added in key order
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return &Logger{logger: l.logger.With(args...)}
}

// WithError adds err's message under "error". A nil err returns l.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(msg string) { l.logger.Debug(msg) }
func (l *Logger) Info(msg string)  { l.logger.Info(msg) }
func (l *Logger) Warn(msg string)  { l.logger.Warn(msg) }
func (l *Logger) Error(msg string) { l.logger.Error(msg) }

// Enabled reports whether entries at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	return l.logger.Enabled(context.Background(), level.slog())
}

var defaultLogger = NewLogger(InfoLevel, os.Stdout)

// WithLogger stores logger in ctx for FromContext
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return contextkeys.WithLogger(ctx, logger)
}

// FromContext returns the request logger in ctx, or a stdout logger, tagged
// with the request, user, business and trace IDs present in ctx.
func FromContext(ctx context.Context) *Logger {
	logger, ok := contextkeys.GetLogger(ctx).(*Logger)
	if !ok {
		logger = defaultLogger
	}
	return WithTraceContext(ctx, logger.WithFields(contextkeys.Fields(ctx)))
}
