package logger

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"hedgeFundSim/internal/ports"
)

// StdLogger implements the ports.Logger interface on top of log/slog.
type StdLogger struct {
	logger *slog.Logger
	level  LogLevel
}

// LogLevel defines the logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a string level to LogLevel.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo // Default to Info
	}
}

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps "json" to FormatJSON and anything else to FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// New creates a logger writing to w in the given format.
func New(w io.Writer, level LogLevel, format Format) *StdLogger {
	opts := &slog.HandlerOptions{Level: level.slogLevel()}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &StdLogger{logger: slog.New(h), level: level}
}

// With returns a logger that adds fields to every record.
func (l *StdLogger) With(fields ports.Fields) *StdLogger {
	return &StdLogger{logger: l.logger.With(attrs(fields)...), level: l.level}
}

// attrs flattens field maps into slog key/value pairs sorted by key.
func attrs(fields ...ports.Fields) []any {
	var out []any
	for _, f := range fields {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, slog.Any(k, f[k]))
		}
	}
	return out
}

func (l *StdLogger) log(ctx context.Context, level LogLevel, msg string, err error, fields ...ports.Fields) {
	if level < l.level {
		return // Skip logging if the level is below the configured threshold
	}
	args := attrs(fields...)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.logger.Log(ctx, level.slogLevel(), msg, args...)
}

// Debug logs a message at Debug level.
func (l *StdLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, LevelDebug, msg, nil, fields...)
}

// Info logs a message at Info level.
func (l *StdLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, LevelInfo, msg, nil, fields...)
}

// Warn logs a message at Warning level.
func (l *StdLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, LevelWarn, msg, nil, fields...)
}

// Error logs an error message at Error level.
func (l *StdLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.log(ctx, LevelError, msg, err, fields...)
}

// Nop discards everything.
type Nop struct{}

// NewNop returns a logger that drops all records.
func NewNop() Nop { return Nop{} }

func (Nop) Debug(context.Context, string, ...map[string]interface{})        {}
func (Nop) Info(context.Context, string, ...map[string]interface{})         {}
func (Nop) Warn(context.Context, string, ...map[string]interface{})         {}
func (Nop) Error(context.Context, error, string, ...map[string]interface{}) {}

var (
	_ ports.Logger = (*StdLogger)(nil)
	_ ports.Logger = Nop{}
)
