// Package logger provides the structured logger threaded through every
// engine package via context.Context, wrapping charmbracelet/log.
package logger

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

// Logger is the narrow surface engine packages depend on; it never
// exposes the concrete charmbracelet type so the backing library can be
// swapped without touching call sites.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

// LogLevel is a textual logging level, used in config so it round-trips
// through YAML/env sources without an intermediate int encoding.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// disabledCharmLevel sits above charmlog's highest built-in level so
// every call is filtered out.
const disabledCharmLevel = charmlog.Level(1000)

// ToCharmlogLevel maps a LogLevel onto charmlog's level type, defaulting
// unknown values to InfoLevel rather than erroring.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return disabledCharmLevel
	case InfoLevel:
		return charmlog.InfoLevel
	default:
		return charmlog.InfoLevel
	}
}

// Config controls how NewLogger builds its charmlog backend.
type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig is the production default: info level, stdout, and a
// format chosen by what stdout actually is — colorized text for an
// interactive terminal, JSON once output is redirected to a file or pipe
// (a log collector downstream has no use for color codes).
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       !stdoutIsTerminal(),
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// stdoutIsTerminal reports whether stdout is an interactive terminal,
// honoring NO_COLOR the same way a terminal-aware CLI output layer would.
func stdoutIsTerminal() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TestConfig silences logging entirely; it is the config engine tests
// build loggers from so test runs stay quiet by default.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

type charmLogger struct {
	inner *charmlog.Logger
}

// NewLogger builds a Logger from cfg, falling back to DefaultConfig when
// cfg is nil.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	formatter := charmlog.TextFormatter
	if cfg.JSON {
		formatter = charmlog.JSONFormatter
	}
	inner := charmlog.NewWithOptions(cfg.Output, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		ReportCaller:    cfg.AddSource,
		Level:           cfg.Level.ToCharmlogLevel(),
		Formatter:       formatter,
	})
	return &charmLogger{inner: inner}
}

func (l *charmLogger) Debug(msg string, keyvals ...any) { l.inner.Debug(msg, keyvals...) }
func (l *charmLogger) Info(msg string, keyvals ...any)  { l.inner.Info(msg, keyvals...) }
func (l *charmLogger) Warn(msg string, keyvals ...any)  { l.inner.Warn(msg, keyvals...) }
func (l *charmLogger) Error(msg string, keyvals ...any) { l.inner.Error(msg, keyvals...) }

func (l *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{inner: l.inner.With(keyvals...)}
}

// IsTestEnvironment reports whether the process is running under `go
// test`, used by hosts that want to pick TestConfig automatically.
func IsTestEnvironment() bool {
	if flag.Lookup("test.v") != nil {
		return true
	}
	for _, arg := range os.Args {
		if strings.HasSuffix(arg, ".test") || strings.Contains(arg, "-test.") {
			return true
		}
	}
	return false
}

type ctxKey string

// LoggerCtxKey is the context.Context key FromContext/ContextWithLogger
// read and write.
const LoggerCtxKey ctxKey = "logger"

var defaultLogger = NewLogger(nil)

// ContextWithLogger returns a child context carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// FromContext returns the Logger stored in ctx, or the package logger
// built from DefaultConfig (info level, stdout) when ctx carries none, a
// wrong-typed value, or a nil Logger.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return defaultLogger
	}
	l, ok := ctx.Value(LoggerCtxKey).(Logger)
	if !ok || l == nil {
		return defaultLogger
	}
	return l
}
