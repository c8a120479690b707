// Package logger owns the process-wide slog logger and the request-scoped
// loggers derived from it.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oggyb/campusknot/internal/config"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config describes the global logger.
type Config struct {
	Level      string
	Format     Format
	Component  string
	WithSource bool
	// Redact masks the values of secret-bearing attributes.
	Redact bool
	// Output defaults to os.Stdout when nil.
	Output io.Writer
}

const redacted = "[redacted]"

// secretKeys are attribute keys whose values never reach a redacted log.
var secretKeys = map[string]bool{
	"password":      true,
	"temp_password": true,
	"token":         true,
	"code":          true,
	"authorization": true,
}

var (
	mu     sync.RWMutex
	global *slog.Logger
	level  = new(slog.LevelVar)
)

type ctxKey struct{}

// InitFromConfig initializes the global logger from app config. Production
// deployments always redact secrets.
func InitFromConfig(c *config.Config) {
	if c == nil {
		Init(nil)
		return
	}
	Init(&Config{
		Level:      c.Log.Level,
		Format:     Format(strings.ToLower(c.Log.Format)),
		Component:  c.Log.Component,
		WithSource: c.Log.Source,
		Redact:     c.IsProduction(),
	})
}

// Init replaces the global logger. A nil config gives info-level text on
// stdout. Safe to call multiple times.
func Init(c *Config) {
	if c == nil {
		c = &Config{Level: "info", Format: FormatText}
	}
	l := slog.New(newHandler(*c))
	if c.Component != "" {
		l = l.With("component", c.Component)
	}

	mu.Lock()
	global = l
	mu.Unlock()
}

func newHandler(c Config) slog.Handler {
	out := c.Output
	if out == nil {
		out = os.Stdout
	}
	level.Set(parseLevel(c.Level))

	text := c.Format != FormatJSON
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: c.WithSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if c.Redact && secretKeys[strings.ToLower(a.Key)] {
				return slog.String(a.Key, redacted)
			}
			if text && len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.DateTime))
			}
			return a
		},
	}
	if text {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// SetLevel changes the level of the global logger and every logger
// derived from it.
func SetLevel(s string) { level.Set(parseLevel(s)) }

// L returns the global logger, initializing the default one on first use.
func L() *slog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = slog.New(newHandler(Config{Level: "info", Format: FormatText}))
	}
	return global
}

// With creates a child logger with additional attributes.
func With(args ...any) *slog.Logger { return L().With(args...) }

// WithContext stores a request-scoped logger in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext, or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L()
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDebug reports whether the given level string enables debug output.
func IsDebug(level string) bool {
	return parseLevel(level) == slog.LevelDebug
}
