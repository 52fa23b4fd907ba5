// Package logger is the process-wide structured logger.
//
// Records go through log/slog. The level lives in a single slog.LevelVar
// shared by every handler, so SetLevel is safe to call while requests are
// being logged, which is what configuration reload relies on.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// sink is where records are written and how.
type sink struct {
	w      io.Writer
	closer io.Closer // non-nil for files opened by Init
	color  bool
	format string
}

var (
	level = new(slog.LevelVar)

	mu      sync.RWMutex
	current sink
	slogger *slog.Logger
)

func init() {
	current = sink{w: os.Stdout, color: colorFor(os.Stdout), format: "text"}
	rebuild()
}

// colorFor reports whether f is an interactive terminal that wants color.
func colorFor(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// rebuild replaces the logger after a sink change. Callers hold mu.
func rebuild() {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if current.format == "json" {
		h = slog.NewJSONHandler(current.w, opts)
	} else {
		h = NewColorTextHandler(current.w, opts, current.color)
	}
	slogger = slog.New(h)
}

// swap installs s, closing the file of the previous sink.
func swap(s sink) {
	mu.Lock()
	prev := current
	current = s
	rebuild()
	mu.Unlock()

	if prev.closer != nil && prev.closer != s.closer {
		_ = prev.closer.Close()
	}
}

// Init applies cfg. Empty fields keep their current value.
func Init(cfg Config) error {
	if cfg.Output != "" {
		mu.RLock()
		s := current
		mu.RUnlock()
		s.closer = nil

		switch strings.ToLower(cfg.Output) {
		case "stdout":
			s.w, s.color = os.Stdout, colorFor(os.Stdout)
		case "stderr":
			s.w, s.color = os.Stderr, colorFor(os.Stderr)
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			s.w, s.closer, s.color = f, f, false
		}
		swap(s)
	}

	SetLevel(cfg.Level)
	SetFormat(cfg.Format)
	return nil
}

// InitWithWriter logs to w. Tests use it to capture output.
func InitWithWriter(w io.Writer, lvl, format string, enableColor bool) {
	mu.RLock()
	f := current.format
	mu.RUnlock()
	swap(sink{w: w, color: enableColor, format: f})

	SetLevel(lvl)
	SetFormat(format)
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "INFO":
		level.Set(slog.LevelInfo)
	case "WARN":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	}
}

// GetLevel returns the name of the current minimum level.
func GetLevel() string {
	return level.Level().String()
}

// SetFormat switches between "text" and "json". Other values are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if current.format != format {
		current.format = format
		rebuild()
	}
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

func enabled(l slog.Level) bool {
	return l >= level.Level()
}

func log(ctx context.Context, l slog.Level, msg string, args []any) {
	if !enabled(l) {
		return
	}
	get().Log(ctx, l, msg, prependContextFields(ctx, args)...)
}

// Debug logs at debug level: Debug("msg", "key", value, ...).
func Debug(msg string, args ...any) { log(context.Background(), slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { log(context.Background(), slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { log(context.Background(), slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { log(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs at debug level, leading with the LogContext fields of ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelDebug, msg, args)
}

// InfoCtx logs at info level with the LogContext fields of ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelInfo, msg, args)
}

// WarnCtx logs at warn level with the LogContext fields of ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelWarn, msg, args)
}

// ErrorCtx logs at error level with the LogContext fields of ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelError, msg, args)
}

// prependContextFields puts the LogContext fields of ctx ahead of args.
func prependContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 16+len(args))
	for _, f := range [...]struct{ key, val string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyClientAddr, lc.ClientAddr},
		{KeySessionID, lc.SessionID},
		{KeyOp, lc.Op},
		{KeyExport, lc.Export},
	} {
		if f.val != "" {
			out = append(out, f.key, f.val)
		}
	}
	if lc.UID != 0 || lc.GID != 0 {
		out = append(out, KeyUID, lc.UID, KeyGID, lc.GID)
	}
	return append(out, args...)
}

// With returns a logger with args bound to every record.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Duration returns the milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
