package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"csstcli/internal/config"
)

var (
	logMu         sync.Mutex
	globalLogger  *slog.Logger
	globalLogFile *os.File
)

type contextKey string

// Context keys whose values the logger copies onto every record
const (
	TraceIDContextKey contextKey = "trace_id"
	RunIDContextKey   contextKey = "run_id"
)

var loggedKeys = []contextKey{RunIDContextKey, TraceIDContextKey}

// InitializeLogger builds the application logger from cfg, installs it as
// the slog default and returns it. Calling it again replaces the logger and
// closes the previous log file.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	logMu.Lock()
	defer logMu.Unlock()

	output, file, err := logOutput(cfg)
	if err != nil {
		return nil, err
	}
	if globalLogFile != nil {
		_ = globalLogFile.Close()
	}
	globalLogFile = file
	globalLogger = NewLogger(output, cfg.Level, cfg.Format)
	slog.SetDefault(globalLogger)
	return globalLogger, nil
}

// GetLogger returns the logger installed by InitializeLogger, or
// slog.Default before that
func GetLogger() *slog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// NewLogger creates a logger writing to w that tags records with the run and
// trace ids carried by their context
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: level == "debug",
		Level:     parseLogLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&contextHandler{Handler: handler})
}

func logOutput(cfg config.LoggingConfig) (io.Writer, *os.File, error) {
	switch strings.ToLower(cfg.Output) {
	case "file":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return file, file, nil
	case "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return io.MultiWriter(os.Stderr, file), file, nil
	default:
		// stdout carries command output
		return os.Stderr, nil, nil
	}
}

// contextHandler copies the run and trace ids carried by the context onto
// each record
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		for _, key := range loggedKeys {
			if v, ok := ctx.Value(key).(string); ok && v != "" {
				r.AddAttrs(slog.String(string(key), v))
			}
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// WithTraceID attaches traceID to ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID returns the trace id of ctx, or ""
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDContextKey)
}

// WithRunID marks ctx as belonging to the batch run id
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDContextKey, runID)
}

// GetRunID returns the batch run id of ctx, or ""
func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDContextKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// CloseLogFile closes the log file opened by InitializeLogger, if any
func CloseLogFile() error {
	logMu.Lock()
	defer logMu.Unlock()

	if globalLogFile == nil {
		return nil
	}
	err := globalLogFile.Close()
	globalLogFile = nil
	return err
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
