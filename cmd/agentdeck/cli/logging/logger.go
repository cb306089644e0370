// Package logging provides structured logging for the daemon using slog.
//
// Usage:
//
//	if err := logging.Init(logPath, levelStr); err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	ctx = logging.WithComponent(ctx, "ingest")
//	ctx = logging.WithSession(ctx, sessionID)
//	logging.Info(ctx, "hook accepted", slog.String("hook", name))
package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogLevelEnvVar overrides the configured log level.
const LogLevelEnvVar = "AGENTDECK_LOG_LEVEL"

var (
	mu           sync.RWMutex
	logger       *slog.Logger
	logFile      *os.File
	logBufWriter *bufio.Writer
)

// Init initializes the daemon logger, writing JSON logs to path.
// Falls back to stderr if the file cannot be created. The environment
// variable takes precedence over the levelStr argument.
func Init(path, levelStr string) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	if env := os.Getenv(LogLevelEnvVar); env != "" {
		levelStr = env
	}
	level := parseLogLevel(levelStr)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path comes from paths.DaemonLogPath
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)
	return nil
}

// Close flushes and closes the log file. Safe to call multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	logger = nil
}

// Flush flushes buffered log output without closing the file.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
	}
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel parses a log level string, defaulting to INFO.
func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs at DEBUG level with context values automatically extracted.
func Debug(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at INFO level with context values automatically extracted.
func Info(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at WARN level with context values automatically extracted.
func Warn(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at ERROR level with context values automatically extracted.
func Error(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelError, msg, attrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any
	if s := SessionIDFromContext(ctx); s != "" {
		allAttrs = append(allAttrs, slog.String("session_id", s))
	}
	if c := ComponentFromContext(ctx); c != "" {
		allAttrs = append(allAttrs, slog.String("component", c))
	}
	if h := HookFromContext(ctx); h != "" {
		allAttrs = append(allAttrs, slog.String("hook", h))
	}
	allAttrs = append(allAttrs, attrs...)

	// Context values are already extracted as attributes.
	l.Log(nil, level, msg, allAttrs...) //nolint:staticcheck // nil context is intentional
}
