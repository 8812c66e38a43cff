// Package logging provides the file-backed structured logger. The TUI
// owns the terminal while the program runs, so nothing here writes to
// stdout or stderr; with no directory configured, logs are discarded.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// Dir is where log files land; empty disables logging. Supports a
	// leading ~ for the home directory.
	Dir string
	// Level is debug, info, warn, or error. Defaults to info.
	Level string
	// Service names the log file: {service}_{date}.log.
	Service string
}

// Logger wraps slog with the file handle it writes to.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// New builds a JSON file logger. Errors creating the file degrade to a
// discard logger rather than failing startup.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)
	if cfg.Dir == "" {
		return &Logger{Logger: discard(level)}
	}

	dir, err := expandHome(cfg.Dir)
	if err == nil {
		err = os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return &Logger{Logger: discard(level)}
	}

	service := cfg.Service
	if service == "" {
		service = "aidj"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &Logger{Logger: discard(level)}
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger: slog.New(handler).With("service", service),
		file:   file,
	}
}

func discard(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: level}))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

func expandHome(dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
	}
	return dir, nil
}
