package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MEKXH/dropwatch/internal/config"
)

var (
	loggerMu      sync.Mutex
	activeLogFile *os.File
)

// configureLogger installs the process logger. Security events and run traces
// share this handler, so the format choice applies to both.
func configureLogger(cfg *config.Config, overrideLevel string) error {
	level, err := parseLogLevel(cfg.Log.Level, overrideLevel)
	if err != nil {
		return err
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()

	writer, err := logWriterLocked(strings.TrimSpace(cfg.Log.File))
	if err != nil {
		return err
	}

	handler := newLogHandler(cfg.Log.Format, writer, level)
	slog.SetDefault(slog.New(handler).With("service", "dropwatch"))
	return nil
}

// logWriterLocked returns stderr, or the append-only log file at path.
// A previously opened file is closed when the path changes.
func logWriterLocked(path string) (io.Writer, error) {
	if activeLogFile != nil && activeLogFile.Name() != path {
		_ = activeLogFile.Close()
		activeLogFile = nil
	}
	if path == "" {
		return os.Stderr, nil
	}
	if activeLogFile != nil {
		return activeLogFile, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	activeLogFile = f
	return f, nil
}

func newLogHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLogLevel(configLevel, override string) (slog.Level, error) {
	raw := strings.TrimSpace(override)
	if raw == "" {
		raw = strings.TrimSpace(configLevel)
	}
	switch strings.ToLower(raw) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", raw)
}
