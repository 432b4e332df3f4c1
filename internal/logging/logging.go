// Package logging builds the run logger: stderr, a timestamped run log file,
// or both.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/IshaanNene/dealstalk/internal/config"
)

// FileName returns "<prefix>_YYYYMMDD_HHMMSS.log" for now.
func FileName(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = "dealstalk"
	}
	return fmt.Sprintf("%s_%s.log", prefix, now.Format("20060102_150405"))
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates the logger described by cfg. The returned path is the run log
// file, empty when logging only to stderr. The closer must be closed when
// the run ends.
func New(cfg config.LoggingConfig, now time.Time) (*slog.Logger, io.Closer, string, error) {
	return NewWithStderr(cfg, now, os.Stderr)
}

// NewWithStderr is New with the console stream supplied by the caller.
func NewWithStderr(cfg config.LoggingConfig, now time.Time, stderr io.Writer) (*slog.Logger, io.Closer, string, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, "", err
	}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
		path   string
	)
	switch cfg.Output {
	case "stderr":
		out = stderr
	case "file", "both", "":
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, "", fmt.Errorf("create log dir: %w", err)
		}
		path = filepath.Join(dir, FileName(cfg.Prefix, now))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, "", fmt.Errorf("open log file: %w", err)
		}
		closer = f
		if cfg.Output == "file" {
			out = f
		} else {
			out = io.MultiWriter(stderr, f)
		}
	default:
		return nil, nil, "", fmt.Errorf("unknown log output %q", cfg.Output)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, path, nil
}
