// Package logging builds the supervisor's own ambient diagnostic logger —
// never a managed application's stdout/stderr, which the Log Pipeline owns
// exclusively. Grounded in the teacher's internal/logger package: the same
// ColorTextHandler-over-slog.TextHandler pattern for terminal output, and
// gopkg.in/natefinch/lumberjack.v2 for rotation when a log file is
// configured instead of a terminal.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 7
)

// Config selects the ambient logger's level and destination.
type Config struct {
	Level string // debug|info|warn|error, default info
	File  string // when set, diagnostics rotate to this file instead of stderr
}

// New builds the process-wide *slog.Logger per Config.
func New(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	if cfg.File != "" {
		w := &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
		}
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(newColorTextHandler(os.Stderr, opts))
}

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

// colorTextHandler wraps slog.TextHandler to prefix each record's level with
// an ANSI color code, for readable interactive terminal output.
type colorTextHandler struct {
	*slog.TextHandler
	w  io.Writer
	mu *sync.Mutex
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *colorTextHandler {
	return &colorTextHandler{TextHandler: slog.NewTextHandler(w, opts), w: w, mu: &sync.Mutex{}}
}

func (h *colorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var color string
	switch r.Level {
	case slog.LevelDebug:
		color = "\033[36m"
	case slog.LevelInfo:
		color = "\033[32m"
	case slog.LevelWarn:
		color = "\033[33m"
	case slog.LevelError:
		color = "\033[31m"
	default:
		color = "\033[0m"
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := io.WriteString(h.w, color+r.Level.String()+"\033[0m "); err != nil {
		return err
	}
	return h.TextHandler.Handle(ctx, r)
}
