// Package logging builds the slog logger shared by the commands: colored or JSON
// output on stderr, plus an optional JSON log file that is appended to across runs.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a logger writing to stderr. Terminals get tint's colored output,
// anything else gets JSON lines. verbose lowers the level to debug.
func New(verbose bool) (*slog.Logger, *slog.LevelVar) {
	return NewWithWriter(os.Stderr, isTerminal(os.Stderr), verbose)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, color, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := newLevel(verbose)
	return slog.New(consoleHandler(w, color, level)), level
}

// Open builds the console logger and, when logFile is set, tees every record into
// logFile as JSON. The returned closer releases the file.
func Open(console io.Writer, color, verbose bool, logFile string) (*slog.Logger, io.Closer, error) {
	level := newLevel(verbose)
	handler := consoleHandler(console, color, level)
	if logFile == "" {
		return slog.New(handler), nopCloser{}, nil
	}

	if dir := filepath.Dir(logFile); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(Fanout(handler, fileHandler)), f, nil
}

// Setup installs Open(stderr, ...) as the default logger.
func Setup(verbose bool, logFile string) (io.Closer, error) {
	logger, closer, err := Open(os.Stderr, isTerminal(os.Stderr), verbose, logFile)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

// Fanout returns a handler that passes each record to every handler that accepts its level.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

func newLevel(verbose bool) *slog.LevelVar {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	return level
}

func consoleHandler(w io.Writer, color bool, level slog.Leveler) slog.Handler {
	if color {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
