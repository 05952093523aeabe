// Package postprocess runs the follow-up commands configured after a harvest or export.
// A failing command is logged and reported but never turns into an error for the caller.
package postprocess

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const stderrTail = 2048

// Outcome describes one finished command.
type Outcome struct {
	Command  string
	ExitCode int
	Duration time.Duration
	Stderr   string
	Err      error
}

// OK reports whether the command started and exited with status 0.
func (o Outcome) OK() bool {
	return o.Err == nil && o.ExitCode == 0
}

// Runner executes commands from Dir, streaming stdout to Stdout.
type Runner struct {
	Dir    string
	Stdout *os.File
}

// NewRunner returns a runner in the current directory that forwards stdout.
func NewRunner() *Runner {
	return &Runner{Stdout: os.Stdout}
}

// Run executes each command line in order. Blank lines are skipped.
func (r *Runner) Run(ctx context.Context, commands ...string) []Outcome {
	outcomes := make([]Outcome, 0, len(commands))
	for _, line := range commands {
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if ctx.Err() != nil {
			slog.Warn("skipping post-processing command, shutting down", slog.String("command", line))
			continue
		}
		outcomes = append(outcomes, r.runOne(ctx, line, args))
	}
	return outcomes
}

func (r *Runner) runOne(ctx context.Context, line string, args []string) Outcome {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir
	if r.Stdout != nil {
		cmd.Stdout = r.Stdout
	}
	cmd.Stderr = &stderr

	slog.Info("running post-processing command", slog.String("command", line))
	start := time.Now()
	err := cmd.Run()

	out := Outcome{
		Command:  line,
		Duration: time.Since(start),
		Stderr:   tail(stderr.String(), stderrTail),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		out.ExitCode = -1
		out.Err = err
	}

	attrs := []any{
		slog.String("command", line),
		slog.Int("exit_code", out.ExitCode),
		slog.Duration("duration", out.Duration),
	}
	if out.OK() {
		slog.Info("post-processing command finished", attrs...)
		return out
	}
	if out.Stderr != "" {
		attrs = append(attrs, slog.String("stderr", out.Stderr))
	}
	if out.Err != nil {
		attrs = append(attrs, slog.Any("error", out.Err))
	}
	slog.Error("post-processing command failed", attrs...)
	return out
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
