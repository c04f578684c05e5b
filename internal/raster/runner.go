package raster

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const stderrTail = 512

// Runner starts an external renderer. A failed command comes back as *CommandError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// CommandError carries the tail of the renderer's stderr, which is where pdftoppm explains itself.
type CommandError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) error {
	start := time.Now()

	var errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &errb

	if err := cmd.Run(); err != nil {
		cerr := &CommandError{Name: name, Stderr: lastLine(errb.String(), stderrTail), Err: err}
		r.logger.Warn("raster.exec.failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"stderr", cerr.Stderr,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return cerr
	}
	r.logger.Debug("raster.exec.ok",
		"cmd", name,
		"stderr_bytes", errb.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// lastLine keeps the final non-empty stderr line, capped at n bytes from the end.
func lastLine(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
