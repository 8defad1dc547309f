package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// ErrToolNotFound means the external binary could not be resolved or started.
var ErrToolNotFound = errors.New("tool not found")

// ErrTimeout means the invocation was killed because its context expired.
var ErrTimeout = errors.New("tool timed out")

// waitDelay bounds how long Run waits for pipes after the process is killed.
const waitDelay = time.Second

// ExitError reports a tool that ran and exited non-zero.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string // trimmed diagnostic output
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.Code, lastLine(e.Stderr))
}

// Run executes name with args as a discrete argument vector (never through a shell)
// and waits for it. Stdout is discarded; stderr is captured for diagnostics.
func Run(ctx context.Context, name string, args ...string) error {
	debug.Command(name, args)

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %w: %v", name, ErrToolNotFound, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", name, ErrTimeout)
		}
		return fmt.Errorf("%s: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Tool:   name,
			Code:   exitErr.ExitCode(),
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return fmt.Errorf("%s failed: %w", name, err)
}

// WithTimeout derives a context bounded by d; d <= 0 means no bound.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
