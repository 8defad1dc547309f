package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/proc"
)

var (
	// ErrToolNotFound is the copy tool binary missing. It is proc.ErrToolNotFound.
	ErrToolNotFound = proc.ErrToolNotFound
	// ErrSourceNotFound means the copy failed because the capture file does not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrCopyFailed covers every other copy failure (destination missing, not
	// writable, disk full, timeout).
	ErrCopyFailed = errors.New("copy failed")
)

// Publisher copies a finished capture into a shared destination directory.
type Publisher interface {
	Publish(ctx context.Context, source, destDir string) error
}

// CopyError carries the copy tool's diagnostic output.
type CopyError struct {
	Source      string
	Destination string
	Diagnostic  string
	Kind        error // ErrSourceNotFound or ErrCopyFailed
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("publish %s to %s: %v: %v", e.Source, e.Destination, e.Kind, e.Err)
}

func (e *CopyError) Unwrap() []error { return []error{e.Kind, e.Err} }

// CopyPublisher runs "<tool> <source> <destDir>" once per capture.
// The destination directory is never created.
type CopyPublisher struct {
	tool    string
	timeout time.Duration
}

// NewCopyPublisher creates a publisher; an empty tool means "cp".
func NewCopyPublisher(tool string, timeout time.Duration) *CopyPublisher {
	if tool == "" {
		tool = "cp"
	}
	return &CopyPublisher{tool: tool, timeout: timeout}
}

// Publish copies source into destDir, keeping its base name.
func (p *CopyPublisher) Publish(ctx context.Context, source, destDir string) error {
	ctx, cancel := proc.WithTimeout(ctx, p.timeout)
	defer cancel()

	debug.Live("Publish: copying %s to %s", source, destDir)
	err := proc.Run(ctx, p.tool, source, dirArg(destDir))
	if err == nil {
		debug.Live("Publish: %s copied successfully", filepath.Base(source))
		return nil
	}
	if errors.Is(err, proc.ErrToolNotFound) {
		return err
	}

	copyErr := &CopyError{Source: source, Destination: destDir, Kind: ErrCopyFailed, Err: err}
	if _, statErr := os.Stat(source); errors.Is(statErr, os.ErrNotExist) {
		copyErr.Kind = ErrSourceNotFound
	}
	var exitErr *proc.ExitError
	if errors.As(err, &exitErr) {
		copyErr.Diagnostic = exitErr.Stderr
	}
	return copyErr
}

// dirArg forces a trailing slash so the copy tool rejects a missing
// directory instead of creating a file with that name.
func dirArg(destDir string) string {
	dir := strings.TrimRight(destDir, "/")
	if dir == "" && destDir == "" {
		dir = "."
	}
	return dir + "/"
}

// Target returns the path the published copy of source will have in destDir.
func Target(source, destDir string) string {
	return filepath.Join(destDir, filepath.Base(source))
}

var _ Publisher = (*CopyPublisher)(nil)
