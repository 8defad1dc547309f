package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
	"github.com/cjeanneret/SnapGo/internal/publish"
)

// Options configure a Service.
type Options struct {
	WorkDir     string // where the grabber writes; "" = current directory
	Destination string // shared directory the capture is copied into

	// SkipPublishOnCaptureFailure short-circuits the copy step after a failed
	// capture. By default the copy is always attempted.
	SkipPublishOnCaptureFailure bool

	Clock     func() time.Time // defaults to time.Now
	OnOutcome func(Outcome)    // optional, called after every run
}

// Outcome is the result of one capture-and-publish run.
type Outcome struct {
	ID             string
	Filename       string // base name, screenshot_*.jpeg
	Path           string // local path handed to the grabber
	Started        time.Time
	Duration       time.Duration
	CaptureErr     error
	PublishErr     error
	PublishSkipped bool
}

// CaptureOK reports whether the grabber succeeded.
func (o Outcome) CaptureOK() bool { return o.CaptureErr == nil }

// PublishOK reports whether the copy ran and succeeded.
func (o Outcome) PublishOK() bool { return !o.PublishSkipped && o.PublishErr == nil }

// OK is true only when both steps succeeded.
func (o Outcome) OK() bool { return o.CaptureOK() && o.PublishOK() }

// Service grabs a still and publishes it. Grabs are serialised through a
// single-slot gate: concurrent callers queue for the camera device.
type Service struct {
	grabber   camera.FrameGrabber
	publisher publish.Publisher
	gate      *semaphore.Weighted
	opts      Options

	stampMu sync.Mutex
	last    time.Time
}

// NewService creates a service around a grabber and a publisher.
func NewService(g camera.FrameGrabber, p publish.Publisher, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		grabber:   g,
		publisher: p,
		gate:      semaphore.NewWeighted(1),
		opts:      opts,
	}
}

// Destination returns the configured publish directory.
func (s *Service) Destination() string {
	return s.opts.Destination
}

// Run performs one capture and one publish. It never returns an error: every
// failure is logged and recorded in the Outcome, and nothing is retried.
func (s *Service) Run(ctx context.Context) Outcome {
	started := s.stamp()
	name := Filename(started)
	out := Outcome{
		ID:       uuid.NewString(),
		Filename: name,
		Path:     filepath.Join(s.opts.WorkDir, name),
		Started:  started,
	}
	debug.Live("Run %s: capturing %s", out.ID, out.Path)

	out.CaptureErr = s.grab(ctx, out.Path)
	if out.CaptureErr != nil {
		logFailure("capture", out.CaptureErr)
	}

	if out.CaptureErr != nil && s.opts.SkipPublishOnCaptureFailure {
		out.PublishSkipped = true
		debug.Live("Run %s: capture failed, publish skipped", out.ID)
	} else {
		out.PublishErr = s.publisher.Publish(ctx, out.Path, s.opts.Destination)
		if out.PublishErr != nil {
			logFailure("publish", out.PublishErr)
		}
	}

	out.Duration = s.opts.Clock().Sub(started)
	debug.Outcome(out.Filename, out.CaptureOK(), out.PublishOK())
	if s.opts.OnOutcome != nil {
		s.opts.OnOutcome(out)
	}
	return out
}

// stamp returns the clock reading, nudged forward one microsecond when it
// does not advance past the previous run, so names from one process never repeat.
func (s *Service) stamp() time.Time {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	now := s.opts.Clock().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func (s *Service) grab(ctx context.Context, path string) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for camera: %w", err)
	}
	defer s.gate.Release(1)
	return s.grabber.Grab(ctx, path)
}

func logFailure(step string, err error) {
	debug.Error(fmt.Errorf("%s: %w", step, err))

	var capErr *camera.CaptureError
	if errors.As(err, &capErr) {
		debug.Diagnostic("capture tool", capErr.Diagnostic)
	}
	var copyErr *publish.CopyError
	if errors.As(err, &copyErr) {
		debug.Diagnostic("copy tool", copyErr.Diagnostic)
	}
}
