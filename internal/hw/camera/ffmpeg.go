package camera

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/proc"
)

// FFmpegConfig describes the fixed capture command line.
type FFmpegConfig struct {
	Tool        string // binary name or path, e.g. "ffmpeg"
	Device      string // e.g. "/dev/video0"
	Width       int
	Height      int
	InputFormat string // e.g. "mjpeg"
	Frames      int
	Quality     int           // -q:v, 2 = best JPEG quality
	Timeout     time.Duration // 0 = none
}

// FFmpegGrabber grabs stills from a V4L2 device by running ffmpeg once per frame.
type FFmpegGrabber struct {
	cfg FFmpegConfig
}

// NewFFmpegGrabber creates a grabber; zero fields fall back to 1 frame at quality 2.
func NewFFmpegGrabber(cfg FFmpegConfig) *FFmpegGrabber {
	if cfg.Tool == "" {
		cfg.Tool = "ffmpeg"
	}
	if cfg.Frames <= 0 {
		cfg.Frames = 1
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 2
	}
	return &FFmpegGrabber{cfg: cfg}
}

// Args returns the argument vector for capturing into filename.
func (g *FFmpegGrabber) Args(filename string) []string {
	return []string{
		"-y",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", g.cfg.Width, g.cfg.Height),
		"-input_format", g.cfg.InputFormat,
		"-i", g.cfg.Device,
		"-vframes", strconv.Itoa(g.cfg.Frames),
		"-update", "1",
		"-q:v", strconv.Itoa(g.cfg.Quality),
		filename,
	}
}

// Grab runs the capture tool and waits for it to exit.
func (g *FFmpegGrabber) Grab(ctx context.Context, filename string) error {
	ctx, cancel := proc.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	debug.Live("Camera: grabbing %s from %s", filename, g.cfg.Device)
	err := proc.Run(ctx, g.cfg.Tool, g.Args(filename)...)
	if err == nil {
		debug.Live("Camera: image saved as %s", filename)
		return nil
	}
	if errors.Is(err, proc.ErrToolNotFound) {
		return err
	}

	capErr := &CaptureError{Device: g.cfg.Device, Filename: filename, Err: err}
	var exitErr *proc.ExitError
	if errors.As(err, &exitErr) {
		capErr.Diagnostic = exitErr.Stderr
	}
	return capErr
}

var _ FrameGrabber = (*FFmpegGrabber)(nil)
