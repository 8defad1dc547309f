package camera

import "context"

// FrameGrabber is the high-level interface used by the rest of the application.
// It represents an abstract still camera, regardless of how frames are obtained
// (external tool, native V4L2, a fake in tests, etc.).
type FrameGrabber interface {
	// Grab captures a single still and writes it to filename, overwriting any
	// existing file at that path.
	Grab(ctx context.Context, filename string) error
}
