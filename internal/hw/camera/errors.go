package camera

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/SnapGo/internal/proc"
)

// ErrCaptureFailed is matched by every capture error where the tool ran but
// did not produce a frame (device busy or absent, unsupported format, timeout).
var ErrCaptureFailed = errors.New("capture failed")

// ErrToolNotFound is the capture tool binary missing. It is proc.ErrToolNotFound.
var ErrToolNotFound = proc.ErrToolNotFound

// CaptureError carries the capture tool's diagnostic output.
type CaptureError struct {
	Device     string
	Filename   string
	Diagnostic string
	Err        error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s from %s: %v", e.Filename, e.Device, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCaptureFailed) match any CaptureError.
func (e *CaptureError) Is(target error) bool {
	return target == ErrCaptureFailed
}
