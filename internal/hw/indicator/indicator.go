package indicator

import (
	"context"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
	"github.com/cjeanneret/SnapGo/internal/hw/gpio"
)

// Busy is an LED that is lit while the camera device is in use.
type Busy struct {
	gpio gpio.Driver
	pin  int
}

// NewBusy configures pin as an output and switches it off.
func NewBusy(g gpio.Driver, pin int) *Busy {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		debug.Info("Indicator: pin %d setup failed: %v", pin, err)
	}
	b := &Busy{gpio: g, pin: pin}
	b.Set(false)
	return b
}

// Set drives the LED. Failures are logged, never returned.
func (b *Busy) Set(on bool) {
	if err := b.gpio.WritePin(b.pin, gpio.Level(on)); err != nil {
		debug.Info("Indicator: pin %d write failed: %v", b.pin, err)
	}
}

// Wrap returns a grabber that lights the LED for the duration of each Grab.
func (b *Busy) Wrap(inner camera.FrameGrabber) camera.FrameGrabber {
	return &busyGrabber{busy: b, inner: inner}
}

type busyGrabber struct {
	busy  *Busy
	inner camera.FrameGrabber
}

func (g *busyGrabber) Grab(ctx context.Context, filename string) error {
	g.busy.Set(true)
	defer g.busy.Set(false)
	return g.inner.Grab(ctx, filename)
}
