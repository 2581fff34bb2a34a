package scenario

import (
	"context"
	"time"

	"github.com/osa030/playmux/internal/app/looper"
)

// Driver owns the main thread a scenario runs on.
type Driver interface {
	Handler() looper.Handler
	// Do runs fn on the main thread and returns once it and the work it
	// posted immediately have run.
	Do(fn func()) error
	// Wait lets d pass on the main thread's clock.
	Wait(ctx context.Context, d time.Duration) error
	// Elapsed returns the time since the driver was created.
	Elapsed() time.Duration
}

// VirtualDriver runs a scenario on a virtual clock. Waits return at once.
type VirtualDriver struct {
	manual *looper.Manual
}

// NewVirtualDriver creates a driver at virtual time zero.
func NewVirtualDriver() *VirtualDriver {
	return &VirtualDriver{manual: looper.NewManual()}
}

// Handler implements Driver.
func (d *VirtualDriver) Handler() looper.Handler { return d.manual }

// Do implements Driver.
func (d *VirtualDriver) Do(fn func()) error {
	fn()
	d.manual.RunPending()
	return nil
}

// Wait implements Driver.
func (d *VirtualDriver) Wait(ctx context.Context, wait time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.manual.Advance(wait)
	return nil
}

// Elapsed implements Driver.
func (d *VirtualDriver) Elapsed() time.Duration { return d.manual.Now() }

// LoopDriver runs a scenario in real time on a looper.Loop.
type LoopDriver struct {
	loop    *looper.Loop
	started time.Time
}

// NewLoopDriver starts loop and drives it.
func NewLoopDriver(loop *looper.Loop) *LoopDriver {
	loop.Start()
	return &LoopDriver{loop: loop, started: time.Now()}
}

// Handler implements Driver.
func (d *LoopDriver) Handler() looper.Handler { return d.loop }

// Do implements Driver. Work posted by fn runs after it, so a second
// round trip waits for it.
func (d *LoopDriver) Do(fn func()) error {
	if err := d.loop.Invoke(fn); err != nil {
		return err
	}
	return d.loop.Invoke(func() {})
}

// Wait implements Driver.
func (d *LoopDriver) Wait(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Elapsed implements Driver.
func (d *LoopDriver) Elapsed() time.Duration { return time.Since(d.started) }
