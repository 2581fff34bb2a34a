package looper

import "time"

// DefaultRepeatInterval is the poll interval used when none is given.
const DefaultRepeatInterval = time.Second

// Repeater calls a func at a fixed interval on a Handler until stopped.
type Repeater struct {
	handler  Handler
	interval time.Duration
	fn       func()

	running bool
	cancel  func()
}

// NewRepeater creates a stopped repeater. A non-positive interval uses DefaultRepeatInterval.
func NewRepeater(handler Handler, interval time.Duration, fn func()) *Repeater {
	if interval <= 0 {
		interval = DefaultRepeatInterval
	}
	return &Repeater{handler: handler, interval: interval, fn: fn}
}

// Start begins repeating. The first call happens one interval from now.
func (r *Repeater) Start() {
	if r.running {
		return
	}
	r.running = true
	r.schedule()
}

// Stop cancels the pending call.
func (r *Repeater) Stop() {
	if !r.running {
		return
	}
	r.running = false
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// IsRunning reports whether the repeater is started.
func (r *Repeater) IsRunning() bool {
	return r.running
}

func (r *Repeater) schedule() {
	r.cancel = r.handler.PostDelayed(r.interval, r.tick)
}

func (r *Repeater) tick() {
	if !r.running {
		return
	}
	r.fn()
	if r.running {
		r.schedule()
	}
}
