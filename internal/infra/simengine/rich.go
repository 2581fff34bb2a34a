// Package simengine provides scripted in-process engines. They behave like
// the wrapped media libraries closely enough to drive the backends from
// tests and from the scenario runner.
package simengine

import (
	"fmt"
	"time"

	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/infra/engine"
)

// DefaultTickInterval is how often a playing engine advances its position.
const DefaultTickInterval = 100 * time.Millisecond

// RichOptions configures a Rich engine.
type RichOptions struct {
	DurationMs      int64
	BufferedPercent int
	// AutoAdvance makes the engine move from buffering to ready on its own
	// and play through to the end.
	AutoAdvance  bool
	PrepareDelay time.Duration
	SeekDelay    time.Duration
	Renderers    []engine.MappedRenderer
	Windows      []media.Window
}

// Rich is a scripted engine.RichEngine. Listener callbacks are posted on the
// handler, never delivered inline.
type Rich struct {
	handler   looper.Handler
	opts      RichOptions
	listeners []engine.RichListener
	selector  *engine.DefaultTrackSelector
	ticker    *looper.Repeater

	source        *media.Source
	state         engine.State
	playWhenReady bool
	positionMs    int64
	buffered      int
	speed         float32
	volume        float32
	repeat        playback.RepeatMode
	surface       *media.Surface
	windows       []media.Window
	releaseErr    error
	released      bool
	pending       func()

	ops []string
}

// NewRich creates an idle engine.
func NewRich(handler looper.Handler, opts RichOptions) *Rich {
	e := &Rich{
		handler:  handler,
		opts:     opts,
		selector: engine.NewDefaultTrackSelector(),
		state:    engine.StateIdle,
		speed:    1,
		volume:   1,
	}
	e.ticker = looper.NewRepeater(handler, DefaultTickInterval, e.tick)
	return e
}

// Ops returns the control calls received so far, in order.
func (e *Rich) Ops() []string {
	return append([]string(nil), e.ops...)
}

// SetReleaseError makes the next Release fail with err.
func (e *Rich) SetReleaseError(err error) {
	e.releaseErr = err
}

// Listeners returns how many listeners are attached.
func (e *Rich) Listeners() int {
	return len(e.listeners)
}

// AddListener implements engine.RichEngine.
func (e *Rich) AddListener(l engine.RichListener) {
	for _, existing := range e.listeners {
		if existing == l {
			return
		}
	}
	e.listeners = append(e.listeners, l)
}

// RemoveListener implements engine.RichEngine.
func (e *Rich) RemoveListener(l engine.RichListener) {
	for i, existing := range e.listeners {
		if existing == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// SetSource implements engine.RichEngine.
func (e *Rich) SetSource(src *media.Source) {
	if src == nil {
		e.record("set_source(nil)")
	} else {
		e.record("set_source(%s)", src.URI)
	}
	e.cancelPending()
	e.ticker.Stop()
	e.source = src
	e.positionMs = 0
	e.buffered = 0
	e.windows = nil
	e.selector.SetMappedTrackInfo(nil)
	if e.state != engine.StateIdle {
		e.state = engine.StateIdle
		e.emitState()
	}
}

// Prepare implements engine.RichEngine.
func (e *Rich) Prepare() {
	e.record("prepare")
	if e.released || e.source == nil {
		return
	}
	e.selector.SetMappedTrackInfo(&engine.MappedTrackInfo{Renderers: e.opts.Renderers})
	e.windows = e.opts.Windows
	if len(e.windows) == 0 {
		e.windows = []media.Window{{ID: e.source.URI, DurationMs: e.opts.DurationMs, IsSeekable: true}}
	}
	e.setState(engine.StateBuffering)
	if e.opts.AutoAdvance {
		e.schedule(e.opts.PrepareDelay, e.becomeReady)
	}
}

// Stop implements engine.RichEngine.
func (e *Rich) Stop() {
	e.record("stop")
	e.cancelPending()
	e.ticker.Stop()
	e.windows = nil
	e.setState(engine.StateIdle)
}

// Release implements engine.RichEngine.
func (e *Rich) Release() error {
	e.record("release")
	e.cancelPending()
	e.ticker.Stop()
	e.released = true
	e.listeners = nil
	e.surface = nil
	if err := e.releaseErr; err != nil {
		e.releaseErr = nil
		return err
	}
	return nil
}

// SetPlayWhenReady implements engine.RichEngine.
func (e *Rich) SetPlayWhenReady(playWhenReady bool) {
	e.record("play_when_ready(%t)", playWhenReady)
	if e.playWhenReady == playWhenReady {
		return
	}
	e.playWhenReady = playWhenReady
	e.emitState()
	e.updateTicker()
}

// PlayWhenReady implements engine.RichEngine.
func (e *Rich) PlayWhenReady() bool { return e.playWhenReady }

// State implements engine.RichEngine.
func (e *Rich) State() engine.State { return e.state }

// SeekTo implements engine.RichEngine.
func (e *Rich) SeekTo(positionMs int64) {
	e.record("seek(%d)", positionMs)
	e.positionMs = min(max(positionMs, 0), e.opts.DurationMs)
	if e.state == engine.StateIdle {
		return
	}
	e.setState(engine.StateBuffering)
	if e.opts.AutoAdvance {
		e.schedule(e.opts.SeekDelay, func() { e.setState(engine.StateReady) })
	}
}

// PositionMs implements engine.RichEngine.
func (e *Rich) PositionMs() int64 { return e.positionMs }

// DurationMs implements engine.RichEngine.
func (e *Rich) DurationMs() int64 {
	if e.source == nil {
		return 0
	}
	return e.opts.DurationMs
}

// BufferedPercent implements engine.RichEngine.
func (e *Rich) BufferedPercent() int { return e.buffered }

// SetSpeed implements engine.RichEngine.
func (e *Rich) SetSpeed(speed float32) {
	e.record("speed(%g)", speed)
	e.speed = speed
}

// Speed implements engine.RichEngine.
func (e *Rich) Speed() float32 { return e.speed }

// SetVolume implements engine.RichEngine.
func (e *Rich) SetVolume(volume float32) {
	e.record("volume(%g)", volume)
	e.volume = volume
}

// Volume implements engine.RichEngine.
func (e *Rich) Volume() float32 { return e.volume }

// SetRepeatMode implements engine.RichEngine.
func (e *Rich) SetRepeatMode(mode playback.RepeatMode) {
	e.record("repeat(%s)", mode)
	e.repeat = mode
}

// SetSurface implements engine.RichEngine.
func (e *Rich) SetSurface(s *media.Surface) {
	if s == nil {
		e.record("surface(nil)")
	} else {
		e.record("surface(%s)", s.Name)
	}
	e.surface = s
}

// Surface returns the bound surface.
func (e *Rich) Surface() *media.Surface { return e.surface }

// WindowCount implements engine.RichEngine.
func (e *Rich) WindowCount() int { return len(e.windows) }

// CurrentWindowIndex implements engine.RichEngine.
func (e *Rich) CurrentWindowIndex() int { return 0 }

// PreviousWindowIndex implements engine.RichEngine.
func (e *Rich) PreviousWindowIndex() int { return -1 }

// NextWindowIndex implements engine.RichEngine.
func (e *Rich) NextWindowIndex() int {
	if len(e.windows) > 1 {
		return 1
	}
	return -1
}

// Window implements engine.RichEngine.
func (e *Rich) Window(index int) (media.Window, bool) {
	if index < 0 || index >= len(e.windows) {
		return media.Window{}, false
	}
	return e.windows[index], true
}

// TrackSelector implements engine.RichEngine.
func (e *Rich) TrackSelector() engine.TrackSelector { return e.selector }

// Selector returns the concrete selector for assertions.
func (e *Rich) Selector() *engine.DefaultTrackSelector { return e.selector }

// SetEngineState moves the engine to state and reports it.
func (e *Rich) SetEngineState(state engine.State) {
	if state == engine.StateReady {
		e.buffered = e.readyBuffer()
	}
	e.setState(state)
	e.updateTicker()
}

// SetBufferedPercent sets the value returned by BufferedPercent.
func (e *Rich) SetBufferedPercent(percent int) { e.buffered = percent }

// Complete plays to the end.
func (e *Rich) Complete() {
	e.positionMs = e.opts.DurationMs
	e.ticker.Stop()
	e.setState(engine.StateEnded)
}

// Fail reports err and drops back to idle.
func (e *Rich) Fail(err error) {
	e.cancelPending()
	e.ticker.Stop()
	e.handler.Post(func() {
		for _, l := range e.snapshot() {
			l.OnPlayerError(err)
		}
	})
	e.setState(engine.StateIdle)
}

// EmitVideoSize reports a video size change.
func (e *Rich) EmitVideoSize(width, height int) {
	e.post(func(l engine.RichListener) { l.OnVideoSizeChanged(width, height, 0, 1) })
}

// EmitMetadata reports timed metadata.
func (e *Rich) EmitMetadata(md media.Metadata) {
	e.post(func(l engine.RichListener) { l.OnMetadata(md) })
}

// EmitAnalytics reports an analytics event.
func (e *Rich) EmitAnalytics(name, detail string) {
	ev := engine.AnalyticsEvent{Name: name, Time: time.Now(), PositionMs: e.positionMs, Detail: detail}
	e.post(func(l engine.RichListener) { l.OnAnalyticsEvent(ev) })
}

func (e *Rich) becomeReady() {
	e.buffered = e.readyBuffer()
	e.setState(engine.StateReady)
	e.updateTicker()
}

func (e *Rich) readyBuffer() int {
	if e.opts.BufferedPercent > 0 {
		return e.opts.BufferedPercent
	}
	return 100
}

func (e *Rich) tick() {
	if e.state != engine.StateReady || !e.playWhenReady {
		return
	}
	e.positionMs += int64(float32(DefaultTickInterval.Milliseconds()) * e.speed)
	if e.positionMs < e.opts.DurationMs {
		return
	}
	if e.repeat != playback.RepeatOff {
		e.positionMs = 0
		return
	}
	e.Complete()
}

func (e *Rich) updateTicker() {
	if e.opts.AutoAdvance && e.state == engine.StateReady && e.playWhenReady {
		e.ticker.Start()
		return
	}
	e.ticker.Stop()
}

func (e *Rich) setState(state engine.State) {
	if e.released || e.state == state {
		return
	}
	e.state = state
	e.emitState()
}

// emitState posts a change notification. Listeners read the current state
// when the notification runs, as the wrapped engine's listeners do.
func (e *Rich) emitState() {
	if e.released {
		return
	}
	e.post(func(l engine.RichListener) { l.OnPlayerStateChanged(e.playWhenReady, e.state) })
}

func (e *Rich) post(fn func(l engine.RichListener)) {
	e.handler.Post(func() {
		for _, l := range e.snapshot() {
			fn(l)
		}
	})
}

func (e *Rich) snapshot() []engine.RichListener {
	return append([]engine.RichListener(nil), e.listeners...)
}

func (e *Rich) schedule(d time.Duration, fn func()) {
	e.cancelPending()
	e.pending = e.handler.PostDelayed(d, func() {
		e.pending = nil
		fn()
	})
}

func (e *Rich) cancelPending() {
	if e.pending != nil {
		e.pending()
		e.pending = nil
	}
}

func (e *Rich) record(format string, args ...any) {
	e.ops = append(e.ops, fmt.Sprintf(format, args...))
}
