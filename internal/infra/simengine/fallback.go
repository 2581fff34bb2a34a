package simengine

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/infra/engine"
)

// ErrIllegalState is returned for a call the native engine rejects in its current state.
var ErrIllegalState = errors.New("illegal engine state")

type nativeState int

const (
	nativeIdle nativeState = iota
	nativeInitialized
	nativePreparing
	nativePrepared
	nativeStarted
	nativePaused
	nativeStopped
	nativeCompleted
	nativeError
	nativeReleased
)

var nativeStateNames = map[nativeState]string{
	nativeIdle:        "idle",
	nativeInitialized: "initialized",
	nativePreparing:   "preparing",
	nativePrepared:    "prepared",
	nativeStarted:     "started",
	nativePaused:      "paused",
	nativeStopped:     "stopped",
	nativeCompleted:   "completed",
	nativeError:       "error",
	nativeReleased:    "released",
}

func (s nativeState) String() string {
	if name, ok := nativeStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// FallbackOptions configures a Fallback engine.
type FallbackOptions struct {
	DurationMs int64
	// AutoAdvance makes the engine finish preparing and seeking on its own
	// and play through to the end.
	AutoAdvance   bool
	PrepareDelay  time.Duration
	SeekDelay     time.Duration
	SupportsSpeed bool
	VideoWidth    int
	VideoHeight   int
}

// Fallback is a scripted engine.FallbackEngine following the native
// player's state diagram. Callbacks are posted on the handler.
type Fallback struct {
	handler  looper.Handler
	opts     FallbackOptions
	listener engine.FallbackListener
	ticker   *looper.Repeater

	state      nativeState
	uri        string
	headers    map[string]string
	positionMs int64
	stalled    bool
	looping    bool
	speed      float32
	left       float32
	right      float32
	releaseErr error
	pending    func()

	ops []string
}

// NewFallback creates an idle engine.
func NewFallback(handler looper.Handler, opts FallbackOptions) *Fallback {
	e := &Fallback{handler: handler, opts: opts, speed: 1, left: 1, right: 1}
	e.ticker = looper.NewRepeater(handler, DefaultTickInterval, e.tick)
	return e
}

// Ops returns the control calls received so far, in order.
func (e *Fallback) Ops() []string {
	return append([]string(nil), e.ops...)
}

// SetReleaseError makes the next Release fail with err.
func (e *Fallback) SetReleaseError(err error) {
	e.releaseErr = err
}

// HasListener reports whether a listener is attached.
func (e *Fallback) HasListener() bool {
	return e.listener != nil
}

// SetListener implements engine.FallbackEngine.
func (e *Fallback) SetListener(l engine.FallbackListener) {
	e.listener = l
}

// SetDataSource implements engine.FallbackEngine.
func (e *Fallback) SetDataSource(uri string, headers map[string]string) error {
	e.record("set_data_source(%s)", uri)
	if e.state != nativeIdle {
		return errors.Wrapf(ErrIllegalState, "set data source in state %s", e.state)
	}
	e.uri = uri
	e.headers = headers
	e.state = nativeInitialized
	return nil
}

// PrepareAsync implements engine.FallbackEngine.
func (e *Fallback) PrepareAsync() error {
	e.record("prepare_async")
	if e.state != nativeInitialized && e.state != nativeStopped {
		return errors.Wrapf(ErrIllegalState, "prepare in state %s", e.state)
	}
	e.state = nativePreparing
	if !e.opts.AutoAdvance {
		return nil
	}
	switch media.InferSourceType(e.uri) {
	case media.SourceDASH, media.SourceSmoothStreaming:
		e.schedule(e.opts.PrepareDelay, func() { e.Fail(engine.ErrorUnknown, engine.ErrorUnsupported) })
	default:
		e.schedule(e.opts.PrepareDelay, e.Prepared)
	}
	return nil
}

// Start implements engine.FallbackEngine.
func (e *Fallback) Start() error {
	e.record("start")
	switch e.state {
	case nativePrepared, nativePaused, nativeStarted:
	case nativeCompleted:
		e.positionMs = 0
	default:
		return errors.Wrapf(ErrIllegalState, "start in state %s", e.state)
	}
	e.state = nativeStarted
	e.stalled = false
	e.updateTicker()
	return nil
}

// Pause implements engine.FallbackEngine.
func (e *Fallback) Pause() error {
	e.record("pause")
	switch e.state {
	case nativeStarted, nativePaused:
	default:
		return errors.Wrapf(ErrIllegalState, "pause in state %s", e.state)
	}
	e.state = nativePaused
	e.updateTicker()
	return nil
}

// Stop implements engine.FallbackEngine.
func (e *Fallback) Stop() error {
	e.record("stop")
	switch e.state {
	case nativePrepared, nativeStarted, nativePaused, nativeCompleted, nativeStopped, nativePreparing:
	default:
		return errors.Wrapf(ErrIllegalState, "stop in state %s", e.state)
	}
	e.cancelPending()
	e.state = nativeStopped
	e.updateTicker()
	return nil
}

// Reset implements engine.FallbackEngine.
func (e *Fallback) Reset() {
	e.record("reset")
	if e.state == nativeReleased {
		return
	}
	e.cancelPending()
	e.state = nativeIdle
	e.uri = ""
	e.headers = nil
	e.positionMs = 0
	e.stalled = false
	e.updateTicker()
}

// Release implements engine.FallbackEngine.
func (e *Fallback) Release() error {
	e.record("release")
	e.cancelPending()
	e.state = nativeReleased
	e.listener = nil
	e.updateTicker()
	if err := e.releaseErr; err != nil {
		e.releaseErr = nil
		return err
	}
	return nil
}

// SeekTo implements engine.FallbackEngine.
func (e *Fallback) SeekTo(positionMs int64) error {
	e.record("seek(%d)", positionMs)
	if !e.seekable() {
		return errors.Wrapf(ErrIllegalState, "seek in state %s", e.state)
	}
	e.positionMs = min(max(positionMs, 0), e.opts.DurationMs)
	if e.opts.AutoAdvance {
		e.schedule(e.opts.SeekDelay, e.SeekComplete)
	}
	return nil
}

// IsPlaying implements engine.FallbackEngine.
func (e *Fallback) IsPlaying() bool {
	return e.state == nativeStarted && !e.stalled
}

// CurrentPositionMs implements engine.FallbackEngine.
func (e *Fallback) CurrentPositionMs() int64 { return e.positionMs }

// DurationMs implements engine.FallbackEngine.
func (e *Fallback) DurationMs() int64 {
	if !e.seekable() {
		return 0
	}
	return e.opts.DurationMs
}

// SetVolume implements engine.FallbackEngine.
func (e *Fallback) SetVolume(left, right float32) {
	e.record("volume(%g,%g)", left, right)
	e.left, e.right = left, right
}

// Volume returns the left and right channel volume.
func (e *Fallback) Volume() (left, right float32) { return e.left, e.right }

// SetLooping implements engine.FallbackEngine.
func (e *Fallback) SetLooping(looping bool) {
	e.record("looping(%t)", looping)
	e.looping = looping
}

// SupportsPlaybackSpeed implements engine.FallbackEngine.
func (e *Fallback) SupportsPlaybackSpeed() bool { return e.opts.SupportsSpeed }

// SetPlaybackSpeed implements engine.FallbackEngine.
func (e *Fallback) SetPlaybackSpeed(speed float32) error {
	e.record("speed(%g)", speed)
	if !e.opts.SupportsSpeed {
		return errors.New("playback speed is not supported")
	}
	e.speed = speed
	return nil
}

// Prepared finishes preparation.
func (e *Fallback) Prepared() {
	if e.state != nativePreparing {
		return
	}
	e.state = nativePrepared
	e.post(func(l engine.FallbackListener) { l.OnPrepared() })
	if e.opts.VideoWidth > 0 && e.opts.VideoHeight > 0 {
		w, h := e.opts.VideoWidth, e.opts.VideoHeight
		e.post(func(l engine.FallbackListener) { l.OnVideoSizeChanged(w, h) })
	}
}

// Complete plays to the end.
func (e *Fallback) Complete() {
	e.positionMs = e.opts.DurationMs
	e.state = nativeCompleted
	e.updateTicker()
	e.post(func(l engine.FallbackListener) { l.OnCompletion() })
}

// Fail moves the engine to its error state and reports what and extra.
func (e *Fallback) Fail(what, extra int) {
	e.cancelPending()
	e.state = nativeError
	e.updateTicker()
	e.post(func(l engine.FallbackListener) { l.OnError(what, extra) })
}

// SeekComplete reports the end of a seek.
func (e *Fallback) SeekComplete() {
	e.post(func(l engine.FallbackListener) { l.OnSeekComplete() })
}

// BufferingStart reports a stall. While stalled IsPlaying is false.
func (e *Fallback) BufferingStart() {
	e.stalled = true
	e.post(func(l engine.FallbackListener) { l.OnInfo(engine.InfoBufferingStart, 0) })
}

// BufferingEnd reports the end of a stall. resumed tells whether the engine
// resumes rendering by itself.
func (e *Fallback) BufferingEnd(resumed bool) {
	e.stalled = !resumed
	e.post(func(l engine.FallbackListener) { l.OnInfo(engine.InfoBufferingEnd, 0) })
}

// BufferingUpdate reports the buffered percentage.
func (e *Fallback) BufferingUpdate(percent int) {
	e.post(func(l engine.FallbackListener) { l.OnBufferingUpdate(percent) })
}

// EmitVideoSize reports a video size change.
func (e *Fallback) EmitVideoSize(width, height int) {
	e.post(func(l engine.FallbackListener) { l.OnVideoSizeChanged(width, height) })
}

func (e *Fallback) seekable() bool {
	switch e.state {
	case nativePrepared, nativeStarted, nativePaused, nativeCompleted:
		return true
	}
	return false
}

func (e *Fallback) tick() {
	if !e.IsPlaying() {
		return
	}
	e.positionMs += int64(float32(DefaultTickInterval.Milliseconds()) * e.speed)
	if e.positionMs < e.opts.DurationMs {
		return
	}
	if e.looping {
		e.positionMs = 0
		return
	}
	e.Complete()
}

func (e *Fallback) updateTicker() {
	if e.opts.AutoAdvance && e.state == nativeStarted {
		e.ticker.Start()
		return
	}
	e.ticker.Stop()
}

// post delivers to the listener attached when the callback runs.
func (e *Fallback) post(fn func(l engine.FallbackListener)) {
	e.handler.Post(func() {
		if e.listener != nil {
			fn(e.listener)
		}
	})
}

func (e *Fallback) schedule(d time.Duration, fn func()) {
	e.cancelPending()
	e.pending = e.handler.PostDelayed(d, func() {
		e.pending = nil
		fn()
	})
}

func (e *Fallback) cancelPending() {
	if e.pending != nil {
		e.pending()
		e.pending = nil
	}
}

func (e *Fallback) record(format string, args ...any) {
	e.ops = append(e.ops, fmt.Sprintf(format, args...))
}
