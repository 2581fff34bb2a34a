// Package listenermux reconciles the raw events of whichever backend is
// active into one playback state and fans them out to single-slot listeners.
package listenermux

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/infra/engine"
)

// DefaultCompletionLeeway is how far from the end a completion is still accepted.
const DefaultCompletionLeeway = time.Second

// Options tunes the mux.
type Options struct {
	// CompletionLeeway is passed to Notifier.ShouldNotifyCompletion.
	CompletionLeeway time.Duration
	// PreparedRequiresPlayWhenReady only counts a ready report as prepared
	// when playWhenReady is set.
	PreparedRequiresPlayWhenReady bool
}

// Mux is the single subscriber of one backend. Every method must be called
// from the main thread.
type Mux struct {
	handler  looper.Handler
	notifier Notifier
	opts     Options

	// Listener slots, the last assignment wins.
	onPrepared     func()
	onCompletion   func()
	onBufferUpdate func(percent int)
	onSeekComplete func()
	onError        func(err error) bool
	onMetadata     func(m media.Metadata)
	onAnalytics    func(e engine.AnalyticsEvent)
	onStateChanged func(state playback.State)

	state             playback.State
	prepared          bool
	notifiedCompleted bool
	hasPlayed         bool

	// Bumped to drop posted notifications of an earlier session.
	preparedGen  uint64
	completedGen uint64

	clearRequested bool
	surface        SurfaceRef
	// engineIdle is set once the engine has reported idle.
	engineIdle bool
}

// New creates a mux that posts notifications on handler.
func New(handler looper.Handler, notifier Notifier, opts Options) *Mux {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if opts.CompletionLeeway <= 0 {
		opts.CompletionLeeway = DefaultCompletionLeeway
	}
	return &Mux{
		handler:  handler,
		notifier: notifier,
		opts:     opts,
		state:      playback.StateIdle,
		engineIdle: true,
	}
}

// State returns the current playback state.
func (m *Mux) State() playback.State {
	return m.state
}

// IsPrepared reports whether prepared was notified for the current session.
func (m *Mux) IsPrepared() bool {
	return m.prepared
}

// NotifiedCompleted reports whether completion was notified for the current session.
func (m *Mux) NotifiedCompleted() bool {
	return m.notifiedCompleted
}

// SetNotifiedPrepared sets the prepared flag. Clearing it starts a new
// session: a posted but undelivered prepared notification is dropped.
func (m *Mux) SetNotifiedPrepared(notified bool) {
	m.prepared = notified
	if !notified {
		m.preparedGen++
		m.hasPlayed = false
	}
	m.notifier.OnPreviewImageStateChanged(!notified)
}

// SetNotifiedCompleted sets the completed flag. Clearing it drops a posted
// but undelivered completion notification.
func (m *Mux) SetNotifiedCompleted(notified bool) {
	m.notifiedCompleted = notified
	if !notified {
		m.completedGen++
	}
}

// ClearSurfaceWhenReady blanks s once the engine reports idle. The mux does
// not keep s alive.
func (m *Mux) ClearSurfaceWhenReady(s *media.Surface) {
	m.ClearSurfaceRefWhenReady(WeakSurface(s))
}

// ClearSurfaceRefWhenReady is ClearSurfaceWhenReady for an existing reference.
func (m *Mux) ClearSurfaceRefWhenReady(ref SurfaceRef) {
	m.clearRequested = true
	m.surface = ref
	if m.engineIdle && (m.state == playback.StateIdle || m.state == playback.StateStopped) {
		m.clearSurfaceIfRequested()
	}
}

// OnStopRequested reports STOPPED ahead of the engine. A surface clear
// requested now waits for the engine's idle report.
func (m *Mux) OnStopRequested() {
	if m.state.IsTerminal() {
		return
	}
	m.engineIdle = false
	m.setState(playback.StateStopped)
}

// Release moves to the terminal state and drops every listener.
func (m *Mux) Release() {
	m.setState(playback.StateReleased)
	m.preparedGen++
	m.completedGen++
	m.clearRequested = false
	m.surface = nil

	m.onPrepared = nil
	m.onCompletion = nil
	m.onBufferUpdate = nil
	m.onSeekComplete = nil
	m.onError = nil
	m.onMetadata = nil
	m.onAnalytics = nil
	m.onStateChanged = nil
}

// OnStateChanged handles a (playWhenReady, engine state) report of the rich backend.
func (m *Mux) OnStateChanged(playWhenReady bool, state engine.State) {
	if m.state.IsTerminal() {
		return
	}
	m.engineIdle = state == engine.StateIdle

	switch state {
	case engine.StateEnded:
		m.notifier.OnMediaPlaybackEnded()
		if !m.prepared {
			m.notifyPrepared()
		}
		m.setState(playback.StateCompleted)
		if !m.notifiedCompleted {
			m.notifyCompletion()
		}
	case engine.StateReady:
		if !m.prepared && (playWhenReady || !m.opts.PreparedRequiresPlayWhenReady) {
			m.notifyPrepared()
		}
		m.setState(m.readyState(playWhenReady))
	case engine.StateBuffering:
		m.setState(m.bufferingState())
	case engine.StateIdle:
		switch m.state {
		case playback.StateStopped, playback.StateError:
		default:
			m.setState(playback.StateIdle)
		}
		m.clearSurfaceIfRequested()
	}
}

// OnPlaybackStateChanged handles a state the backend resolved itself. IDLE
// and STOPPED count as the engine having gone idle.
func (m *Mux) OnPlaybackStateChanged(state playback.State) {
	if m.state.IsTerminal() {
		return
	}
	if state == playback.StatePlaying {
		m.hasPlayed = true
	}
	m.setState(state)

	if state == playback.StateIdle || state == playback.StateStopped {
		m.engineIdle = true
		m.clearSurfaceIfRequested()
	}
}

// OnPrepared handles the fallback backend's prepared callback.
func (m *Mux) OnPrepared() {
	if m.state.IsTerminal() || m.prepared {
		return
	}
	m.notifyPrepared()
}

// OnCompletion handles the fallback backend's completion callback.
func (m *Mux) OnCompletion() {
	if m.state.IsTerminal() {
		return
	}
	if !m.prepared {
		m.notifyPrepared()
	}
	m.setState(playback.StateCompleted)
	if !m.notifiedCompleted {
		m.notifyCompletion()
	}
}

// OnError handles a media failure. Playback ends whether or not a listener
// consumes the error.
func (m *Mux) OnError(err error) {
	if m.state.IsTerminal() {
		return
	}
	m.setState(playback.StateError)

	m.notifier.OnMediaPlaybackEnded()
	m.notifier.OnPlaybackError(err)

	handled := false
	if m.onError != nil {
		handled = m.onError(err)
	}
	zlog.Error().Err(err).Bool("handled", handled).Msg("mux: playback error")
}

// OnSeekComplete passes a finished seek through.
func (m *Mux) OnSeekComplete() {
	m.notifier.OnSeekComplete()
	if m.onSeekComplete != nil {
		m.onSeekComplete()
	}
}

// OnBufferingUpdate passes the buffered percentage through, clamped to [0,100].
func (m *Mux) OnBufferingUpdate(percent int) {
	percent = min(max(percent, 0), 100)
	m.notifier.OnBufferUpdated(percent)
	if m.onBufferUpdate != nil {
		m.onBufferUpdate(percent)
	}
}

// OnVideoSizeChanged passes a video size change to the owner.
func (m *Mux) OnVideoSizeChanged(width, height, rotation int, pixelRatio float32) {
	m.notifier.OnVideoSizeChanged(width, height, rotation, pixelRatio)
}

// OnMetadata passes timed metadata through.
func (m *Mux) OnMetadata(md media.Metadata) {
	if m.onMetadata != nil {
		m.onMetadata(md)
	}
}

// OnAnalyticsEvent passes an analytics event through.
func (m *Mux) OnAnalyticsEvent(e engine.AnalyticsEvent) {
	if m.onAnalytics != nil {
		m.onAnalytics(e)
	}
}

// SetOnPreparedListener sets the prepared slot.
func (m *Mux) SetOnPreparedListener(fn func()) { m.onPrepared = fn }

// SetOnCompletionListener sets the completion slot.
func (m *Mux) SetOnCompletionListener(fn func()) { m.onCompletion = fn }

// SetOnBufferUpdateListener sets the buffer slot.
func (m *Mux) SetOnBufferUpdateListener(fn func(percent int)) { m.onBufferUpdate = fn }

// SetOnSeekCompletionListener sets the seek slot.
func (m *Mux) SetOnSeekCompletionListener(fn func()) { m.onSeekComplete = fn }

// SetOnErrorListener sets the error slot. fn returns true when it handled the error.
func (m *Mux) SetOnErrorListener(fn func(err error) bool) { m.onError = fn }

// SetMetadataListener sets the metadata slot.
func (m *Mux) SetMetadataListener(fn func(md media.Metadata)) { m.onMetadata = fn }

// SetAnalyticsListener sets the analytics slot.
func (m *Mux) SetAnalyticsListener(fn func(e engine.AnalyticsEvent)) { m.onAnalytics = fn }

// SetOnPlaybackStateChangeListener sets the state slot.
func (m *Mux) SetOnPlaybackStateChangeListener(fn func(state playback.State)) {
	m.onStateChanged = fn
}

func (m *Mux) readyState(playWhenReady bool) playback.State {
	if playWhenReady {
		m.hasPlayed = true
		return playback.StatePlaying
	}
	if m.hasPlayed {
		return playback.StatePaused
	}
	return playback.StateReady
}

func (m *Mux) bufferingState() playback.State {
	if !m.prepared {
		return playback.StatePreparing
	}
	if m.state == playback.StateSeeking {
		return playback.StateSeeking
	}
	return playback.StateBuffering
}

func (m *Mux) setState(state playback.State) {
	if m.state == state {
		return
	}
	prev := m.state
	m.state = state
	zlog.Debug().Msgf("mux: state %s -> %s", prev, state)

	if m.onStateChanged != nil {
		m.onStateChanged(state)
	}
}

func (m *Mux) notifyPrepared() {
	m.prepared = true
	gen := m.preparedGen
	m.handler.Post(func() {
		if gen != m.preparedGen {
			return
		}
		m.notifier.OnPrepared()
		if m.onPrepared != nil {
			m.onPrepared()
		}
	})
}

func (m *Mux) notifyCompletion() {
	m.notifiedCompleted = true
	gen := m.completedGen
	m.handler.Post(func() {
		if gen != m.completedGen {
			return
		}
		if !m.notifier.ShouldNotifyCompletion(m.opts.CompletionLeeway) {
			zlog.Debug().Msg("mux: completion suppressed, position is not at the end")
			m.notifiedCompleted = false
			return
		}
		m.notifier.OnMediaPlaybackEnded()
		if m.onCompletion != nil {
			m.onCompletion()
		}
	})
}

func (m *Mux) clearSurfaceIfRequested() {
	if !m.clearRequested {
		return
	}
	m.clearRequested = false

	ref := m.surface
	m.surface = nil
	if ref == nil {
		return
	}
	if s, ok := ref.Get(); ok {
		s.Clear()
	}
}
