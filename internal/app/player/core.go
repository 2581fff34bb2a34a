// Package player provides the AudioPlayer and VideoView façades. Each owns
// one backend and the listener mux the backend reports to.
package player

import (
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playmux/internal/app/backend"
	"github.com/osa030/playmux/internal/app/listenermux"
	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/domain/track"
	"github.com/osa030/playmux/internal/infra/config"
	"github.com/osa030/playmux/internal/infra/engine"
)

// Options tunes a façade.
type Options struct {
	CompletionLeeway              time.Duration
	PreparedRequiresPlayWhenReady bool
	// Clock drives the overridden position. nil uses time.Now.
	Clock func() time.Time
}

// OptionsFromConfig converts the player section of the configuration.
func OptionsFromConfig(c config.PlayerConfig) Options {
	return Options{
		CompletionLeeway:              time.Duration(c.CompletionLeewayMs) * time.Millisecond,
		PreparedRequiresPlayWhenReady: c.PreparedRequiresPlayWhenReady,
	}
}

// hooks lets the video façade react to mux notifications.
type hooks struct {
	prepared  func()
	ended     func()
	preview   func(visible bool)
	videoSize func(width, height, rotation int, pixelRatio float32)
}

// core is the part shared by AudioPlayer and VideoView.
type core struct {
	api   backend.AudioPlayerAPI
	mux   *listenermux.Mux
	hooks hooks

	item      *media.Item
	sessionID uuid.UUID

	// Session overrides
	overriddenDurationMs int64
	overridePosition     bool
	positionOffsetMs     int64
	stopwatch            *StopWatch
}

func newCore(handler looper.Handler, api backend.AudioPlayerAPI, opts Options) *core {
	c := &core{
		api:                  api,
		overriddenDurationMs: -1,
		stopwatch:            NewStopWatch(opts.Clock),
	}
	c.mux = listenermux.New(handler, &notifier{c: c}, listenermux.Options{
		CompletionLeeway:              opts.CompletionLeeway,
		PreparedRequiresPlayWhenReady: opts.PreparedRequiresPlayWhenReady,
	})
	api.SetListenerMux(c.mux)
	return c
}

// SetMedia starts a new playback session for item. nil clears the media.
func (c *core) SetMedia(item *media.Item) {
	c.item = item
	c.sessionID = uuid.New()
	c.stopwatch.Reset()
	if src, ok := item.Resolve(); ok {
		zlog.Info().Str("session", c.sessionID.String()).Msgf("player: new session uri=%s", src.URI)
	}
	c.api.SetMedia(item)
}

// Media returns the item of the current session.
func (c *core) Media() *media.Item { return c.item }

// SessionID identifies the current playback session. It changes on every SetMedia.
func (c *core) SessionID() uuid.UUID { return c.sessionID }

// PlaybackState returns the reconciled playback state.
func (c *core) PlaybackState() playback.State { return c.mux.State() }

// Start begins or resumes playback.
func (c *core) Start() {
	c.api.Start()
	if c.overridePosition {
		c.stopwatch.Start()
	}
}

// Pause pauses playback.
func (c *core) Pause() {
	c.api.Pause()
	c.stopwatch.Stop()
}

// Reset stops playback and drops the media.
func (c *core) Reset() {
	c.stopwatch.Stop()
	c.stopwatch.Reset()
	c.item = nil
	c.api.Reset()
}

// Release frees the backend. The façade is unusable afterwards.
func (c *core) Release() {
	c.stopwatch.Stop()
	c.api.Release()
}

// Restart plays the current media again from the beginning. It fails
// unless playback is idle or completed.
func (c *core) Restart() bool {
	if c.item == nil {
		return false
	}
	if !c.api.Restart() {
		return false
	}
	c.stopwatch.Reset()
	return true
}

// SeekTo moves to positionMs of the media.
func (c *core) SeekTo(positionMs int64) {
	c.api.SeekTo(positionMs)
}

// IsPlaying reports whether playback is requested.
func (c *core) IsPlaying() bool { return c.api.IsPlaying() }

// CurrentPositionMs returns the position including the session offset, or
// the simulated position while the position is overridden.
func (c *core) CurrentPositionMs() int64 {
	if c.overridePosition {
		return c.positionOffsetMs + c.stopwatch.ElapsedMs()
	}
	return c.positionOffsetMs + c.api.CurrentPositionMs()
}

// DurationMs returns the overridden duration if one is set.
func (c *core) DurationMs() int64 {
	if c.overriddenDurationMs >= 0 {
		return c.overriddenDurationMs
	}
	return c.api.DurationMs()
}

// BufferedPercent returns the buffered share of the media.
func (c *core) BufferedPercent() int { return c.api.BufferedPercent() }

// OverrideDuration reports durationMs instead of the media duration. A
// negative value removes the override.
func (c *core) OverrideDuration(durationMs int64) {
	c.overriddenDurationMs = max(durationMs, -1)
}

// OverridePosition reports a simulated continuous position instead of the
// engine position while enabled.
func (c *core) OverridePosition(enabled bool) {
	c.overridePosition = enabled
	if enabled && c.api.IsPlaying() {
		c.stopwatch.Start()
		return
	}
	if !enabled {
		c.stopwatch.Stop()
	}
}

// RestartOverridePosition sets the simulated position back to zero.
func (c *core) RestartOverridePosition() {
	c.stopwatch.Reset()
}

// SetPositionOffset shifts every reported position by offsetMs.
func (c *core) SetPositionOffset(offsetMs int64) {
	c.positionOffsetMs = offsetMs
}

// Volume returns the output volume in [0,1].
func (c *core) Volume() float32 { return c.api.Volume() }

// SetVolume sets the output volume.
func (c *core) SetVolume(volume float32) bool { return c.api.SetVolume(volume) }

// PlaybackSpeed returns the current speed.
func (c *core) PlaybackSpeed() float32 { return c.api.PlaybackSpeed() }

// SetPlaybackSpeed changes the speed and reports whether the backend could.
func (c *core) SetPlaybackSpeed(speed float32) bool {
	if !c.api.SetPlaybackSpeed(speed) {
		return false
	}
	c.stopwatch.SetSpeedMultiplier(speed)
	return true
}

// SetRepeatMode sets the repeat mode.
func (c *core) SetRepeatMode(mode playback.RepeatMode) { c.api.SetRepeatMode(mode) }

// WindowInfo returns the timeline around the current window, nil without one.
func (c *core) WindowInfo() *media.WindowInfo { return c.api.WindowInfo() }

// AvailableTracks returns the track groups per renderer type.
func (c *core) AvailableTracks() track.Map { return c.api.AvailableTracks() }

// SelectedTrackIndex returns the pinned track of a group, -1 when none.
func (c *core) SelectedTrackIndex(rendererType track.RendererType, groupIndex int) int {
	return c.api.SelectedTrackIndex(rendererType, groupIndex)
}

// SetTrack pins trackIndex of the first group of rendererType.
func (c *core) SetTrack(rendererType track.RendererType, trackIndex int) {
	c.api.SetSelectedTrack(rendererType, 0, trackIndex)
}

// SetSelectedTrack pins trackIndex of a logical group.
func (c *core) SetSelectedTrack(rendererType track.RendererType, groupIndex, trackIndex int) {
	c.api.SetSelectedTrack(rendererType, groupIndex, trackIndex)
}

// ClearSelectedTracks restores automatic selection for rendererType.
func (c *core) ClearSelectedTracks(rendererType track.RendererType) {
	c.api.ClearSelectedTracks(rendererType)
}

// SetRendererEnabled enables or disables rendererType.
func (c *core) SetRendererEnabled(rendererType track.RendererType, enabled bool) {
	c.api.SetRendererEnabled(rendererType, enabled)
}

// IsRendererEnabled reports whether any renderer of rendererType is enabled.
func (c *core) IsRendererEnabled(rendererType track.RendererType) bool {
	return c.api.IsRendererEnabled(rendererType)
}

// SetOnPreparedListener sets the prepared listener.
func (c *core) SetOnPreparedListener(fn func()) { c.mux.SetOnPreparedListener(fn) }

// SetOnCompletionListener sets the completion listener.
func (c *core) SetOnCompletionListener(fn func()) { c.mux.SetOnCompletionListener(fn) }

// SetOnBufferUpdateListener sets the buffer listener.
func (c *core) SetOnBufferUpdateListener(fn func(percent int)) { c.mux.SetOnBufferUpdateListener(fn) }

// SetOnSeekCompletionListener sets the seek listener.
func (c *core) SetOnSeekCompletionListener(fn func()) { c.mux.SetOnSeekCompletionListener(fn) }

// SetOnErrorListener sets the error listener.
func (c *core) SetOnErrorListener(fn func(err error) bool) { c.mux.SetOnErrorListener(fn) }

// SetMetadataListener sets the metadata listener.
func (c *core) SetMetadataListener(fn func(md media.Metadata)) { c.mux.SetMetadataListener(fn) }

// SetAnalyticsListener sets the analytics listener.
func (c *core) SetAnalyticsListener(fn func(e engine.AnalyticsEvent)) {
	c.mux.SetAnalyticsListener(fn)
}

// SetOnPlaybackStateChangeListener sets the state listener.
func (c *core) SetOnPlaybackStateChangeListener(fn func(state playback.State)) {
	c.mux.SetOnPlaybackStateChangeListener(fn)
}

// notifier receives the mux notifications meant for the façade itself.
type notifier struct {
	listenermux.NopNotifier
	c *core
}

func (n *notifier) OnPrepared() {
	if n.c.hooks.prepared != nil {
		n.c.hooks.prepared()
	}
}

func (n *notifier) OnVideoSizeChanged(width, height, rotation int, pixelRatio float32) {
	if n.c.hooks.videoSize != nil {
		n.c.hooks.videoSize(width, height, rotation, pixelRatio)
	}
}

func (n *notifier) OnPreviewImageStateChanged(visible bool) {
	if n.c.hooks.preview != nil {
		n.c.hooks.preview(visible)
	}
}

func (n *notifier) ShouldNotifyCompletion(leeway time.Duration) bool {
	return n.c.CurrentPositionMs()+leeway.Milliseconds() >= n.c.DurationMs()
}

func (n *notifier) OnMediaPlaybackEnded() {
	n.c.stopwatch.Stop()
	if n.c.hooks.ended != nil {
		n.c.hooks.ended()
	}
}
