// Package rich implements the player backend on top of the full-featured
// engine: adaptive streaming, multiple renderers per type and a timeline.
package rich

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playmux/internal/app/listenermux"
	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/app/statestore"
	"github.com/osa030/playmux/internal/app/trackmgr"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/domain/track"
	"github.com/osa030/playmux/internal/infra/engine"
)

const noSeek int64 = -1

// Player drives a RichEngine. Every method must be called from the main thread.
type Player struct {
	engine engine.RichEngine

	tracks *trackmgr.Manager
	store  *statestore.Store
	mux    *listenermux.Mux
	buffer *looper.Repeater

	// Source state
	source         *media.Source
	sourcePrepared bool
	stopped        bool
	released       bool
	pendingSeek    int64

	surface *media.Surface
}

// New creates a rich backend. bufferInterval is the buffered percentage poll
// interval; zero uses looper.DefaultRepeatInterval.
func New(eng engine.RichEngine, handler looper.Handler, bufferInterval time.Duration) *Player {
	p := &Player{
		engine:      eng,
		tracks:      trackmgr.New(eng.TrackSelector()),
		store:       statestore.New(),
		pendingSeek: noSeek,
	}
	p.buffer = looper.NewRepeater(handler, bufferInterval, p.pollBuffer)
	return p
}

// SetListenerMux wires the engine events to mux, unwiring the previous mux first.
func (p *Player) SetListenerMux(mux *listenermux.Mux) {
	if p.mux != nil {
		p.engine.RemoveListener(p)
	}
	p.mux = mux
	if mux != nil && !p.released {
		p.engine.AddListener(p)
	}
}

// SetMedia loads item and starts preparing it. A nil or empty item unloads
// the current source.
func (p *Player) SetMedia(item *media.Item) {
	if p.released {
		return
	}
	if p.mux != nil {
		p.mux.SetNotifiedPrepared(false)
		p.mux.SetNotifiedCompleted(false)
	}

	src, ok := item.Resolve()
	if !ok {
		zlog.Debug().Msg("rich: clearing media source")
		p.unload()
		return
	}
	zlog.Debug().Msgf("rich: set media uri=%s type=%s", src.URI, src.Type)
	p.source = &src
	p.sourcePrepared = false
	p.prepare()
}

// Start plays the loaded media, preparing it again after a stop.
func (p *Player) Start() {
	if p.released {
		return
	}
	if p.stopped {
		p.forcePrepare()
	}
	p.engine.SetPlayWhenReady(true)
	if p.mux != nil {
		p.mux.SetNotifiedCompleted(false)
	}
}

// Pause keeps the media loaded but stops rendering.
func (p *Player) Pause() {
	if p.released {
		return
	}
	p.engine.SetPlayWhenReady(false)
}

// Stop halts playback. Calling it again before the next prepare does nothing.
func (p *Player) Stop() {
	if p.released || p.stopped {
		return
	}
	p.stopped = true
	p.buffer.Stop()
	if p.mux != nil {
		p.mux.OnStopRequested()
	}
	p.engine.SetPlayWhenReady(false)
	p.engine.Stop()
}

// StopPlayback stops and, when clearSurface is set, blanks the bound surface
// once the engine is idle.
func (p *Player) StopPlayback(clearSurface bool) {
	p.Stop()
	if clearSurface && p.mux != nil && p.surface != nil {
		p.mux.ClearSurfaceWhenReady(p.surface)
	}
}

// Reset stops playback and unloads the source.
func (p *Player) Reset() {
	if p.released {
		return
	}
	p.unload()
}

// Release tears the engine down. It is safe to call more than once.
func (p *Player) Release() {
	if p.released {
		return
	}
	p.released = true
	p.buffer.Stop()
	p.engine.RemoveListener(p)

	if err := p.engine.Release(); err != nil {
		zlog.Warn().Err(err).Msg("rich: engine release failed")
	}
	if p.mux != nil {
		p.mux.Release()
	}
	p.source = nil
	p.surface = nil
}

// Restart plays the media again from the beginning. It only succeeds while
// the engine is idle or ended.
func (p *Player) Restart() bool {
	if p.released || p.source == nil {
		return false
	}
	state := p.engine.State()
	if state != engine.StateIdle && state != engine.StateEnded {
		return false
	}

	if p.mux != nil {
		p.mux.SetNotifiedCompleted(false)
		p.mux.SetNotifiedPrepared(false)
	}
	p.pendingSeek = 0
	p.engine.SetPlayWhenReady(true)
	p.forcePrepare()
	return true
}

// SeekTo moves to positionMs. Without a prepared source, or while stopped,
// the request is kept and applied by the next prepare.
func (p *Player) SeekTo(positionMs int64) {
	if p.released {
		return
	}
	if p.source == nil || !p.sourcePrepared || p.stopped {
		p.pendingSeek = positionMs
		return
	}
	p.seek(positionMs)
}

// IsPlaying reports whether playback is requested.
func (p *Player) IsPlaying() bool {
	return !p.released && p.engine.PlayWhenReady()
}

// CurrentPositionMs returns the engine position.
func (p *Player) CurrentPositionMs() int64 {
	if p.released || !p.sourcePrepared {
		return 0
	}
	return p.engine.PositionMs()
}

// DurationMs returns the media duration.
func (p *Player) DurationMs() int64 {
	if p.released || !p.sourcePrepared {
		return 0
	}
	return p.engine.DurationMs()
}

// BufferedPercent returns the buffered share of the media.
func (p *Player) BufferedPercent() int {
	if p.released {
		return 0
	}
	return p.engine.BufferedPercent()
}

// Volume returns the output volume in [0,1].
func (p *Player) Volume() float32 {
	return p.engine.Volume()
}

// SetVolume sets the output volume.
func (p *Player) SetVolume(volume float32) bool {
	if p.released {
		return false
	}
	p.engine.SetVolume(min(max(volume, 0), 1))
	return true
}

// PlaybackSpeed returns the current speed.
func (p *Player) PlaybackSpeed() float32 {
	return p.engine.Speed()
}

// SetPlaybackSpeed always succeeds on this backend.
func (p *Player) SetPlaybackSpeed(speed float32) bool {
	if p.released {
		return false
	}
	p.engine.SetSpeed(speed)
	return true
}

// SetRepeatMode sets the engine repeat mode.
func (p *Player) SetRepeatMode(mode playback.RepeatMode) {
	if p.released {
		return
	}
	p.engine.SetRepeatMode(mode)
}

// WindowInfo returns the timeline around the current window, nil when no
// timeline is loaded.
func (p *Player) WindowInfo() *media.WindowInfo {
	if p.released || p.engine.WindowCount() == 0 {
		return nil
	}
	current := p.engine.CurrentWindowIndex()
	w, ok := p.engine.Window(current)
	if !ok {
		return nil
	}
	return &media.WindowInfo{
		PreviousIndex: p.engine.PreviousWindowIndex(),
		CurrentIndex:  current,
		NextIndex:     p.engine.NextWindowIndex(),
		Current:       w,
	}
}

// SetSurface binds the video output.
func (p *Player) SetSurface(s *media.Surface) error {
	if s == nil {
		return media.ErrNilSurface
	}
	p.surface = s
	p.engine.SetSurface(s)
	return nil
}

// ClearSurface unbinds the video output.
func (p *Player) ClearSurface() {
	p.surface = nil
	if !p.released {
		p.engine.SetSurface(nil)
	}
}

// AvailableTracks returns the track groups of every renderer type.
func (p *Player) AvailableTracks() track.Map {
	return p.tracks.AvailableTracks()
}

// SelectedTrackIndex returns the pinned track of a group, -1 when none.
func (p *Player) SelectedTrackIndex(rendererType track.RendererType, groupIndex int) int {
	return p.tracks.SelectedTrackIndex(rendererType, groupIndex)
}

// SetSelectedTrack pins a track of a logical group.
func (p *Player) SetSelectedTrack(rendererType track.RendererType, groupIndex, trackIndex int) {
	p.tracks.SetSelectedTrack(rendererType, groupIndex, trackIndex)
}

// ClearSelectedTracks restores automatic selection for a renderer type.
func (p *Player) ClearSelectedTracks(rendererType track.RendererType) {
	p.tracks.ClearSelectedTracks(rendererType)
}

// SetRendererEnabled enables or disables every renderer of a type.
func (p *Player) SetRendererEnabled(rendererType track.RendererType, enabled bool) {
	p.tracks.SetRendererEnabled(rendererType, enabled)
}

// IsRendererEnabled reports whether any renderer of a type is enabled.
func (p *Player) IsRendererEnabled(rendererType track.RendererType) bool {
	return p.tracks.IsRendererEnabled(rendererType)
}

// OnPlayerStateChanged implements engine.RichListener.
func (p *Player) OnPlayerStateChanged(bool, engine.State) {
	p.reportPlayerState()
}

// OnPlayerError implements engine.RichListener.
func (p *Player) OnPlayerError(err error) {
	if p.mux == nil || p.released {
		return
	}
	p.mux.OnError(playback.NewEngineError(err))
}

// OnVideoSizeChanged implements engine.RichListener.
func (p *Player) OnVideoSizeChanged(width, height, rotation int, pixelRatio float32) {
	if p.mux != nil {
		p.mux.OnVideoSizeChanged(width, height, rotation, pixelRatio)
	}
}

// OnMetadata implements engine.RichListener.
func (p *Player) OnMetadata(md media.Metadata) {
	if p.mux != nil {
		p.mux.OnMetadata(md)
	}
}

// OnAnalyticsEvent implements engine.RichListener.
func (p *Player) OnAnalyticsEvent(e engine.AnalyticsEvent) {
	if p.mux != nil {
		p.mux.OnAnalyticsEvent(e)
	}
}

// reportPlayerState forwards the engine state when its composite changed
// and detects the end of a seek from the recent history.
func (p *Player) reportPlayerState() {
	if p.released {
		return
	}
	playWhenReady := p.engine.PlayWhenReady()
	state := p.engine.State()

	if !p.store.SetMostRecentState(playWhenReady, state) {
		return
	}

	switch state {
	case engine.StateReady:
		p.buffer.Start()
	case engine.StateIdle, engine.StateEnded:
		p.buffer.Stop()
	}

	if p.mux == nil {
		return
	}
	p.mux.OnStateChanged(playWhenReady, state)
	if p.store.SeekCompleted() {
		p.mux.OnSeekComplete()
	}
}

func (p *Player) prepare() {
	if p.sourcePrepared || p.source == nil {
		return
	}
	p.store.Reset()
	p.engine.SetSource(p.source)
	p.engine.Prepare()
	p.sourcePrepared = true
	p.stopped = false

	if p.pendingSeek != noSeek {
		p.seek(p.pendingSeek)
		p.pendingSeek = noSeek
	}
}

func (p *Player) forcePrepare() {
	p.sourcePrepared = false
	p.prepare()
}

func (p *Player) seek(positionMs int64) {
	p.store.SetMostRecentState(p.store.LastReportedPlayWhenReady(), statestore.StateSeeking)
	if p.mux != nil {
		p.mux.OnPlaybackStateChanged(playback.StateSeeking)
	}
	p.engine.SeekTo(positionMs)
}

func (p *Player) unload() {
	p.buffer.Stop()
	if p.source != nil && !p.stopped {
		p.engine.SetPlayWhenReady(false)
		p.engine.Stop()
	}
	p.engine.SetSource(nil)
	p.source = nil
	p.sourcePrepared = false
	p.stopped = false
	p.store.Reset()
	if p.mux != nil {
		p.mux.OnPlaybackStateChanged(playback.StateIdle)
	}
}

func (p *Player) pollBuffer() {
	if p.mux == nil || p.released {
		return
	}
	p.mux.OnBufferingUpdate(p.engine.BufferedPercent())
}
