// Package fallback implements the player backend on top of the platform
// engine: one progressive source, one track and no timeline.
package fallback

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playmux/internal/app/listenermux"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/domain/track"
	"github.com/osa030/playmux/internal/infra/engine"
)

const noSeek int64 = -1

// phase is the backend's view of the native engine.
type phase int

const (
	phaseIdle phase = iota
	phasePreparing
	phasePrepared
	phasePlaying
	phasePaused
	phaseCompleted
	phaseStopped
	phaseError
)

// Player drives a FallbackEngine. Every method must be called from the main thread.
type Player struct {
	engine   engine.FallbackEngine
	settings Settings
	apiLevel int
	mux      *listenermux.Mux

	phase         phase
	source        *media.Source
	playRequested bool
	pendingSeek   int64
	seeking       bool
	bufferPercent int
	speed         float32
	volume        float32
	released      bool

	surface *media.Surface
}

// New creates a fallback backend for a platform at apiLevel.
func New(eng engine.FallbackEngine, settings Settings, apiLevel int) *Player {
	return &Player{
		engine:      eng,
		settings:    settings,
		apiLevel:    apiLevel,
		pendingSeek: noSeek,
		speed:       1,
		volume:      1,
	}
}

// SetListenerMux wires the engine callbacks to mux, unwiring the previous mux first.
func (p *Player) SetListenerMux(mux *listenermux.Mux) {
	p.engine.SetListener(nil)
	p.mux = mux
	if mux != nil && !p.released {
		p.engine.SetListener(p)
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
	p.bufferPercent = 0
	p.seeking = false

	src, ok := item.Resolve()
	if !ok {
		zlog.Debug().Msg("fallback: clearing media source")
		p.source = nil
		p.engine.Reset()
		p.setPhase(phaseIdle, playback.StateIdle)
		return
	}
	zlog.Debug().Msgf("fallback: set media uri=%s type=%s", src.URI, src.Type)
	p.source = &src
	p.engine.Reset()
	if err := p.engine.SetDataSource(src.URI, src.Headers); err != nil {
		p.fail(err)
		return
	}
	p.prepareAsync()
}

// Start plays the media. Before the media is prepared the request is kept
// and honoured once it is.
func (p *Player) Start() {
	if p.released {
		return
	}
	p.playRequested = true
	if p.mux != nil {
		p.mux.SetNotifiedCompleted(false)
	}

	switch p.phase {
	case phasePrepared, phasePaused, phasePlaying, phaseCompleted:
	case phaseStopped:
		p.prepareAsync()
		return
	default:
		return
	}
	if err := p.engine.Start(); err != nil {
		p.fail(err)
		return
	}
	p.setPhase(phasePlaying, playback.StatePlaying)
}

// Pause stops rendering and drops a pending start request.
func (p *Player) Pause() {
	if p.released {
		return
	}
	p.playRequested = false
	if p.phase != phasePlaying {
		return
	}
	if err := p.engine.Pause(); err != nil {
		zlog.Warn().Err(err).Msg("fallback: pause failed")
		return
	}
	p.setPhase(phasePaused, playback.StatePaused)
}

// Stop halts playback. The media has to be prepared again to play.
func (p *Player) Stop() {
	if p.released {
		return
	}
	p.playRequested = false
	switch p.phase {
	case phaseIdle, phaseStopped, phaseError:
		return
	}
	if err := p.engine.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("fallback: stop failed")
	}
	p.setPhase(phaseStopped, playback.StateStopped)
}

// StopPlayback stops and, when clearSurface is set, blanks the bound surface
// once the engine is idle.
func (p *Player) StopPlayback(clearSurface bool) {
	p.Stop()
	if clearSurface && p.mux != nil && p.surface != nil {
		p.mux.ClearSurfaceWhenReady(p.surface)
	}
}

// Reset returns the engine to idle and forgets the source.
func (p *Player) Reset() {
	if p.released {
		return
	}
	p.playRequested = false
	p.pendingSeek = noSeek
	p.source = nil
	p.engine.Reset()
	p.setPhase(phaseIdle, playback.StateIdle)
}

// Release tears the engine down. It is safe to call more than once.
func (p *Player) Release() {
	if p.released {
		return
	}
	p.released = true
	p.playRequested = false
	p.engine.SetListener(nil)

	if err := p.engine.Release(); err != nil {
		zlog.Warn().Err(err).Msg("fallback: engine release failed")
	}
	if p.mux != nil {
		p.mux.Release()
	}
	p.source = nil
	p.surface = nil
}

// Restart plays the media again from the beginning. It only succeeds after
// the media completed or while the engine is idle with a source loaded.
func (p *Player) Restart() bool {
	if p.released || p.source == nil {
		return false
	}
	switch p.phase {
	case phaseCompleted:
		if p.mux != nil {
			p.mux.SetNotifiedCompleted(false)
			p.mux.SetNotifiedPrepared(false)
		}
		p.SeekTo(0)
		p.Start()
		return true
	case phaseIdle, phaseStopped:
		if p.mux != nil {
			p.mux.SetNotifiedCompleted(false)
			p.mux.SetNotifiedPrepared(false)
		}
		p.playRequested = true
		p.pendingSeek = 0
		if p.phase == phaseIdle {
			p.engine.Reset()
			if err := p.engine.SetDataSource(p.source.URI, p.source.Headers); err != nil {
				p.fail(err)
				return true
			}
		}
		p.prepareAsync()
		return true
	}
	return false
}

// SeekTo moves to positionMs. Before the media is prepared the request is
// kept and applied once it is.
func (p *Player) SeekTo(positionMs int64) {
	if p.released {
		return
	}
	if !p.isReady() {
		p.pendingSeek = positionMs
		return
	}
	if err := p.engine.SeekTo(positionMs); err != nil {
		zlog.Warn().Err(err).Msg("fallback: seek failed")
		return
	}
	p.pendingSeek = noSeek
	p.seeking = true
	if p.mux != nil {
		p.mux.OnPlaybackStateChanged(playback.StateSeeking)
	}
}

// IsPlaying reports whether the engine is rendering.
func (p *Player) IsPlaying() bool {
	return !p.released && p.isReady() && p.engine.IsPlaying()
}

// CurrentPositionMs returns the engine position, 0 before prepare.
func (p *Player) CurrentPositionMs() int64 {
	if p.released || !p.isReady() {
		return 0
	}
	return p.engine.CurrentPositionMs()
}

// DurationMs returns the media duration, 0 before prepare.
func (p *Player) DurationMs() int64 {
	if p.released || !p.isReady() {
		return 0
	}
	return p.engine.DurationMs()
}

// BufferedPercent returns the last buffered percentage reported.
func (p *Player) BufferedPercent() int {
	return p.bufferPercent
}

// Volume returns the output volume in [0,1].
func (p *Player) Volume() float32 {
	return p.volume
}

// SetVolume sets both channels to volume.
func (p *Player) SetVolume(volume float32) bool {
	if p.released {
		return false
	}
	p.volume = min(max(volume, 0), 1)
	p.engine.SetVolume(p.volume, p.volume)
	return true
}

// PlaybackSpeed returns the current speed.
func (p *Player) PlaybackSpeed() float32 {
	return p.speed
}

// SetPlaybackSpeed changes the speed on platforms with native speed control
// and reports whether it did.
func (p *Player) SetPlaybackSpeed(speed float32) bool {
	if p.released {
		return false
	}
	if p.apiLevel < p.settings.MinSpeedAPILevel || !p.engine.SupportsPlaybackSpeed() {
		zlog.Debug().Msgf("fallback: playback speed unsupported at api level %d", p.apiLevel)
		return false
	}
	if err := p.engine.SetPlaybackSpeed(speed); err != nil {
		zlog.Warn().Err(err).Msg("fallback: set playback speed failed")
		return false
	}
	p.speed = speed
	return true
}

// SetRepeatMode loops the media for any mode but off.
func (p *Player) SetRepeatMode(mode playback.RepeatMode) {
	if p.released {
		return
	}
	p.engine.SetLooping(mode != playback.RepeatOff)
}

// WindowInfo is always nil, the platform engine has no timeline.
func (p *Player) WindowInfo() *media.WindowInfo {
	return nil
}

// SetSurface binds the video output.
func (p *Player) SetSurface(s *media.Surface) error {
	if s == nil {
		return media.ErrNilSurface
	}
	p.surface = s
	return nil
}

// ClearSurface unbinds the video output.
func (p *Player) ClearSurface() {
	p.surface = nil
}

// Track selection is not supported by the platform engine.

// AvailableTracks returns nil.
func (p *Player) AvailableTracks() track.Map { return nil }

// SelectedTrackIndex returns -1.
func (p *Player) SelectedTrackIndex(track.RendererType, int) int { return -1 }

// SetSelectedTrack does nothing.
func (p *Player) SetSelectedTrack(track.RendererType, int, int) {}

// ClearSelectedTracks does nothing.
func (p *Player) ClearSelectedTracks(track.RendererType) {}

// SetRendererEnabled does nothing.
func (p *Player) SetRendererEnabled(track.RendererType, bool) {}

// IsRendererEnabled returns false.
func (p *Player) IsRendererEnabled(track.RendererType) bool { return false }

// OnPrepared implements engine.FallbackListener.
func (p *Player) OnPrepared() {
	if p.released || p.phase != phasePreparing {
		return
	}
	p.setPhase(phasePrepared, playback.StateReady)
	if p.mux != nil {
		p.mux.OnPrepared()
	}

	if p.pendingSeek != noSeek && p.pendingSeek != 0 {
		p.SeekTo(p.pendingSeek)
	}
	p.pendingSeek = noSeek
	if p.playRequested {
		p.Start()
	}
}

// OnCompletion implements engine.FallbackListener.
func (p *Player) OnCompletion() {
	if p.released {
		return
	}
	p.phase = phaseCompleted
	p.playRequested = false
	if p.mux != nil {
		p.mux.OnCompletion()
	}
}

// OnError implements engine.FallbackListener.
func (p *Player) OnError(what, extra int) bool {
	if p.released {
		return true
	}
	p.phase = phaseError
	p.playRequested = false
	if p.mux != nil {
		p.mux.OnError(playback.NewNativeError(what, extra))
	}
	return true
}

// OnSeekComplete implements engine.FallbackListener.
func (p *Player) OnSeekComplete() {
	if p.released || p.mux == nil {
		return
	}
	p.mux.OnSeekComplete()
	if !p.seeking {
		return
	}
	p.seeking = false
	switch p.phase {
	case phasePlaying:
		p.mux.OnPlaybackStateChanged(playback.StatePlaying)
	case phasePaused:
		p.mux.OnPlaybackStateChanged(playback.StatePaused)
	case phasePrepared:
		p.mux.OnPlaybackStateChanged(playback.StateReady)
	case phaseCompleted:
		p.mux.OnPlaybackStateChanged(playback.StateCompleted)
	}
}

// OnBufferingUpdate implements engine.FallbackListener.
func (p *Player) OnBufferingUpdate(percent int) {
	if p.released {
		return
	}
	p.bufferPercent = percent
	if p.mux != nil {
		p.mux.OnBufferingUpdate(percent)
	}
}

// OnInfo implements engine.FallbackListener.
func (p *Player) OnInfo(what, _ int) bool {
	if p.released || p.mux == nil {
		return false
	}
	switch what {
	case engine.InfoBufferingStart:
		p.mux.OnPlaybackStateChanged(playback.StateBuffering)
		return true
	case engine.InfoBufferingEnd:
		p.onBufferingEnd()
		return true
	}
	return false
}

// OnVideoSizeChanged implements engine.FallbackListener.
func (p *Player) OnVideoSizeChanged(width, height int) {
	if p.mux != nil && !p.released {
		p.mux.OnVideoSizeChanged(width, height, 0, 1)
	}
}

// onBufferingEnd guesses what the engine did after a stall, since the
// platform reports resuming and pausing the same way.
func (p *Player) onBufferingEnd() {
	switch {
	case p.engine.IsPlaying():
		p.setPhase(phasePlaying, playback.StatePlaying)
	case p.playRequested:
		p.Start()
	default:
		p.setPhase(phasePaused, playback.StatePaused)
	}
}

func (p *Player) prepareAsync() {
	if err := p.engine.PrepareAsync(); err != nil {
		p.fail(err)
		return
	}
	p.setPhase(phasePreparing, playback.StatePreparing)
}

func (p *Player) isReady() bool {
	switch p.phase {
	case phasePrepared, phasePlaying, phasePaused, phaseCompleted:
		return true
	}
	return false
}

func (p *Player) setPhase(ph phase, state playback.State) {
	p.phase = ph
	if p.mux != nil {
		p.mux.OnPlaybackStateChanged(state)
	}
}

func (p *Player) fail(err error) {
	zlog.Warn().Err(err).Msg("fallback: engine rejected the source")
	p.phase = phaseError
	p.playRequested = false
	if p.mux != nil {
		p.mux.OnError(playback.NewEngineError(err))
	}
}
