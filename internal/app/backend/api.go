// Package backend defines the operations both player backends provide and
// picks the backend a device can run.
package backend

import (
	"github.com/osa030/playmux/internal/app/backend/fallback"
	"github.com/osa030/playmux/internal/app/backend/rich"
	"github.com/osa030/playmux/internal/app/listenermux"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/domain/track"
)

// AudioPlayerAPI is the transport, timeline and track surface of a backend.
type AudioPlayerAPI interface {
	SetMedia(item *media.Item)
	Start()
	Pause()
	Stop()
	Reset()
	Release()
	// Restart plays from the beginning. It returns false without side
	// effects unless the media is idle or completed.
	Restart() bool
	SeekTo(positionMs int64)

	IsPlaying() bool
	CurrentPositionMs() int64
	DurationMs() int64
	BufferedPercent() int

	Volume() float32
	SetVolume(volume float32) bool
	PlaybackSpeed() float32
	SetPlaybackSpeed(speed float32) bool
	SetRepeatMode(mode playback.RepeatMode)

	// WindowInfo is nil when no timeline is loaded.
	WindowInfo() *media.WindowInfo

	AvailableTracks() track.Map
	SelectedTrackIndex(rendererType track.RendererType, groupIndex int) int
	SetSelectedTrack(rendererType track.RendererType, groupIndex, trackIndex int)
	ClearSelectedTracks(rendererType track.RendererType)
	SetRendererEnabled(rendererType track.RendererType, enabled bool)
	IsRendererEnabled(rendererType track.RendererType) bool

	// SetListenerMux routes the backend's events to mux only.
	SetListenerMux(mux *listenermux.Mux)
}

// VideoPlayerAPI adds the video surface to AudioPlayerAPI.
type VideoPlayerAPI interface {
	AudioPlayerAPI

	// SetSurface returns media.ErrNilSurface for a nil surface.
	SetSurface(s *media.Surface) error
	ClearSurface()
	StopPlayback(clearSurface bool)
}

var (
	_ VideoPlayerAPI = (*rich.Player)(nil)
	_ VideoPlayerAPI = (*fallback.Player)(nil)
)
