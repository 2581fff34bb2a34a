// Package engine defines the boundary to the wrapped media engines.
package engine

import (
	"time"

	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
)

// State is the numeric state reported by the rich engine.
type State int

const (
	StateIdle      State = 1 // No media, stopped or failed
	StateBuffering State = 2 // Waiting for data
	StateReady     State = 3 // Able to render immediately
	StateEnded     State = 4 // Finished playing the media
)

// String returns the string representation of the engine state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StateReady:
		return "ready"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TrackType is the engine's own classification of a renderer.
type TrackType int

const (
	TrackTypeUnknown  TrackType = -1
	TrackTypeDefault  TrackType = 0
	TrackTypeAudio    TrackType = 1
	TrackTypeVideo    TrackType = 2
	TrackTypeText     TrackType = 3
	TrackTypeImage    TrackType = 4
	TrackTypeMetadata TrackType = 5
)

// AnalyticsEvent is an engine event stamped with the time it happened.
type AnalyticsEvent struct {
	Name       string
	Time       time.Time
	PositionMs int64
	WindowIdx  int
	Detail     string
}

// RichListener receives the raw events of a RichEngine.
type RichListener interface {
	OnPlayerStateChanged(playWhenReady bool, state State)
	OnPlayerError(err error)
	OnVideoSizeChanged(width, height, rotation int, pixelRatio float32)
	OnMetadata(m media.Metadata)
	OnAnalyticsEvent(e AnalyticsEvent)
}

// RichEngine is the full-featured engine with adaptive streaming and
// multi-track support. It is bound to the goroutine that drives it.
type RichEngine interface {
	AddListener(l RichListener)
	RemoveListener(l RichListener)

	// SetSource replaces the loaded source. nil unloads it.
	SetSource(src *media.Source)
	Prepare()
	Stop()
	Release() error

	SetPlayWhenReady(playWhenReady bool)
	PlayWhenReady() bool
	State() State

	SeekTo(positionMs int64)
	PositionMs() int64
	DurationMs() int64
	BufferedPercent() int

	SetSpeed(speed float32)
	Speed() float32
	SetVolume(volume float32)
	Volume() float32
	SetRepeatMode(mode playback.RepeatMode)

	SetSurface(s *media.Surface)

	WindowCount() int
	CurrentWindowIndex() int
	PreviousWindowIndex() int
	NextWindowIndex() int
	Window(index int) (media.Window, bool)

	TrackSelector() TrackSelector
}
