package engine

// Info codes reported through FallbackListener.OnInfo.
const (
	InfoBufferingStart = 701
	InfoBufferingEnd   = 702
)

// Error codes reported through FallbackListener.OnError.
const (
	ErrorUnknown     = 1
	ErrorServerDied  = 100
	ErrorIO          = -1004
	ErrorMalformed   = -1007
	ErrorUnsupported = -1010
	ErrorTimedOut    = -110
)

// FallbackListener receives the discrete callbacks of a FallbackEngine.
type FallbackListener interface {
	OnPrepared()
	OnCompletion()
	// OnError returns true when the error was handled.
	OnError(what, extra int) bool
	OnSeekComplete()
	OnBufferingUpdate(percent int)
	OnInfo(what, extra int) bool
	OnVideoSizeChanged(width, height int)
}

// FallbackEngine is the simpler platform engine: one source, one track,
// no timeline and no track selection.
type FallbackEngine interface {
	// SetListener wires the callbacks. nil unwires them.
	SetListener(l FallbackListener)

	SetDataSource(uri string, headers map[string]string) error
	PrepareAsync() error
	Start() error
	Pause() error
	Stop() error
	Reset()
	Release() error

	SeekTo(positionMs int64) error
	IsPlaying() bool
	CurrentPositionMs() int64
	DurationMs() int64

	SetVolume(left, right float32)
	SetLooping(looping bool)

	// SupportsPlaybackSpeed reports whether the platform has native speed control.
	SupportsPlaybackSpeed() bool
	SetPlaybackSpeed(speed float32) error
}
