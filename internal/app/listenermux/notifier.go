package listenermux

import (
	"time"
)

// Notifier is implemented by the façade that owns the mux.
type Notifier interface {
	OnSeekComplete()
	OnBufferUpdated(percent int)
	OnVideoSizeChanged(width, height, rotation int, pixelRatio float32)
	OnPrepared()
	OnPreviewImageStateChanged(visible bool)
	// ShouldNotifyCompletion confirms that the position is within leeway of the end.
	ShouldNotifyCompletion(leeway time.Duration) bool
	OnPlaybackError(err error)
	// OnMediaPlaybackEnded resets UI state after completion or failure.
	OnMediaPlaybackEnded()
}

// NopNotifier is a Notifier that ignores everything and always allows completion.
// Embed it to implement only the methods you need.
type NopNotifier struct{}

func (NopNotifier) OnSeekComplete() {}
func (NopNotifier) OnBufferUpdated(int) {}
func (NopNotifier) OnVideoSizeChanged(int, int, int, float32) {}
func (NopNotifier) OnPrepared() {}
func (NopNotifier) OnPreviewImageStateChanged(bool) {}
func (NopNotifier) ShouldNotifyCompletion(time.Duration) bool { return true }
func (NopNotifier) OnPlaybackError(error) {}
func (NopNotifier) OnMediaPlaybackEnded() {}
