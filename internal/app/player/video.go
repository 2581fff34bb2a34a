package player

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/playmux/internal/app/backend"
	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/domain/media"
)

// VideoSize is the last size reported by the engine.
type VideoSize struct {
	Width, Height int
	Rotation      int
	PixelRatio    float32
}

// VideoView plays video media onto a surface through one backend.
type VideoView struct {
	*core
	video backend.VideoPlayerAPI

	surface        *media.Surface
	keepScreenOn   bool
	previewVisible bool
	size           VideoSize

	onVideoSize func(size VideoSize)
}

// NewVideoView wraps api. handler must be the main thread api runs on.
func NewVideoView(handler looper.Handler, api backend.VideoPlayerAPI, opts Options) *VideoView {
	v := &VideoView{video: api, previewVisible: true}
	v.core = newCore(handler, api, opts)
	v.hooks = hooks{
		prepared:  func() { v.previewVisible = false },
		ended:     func() { v.keepScreenOn = false },
		preview:   func(visible bool) { v.previewVisible = visible },
		videoSize: v.onSizeChanged,
	}
	return v
}

// SetSurface binds the output surface. A nil surface is rejected.
func (v *VideoView) SetSurface(s *media.Surface) error {
	if err := v.video.SetSurface(s); err != nil {
		return errors.Wrap(err, "failed to bind surface")
	}
	v.surface = s
	return nil
}

// Surface returns the bound surface.
func (v *VideoView) Surface() *media.Surface { return v.surface }

// ClearSurface unbinds the output surface.
func (v *VideoView) ClearSurface() {
	v.surface = nil
	v.video.ClearSurface()
}

// Start begins or resumes playback and keeps the screen on.
func (v *VideoView) Start() {
	v.core.Start()
	v.keepScreenOn = true
}

// Pause pauses playback and lets the screen turn off.
func (v *VideoView) Pause() {
	v.core.Pause()
	v.keepScreenOn = false
}

// Stop halts playback without blanking the surface.
func (v *VideoView) Stop() {
	v.StopPlayback(false)
}

// StopPlayback halts playback. With clearSurface the surface is blanked
// once the engine is idle.
func (v *VideoView) StopPlayback(clearSurface bool) {
	v.stopwatch.Stop()
	v.video.StopPlayback(clearSurface)
	v.keepScreenOn = false
}

// Restart plays the media again from the beginning and keeps the screen on.
func (v *VideoView) Restart() bool {
	if !v.core.Restart() {
		return false
	}
	v.keepScreenOn = true
	return true
}

// Release frees the backend.
func (v *VideoView) Release() {
	v.core.Release()
	v.keepScreenOn = false
	v.surface = nil
}

// KeepScreenOn reports whether the screen should stay on.
func (v *VideoView) KeepScreenOn() bool { return v.keepScreenOn }

// PreviewVisible reports whether the preview image should be shown.
func (v *VideoView) PreviewVisible() bool { return v.previewVisible }

// VideoSize returns the last reported video size.
func (v *VideoView) VideoSize() VideoSize { return v.size }

// SetOnVideoSizeChangedListener sets the video size listener.
func (v *VideoView) SetOnVideoSizeChangedListener(fn func(size VideoSize)) {
	v.onVideoSize = fn
}

func (v *VideoView) onSizeChanged(width, height, rotation int, pixelRatio float32) {
	v.size = VideoSize{Width: width, Height: height, Rotation: rotation, PixelRatio: pixelRatio}
	if v.onVideoSize != nil {
		v.onVideoSize(v.size)
	}
}
