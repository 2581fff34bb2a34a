package fallback

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/playmux/internal/app/listenermux"
	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/domain/track"
	"github.com/osa030/playmux/internal/infra/engine"
	"github.com/osa030/playmux/internal/infra/simengine"
)

type sizeNotifier struct {
	listenermux.NopNotifier
	sizes [][2]int
}

func (n *sizeNotifier) OnVideoSizeChanged(width, height, _ int, _ float32) {
	n.sizes = append(n.sizes, [2]int{width, height})
}

type fallbackFixture struct {
	handler  *looper.Manual
	engine   *simengine.Fallback
	player   *Player
	mux      *listenermux.Mux
	notifier *sizeNotifier

	states    []playback.State
	prepared  int
	completed int
	seeks     int
	buffer    []int
	errs      []error
}

func newFallbackFixture(opts simengine.FallbackOptions, apiLevel int) *fallbackFixture {
	if opts.DurationMs == 0 {
		opts.DurationMs = 10_000
	}
	f := &fallbackFixture{handler: looper.NewManual(), notifier: &sizeNotifier{}}
	f.engine = simengine.NewFallback(f.handler, opts)
	f.player = New(f.engine, DefaultSettings(), apiLevel)
	f.mux = listenermux.New(f.handler, f.notifier, listenermux.Options{})
	f.player.SetListenerMux(f.mux)

	f.mux.SetOnPlaybackStateChangeListener(func(s playback.State) { f.states = append(f.states, s) })
	f.mux.SetOnPreparedListener(func() { f.prepared++ })
	f.mux.SetOnCompletionListener(func() { f.completed++ })
	f.mux.SetOnSeekCompletionListener(func() { f.seeks++ })
	f.mux.SetOnBufferUpdateListener(func(p int) { f.buffer = append(f.buffer, p) })
	f.mux.SetOnErrorListener(func(err error) bool {
		f.errs = append(f.errs, err)
		return true
	})
	return f
}

func (f *fallbackFixture) playing() {
	f.player.SetMedia(media.NewItem("https://example.com/song.mp3"))
	f.player.Start()
	f.engine.Prepared()
	f.handler.RunPending()
}

func countOp(ops []string, op string) int {
	n := 0
	for _, o := range ops {
		if o == op {
			n++
		}
	}
	return n
}

func TestPlayer_StartIsLatchedUntilPrepared(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)

	f.player.SetMedia(media.NewItem("https://example.com/song.mp3"))
	assert.Equal(t, playback.StatePreparing, f.mux.State())

	f.player.Start()
	assert.Zero(t, countOp(f.engine.Ops(), "start"))
	assert.False(t, f.player.IsPlaying())
	assert.Zero(t, f.player.DurationMs())

	f.engine.Prepared()
	f.handler.RunPending()

	assert.Equal(t, 1, countOp(f.engine.Ops(), "start"))
	assert.Equal(t, 1, f.prepared)
	assert.Equal(t, playback.StatePlaying, f.mux.State())
	assert.True(t, f.player.IsPlaying())
	assert.Equal(t, int64(10_000), f.player.DurationMs())
	assert.Equal(t, []playback.State{
		playback.StatePreparing,
		playback.StateReady,
		playback.StatePlaying,
	}, f.states)
}

func TestPlayer_PauseDropsLatchedStart(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)

	f.player.SetMedia(media.NewItem("https://example.com/song.mp3"))
	f.player.Start()
	f.player.Pause()
	f.engine.Prepared()
	f.handler.RunPending()

	assert.Zero(t, countOp(f.engine.Ops(), "start"))
	assert.Zero(t, countOp(f.engine.Ops(), "pause"), "nothing was playing")
	assert.Equal(t, playback.StateReady, f.mux.State())
}

func TestPlayer_PendingSeekAppliedOnPrepared(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)

	f.player.SetMedia(media.NewItem("https://example.com/song.mp3"))
	f.player.SeekTo(3000)
	assert.Zero(t, countOp(f.engine.Ops(), "seek(3000)"))

	f.engine.Prepared()
	f.handler.RunPending()
	assert.Equal(t, 1, countOp(f.engine.Ops(), "seek(3000)"))
	assert.Equal(t, playback.StateSeeking, f.mux.State())

	f.engine.SeekComplete()
	f.handler.RunPending()
	assert.Equal(t, 1, f.seeks)
	assert.Equal(t, playback.StateReady, f.mux.State())
	assert.Equal(t, int64(3000), f.player.CurrentPositionMs())
}

func TestPlayer_SeekWhilePlaying(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.playing()

	f.player.SeekTo(7000)
	assert.Equal(t, playback.StateSeeking, f.mux.State())

	f.engine.SeekComplete()
	f.handler.RunPending()
	assert.Equal(t, 1, f.seeks)
	assert.Equal(t, playback.StatePlaying, f.mux.State())
}

func TestPlayer_BufferingEnd(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fallbackFixture)
		resumed   bool
		want      playback.State
		wantStart int
	}{
		{
			name:      "engine resumed by itself",
			resumed:   true,
			want:      playback.StatePlaying,
			wantStart: 1,
		},
		{
			name:      "paused during the stall",
			setup:     func(f *fallbackFixture) { f.player.Pause() },
			resumed:   false,
			want:      playback.StatePaused,
			wantStart: 1,
		},
		{
			name:      "stalled with playback requested",
			resumed:   false,
			want:      playback.StatePlaying,
			wantStart: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFallbackFixture(simengine.FallbackOptions{}, 28)
			f.playing()
			if tt.setup != nil {
				tt.setup(f)
			}

			f.engine.BufferingStart()
			f.handler.RunPending()
			require.Equal(t, playback.StateBuffering, f.mux.State())

			f.engine.BufferingEnd(tt.resumed)
			f.handler.RunPending()

			assert.Equal(t, tt.want, f.mux.State())
			assert.Equal(t, tt.wantStart, countOp(f.engine.Ops(), "start"))
		})
	}
}

func TestPlayer_BufferingUpdate(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.playing()

	f.engine.BufferingUpdate(55)
	f.engine.BufferingUpdate(120)
	f.handler.RunPending()

	assert.Equal(t, []int{55, 100}, f.buffer)
	assert.Equal(t, 120, f.player.BufferedPercent(), "raw value is kept, the mux clamps")
}

func TestPlayer_SetPlaybackSpeed(t *testing.T) {
	tests := []struct {
		name      string
		apiLevel  int
		supported bool
		want      bool
	}{
		{name: "supported", apiLevel: 28, supported: true, want: true},
		{name: "api level too low", apiLevel: 22, supported: true, want: false},
		{name: "engine cannot", apiLevel: 28, supported: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFallbackFixture(simengine.FallbackOptions{SupportsSpeed: tt.supported}, tt.apiLevel)

			assert.Equal(t, tt.want, f.player.SetPlaybackSpeed(1.5))
			if tt.want {
				assert.Equal(t, float32(1.5), f.player.PlaybackSpeed())
			} else {
				assert.Equal(t, float32(1), f.player.PlaybackSpeed())
				assert.Zero(t, countOp(f.engine.Ops(), "speed(1.5)"))
			}
		})
	}
}

func TestPlayer_Unsupported(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.playing()

	assert.Nil(t, f.player.AvailableTracks())
	assert.Equal(t, -1, f.player.SelectedTrackIndex(track.RendererAudio, 0))
	assert.False(t, f.player.IsRendererEnabled(track.RendererVideo))
	assert.Nil(t, f.player.WindowInfo())

	ops := len(f.engine.Ops())
	f.player.SetSelectedTrack(track.RendererAudio, 0, 1)
	f.player.ClearSelectedTracks(track.RendererAudio)
	f.player.SetRendererEnabled(track.RendererAudio, false)
	assert.Len(t, f.engine.Ops(), ops)
}

func TestPlayer_VolumeAndRepeat(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)

	assert.True(t, f.player.SetVolume(0.25))
	left, right := f.engine.Volume()
	assert.Equal(t, float32(0.25), left)
	assert.Equal(t, float32(0.25), right)

	assert.True(t, f.player.SetVolume(-2))
	assert.Equal(t, float32(0), f.player.Volume())

	f.player.SetRepeatMode(playback.RepeatOne)
	f.player.SetRepeatMode(playback.RepeatOff)
	assert.Equal(t, 1, countOp(f.engine.Ops(), "looping(true)"))
	assert.Equal(t, 1, countOp(f.engine.Ops(), "looping(false)"))
}

func TestPlayer_NativeError(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.player.SetMedia(media.NewItem("https://example.com/song.mp3"))

	f.engine.Fail(engine.ErrorUnknown, engine.ErrorIO)
	f.handler.RunPending()

	assert.Equal(t, playback.StateError, f.mux.State())
	require.Len(t, f.errs, 1)
	var perr *playback.Error
	require.True(t, errors.As(f.errs[0], &perr))
	assert.Equal(t, engine.ErrorUnknown, perr.Code)
	assert.Equal(t, engine.ErrorIO, perr.Extra)
	assert.False(t, f.player.Restart())
}

func TestPlayer_AdaptiveSourceFails(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{AutoAdvance: true, PrepareDelay: 10 * time.Millisecond}, 28)

	f.player.SetMedia(media.NewItem("https://example.com/live/manifest.mpd"))
	f.player.Start()
	f.handler.Advance(20 * time.Millisecond)

	assert.Equal(t, playback.StateError, f.mux.State())
	require.Len(t, f.errs, 1)
	var perr *playback.Error
	require.True(t, errors.As(f.errs[0], &perr))
	assert.Equal(t, engine.ErrorUnsupported, perr.Extra)
	assert.Zero(t, f.prepared)
}

func TestPlayer_AutoAdvancePlaysToCompletion(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{DurationMs: 500, AutoAdvance: true}, 28)

	f.player.SetMedia(media.NewItem("https://example.com/song.mp3"))
	f.player.Start()
	f.handler.Advance(time.Second)

	assert.Equal(t, 1, f.prepared)
	assert.Equal(t, 1, f.completed)
	assert.Equal(t, playback.StateCompleted, f.mux.State())
}

func TestPlayer_RestartFromCompleted(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.playing()
	f.engine.Complete()
	f.handler.RunPending()
	require.Equal(t, playback.StateCompleted, f.mux.State())
	require.Equal(t, 1, f.completed)

	require.True(t, f.player.Restart())
	assert.Equal(t, 1, countOp(f.engine.Ops(), "seek(0)"))
	assert.Equal(t, 2, countOp(f.engine.Ops(), "start"))
	assert.Equal(t, playback.StatePlaying, f.mux.State())
	assert.False(t, f.mux.IsPrepared(), "restart starts a new session")

	f.engine.Complete()
	f.handler.RunPending()
	assert.Equal(t, 2, f.completed)
	assert.Equal(t, 2, f.prepared, "prepared is delivered again ahead of completion")
}

func TestPlayer_RestartFromStopped(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.playing()
	f.player.Stop()
	require.Equal(t, playback.StateStopped, f.mux.State())

	require.True(t, f.player.Restart())
	assert.Equal(t, playback.StatePreparing, f.mux.State())
	assert.Equal(t, 2, countOp(f.engine.Ops(), "prepare_async"))

	f.engine.Prepared()
	f.handler.RunPending()
	assert.Equal(t, 2, f.prepared)
	assert.Equal(t, playback.StatePlaying, f.mux.State())
	assert.Zero(t, countOp(f.engine.Ops(), "seek(0)"), "a fresh prepare starts at zero")
}

func TestPlayer_RestartRejected(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fallbackFixture)
	}{
		{name: "no media", setup: func(*fallbackFixture) {}},
		{
			name:  "preparing",
			setup: func(f *fallbackFixture) { f.player.SetMedia(media.NewItem("https://example.com/song.mp3")) },
		},
		{name: "playing", setup: func(f *fallbackFixture) { f.playing() }},
		{
			name: "paused",
			setup: func(f *fallbackFixture) {
				f.playing()
				f.player.Pause()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFallbackFixture(simengine.FallbackOptions{}, 28)
			tt.setup(f)
			state := f.mux.State()
			ops := len(f.engine.Ops())

			assert.False(t, f.player.Restart())
			assert.Equal(t, state, f.mux.State())
			assert.Len(t, f.engine.Ops(), ops)
		})
	}
}

func TestPlayer_Stop(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.player.Stop()
	assert.Zero(t, countOp(f.engine.Ops(), "stop"), "nothing loaded")

	s := media.NewSurface("main", nil)
	require.NoError(t, f.player.SetSurface(s))
	assert.ErrorIs(t, f.player.SetSurface(nil), media.ErrNilSurface)
	f.playing()

	f.player.StopPlayback(true)
	f.player.Stop()
	assert.Equal(t, 1, countOp(f.engine.Ops(), "stop"))
	assert.Equal(t, playback.StateStopped, f.mux.State())
	assert.Equal(t, 1, s.ClearCount())

	f.player.Start()
	assert.Equal(t, 2, countOp(f.engine.Ops(), "prepare_async"))
	assert.Equal(t, playback.StatePreparing, f.mux.State())
}

func TestPlayer_ResetClearsMedia(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.playing()

	f.player.Reset()
	assert.Equal(t, playback.StateIdle, f.mux.State())
	assert.False(t, f.player.Restart())

	f.player.SetMedia(nil)
	assert.Equal(t, playback.StateIdle, f.mux.State())
}

func TestPlayer_VideoSize(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{VideoWidth: 640, VideoHeight: 360}, 28)
	f.playing()

	f.engine.EmitVideoSize(1280, 720)
	f.handler.RunPending()

	assert.Equal(t, [][2]int{{640, 360}, {1280, 720}}, f.notifier.sizes)
}

func TestPlayer_Release(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	f.playing()
	f.engine.SetReleaseError(errors.New("native release failed"))

	assert.NotPanics(t, func() {
		f.player.Release()
		f.player.Release()
	})

	assert.Equal(t, 1, countOp(f.engine.Ops(), "release"))
	assert.Equal(t, playback.StateReleased, f.mux.State())
	assert.False(t, f.engine.HasListener())
	assert.False(t, f.player.SetVolume(0.5))
	assert.False(t, f.player.Restart())
}

func TestPlayer_SetListenerMux(t *testing.T) {
	f := newFallbackFixture(simengine.FallbackOptions{}, 28)
	assert.True(t, f.engine.HasListener())

	f.player.SetListenerMux(nil)
	assert.False(t, f.engine.HasListener())

	second := listenermux.New(f.handler, nil, listenermux.Options{})
	f.player.SetListenerMux(second)
	f.player.SetMedia(media.NewItem("https://example.com/song.mp3"))

	assert.True(t, f.engine.HasListener())
	assert.Equal(t, playback.StatePreparing, second.State())
	assert.Equal(t, playback.StateIdle, f.mux.State())
}
