package player

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/playmux/internal/app/backend/fallback"
	"github.com/osa030/playmux/internal/app/backend/rich"
	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/domain/track"
	"github.com/osa030/playmux/internal/infra/config"
	"github.com/osa030/playmux/internal/infra/engine"
	"github.com/osa030/playmux/internal/infra/simengine"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type videoFixture struct {
	handler *looper.Manual
	engine  *simengine.Rich
	view    *VideoView
	clock   *fakeClock

	prepared  int
	completed int
}

func newVideoFixture(opts simengine.RichOptions) *videoFixture {
	if opts.DurationMs == 0 {
		opts.DurationMs = 10_000
	}
	f := &videoFixture{
		handler: looper.NewManual(),
		clock:   &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.engine = simengine.NewRich(f.handler, opts)
	f.view = NewVideoView(f.handler, rich.New(f.engine, f.handler, 0), Options{Clock: f.clock.Now})
	f.view.SetOnPreparedListener(func() { f.prepared++ })
	f.view.SetOnCompletionListener(func() { f.completed++ })
	return f
}

func (f *videoFixture) playing() {
	f.view.SetMedia(media.NewItem("https://example.com/movie.mp4"))
	f.handler.RunPending()
	f.view.Start()
	f.engine.SetEngineState(engine.StateReady)
	f.handler.RunPending()
}

func TestVideoView_PlaysToCompletion(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	assert.True(t, f.view.PreviewVisible())
	assert.False(t, f.view.KeepScreenOn())

	f.playing()
	assert.Equal(t, 1, f.prepared)
	assert.Equal(t, playback.StatePlaying, f.view.PlaybackState())
	assert.True(t, f.view.KeepScreenOn())
	assert.False(t, f.view.PreviewVisible(), "hidden once prepared")

	f.engine.Complete()
	f.handler.RunPending()
	assert.Equal(t, 1, f.completed)
	assert.Equal(t, 1, f.prepared)
	assert.Equal(t, playback.StateCompleted, f.view.PlaybackState())
	assert.False(t, f.view.KeepScreenOn())

	f.view.SetMedia(media.NewItem("https://example.com/next.mp4"))
	assert.True(t, f.view.PreviewVisible(), "shown again for a new session")
}

func TestVideoView_CompletionAwayFromEndIsSuppressed(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	f.playing()
	f.view.OverrideDuration(60_000)

	f.engine.Complete()
	f.handler.RunPending()

	assert.Zero(t, f.completed)
	assert.Equal(t, playback.StateCompleted, f.view.PlaybackState())
}

func TestVideoView_Restart(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	assert.False(t, f.view.Restart(), "no media")

	f.playing()
	assert.False(t, f.view.Restart(), "still playing")

	f.engine.Complete()
	f.handler.RunPending()
	require.Equal(t, 1, f.completed)

	require.True(t, f.view.Restart())
	assert.True(t, f.view.KeepScreenOn())
	f.handler.RunPending()
	f.engine.SetEngineState(engine.StateReady)
	f.handler.RunPending()
	assert.Equal(t, playback.StatePlaying, f.view.PlaybackState())
	assert.Equal(t, 2, f.prepared)
}

func TestVideoView_SessionID(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	assert.Equal(t, uuid.Nil, f.view.SessionID())

	f.view.SetMedia(media.NewItem("https://example.com/a.mp4"))
	first := f.view.SessionID()
	f.view.SetMedia(media.NewItem("https://example.com/b.mp4"))

	assert.NotEqual(t, uuid.Nil, first)
	assert.NotEqual(t, first, f.view.SessionID())
	assert.Equal(t, "https://example.com/b.mp4", f.view.Media().URI)
}

func TestVideoView_PositionOverrides(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	f.playing()

	f.view.OverridePosition(true)
	f.clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, int64(1500), f.view.CurrentPositionMs())

	f.view.SetPositionOffset(200)
	assert.Equal(t, int64(1700), f.view.CurrentPositionMs())

	f.view.Pause()
	f.clock.Advance(time.Second)
	assert.Equal(t, int64(1700), f.view.CurrentPositionMs())

	require.True(t, f.view.SetPlaybackSpeed(2))
	f.view.Start()
	f.clock.Advance(time.Second)
	assert.Equal(t, int64(3700), f.view.CurrentPositionMs())

	f.view.RestartOverridePosition()
	assert.Equal(t, int64(200), f.view.CurrentPositionMs())

	f.view.OverridePosition(false)
	assert.Equal(t, int64(200), f.view.CurrentPositionMs(), "offset plus the engine position")
}

func TestVideoView_DurationOverride(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	f.playing()
	assert.Equal(t, int64(10_000), f.view.DurationMs())

	f.view.OverrideDuration(5000)
	assert.Equal(t, int64(5000), f.view.DurationMs())

	f.view.OverrideDuration(-7)
	assert.Equal(t, int64(10_000), f.view.DurationMs())
}

func TestVideoView_Surface(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})

	err := f.view.SetSurface(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, media.ErrNilSurface))
	assert.Nil(t, f.view.Surface())

	s := media.NewSurface("main", nil)
	require.NoError(t, f.view.SetSurface(s))
	assert.Same(t, s, f.view.Surface())
	assert.Same(t, s, f.engine.Surface())

	f.playing()
	f.view.StopPlayback(true)
	f.handler.RunPending()
	assert.Equal(t, playback.StateStopped, f.view.PlaybackState())
	assert.Equal(t, 1, s.ClearCount())
	assert.False(t, f.view.KeepScreenOn())

	f.view.ClearSurface()
	assert.Nil(t, f.view.Surface())
	assert.Nil(t, f.engine.Surface())
}

func TestVideoView_StopKeepsSurface(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	s := media.NewSurface("main", nil)
	require.NoError(t, f.view.SetSurface(s))
	f.playing()

	f.view.Stop()
	f.handler.RunPending()

	assert.Equal(t, playback.StateStopped, f.view.PlaybackState())
	assert.Zero(t, s.ClearCount())
}

func TestVideoView_VideoSize(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	var got []VideoSize
	f.view.SetOnVideoSizeChangedListener(func(size VideoSize) { got = append(got, size) })
	f.playing()

	f.engine.EmitVideoSize(1920, 1080)
	f.handler.RunPending()

	want := VideoSize{Width: 1920, Height: 1080, PixelRatio: 1}
	assert.Equal(t, []VideoSize{want}, got)
	assert.Equal(t, want, f.view.VideoSize())
}

func TestVideoView_ErrorEndsPlayback(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	var got error
	f.view.SetOnErrorListener(func(err error) bool {
		got = err
		return true
	})
	f.playing()

	f.engine.Fail(errors.New("renderer crashed"))
	f.handler.RunPending()

	assert.Error(t, got)
	assert.Equal(t, playback.StateError, f.view.PlaybackState())
	assert.False(t, f.view.KeepScreenOn())
}

func TestVideoView_Tracks(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{
		Renderers: []engine.MappedRenderer{
			{Type: engine.TrackTypeAudio, Groups: []track.Group{{Formats: []track.Format{{ID: "en"}, {ID: "de"}}}}},
		},
	})
	f.playing()

	f.view.SetTrack(track.RendererAudio, 1)
	assert.Equal(t, 1, f.view.SelectedTrackIndex(track.RendererAudio, 0))
	assert.Len(t, f.view.AvailableTracks()[track.RendererAudio], 1)

	f.view.ClearSelectedTracks(track.RendererAudio)
	assert.Equal(t, -1, f.view.SelectedTrackIndex(track.RendererAudio, 0))
}

func TestVideoView_Release(t *testing.T) {
	f := newVideoFixture(simengine.RichOptions{})
	require.NoError(t, f.view.SetSurface(media.NewSurface("main", nil)))
	f.playing()

	f.view.Release()

	assert.Equal(t, playback.StateReleased, f.view.PlaybackState())
	assert.False(t, f.view.KeepScreenOn())
	assert.Nil(t, f.view.Surface())
	assert.False(t, f.view.Restart())
}

func TestAudioPlayer_PlaysToCompletion(t *testing.T) {
	handler := looper.NewManual()
	eng := simengine.NewFallback(handler, simengine.FallbackOptions{DurationMs: 500, AutoAdvance: true})
	p := NewAudioPlayer(handler, fallback.New(eng, fallback.DefaultSettings(), 28), Options{})

	prepared, completed := 0, 0
	var states []playback.State
	p.SetOnPreparedListener(func() { prepared++ })
	p.SetOnCompletionListener(func() { completed++ })
	p.SetOnPlaybackStateChangeListener(func(s playback.State) { states = append(states, s) })

	p.SetMedia(media.NewItem("https://example.com/song.mp3"))
	p.Start()
	handler.Advance(time.Second)

	assert.Equal(t, 1, prepared)
	assert.Equal(t, 1, completed)
	assert.Equal(t, playback.StateCompleted, p.PlaybackState())
	assert.Equal(t, []playback.State{
		playback.StatePreparing,
		playback.StateReady,
		playback.StatePlaying,
		playback.StateCompleted,
	}, states)

	require.True(t, p.Restart())
	assert.Equal(t, playback.StatePlaying, p.PlaybackState())
}

func TestAudioPlayer_Stop(t *testing.T) {
	handler := looper.NewManual()
	eng := simengine.NewFallback(handler, simengine.FallbackOptions{DurationMs: 10_000})
	p := NewAudioPlayer(handler, fallback.New(eng, fallback.DefaultSettings(), 28), Options{})

	p.SetMedia(media.NewItem("https://example.com/song.mp3"))
	p.Start()
	eng.Prepared()
	handler.RunPending()
	require.True(t, p.IsPlaying())

	p.Stop()
	assert.Equal(t, playback.StateStopped, p.PlaybackState())
	assert.False(t, p.IsPlaying())

	p.Reset()
	assert.Nil(t, p.Media())
	assert.Equal(t, playback.StateIdle, p.PlaybackState())
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.PlayerConfig{CompletionLeewayMs: 250, PreparedRequiresPlayWhenReady: true})

	assert.Equal(t, 250*time.Millisecond, opts.CompletionLeeway)
	assert.True(t, opts.PreparedRequiresPlayWhenReady)
	assert.Nil(t, opts.Clock)
}
