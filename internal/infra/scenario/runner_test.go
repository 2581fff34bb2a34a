package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/playmux/internal/app/backend"
	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/app/player"
	"github.com/osa030/playmux/internal/domain/playback"
)

func capable() backend.Options {
	return backend.Options{Capabilities: backend.Capabilities{Manufacturer: "generic", Model: "sim", APILevel: 28}}
}

func run(t *testing.T, yaml string, opts backend.Options) (*Report, error) {
	t.Helper()
	sc, err := Parse([]byte(yaml))
	require.NoError(t, err)
	return NewRunner(sc, NewVirtualDriver(), opts, player.Options{}).Run(context.Background())
}

func TestRunner_Rich(t *testing.T) {
	report, err := run(t, `
name: rich
engine:
  duration_ms: 1000
  auto_advance: true
  renderers:
    - type: audio
      groups: [[{id: en}], [{id: fr}]]
steps:
  - action: set_media
    args: {uri: "https://example.com/movie.mp4"}
  - action: start
  - action: wait
    args: {ms: 200}
  - action: seek
    args: {ms: 500}
  - action: select_track
    args: {type: audio, group: 1, track: 0}
  - action: wait
    args: {ms: 2000}
`, capable())
	require.NoError(t, err)

	assert.Equal(t, backend.KindRich, report.Backend)
	assert.Equal(t, playback.StateCompleted, report.FinalState)
	assert.Equal(t, int64(1000), report.PositionMs)
	assert.Equal(t, 1, report.Count(EventPrepared))
	assert.Equal(t, 1, report.Count(EventSeekComplete))
	assert.Equal(t, 1, report.Count(EventCompletion))
	assert.Equal(t, []playback.State{
		playback.StatePreparing,
		playback.StatePlaying,
		playback.StateSeeking,
		playback.StatePlaying,
		playback.StateCompleted,
		playback.StateReleased,
	}, report.States())
}

func TestRunner_Fallback(t *testing.T) {
	report, err := run(t, `
name: fallback
backend: fallback
engine:
  duration_ms: 1000
  auto_advance: true
steps:
  - action: set_media
    args: {uri: "https://example.com/song.mp3"}
  - action: start
  - action: wait
    args: {ms: 300}
  - action: buffering
    args: {event: start}
  - action: buffering
    args: {event: end, resumed: false}
  - action: wait
    args: {ms: 2000}
`, capable())
	require.NoError(t, err)

	assert.Equal(t, backend.KindFallback, report.Backend)
	assert.Equal(t, playback.StateCompleted, report.FinalState)
	assert.Equal(t, 1, report.Count(EventPrepared))
	assert.Equal(t, 1, report.Count(EventCompletion))
	assert.Equal(t, []playback.State{
		playback.StatePreparing,
		playback.StateReady,
		playback.StatePlaying,
		playback.StateBuffering,
		playback.StatePlaying,
		playback.StateCompleted,
		playback.StateReleased,
	}, report.States())
}

func TestRunner_ProbeChoosesFallback(t *testing.T) {
	opts := capable()
	opts.Capabilities = backend.Capabilities{Manufacturer: "Amazon", Model: "AFTM", APILevel: 22}
	opts.Probe.Incompatible = backend.DefaultIncompatibleDevices

	report, err := run(t, "name: probe\nsteps: [{action: start}]", opts)
	require.NoError(t, err)
	assert.Equal(t, backend.KindFallback, report.Backend)
}

func TestRunner_Notes(t *testing.T) {
	report, err := run(t, `
name: notes
backend: fallback
steps:
  - action: set_media
    args: {uri: "https://example.com/song.mp3"}
  - action: restart
  - action: speed
    args: {speed: 2}
`, capable())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Count(EventNote))
	assert.Equal(t, playback.StatePreparing, report.FinalState)
}

func TestRunner_StopClearsSurface(t *testing.T) {
	report, err := run(t, `
name: stop
engine: {auto_advance: true}
steps:
  - action: set_media
    args: {uri: "https://example.com/movie.mp4"}
  - action: start
  - action: wait
    args: {ms: 500}
  - action: stop
    args: {clear_surface: true}
`, capable())
	require.NoError(t, err)

	assert.Equal(t, playback.StateStopped, report.FinalState)
	var details []string
	for _, e := range report.Events() {
		if e.Kind == EventNote {
			details = append(details, e.Detail)
		}
	}
	assert.Equal(t, []string{"surface: cleared"}, details)
}

func TestRunner_Fail(t *testing.T) {
	report, err := run(t, `
name: fail
backend: fallback
steps:
  - action: set_media
    args: {uri: "https://example.com/song.mp3"}
  - action: fail
    args: {extra: -110}
`, capable())
	require.NoError(t, err)

	assert.Equal(t, playback.StateError, report.FinalState)
	require.Equal(t, 1, report.Count(EventError))
	for _, e := range report.Events() {
		if e.Kind == EventError {
			assert.Contains(t, e.Detail, "extra=-110")
		}
	}
}

func TestRunner_WrongEngine(t *testing.T) {
	report, err := run(t, `
name: wrong
backend: fallback
steps:
  - action: start
  - action: engine_state
    args: {state: ready}
`, capable())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedAction))
	assert.Contains(t, err.Error(), "step 2")
	assert.Equal(t, backend.KindFallback, report.Backend)
}

func TestRunner_Cancelled(t *testing.T) {
	sc, err := Parse([]byte("name: cancel\nsteps: [{action: wait, args: {ms: 100}}]"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewRunner(sc, NewVirtualDriver(), capable(), player.Options{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_LoopDriver(t *testing.T) {
	loop := looper.New(64)
	defer loop.Close()

	sc, err := Parse([]byte(`
name: realtime
engine: {auto_advance: true, prepare_delay_ms: 20}
steps:
  - action: set_media
    args: {uri: "https://example.com/movie.mp4"}
  - action: start
  - action: wait
    args: {ms: 300}
`))
	require.NoError(t, err)

	report, err := NewRunner(sc, NewLoopDriver(loop), capable(), player.Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, backend.KindRich, report.Backend)
	assert.Equal(t, playback.StatePlaying, report.FinalState)
	assert.Equal(t, 1, report.Count(EventPrepared))
	assert.Greater(t, report.PositionMs, int64(0))
}

func TestVirtualDriver(t *testing.T) {
	d := NewVirtualDriver()
	ran := false
	d.Handler().PostDelayed(time.Second, func() { ran = true })

	require.NoError(t, d.Wait(context.Background(), 999*time.Millisecond))
	assert.False(t, ran)
	require.NoError(t, d.Wait(context.Background(), time.Millisecond))
	assert.True(t, ran)
	assert.Equal(t, time.Second, d.Elapsed())
}

func TestRunner_Testdata(t *testing.T) {
	sc, err := Load("testdata/basic.yaml")
	require.NoError(t, err)

	report, err := NewRunner(sc, NewVirtualDriver(), capable(), player.Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "basic", report.Scenario)
	assert.Equal(t, backend.KindRich, report.Backend)
	assert.Equal(t, playback.StateCompleted, report.FinalState)
	assert.Equal(t, int64(5000), report.PositionMs)
	assert.Equal(t, 1, report.Count(EventCompletion))
}
