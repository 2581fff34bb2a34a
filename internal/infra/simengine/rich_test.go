package simengine

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/infra/engine"
)

type report struct {
	playWhenReady bool
	state         engine.State
}

type richListener struct {
	reports []report
	errs    []error
}

func (l *richListener) OnPlayerStateChanged(playWhenReady bool, state engine.State) {
	l.reports = append(l.reports, report{playWhenReady, state})
}
func (l *richListener) OnPlayerError(err error)                  { l.errs = append(l.errs, err) }
func (l *richListener) OnVideoSizeChanged(_, _, _ int, _ float32) {}
func (l *richListener) OnMetadata(_ media.Metadata)               {}
func (l *richListener) OnAnalyticsEvent(_ engine.AnalyticsEvent)  {}

func (l *richListener) last() report {
	return l.reports[len(l.reports)-1]
}

func TestRich_AutoAdvance(t *testing.T) {
	m := looper.NewManual()
	e := NewRich(m, RichOptions{DurationMs: 300, AutoAdvance: true, PrepareDelay: 100 * time.Millisecond})
	l := &richListener{}
	e.AddListener(l)
	e.AddListener(l)
	assert.Equal(t, 1, e.Listeners())

	e.SetSource(&media.Source{URI: "https://example.com/a.mp4"})
	e.Prepare()
	e.SetPlayWhenReady(true)
	m.RunPending()

	// Listeners read the engine when the callback runs.
	assert.Equal(t, []report{{true, engine.StateBuffering}, {true, engine.StateBuffering}}, l.reports)
	assert.Equal(t, 1, e.WindowCount())
	assert.Equal(t, int64(300), e.DurationMs())

	m.Advance(100 * time.Millisecond)
	assert.Equal(t, report{true, engine.StateReady}, l.last())
	assert.Equal(t, 100, e.BufferedPercent())

	m.Advance(300 * time.Millisecond)
	assert.Equal(t, report{true, engine.StateEnded}, l.last())
	assert.Equal(t, int64(300), e.PositionMs())
}

func TestRich_SeekIsClampedAndIgnoredWhenIdle(t *testing.T) {
	m := looper.NewManual()
	e := NewRich(m, RichOptions{DurationMs: 1000})
	l := &richListener{}
	e.AddListener(l)

	e.SeekTo(10)
	assert.Equal(t, 0, m.RunPending())
	assert.Equal(t, engine.StateIdle, e.State())

	e.SetSource(&media.Source{URI: "https://example.com/a.mp4"})
	e.Prepare()
	e.SetEngineState(engine.StateReady)
	e.SeekTo(5000)
	m.RunPending()

	assert.Equal(t, int64(1000), e.PositionMs())
	assert.Equal(t, engine.StateBuffering, e.State())
	assert.Equal(t, []string{"seek(10)", "set_source(https://example.com/a.mp4)", "prepare", "seek(5000)"}, e.Ops())
}

func TestRich_FailAndRelease(t *testing.T) {
	m := looper.NewManual()
	e := NewRich(m, RichOptions{DurationMs: 1000})
	l := &richListener{}
	e.AddListener(l)

	e.SetSource(&media.Source{URI: "https://example.com/a.mp4"})
	e.Prepare()
	cause := errors.New("decoder init failed")
	e.Fail(cause)
	m.RunPending()

	require.Len(t, l.errs, 1)
	assert.ErrorIs(t, l.errs[0], cause)
	assert.Equal(t, engine.StateIdle, l.last().state)

	boom := errors.New("release failed")
	e.SetReleaseError(boom)
	assert.ErrorIs(t, e.Release(), boom)
	assert.NoError(t, e.Release())
	assert.Zero(t, e.Listeners())

	e.SetEngineState(engine.StateReady)
	assert.Equal(t, 0, m.RunPending())
}
