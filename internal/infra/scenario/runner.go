package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playmux/internal/app/backend"
	"github.com/osa030/playmux/internal/app/player"
	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/playback"
	"github.com/osa030/playmux/internal/infra/engine"
	"github.com/osa030/playmux/internal/infra/simengine"
)

// Event kinds recorded in a Report.
const (
	EventState        = "state"
	EventPrepared     = "prepared"
	EventCompletion   = "completion"
	EventSeekComplete = "seek_complete"
	EventBuffer       = "buffer"
	EventError        = "error"
	EventVideoSize    = "video_size"
	EventMetadata     = "metadata"
	EventAnalytics    = "analytics"
	EventNote         = "note"
)

// Event is one callback observed while a scenario ran.
type Event struct {
	At     time.Duration
	Kind   string
	Detail string
}

// Report is the outcome of a run.
type Report struct {
	Scenario   string
	Backend    backend.Kind
	FinalState playback.State
	PositionMs int64

	mu     sync.Mutex
	events []Event
	states []playback.State
}

// Events returns the recorded events in order.
func (r *Report) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// States returns the reported playback states in order.
func (r *Report) States() []playback.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]playback.State(nil), r.states...)
}

// Count returns how many events of kind were recorded.
func (r *Report) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Report) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Report) addState(s playback.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

// Target is what a step acts on. Exactly one of Rich and Fallback is set.
type Target struct {
	View     *player.VideoView
	Rich     *simengine.Rich
	Fallback *simengine.Fallback

	driver Driver
	report *Report
	name   string
}

func (t *Target) record(kind, detail string) {
	e := Event{At: t.driver.Elapsed(), Kind: kind, Detail: detail}
	t.report.add(e)
	zlog.Info().Str("scenario", t.name).Msgf("%8dms %-13s %s", e.At.Milliseconds(), kind, detail)
}

func (t *Target) note(subject, detail string) {
	t.record(EventNote, subject+": "+detail)
}

// Runner plays one scenario.
type Runner struct {
	scenario *Scenario
	driver   Driver
	backend  backend.Options
	player   player.Options
}

// NewRunner creates a runner. The scenario's backend, when set, overrides
// the probe in backendOpts.
func NewRunner(sc *Scenario, driver Driver, backendOpts backend.Options, playerOpts player.Options) *Runner {
	return &Runner{scenario: sc, driver: driver, backend: backendOpts, player: playerOpts}
}

// Run executes every step in order. It stops at the first failing step and
// returns the report gathered so far along with the error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	sc := r.scenario
	report := &Report{Scenario: sc.Name}

	opts := r.backend
	if sc.Backend != "" {
		kind, err := backend.ParseKind(sc.Backend)
		if err != nil {
			return report, err
		}
		opts.Probe.Forced = kind
	}

	t := &Target{driver: r.driver, report: report, name: sc.Name}
	handler := r.driver.Handler()
	engines := backend.Engines{
		Rich: func() engine.RichEngine {
			t.Rich = simengine.NewRich(handler, sc.Engine.RichOptions())
			return t.Rich
		},
		Fallback: func() engine.FallbackEngine {
			t.Fallback = simengine.NewFallback(handler, sc.Engine.FallbackOptions())
			return t.Fallback
		},
	}

	var setupErr error
	if err := r.driver.Do(func() {
		api, kind, err := backend.Select(handler, opts, engines)
		if err != nil {
			setupErr = err
			return
		}
		report.Backend = kind
		t.View = player.NewVideoView(handler, api, r.player)
		r.listen(t)
		setupErr = t.View.SetSurface(media.NewSurface(sc.Name, func() { t.note("surface", "cleared") }))
	}); err != nil {
		return report, err
	}
	if setupErr != nil {
		return report, errors.Wrap(setupErr, "failed to set up player")
	}
	zlog.Info().Str("scenario", sc.Name).Msgf("running %d steps on the %s backend", len(sc.Steps), report.Backend)

	for i, step := range sc.Steps {
		action, op, err := step.bind()
		if err != nil {
			return report, errors.Wrapf(err, "step %d (%s)", i+1, step.Action)
		}

		if action.Blocking {
			err = op(ctx, t)
		} else {
			var opErr error
			err = r.driver.Do(func() { opErr = op(ctx, t) })
			if err == nil {
				err = opErr
			}
		}
		if err != nil {
			return report, errors.Wrapf(err, "step %d (%s)", i+1, step.Action)
		}
	}

	err := r.driver.Do(func() {
		report.FinalState = t.View.PlaybackState()
		report.PositionMs = t.View.CurrentPositionMs()
		if report.FinalState != playback.StateReleased {
			t.View.Release()
		}
	})
	return report, err
}

func (r *Runner) listen(t *Target) {
	v := t.View
	v.SetOnPlaybackStateChangeListener(func(s playback.State) {
		t.report.addState(s)
		t.record(EventState, s.String())
	})
	v.SetOnPreparedListener(func() {
		t.record(EventPrepared, fmt.Sprintf("duration=%dms", v.DurationMs()))
	})
	v.SetOnCompletionListener(func() {
		t.record(EventCompletion, fmt.Sprintf("position=%dms", v.CurrentPositionMs()))
	})
	v.SetOnSeekCompletionListener(func() {
		t.record(EventSeekComplete, fmt.Sprintf("position=%dms", v.CurrentPositionMs()))
	})
	v.SetOnBufferUpdateListener(func(percent int) {
		t.record(EventBuffer, fmt.Sprintf("%d%%", percent))
	})
	v.SetOnErrorListener(func(err error) bool {
		t.record(EventError, err.Error())
		return true
	})
	v.SetMetadataListener(func(md media.Metadata) {
		t.record(EventMetadata, fmt.Sprintf("at=%dms entries=%d", md.PresentationTimeMs, len(md.Entries)))
	})
	v.SetAnalyticsListener(func(e engine.AnalyticsEvent) {
		t.record(EventAnalytics, e.Name)
	})
	v.SetOnVideoSizeChangedListener(func(size player.VideoSize) {
		t.record(EventVideoSize, fmt.Sprintf("%dx%d", size.Width, size.Height))
	})
}
