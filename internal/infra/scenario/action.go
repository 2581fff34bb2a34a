package scenario

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/playmux/internal/domain/media"
	"github.com/osa030/playmux/internal/domain/track"
	"github.com/osa030/playmux/internal/infra/engine"
)

// ErrUnsupportedAction is returned when an action needs the other engine.
var ErrUnsupportedAction = errors.New("action not supported by the selected engine")

// Op runs one bound step against the target.
type Op func(ctx context.Context, t *Target) error

// Action is a scenario step kind.
type Action struct {
	Name        string
	Description string
	// Blocking actions run off the main thread and may take time.
	Blocking bool

	bind func(args map[string]any) (Op, error)
}

// registry holds the known actions by name.
var registry = make(map[string]Action)

func register(a Action) {
	registry[a.Name] = a
}

// Lookup returns the action called name.
func Lookup(name string) (Action, bool) {
	a, ok := registry[name]
	return a, ok
}

// Actions returns every action sorted by name.
func Actions() []Action {
	out := make([]Action, 0, len(registry))
	for _, a := range registry {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// decode converts step arguments into T, then applies defaults and validation.
// Unknown keys are rejected.
func decode[T any](args map[string]any) (T, error) {
	var out T

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return out, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(args); err != nil {
		return out, errors.Wrap(err, "failed to decode args")
	}

	if err := defaults.Set(&out); err != nil {
		return out, errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return out, errors.Wrap(err, "args validation failed")
	}
	return out, nil
}

// simple registers an action without arguments.
func simple(name, description string, run func(t *Target) error) {
	register(Action{
		Name:        name,
		Description: description,
		bind: func(args map[string]any) (Op, error) {
			if _, err := decode[struct{}](args); err != nil {
				return nil, err
			}
			return func(_ context.Context, t *Target) error { return run(t) }, nil
		},
	})
}

// withArgs registers an action taking arguments of type T.
func withArgs[T any](name, description string, blocking bool, run func(ctx context.Context, t *Target, args T) error) {
	register(Action{
		Name:        name,
		Description: description,
		Blocking:    blocking,
		bind: func(raw map[string]any) (Op, error) {
			args, err := decode[T](raw)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, t *Target) error { return run(ctx, t, args) }, nil
		},
	})
}

type uriArgs struct {
	URI string `mapstructure:"uri" validate:"required"`
}

type stopArgs struct {
	ClearSurface bool `mapstructure:"clear_surface"`
}

type seekArgs struct {
	Ms int64 `mapstructure:"ms" validate:"gte=0"`
}

type waitArgs struct {
	Ms int64 `mapstructure:"ms" validate:"gt=0"`
}

type speedArgs struct {
	Speed float32 `mapstructure:"speed" validate:"gt=0"`
}

type volumeArgs struct {
	Volume float32 `mapstructure:"volume" validate:"gte=0,lte=1"`
}

type trackArgs struct {
	Type  string `mapstructure:"type" validate:"oneof=audio video closed_caption metadata"`
	Group int    `mapstructure:"group" validate:"gte=0"`
	Track int    `mapstructure:"track" validate:"gte=0"`
}

type rendererArgs struct {
	Type string `mapstructure:"type" validate:"oneof=audio video closed_caption metadata"`
}

type rendererEnabledArgs struct {
	Type    string `mapstructure:"type" validate:"oneof=audio video closed_caption metadata"`
	Enabled bool   `mapstructure:"enabled"`
}

type engineStateArgs struct {
	State string `mapstructure:"state" validate:"oneof=idle buffering ready ended"`
}

type bufferingArgs struct {
	Event   string `mapstructure:"event" validate:"oneof=start end update"`
	Resumed bool   `mapstructure:"resumed"`
	Percent int    `mapstructure:"percent" validate:"gte=0,lte=100"`
}

type failArgs struct {
	Message string `mapstructure:"message" default:"scripted failure"`
	What    int    `mapstructure:"what" default:"1"`
	Extra   int    `mapstructure:"extra" default:"-1004"`
}

type videoSizeArgs struct {
	Width  int `mapstructure:"width" validate:"gt=0"`
	Height int `mapstructure:"height" validate:"gt=0"`
}

var engineStates = map[string]engine.State{
	"idle":      engine.StateIdle,
	"buffering": engine.StateBuffering,
	"ready":     engine.StateReady,
	"ended":     engine.StateEnded,
}

func rendererType(s string) track.RendererType {
	t, _ := track.ParseRendererType(s)
	return t
}

func init() {
	withArgs("set_media", "Load a media URI and start preparing it", false,
		func(_ context.Context, t *Target, a uriArgs) error {
			t.View.SetMedia(media.NewItem(a.URI))
			return nil
		})
	simple("start", "Start or resume playback", func(t *Target) error {
		t.View.Start()
		return nil
	})
	simple("pause", "Pause playback", func(t *Target) error {
		t.View.Pause()
		return nil
	})
	withArgs("stop", "Stop playback, optionally blanking the surface", false,
		func(_ context.Context, t *Target, a stopArgs) error {
			t.View.StopPlayback(a.ClearSurface)
			return nil
		})
	withArgs("seek", "Seek to a position", false,
		func(_ context.Context, t *Target, a seekArgs) error {
			t.View.SeekTo(a.Ms)
			return nil
		})
	simple("restart", "Play the media again from the beginning", func(t *Target) error {
		if !t.View.Restart() {
			t.note("restart", "rejected in state "+t.View.PlaybackState().String())
		}
		return nil
	})
	withArgs("speed", "Change the playback speed", false,
		func(_ context.Context, t *Target, a speedArgs) error {
			if !t.View.SetPlaybackSpeed(a.Speed) {
				t.note("speed", "unsupported")
			}
			return nil
		})
	withArgs("volume", "Change the output volume", false,
		func(_ context.Context, t *Target, a volumeArgs) error {
			t.View.SetVolume(a.Volume)
			return nil
		})
	withArgs("select_track", "Pin a track of a logical group", false,
		func(_ context.Context, t *Target, a trackArgs) error {
			t.View.SetSelectedTrack(rendererType(a.Type), a.Group, a.Track)
			return nil
		})
	withArgs("clear_tracks", "Restore automatic track selection", false,
		func(_ context.Context, t *Target, a rendererArgs) error {
			t.View.ClearSelectedTracks(rendererType(a.Type))
			return nil
		})
	withArgs("renderer_enabled", "Enable or disable every renderer of a type", false,
		func(_ context.Context, t *Target, a rendererEnabledArgs) error {
			t.View.SetRendererEnabled(rendererType(a.Type), a.Enabled)
			return nil
		})
	withArgs("engine_state", "Move the rich engine to a raw state", false,
		func(_ context.Context, t *Target, a engineStateArgs) error {
			if t.Rich == nil {
				return ErrUnsupportedAction
			}
			t.Rich.SetEngineState(engineStates[a.State])
			return nil
		})
	withArgs("buffering", "Report a stall, its end or the buffered percentage from the fallback engine", false,
		func(_ context.Context, t *Target, a bufferingArgs) error {
			if t.Fallback == nil {
				return ErrUnsupportedAction
			}
			switch a.Event {
			case "start":
				t.Fallback.BufferingStart()
			case "end":
				t.Fallback.BufferingEnd(a.Resumed)
			case "update":
				t.Fallback.BufferingUpdate(a.Percent)
			}
			return nil
		})
	withArgs("fail", "Make the engine fail", false,
		func(_ context.Context, t *Target, a failArgs) error {
			switch {
			case t.Rich != nil:
				t.Rich.Fail(errors.New(a.Message))
			case t.Fallback != nil:
				t.Fallback.Fail(a.What, a.Extra)
			}
			return nil
		})
	simple("complete", "Make the engine play to the end", func(t *Target) error {
		switch {
		case t.Rich != nil:
			t.Rich.Complete()
		case t.Fallback != nil:
			t.Fallback.Complete()
		}
		return nil
	})
	withArgs("video_size", "Report a video size change", false,
		func(_ context.Context, t *Target, a videoSizeArgs) error {
			switch {
			case t.Rich != nil:
				t.Rich.EmitVideoSize(a.Width, a.Height)
			case t.Fallback != nil:
				t.Fallback.EmitVideoSize(a.Width, a.Height)
			}
			return nil
		})
	withArgs("wait", "Let time pass", true,
		func(ctx context.Context, t *Target, a waitArgs) error {
			return t.driver.Wait(ctx, time.Duration(a.Ms)*time.Millisecond)
		})
	simple("release", "Release the player", func(t *Target) error {
		t.View.Release()
		return nil
	})
}
