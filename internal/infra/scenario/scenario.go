// Package scenario loads scripted playback sessions and runs them against the
// simulated engines.
package scenario

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/playmux/internal/domain/track"
	"github.com/osa030/playmux/internal/infra/engine"
	"github.com/osa030/playmux/internal/infra/simengine"
)

// Scenario is one scripted session.
type Scenario struct {
	Name string `yaml:"name" validate:"required"`
	// Backend forces a backend kind. Empty leaves the choice to the probe.
	Backend string     `yaml:"backend" validate:"omitempty,oneof=auto rich fallback"`
	Engine  EngineSpec `yaml:"engine"`
	Steps   []Step     `yaml:"steps" validate:"min=1,dive"`
}

// EngineSpec configures whichever simulated engine the probe picks.
type EngineSpec struct {
	DurationMs      int64          `yaml:"duration_ms" default:"10000" validate:"gt=0"`
	AutoAdvance     bool           `yaml:"auto_advance"`
	BufferedPercent int            `yaml:"buffered_percent" validate:"gte=0,lte=100"`
	PrepareDelayMs  int            `yaml:"prepare_delay_ms" default:"100" validate:"gte=0"`
	SeekDelayMs     int            `yaml:"seek_delay_ms" default:"50" validate:"gte=0"`
	SupportsSpeed   bool           `yaml:"supports_speed"`
	VideoWidth      int            `yaml:"video_width" validate:"gte=0"`
	VideoHeight     int            `yaml:"video_height" validate:"gte=0"`
	Renderers       []RendererSpec `yaml:"renderers" validate:"dive"`
}

// RendererSpec is one renderer of the rich engine's track mapping.
type RendererSpec struct {
	Type   string         `yaml:"type" validate:"oneof=audio video text metadata"`
	Groups [][]FormatSpec `yaml:"groups" validate:"min=1"`
}

// FormatSpec is one track of a group.
type FormatSpec struct {
	ID       string `yaml:"id"`
	MimeType string `yaml:"mime_type"`
	Language string `yaml:"language"`
	Bitrate  int    `yaml:"bitrate"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
}

// Step is one action with its arguments.
type Step struct {
	Action string         `yaml:"action" validate:"required"`
	Args   map[string]any `yaml:"args"`
}

var trackTypes = map[string]engine.TrackType{
	"audio":    engine.TrackTypeAudio,
	"video":    engine.TrackTypeVideo,
	"text":     engine.TrackTypeText,
	"metadata": engine.TrackTypeMetadata,
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	return Parse(data)
}

// Parse decodes and validates a scenario, including the arguments of every step.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "failed to parse scenario")
	}

	if err := defaults.Set(&sc); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(sc); err != nil {
		return nil, errors.Wrap(err, "scenario validation failed")
	}

	for i, step := range sc.Steps {
		if _, _, err := step.bind(); err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", i+1, step.Action)
		}
	}
	return &sc, nil
}

func (s Step) bind() (Action, Op, error) {
	action, ok := Lookup(s.Action)
	if !ok {
		return Action{}, nil, errors.Newf("unknown action %q", s.Action)
	}
	op, err := action.bind(s.Args)
	if err != nil {
		return Action{}, nil, err
	}
	return action, op, nil
}

// RichOptions converts the engine settings for the rich engine.
func (e EngineSpec) RichOptions() simengine.RichOptions {
	renderers := make([]engine.MappedRenderer, 0, len(e.Renderers))
	for _, r := range e.Renderers {
		groups := make([]track.Group, 0, len(r.Groups))
		for _, g := range r.Groups {
			formats := make([]track.Format, 0, len(g))
			for _, f := range g {
				formats = append(formats, track.Format{
					ID:       f.ID,
					MimeType: f.MimeType,
					Language: f.Language,
					Bitrate:  f.Bitrate,
					Width:    f.Width,
					Height:   f.Height,
				})
			}
			groups = append(groups, track.Group{Formats: formats})
		}
		renderers = append(renderers, engine.MappedRenderer{Type: trackTypes[r.Type], Groups: groups})
	}

	return simengine.RichOptions{
		DurationMs:      e.DurationMs,
		BufferedPercent: e.BufferedPercent,
		AutoAdvance:     e.AutoAdvance,
		PrepareDelay:    time.Duration(e.PrepareDelayMs) * time.Millisecond,
		SeekDelay:       time.Duration(e.SeekDelayMs) * time.Millisecond,
		Renderers:       renderers,
	}
}

// FallbackOptions converts the engine settings for the fallback engine.
func (e EngineSpec) FallbackOptions() simengine.FallbackOptions {
	return simengine.FallbackOptions{
		DurationMs:    e.DurationMs,
		AutoAdvance:   e.AutoAdvance,
		PrepareDelay:  time.Duration(e.PrepareDelayMs) * time.Millisecond,
		SeekDelay:     time.Duration(e.SeekDelayMs) * time.Millisecond,
		SupportsSpeed: e.SupportsSpeed,
		VideoWidth:    e.VideoWidth,
		VideoHeight:   e.VideoHeight,
	}
}
