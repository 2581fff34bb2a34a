package backend

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playmux/internal/app/backend/fallback"
	"github.com/osa030/playmux/internal/app/backend/rich"
	"github.com/osa030/playmux/internal/app/looper"
	"github.com/osa030/playmux/internal/infra/config"
	"github.com/osa030/playmux/internal/infra/engine"
)

// Engines builds the wrapped engines on demand. Only the chosen one is built.
type Engines struct {
	Rich     func() engine.RichEngine
	Fallback func() engine.FallbackEngine
}

// Options selects and tunes a backend.
type Options struct {
	Probe            Probe
	Capabilities     Capabilities
	BufferInterval   time.Duration
	FallbackSettings fallback.Settings
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	kind, err := ParseKind(cfg.Player.Backend)
	if err != nil {
		return Options{}, err
	}
	settings, err := fallback.ParseSettings(cfg.Backends.Fallback)
	if err != nil {
		return Options{}, errors.Wrap(err, "invalid fallback backend settings")
	}

	incompatible := make([]Device, 0, len(cfg.Backends.Incompatible))
	for _, d := range cfg.Backends.Incompatible {
		incompatible = append(incompatible, Device{Manufacturer: d.Manufacturer, Model: d.Model})
	}

	return Options{
		Probe: Probe{
			Forced:          kind,
			MinRichAPILevel: cfg.Backends.MinRichAPILevel,
			Incompatible:    incompatible,
		},
		Capabilities: Capabilities{
			Manufacturer: cfg.Device.Manufacturer,
			Model:        cfg.Device.Model,
			APILevel:     cfg.Device.APILevel,
		},
		BufferInterval:   time.Duration(cfg.Player.BufferPollMs) * time.Millisecond,
		FallbackSettings: settings,
	}, nil
}

// Select builds the backend the probe picks for the device.
func Select(handler looper.Handler, opts Options, engines Engines) (VideoPlayerAPI, Kind, error) {
	kind := opts.Probe.Choose(opts.Capabilities)
	zlog.Debug().Msgf("backend probe: device=%s/%s api=%d forced=%s chose=%s",
		opts.Capabilities.Manufacturer, opts.Capabilities.Model, opts.Capabilities.APILevel, opts.Probe.Forced, kind)

	switch kind {
	case KindRich:
		if engines.Rich == nil {
			return nil, kind, errors.New("no rich engine available")
		}
		return rich.New(engines.Rich(), handler, opts.BufferInterval), kind, nil
	case KindFallback:
		if engines.Fallback == nil {
			return nil, kind, errors.New("no fallback engine available")
		}
		return fallback.New(engines.Fallback(), opts.FallbackSettings, opts.Capabilities.APILevel), kind, nil
	default:
		return nil, kind, errors.Newf("unsupported backend kind: %s", kind)
	}
}
