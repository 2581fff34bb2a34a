package fallback

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Settings tunes the fallback backend.
type Settings struct {
	// MinSpeedAPILevel is the first platform API level with native speed control.
	MinSpeedAPILevel int `yaml:"min_speed_api_level" mapstructure:"min_speed_api_level" default:"23" validate:"gte=1"`
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	s, _ := ParseSettings(nil)
	return s
}

// ParseSettings decodes a backend settings map.
func ParseSettings(raw map[string]any) (Settings, error) {
	var s Settings

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Settings{}, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return Settings{}, errors.Wrap(err, "failed to decode fallback settings")
	}

	if err := defaults.Set(&s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return Settings{}, errors.Wrap(err, "fallback settings validation failed")
	}
	return s, nil
}
