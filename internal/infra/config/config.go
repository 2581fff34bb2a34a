// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player   PlayerConfig   `yaml:"player"`
	Device   DeviceConfig   `yaml:"device"`
	Backends BackendsConfig `yaml:"backends"`
	Log      LogConfig      `yaml:"log"`
}

// PlayerConfig represents the façade and listener mux configuration.
type PlayerConfig struct {
	Backend                       string `yaml:"backend" default:"auto" validate:"oneof=auto rich fallback"`
	CompletionLeewayMs            int    `yaml:"completion_leeway_ms" default:"1000" validate:"gte=0,lte=60000"`
	BufferPollMs                  int    `yaml:"buffer_poll_ms" default:"1000" validate:"gte=50,lte=60000"`
	PreparedRequiresPlayWhenReady bool   `yaml:"prepared_requires_play_when_ready"`
}

// DeviceConfig describes the device the capability probe inspects.
type DeviceConfig struct {
	Manufacturer string `yaml:"manufacturer" default:"generic"`
	Model        string `yaml:"model" default:"sim"`
	APILevel     int    `yaml:"api_level" default:"28" validate:"gte=1"`
}

// BackendsConfig represents backend selection and tuning.
type BackendsConfig struct {
	MinRichAPILevel int           `yaml:"min_rich_api_level" default:"16" validate:"gte=1"`
	Incompatible    []DeviceEntry `yaml:"incompatible" default:"[{\"manufacturer\":\"Amazon\",\"model\":\"AFTM\"},{\"manufacturer\":\"Amazon\",\"model\":\"AFTB\"}]" validate:"dive"`
	// Fallback is decoded by the fallback backend.
	Fallback map[string]any `yaml:"fallback,omitempty"`
}

// DeviceEntry identifies a device. An empty model matches every model.
type DeviceEntry struct {
	Manufacturer string `yaml:"manufacturer" json:"manufacturer" validate:"required"`
	Model        string `yaml:"model" json:"model"`
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File   string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return Parse(nil)
}

// Parse builds a configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PLAYMUX_BACKEND"); v != "" {
		c.Player.Backend = v
	}
	if v := os.Getenv("PLAYMUX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Log.Output != "" && c.Log.Output != "stdout" && c.Log.Output != "stderr" && c.Log.File == "" {
		return errors.Newf("log output %q requires log file", c.Log.Output)
	}
	return nil
}
