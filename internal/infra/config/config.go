// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/osa030/camper/internal/domain/catalog"
)

// Config represents the application configuration.
type Config struct {
	Logging  LoggingConfig           `yaml:"logging"`
	Player   PlayerConfig            `yaml:"player"`
	Bandcamp BandcampConfig          `yaml:"bandcamp"`
	Mpris    MprisConfig             `yaml:"mpris"`
	Presets  map[string]PresetConfig `yaml:"presets"`
	Filters  map[string]FilterConfig `yaml:"filters"`
}

// FilterConfig represents a track filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// LoggingConfig represents logger configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Output string `yaml:"output" default:"stdout"`
	File   string `yaml:"file"`
}

// PlayerConfig represents playback configuration.
type PlayerConfig struct {
	LoadingTimeoutMs int     `yaml:"loading_timeout_ms" default:"15000" validate:"gte=1000,lte=120000"`
	TickIntervalMs   int     `yaml:"tick_interval_ms" default:"500" validate:"gte=100,lte=5000"`
	Volume           float64 `yaml:"volume" default:"1.0" validate:"gte=0,lte=1"`
}

// LoadingTimeout returns the bound on stream resolution plus engine load.
func (c PlayerConfig) LoadingTimeout() time.Duration {
	return time.Duration(c.LoadingTimeoutMs) * time.Millisecond
}

// TickInterval returns the position report interval.
func (c PlayerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// BandcampConfig represents catalog client configuration.
type BandcampConfig struct {
	BaseURL           string  `yaml:"base_url" default:"https://bandcamp.com"`
	UserAgent         string  `yaml:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"4" validate:"gt=0,lte=20"`
	TimeoutSec        int     `yaml:"timeout_sec" default:"15" validate:"gte=1,lte=120"`
}

// Timeout returns the HTTP request timeout.
func (c BandcampConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// MprisConfig represents OS media integration configuration.
type MprisConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether the MPRIS surface should be exported.
// Defaults to true when unset.
func (c MprisConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// PresetConfig is a named discover feed preset. Settings is a free-form
// map decoded into DiscoverParams on access.
type PresetConfig struct {
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults so the player runs without any configuration at all.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err != nil && os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, errors.Wrap(err, "failed to read config file")
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	for name := range c.Presets {
		if _, err := c.DiscoverPreset(name); err != nil {
			return errors.Wrapf(err, "preset %q", name)
		}
	}
	return nil
}

// IsFilterEnabled checks if a track filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings for a track filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}

// DiscoverPreset decodes the named preset into discover parameters.
// Unset fields fall back to the feed defaults.
func (c *Config) DiscoverPreset(name string) (catalog.DiscoverParams, error) {
	preset, ok := c.Presets[name]
	if !ok {
		return catalog.DiscoverParams{}, errors.Newf("unknown preset %q", name)
	}

	params := catalog.DefaultDiscoverParams()
	if err := mapstructure.Decode(preset.Settings, &params); err != nil {
		return catalog.DiscoverParams{}, errors.Wrap(err, "failed to decode preset settings")
	}

	if !catalog.ValidGenre(params.Genre) {
		return catalog.DiscoverParams{}, errors.Newf("unknown genre %q", params.Genre)
	}
	if !catalog.ValidSort(params.Sort) {
		return catalog.DiscoverParams{}, errors.Newf("unknown sort %q", params.Sort)
	}
	if !catalog.ValidFormat(params.Format) {
		return catalog.DiscoverParams{}, errors.Newf("unknown format %q", params.Format)
	}
	return params, nil
}
