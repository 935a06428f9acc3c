// Package config loads server configuration from a YAML file, falling back
// to defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Listen  string  `yaml:"listen"`
	DBPath  string  `yaml:"db_path"`
	Preview Preview `yaml:"preview"`
	Beep    Beep    `yaml:"beep"`
}

// Preview tunes the allocation preview resolver.
type Preview struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	DebounceMillis int `yaml:"debounce_millis"`
}

// Beep tunes the scanner error tone.
type Beep struct {
	FrequencyHz    float64 `yaml:"frequency_hz"`
	DurationMillis int     `yaml:"duration_millis"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen: ":9000",
		DBPath: "orderpad.db",
		Preview: Preview{
			TimeoutSeconds: 10,
			DebounceMillis: 200,
		},
		Beep: Beep{
			FrequencyHz:    880,
			DurationMillis: 120,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// PreviewTimeout returns the preview timeout as a duration.
func (c Config) PreviewTimeout() time.Duration {
	return time.Duration(c.Preview.TimeoutSeconds) * time.Second
}

// PreviewDebounce returns the preview debounce window as a duration.
func (c Config) PreviewDebounce() time.Duration {
	return time.Duration(c.Preview.DebounceMillis) * time.Millisecond
}

// BeepDuration returns the error tone length as a duration.
func (c Config) BeepDuration() time.Duration {
	return time.Duration(c.Beep.DurationMillis) * time.Millisecond
}
