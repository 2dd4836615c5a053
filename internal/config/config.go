// Package config loads reader settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/folio-reader/folio/internal/position"
	"github.com/folio-reader/folio/internal/speech"
)

// Config holds user-tunable reader settings. Flag values override
// anything loaded from the file.
type Config struct {
	// Voice names the narration voice; empty selects the synthesizer
	// default.
	Voice string `yaml:"voice"`

	// Rate is the speaking-rate multiplier, clamped to [0.5, 2.0].
	Rate float64 `yaml:"rate"`

	// Scale is the initial zoom / text scale.
	Scale float64 `yaml:"scale"`

	// StateDir overrides where reading positions are stored.
	StateDir string `yaml:"state_dir"`

	// SpeechCommand overrides speech-command autodetection
	// (espeak-ng, espeak, say).
	SpeechCommand string `yaml:"speech_command"`
}

func (c *Config) defaults() {
	if c.Rate == 0 {
		c.Rate = 1.0
	}
	c.Rate = speech.ClampRate(c.Rate)
	if c.Scale == 0 {
		c.Scale = 1.0
	}
	if c.StateDir == "" {
		c.StateDir = position.DefaultDir()
	}
}

// Load reads the config file at path. A missing file yields defaults;
// a malformed file is an error.
func Load(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.defaults()
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	c.defaults()
	return c, nil
}

// DefaultPath returns XDG_CONFIG_HOME/folio/config.yaml or
// ~/.config/folio/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "folio", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "folio", "config.yaml")
}
