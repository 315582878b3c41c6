// Package config loads the instrument settings from
// ~/.config/pigeon/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// CanvasConfig is the drawing area of one track in pixels.
type CanvasConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Config is the main configuration structure.
type Config struct {
	SampleRate int          `yaml:"sampleRate"`
	Tracks     int          `yaml:"tracks"`
	Canvas     CanvasConfig `yaml:"canvas"`
	BPM        float64      `yaml:"bpm"`
	MasterGain float64      `yaml:"masterGain"`
	Lookahead  float64      `yaml:"lookahead"`
	// Effects are master chain directives such as "comp -24,12,3,250,0,30".
	Effects  []string `yaml:"effects"`
	BankPath string   `yaml:"bankPath,omitempty"`
	DebugLog string   `yaml:"debugLog,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SampleRate: 44100,
		Tracks:     4,
		Canvas:     CanvasConfig{Width: 700, Height: 100},
		BPM:        120,
		MasterGain: 0.5,
		Lookahead:  0.1,
		Effects:    []string{"comp -24,12,3,250,0,30"},
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pigeon"), nil
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from the default location, or returns defaults if
// it does not exist.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields defaults; keys
// absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.Tracks <= 0 {
		c.Tracks = def.Tracks
	}
	if c.Canvas.Width <= 0 {
		c.Canvas.Width = def.Canvas.Width
	}
	if c.Canvas.Height <= 0 {
		c.Canvas.Height = def.Canvas.Height
	}
	if c.MasterGain < 0 {
		c.MasterGain = def.MasterGain
	}
	if c.Lookahead < 0 {
		c.Lookahead = def.Lookahead
	}
}

// Save writes the config to the default location.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveBankPath returns the pattern bank location: BankPath with ~
// expanded, or bank.json next to the config file.
func (c *Config) ResolveBankPath() (string, error) {
	if c.BankPath != "" {
		return homedir.Expand(c.BankPath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bank.json"), nil
}

// ResolveDebugLog returns DebugLog with ~ expanded, or "" when disabled.
func (c *Config) ResolveDebugLog() (string, error) {
	if c.DebugLog == "" {
		return "", nil
	}
	return homedir.Expand(c.DebugLog)
}
