// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package config holds the run configuration of the mesh example programs.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/Tehforsch/subsweep-sub001/halo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is a run configuration. Zero fields in a loaded file keep their
// defaults.
type Config struct {
	Dimension int          `yaml:"dimension"`
	Workers   int          `yaml:"workers"`
	Points    PointsConfig `yaml:"points"`
	Halo      HaloConfig   `yaml:"halo"`
	Output    OutputConfig `yaml:"output"`
	Log       LogConfig    `yaml:"log"`
}

type PointsConfig struct {
	Count int   `yaml:"count"`
	Seed  int64 `yaml:"seed"`
}

type HaloConfig struct {
	SafetyFactor float64 `yaml:"safety_factor"`
	// MaxRounds bounds the number of halo rounds; 0 means unbounded.
	MaxRounds   int    `yaml:"max_rounds"`
	Termination string `yaml:"termination"`
}

type OutputConfig struct {
	// SVGDir enables SVG dumps into the directory when set.
	SVGDir string `yaml:"svg_dir"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Dimension: 2,
		Workers:   4,
		Points:    PointsConfig{Count: 1000, Seed: 0},
		Halo: HaloConfig{
			SafetyFactor: halo.DefaultSafetyFactor,
			Termination:  halo.Global.String(),
		},
	}
}

// Load reads a YAML configuration from path on top of Default and validates
// the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: read")
	}
	return Parse(data)
}

// Parse decodes a YAML configuration on top of Default and validates the
// result. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the ranges of all fields.
func (c Config) Validate() error {
	switch {
	case c.Dimension != 2 && c.Dimension != 3:
		return errors.Errorf("config: dimension must be 2 or 3, got %d", c.Dimension)
	case c.Workers < 1:
		return errors.Errorf("config: workers must be at least 1, got %d", c.Workers)
	case c.Points.Count < 0:
		return errors.Errorf("config: points.count must not be negative, got %d", c.Points.Count)
	case c.Halo.SafetyFactor < 1:
		return errors.Errorf("config: halo.safety_factor must be at least 1, got %v", c.Halo.SafetyFactor)
	case c.Halo.MaxRounds < 0:
		return errors.Errorf("config: halo.max_rounds must not be negative, got %d", c.Halo.MaxRounds)
	}
	if _, err := halo.ParseTermination(c.Halo.Termination); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

// Termination returns the parsed halo termination rule.
func (c Config) Termination() halo.Termination {
	t, _ := halo.ParseTermination(c.Halo.Termination)
	return t
}
