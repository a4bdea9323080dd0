// SPDX-License-Identifier: MIT
package postfx

import (
	"encoding/json"
	"errors"
	"fmt"

	"audioviz/internal/render"
)

// ErrConfig wraps decode failures.
var ErrConfig = errors.New("invalid post-processing config")

// BloomConfig adds a blurred copy of the bright areas.
type BloomConfig struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"` // luminance where glow starts
	Intensity float64 `json:"intensity"`
	Radius    int     `json:"radius"` // blur radius in half-resolution pixels
}

// ChromaticConfig offsets the red and blue channels radially.
type ChromaticConfig struct {
	Enabled bool    `json:"enabled"`
	Offset  float64 `json:"offset"` // pixels at the frame edge
}

// VignetteConfig darkens toward the corners.
type VignetteConfig struct {
	Enabled  bool    `json:"enabled"`
	Strength float64 `json:"strength"`
	Radius   float64 `json:"radius"` // normalized distance where darkening starts
}

// GradingConfig adjusts the whole frame.
type GradingConfig struct {
	Enabled    bool         `json:"enabled"`
	Brightness float64      `json:"brightness"`
	Contrast   float64      `json:"contrast"`
	Saturation float64      `json:"saturation"`
	Tint       render.Color `json:"tint"`
	TintAmount float64      `json:"tintAmount"`
}

// GrainConfig adds time-seeded noise.
type GrainConfig struct {
	Enabled bool    `json:"enabled"`
	Amount  float64 `json:"amount"`
}

// Config groups the effects. They apply in field order.
type Config struct {
	Bloom     BloomConfig     `json:"bloom"`
	Chromatic ChromaticConfig `json:"chromaticAberration"`
	Vignette  VignetteConfig  `json:"vignette"`
	Grading   GradingConfig   `json:"colorGrading"`
	Grain     GrainConfig     `json:"filmGrain"`
}

// DefaultConfig has every effect off with usable parameters.
func DefaultConfig() Config {
	return Config{
		Bloom:     BloomConfig{Threshold: 0.6, Intensity: 0.8, Radius: 6},
		Chromatic: ChromaticConfig{Offset: 3},
		Vignette:  VignetteConfig{Strength: 0.6, Radius: 0.5},
		Grading:   GradingConfig{Contrast: 1, Saturation: 1, Tint: render.White},
		Grain:     GrainConfig{Amount: 0.06},
	}
}

// Validate clamps parameters into working ranges.
func (c *Config) Validate() error {
	c.Bloom.Threshold = clamp(c.Bloom.Threshold, 0, 0.99)
	c.Bloom.Intensity = clamp(c.Bloom.Intensity, 0, 5)
	c.Bloom.Radius = min(max(c.Bloom.Radius, 1), 32)
	c.Chromatic.Offset = clamp(c.Chromatic.Offset, 0, 50)
	c.Vignette.Strength = clamp(c.Vignette.Strength, 0, 1)
	c.Vignette.Radius = clamp(c.Vignette.Radius, 0, 0.99)
	c.Grading.Brightness = clamp(c.Grading.Brightness, -1, 1)
	c.Grading.Contrast = clamp(c.Grading.Contrast, 0, 4)
	c.Grading.Saturation = clamp(c.Grading.Saturation, 0, 4)
	c.Grading.TintAmount = clamp(c.Grading.TintAmount, 0, 1)
	c.Grain.Amount = clamp(c.Grain.Amount, 0, 1)
	return nil
}

// Any reports whether at least one effect is enabled.
func (c Config) Any() bool {
	return c.Bloom.Enabled || c.Chromatic.Enabled || c.Vignette.Enabled || c.Grading.Enabled || c.Grain.Enabled
}

func decodeConfig(data []byte, dst *Config) error {
	next := DefaultConfig()
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	*dst = next
	return nil
}

func clamp(v, lo, hi float64) float64 { return min(max(v, lo), hi) }
