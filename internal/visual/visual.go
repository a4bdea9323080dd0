// SPDX-License-Identifier: MIT

// Package visual holds the visualizer variants. Each variant owns its
// configuration and animation state; the registry drives Update once per
// frame and Render once per frame, in that order.
package visual

import (
	"encoding/json"
	"errors"
	"fmt"

	"audioviz/internal/analysis"
	applog "audioviz/internal/log"
	"audioviz/internal/render"
)

var visLog = applog.Named("visual")

var (
	// ErrUnknownType is returned by New for an unregistered type name.
	ErrUnknownType = errors.New("unknown visualizer type")
	// ErrConfig wraps configuration decode and validation failures.
	ErrConfig = errors.New("invalid visualizer config")
)

// Frame is the per-frame input shared by every instance. Slices are owned
// by the caller and only valid during Update.
type Frame struct {
	Waveform   []float64
	Spectrum   []float64
	DT         float64 // seconds since the previous frame
	Time       float64 // seconds since start
	Viewport   render.Viewport
	SampleRate float64
	Features   analysis.Features
}

// Nyquist returns half the sample rate, or 24 kHz when unknown.
func (f *Frame) Nyquist() float64 {
	if f.SampleRate <= 0 {
		return 24000
	}
	return f.SampleRate / 2
}

// Visualizer is the capability set every variant implements.
type Visualizer interface {
	Type() string
	// Initialize acquires resources. It is idempotent and is called again
	// after every LoadConfig.
	Initialize() error
	// Update advances animation state. It never draws.
	Update(f *Frame)
	// Render draws the current state. An instance with nothing to show
	// draws nothing.
	Render(c *render.Canvas)
	SaveConfig() ([]byte, error)
	// LoadConfig replaces the config. Missing fields take type defaults;
	// on error the previous config is kept.
	LoadConfig(data []byte) error
	Dispose()
}

// Resetter is implemented by variants that keep resettable statistics.
type Resetter interface {
	ResetStats()
}

// Source selects which array drives a variant.
type Source string

const (
	SourceWaveform Source = "waveform"
	SourceSpectrum Source = "spectrum"
)

func (s Source) valid() bool { return s == SourceWaveform || s == SourceSpectrum }

func (f *Frame) data(s Source) []float64 {
	if s == SourceSpectrum {
		return f.Spectrum
	}
	return f.Waveform
}

// TrailConfig is shared by variants that support fade trails.
type TrailConfig struct {
	Enabled   bool    `json:"enableFadeTrail"`
	Length    int     `json:"trailLength"`
	FadeSpeed float64 `json:"fadeSpeed"`
}

// Trail bounds.
const (
	MinTrailLength = 1
	MaxTrailLength = 200
	MinFadeSpeed   = 0.01
	MaxFadeSpeed   = 0.99
)

var defaultTrail = TrailConfig{Enabled: false, Length: 20, FadeSpeed: 0.9}

func (t *TrailConfig) normalize() {
	t.Length = min(max(t.Length, MinTrailLength), MaxTrailLength)
	t.FadeSpeed = min(max(t.FadeSpeed, MinFadeSpeed), MaxFadeSpeed)
}

// frameLength returns the trail bound for the current mode; direct mode
// keeps only the current frame.
func (t TrailConfig) frameLength() int {
	if !t.Enabled {
		return 1
	}
	return t.Length
}

type validator interface {
	Validate() error
}

// decodeConfig decodes data over a copy of defaults, validates it, and only
// then stores it in dst.
func decodeConfig[C any, PC interface {
	*C
	validator
}](data []byte, dst *C, defaults C) error {
	next := defaults
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := PC(&next).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	*dst = next
	return nil
}

func clamp(v, lo, hi float64) float64 { return min(max(v, lo), hi) }
