// SPDX-License-Identifier: MIT
package visual

import (
	"encoding/json"
	"fmt"
	"image"
	"image/draw"

	"audioviz/internal/anim"
	"audioviz/internal/render"
)

// Background modes.
const (
	BackgroundSolid    = "solid"
	BackgroundGradient = "gradient"
)

// BackgroundConfig fills the frame before any instance draws.
type BackgroundConfig struct {
	Mode        string       `json:"mode"`
	Color       render.Color `json:"color"` // solid colour, or gradient top
	Bottom      render.Color `json:"bottom"`
	Pulse       bool         `json:"pulse"`
	PulseColor  render.Color `json:"pulseColor"`
	PulseBand   string       `json:"pulseBand"`
	PulseAmount float64      `json:"pulseAmount"`
	Stiffness   float64      `json:"stiffness"` // spring angular frequency
	Damping     float64      `json:"damping"`
}

// DefaultBackgroundConfig returns the defaults used for missing fields.
func DefaultBackgroundConfig() BackgroundConfig {
	return BackgroundConfig{
		Mode:        BackgroundGradient,
		Color:       render.RGB(0.02, 0.02, 0.06),
		Bottom:      render.RGB(0.08, 0.02, 0.12),
		Pulse:       true,
		PulseColor:  render.RGB(0.25, 0.05, 0.3),
		PulseBand:   "bass",
		PulseAmount: 8,
		Stiffness:   8,
		Damping:     0.7,
	}
}

// Validate rejects unknown modes and clamps the spring.
func (c *BackgroundConfig) Validate() error {
	if c.Mode != BackgroundSolid && c.Mode != BackgroundGradient {
		return fmt.Errorf("unknown background mode %q", c.Mode)
	}
	c.PulseAmount = max(c.PulseAmount, 0)
	c.Stiffness = clamp(c.Stiffness, 0.1, 100)
	c.Damping = clamp(c.Damping, 0, 10)
	return nil
}

// Background is the registry's singleton backdrop. The pulse mix follows
// the configured band energy through a damped spring.
type Background struct {
	cfg    BackgroundConfig
	spring *anim.Spring
	mix    float64
}

// NewBackground returns a backdrop with default config.
func NewBackground() *Background {
	b := &Background{cfg: DefaultBackgroundConfig()}
	b.spring = anim.NewSpring(b.cfg.Stiffness, b.cfg.Damping)
	return b
}

func (b *Background) Type() string { return TypeBackground }

// Config returns a copy of the current config.
func (b *Background) Config() BackgroundConfig { return b.cfg }

// Mix returns the current pulse mix in [0, 1].
func (b *Background) Mix() float64 { return b.mix }

func (b *Background) Initialize() error {
	pos := b.spring.Value()
	b.spring = anim.NewSpring(b.cfg.Stiffness, b.cfg.Damping)
	b.spring.Reset(pos)
	return nil
}

func (b *Background) Update(f *Frame) {
	target := 0.0
	if b.cfg.Pulse {
		target = clamp(f.Features.Bands[b.cfg.PulseBand]*b.cfg.PulseAmount, 0, 1)
	}
	b.mix = clamp(b.spring.Update(target, f.DT), 0, 1)
}

func (b *Background) Render(c *render.Canvas) {
	top := b.cfg.Color.Lerp(b.cfg.PulseColor, float32(b.mix))
	if b.cfg.Mode == BackgroundSolid {
		c.Clear(top)
		return
	}
	bottom := b.cfg.Bottom.Lerp(b.cfg.PulseColor, float32(b.mix))
	dst := c.Image()
	r := dst.Bounds()
	h := max(r.Dy()-1, 1)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		col := top.Lerp(bottom, float32(y-r.Min.Y)/float32(h)).NRGBA()
		row := image.Rect(r.Min.X, y, r.Max.X, y+1)
		draw.Draw(dst, row, image.NewUniform(col), image.Point{}, draw.Src)
	}
}

func (b *Background) SaveConfig() ([]byte, error) { return json.Marshal(b.cfg) }

func (b *Background) LoadConfig(data []byte) error {
	return decodeConfig(data, &b.cfg, DefaultBackgroundConfig())
}

func (b *Background) Dispose() { b.spring.Reset(0) }
