// SPDX-License-Identifier: MIT
package visual

import (
	"encoding/json"
	"fmt"

	"audioviz/internal/anim"
	"audioviz/internal/render"
)

// FPSConfig places the frame-rate overlay.
type FPSConfig struct {
	X          int          `json:"x"` // pixels from the left edge
	Y          int          `json:"y"` // pixels from the top edge
	ShowMinMax bool         `json:"showMinMax"`
	Color      render.Color `json:"color"`
	Background render.Color `json:"background"`
}

// DefaultFPSConfig returns the defaults used for missing fields.
func DefaultFPSConfig() FPSConfig {
	return FPSConfig{
		X:          8,
		Y:          8,
		ShowMinMax: true,
		Color:      render.White,
		Background: render.Black.WithAlpha(0.5),
	}
}

// Validate keeps the overlay on screen.
func (c *FPSConfig) Validate() error {
	c.X = max(c.X, 0)
	c.Y = max(c.Y, 0)
	return nil
}

// FPS is the frame-rate overlay. It ignores audio.
type FPS struct {
	cfg   FPSConfig
	stats anim.FrameStats
	lines []string
}

// NewFPS returns an overlay with default config.
func NewFPS() *FPS { return &FPS{cfg: DefaultFPSConfig()} }

func (o *FPS) Type() string { return TypeFPS }

// Config returns a copy of the current config.
func (o *FPS) Config() FPSConfig { return o.cfg }

func (o *FPS) Initialize() error { return nil }

// Reading returns the current statistics.
func (o *FPS) Reading() anim.FPSReading { return o.stats.Reading() }

// ResetStats clears the rolling history.
func (o *FPS) ResetStats() { o.stats.Reset() }

func (o *FPS) Update(f *Frame) {
	o.stats.Tick(f.DT)
	r := o.stats.Reading()
	o.lines = append(o.lines[:0], fmt.Sprintf("FPS %5.1f", r.Current))
	if o.cfg.ShowMinMax {
		o.lines = append(o.lines, fmt.Sprintf("min %5.1f max %5.1f avg %5.1f", r.Min, r.Max, r.Avg))
	}
}

func (o *FPS) Render(c *render.Canvas) {
	if len(o.lines) == 0 {
		return
	}
	w, lh := 0, 0
	for _, l := range o.lines {
		lw, h := c.TextSize(l)
		w, lh = max(w, lw), h
	}
	const pad = 4
	c.FillRect(float32(o.cfg.X), float32(o.cfg.Y), float32(w+2*pad), float32(lh*len(o.lines)+2*pad), o.cfg.Background)
	for i, l := range o.lines {
		c.DrawText(o.cfg.X+pad, o.cfg.Y+pad+i*lh, l, o.cfg.Color)
	}
}

func (o *FPS) SaveConfig() ([]byte, error) { return json.Marshal(o.cfg) }

func (o *FPS) LoadConfig(data []byte) error {
	return decodeConfig(data, &o.cfg, DefaultFPSConfig())
}

func (o *FPS) Dispose() { o.lines = nil }
