// SPDX-License-Identifier: MIT
package visual

import (
	"encoding/json"
	"fmt"
	"image"

	"audioviz/internal/analysis"
	"audioviz/internal/anim"
	"audioviz/internal/render"
)

// ShaderConfig drives a full-viewport procedural effect.
type ShaderConfig struct {
	Program    string       `json:"program"`
	BaseSpeed  float64      `json:"baseSpeed"`
	AudioBoost float64      `json:"audioBoost"`
	Smoothing  float64      `json:"smoothing"`  // rate of the loudness follower, 1/s
	Resolution float64      `json:"resolution"` // offscreen scale of the viewport
	ColorA     render.Color `json:"colorA"`
	ColorB     render.Color `json:"colorB"`
	Opacity    float64      `json:"opacity"`
}

// DefaultShaderConfig returns the defaults used for missing fields.
func DefaultShaderConfig() ShaderConfig {
	return ShaderConfig{
		Program:    "plasma",
		BaseSpeed:  1,
		AudioBoost: 4,
		Smoothing:  8,
		Resolution: 0.25,
		ColorA:     render.RGB(0.05, 0.0, 0.2),
		ColorB:     render.RGB(0.0, 0.7, 0.9),
		Opacity:    1,
	}
}

// Validate clamps numeric ranges. Program names are checked by Initialize
// so a bad name surfaces as an instance error.
func (c *ShaderConfig) Validate() error {
	c.BaseSpeed = max(c.BaseSpeed, 0)
	c.AudioBoost = max(c.AudioBoost, 0)
	if c.Smoothing <= 0 {
		c.Smoothing = 8
	}
	c.Resolution = clamp(c.Resolution, 0.05, 1)
	c.Opacity = clamp(c.Opacity, 0, 1)
	return nil
}

// Shader evaluates a Program on a reduced-resolution buffer and scales it
// over the viewport.
type Shader struct {
	cfg     ShaderConfig
	program Program
	level   anim.ExpSmoother
	time    float64
	buf     *image.RGBA
	vp      render.Viewport
}

// NewShader returns an effect with default config.
func NewShader() *Shader {
	s := &Shader{cfg: DefaultShaderConfig()}
	s.level.Rate = s.cfg.Smoothing
	return s
}

func (s *Shader) Type() string { return TypeShader }

// Config returns a copy of the current config.
func (s *Shader) Config() ShaderConfig { return s.cfg }

// Time returns the accumulated shader time.
func (s *Shader) Time() float64 { return s.time }

// Level returns the smoothed loudness.
func (s *Shader) Level() float64 { return s.level.Value }

// Initialize resolves the program. An unknown name is reported as an error
// and the shader draws nothing until a valid config is loaded.
func (s *Shader) Initialize() error {
	s.level.Rate = s.cfg.Smoothing
	p, ok := lookupProgram(s.cfg.Program)
	if !ok {
		s.program = nil
		return fmt.Errorf("shader program %q not found", s.cfg.Program)
	}
	s.program = p
	return nil
}

// Update advances time by dt*(base + level*boost), where level follows the
// frame RMS with factor 1 - e^(-dt*smoothing).
func (s *Shader) Update(f *Frame) {
	s.vp = f.Viewport
	rms := 0.0
	if len(f.Waveform) > 0 {
		rms = analysis.RMS(f.Waveform)
	}
	level := s.level.Update(rms, f.DT)
	s.time += f.DT * (s.cfg.BaseSpeed + level*s.cfg.AudioBoost)
}

func (s *Shader) Render(c *render.Canvas) {
	if s.program == nil || s.vp.Empty() || s.cfg.Opacity <= 0 {
		return
	}
	w := max(int(float64(s.vp.Width)*s.cfg.Resolution), 1)
	h := max(int(float64(s.vp.Height)*s.cfg.Resolution), 1)
	if s.buf == nil || s.buf.Rect.Dx() != w || s.buf.Rect.Dy() != h {
		s.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	a := s.cfg.ColorA.WithAlpha(s.cfg.ColorA.A * float32(s.cfg.Opacity))
	b := s.cfg.ColorB.WithAlpha(s.cfg.ColorB.A * float32(s.cfg.Opacity))
	level := s.level.Value
	for y := range h {
		v := float64(y) / float64(h)
		for x := range w {
			u := float64(x) / float64(w)
			k := clamp(s.program(u, v, s.time, level), 0, 1)
			s.buf.Set(x, y, a.Lerp(b, float32(k)))
		}
	}
	c.Blit(s.buf, s.vp.Rect())
}

func (s *Shader) SaveConfig() ([]byte, error) { return json.Marshal(s.cfg) }

func (s *Shader) LoadConfig(data []byte) error {
	return decodeConfig(data, &s.cfg, DefaultShaderConfig())
}

// Dispose releases the offscreen buffer.
func (s *Shader) Dispose() {
	s.buf = nil
	s.program = nil
}
