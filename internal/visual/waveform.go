// SPDX-License-Identifier: MIT
package visual

import (
	"encoding/json"
	"errors"
	"math"

	"audioviz/internal/anim"
	"audioviz/internal/render"

	"github.com/go-gl/mathgl/mgl32"
)

// Waveform tuning.
const (
	waveHeightScale = 0.4  // of viewport height at unit amplitude
	seamAngle       = 330  // degrees above which the loop seam is blended
	seamFraction    = 0.10 // tail share blended toward the first sample
)

// WaveformConfig drives the oscilloscope line.
type WaveformConfig struct {
	StartX    float64      `json:"startX"` // fractions of viewport width
	EndX      float64      `json:"endX"`
	CenterY   float64      `json:"centerY"`
	Amplitude float64      `json:"amplitude"`
	LineWidth float64      `json:"lineWidth"`
	FlipH     bool         `json:"flipHorizontal"`
	FlipV     bool         `json:"flipVertical"`
	Angle     float64      `json:"angle"` // bends the line into an arc, 360 closes it
	Color     render.Color `json:"color"`
	Trail     TrailConfig  `json:"trail"`
}

// DefaultWaveformConfig returns the defaults used for missing fields.
func DefaultWaveformConfig() WaveformConfig {
	return WaveformConfig{
		StartX:    0,
		EndX:      1,
		CenterY:   0.5,
		Amplitude: 1,
		LineWidth: 2,
		Color:     render.RGB(1, 0.85, 0.3),
		Trail:     defaultTrail,
	}
}

// Validate enforces StartX < EndX and clamps the rest.
func (c *WaveformConfig) Validate() error {
	c.StartX = clamp(c.StartX, 0, 1)
	c.EndX = clamp(c.EndX, 0, 1)
	if c.StartX > c.EndX {
		c.StartX, c.EndX = c.EndX, c.StartX
	}
	if c.StartX == c.EndX {
		return errors.New("startX and endX must differ")
	}
	c.CenterY = clamp(c.CenterY, 0, 1)
	c.Amplitude = max(c.Amplitude, 0)
	c.LineWidth = clamp(c.LineWidth, 0.5, 50)
	c.Angle = clamp(c.Angle, 0, 360)
	c.Trail.normalize()
	return nil
}

// Waveform is the oscilloscope variant.
type Waveform struct {
	cfg     WaveformConfig
	trail   *anim.Trail[[]mgl32.Vec2]
	samples []float64
	closed  bool
}

// NewWaveform returns a line with default config.
func NewWaveform() *Waveform {
	w := &Waveform{cfg: DefaultWaveformConfig()}
	w.trail = anim.NewTrail[[]mgl32.Vec2](w.cfg.Trail.frameLength(), w.cfg.Trail.FadeSpeed)
	return w
}

func (w *Waveform) Type() string { return TypeWaveform }

// Config returns a copy of the current config.
func (w *Waveform) Config() WaveformConfig { return w.cfg }

func (w *Waveform) Initialize() error {
	w.trail.Configure(w.cfg.Trail.frameLength(), w.cfg.Trail.FadeSpeed)
	return nil
}

// Points returns the newest vertex list.
func (w *Waveform) Points() []mgl32.Vec2 {
	pts, _ := w.trail.Newest()
	return pts
}

func (w *Waveform) Update(f *Frame) {
	if len(f.Waveform) == 0 || f.Viewport.Empty() {
		if w.cfg.Trail.Enabled {
			w.trail.Decay()
		} else {
			w.trail.Reset()
		}
		return
	}
	vp := f.Viewport
	startPx := w.cfg.StartX * float64(vp.Width)
	span := (w.cfg.EndX - w.cfg.StartX) * float64(vp.Width)
	n := max(int(span), 2)

	w.samples = ResampleWave(w.samples[:0], f.Waveform, n, w.cfg.FlipH, w.cfg.FlipV)
	w.closed = w.cfg.Angle > seamAngle
	if w.closed {
		BlendSeam(w.samples, seamFraction)
	}

	offset := w.cfg.Amplitude * waveHeightScale * float64(vp.Height)
	cy := w.cfg.CenterY * float64(vp.Height)
	slot := w.trail.Next()
	pts := (*slot)[:0]

	if w.cfg.Angle < flatAngle {
		for j, s := range w.samples {
			x := startPx + span*float64(j)/float64(n-1)
			pts = append(pts, mgl32.Vec2{float32(x), float32(cy - s*offset)})
		}
		*slot = pts
		return
	}

	// Bent layout: the line becomes an arc of radius span/angle centred
	// below the midpoint, samples push outward.
	angle := w.cfg.Angle * math.Pi / 180
	r := span / angle
	cx := startPx + span/2
	for j, s := range w.samples {
		t := float64(j) / float64(n-1)
		if w.closed {
			t = float64(j) / float64(n)
		}
		theta := -math.Pi/2 + (t-0.5)*angle
		rr := r + s*offset
		pts = append(pts, mgl32.Vec2{
			float32(cx + rr*math.Cos(theta)),
			float32(cy + r + rr*math.Sin(theta)),
		})
	}
	*slot = pts
}

// ResampleWave picks n evenly spaced samples from src into dst, optionally
// reversing order and negating values.
func ResampleWave(dst, src []float64, n int, flipH, flipV bool) []float64 {
	for j := range n {
		idx := j * len(src) / n
		if flipH {
			idx = len(src) - 1 - idx
		}
		v := src[idx]
		if flipV {
			v = -v
		}
		dst = append(dst, v)
	}
	return dst
}

// BlendSeam pulls the last fraction of v linearly toward v[0] so a closed
// loop has no visible jump where the ends meet.
func BlendSeam(v []float64, fraction float64) {
	n := len(v)
	k := int(float64(n) * fraction)
	if k < 1 || n < 2 {
		return
	}
	first := v[0]
	for i := n - k; i < n; i++ {
		w := float64(i-(n-k)+1) / float64(k)
		v[i] = v[i]*(1-w) + first*w
	}
}

func (w *Waveform) Render(c *render.Canvas) {
	w.trail.Each(func(pts []mgl32.Vec2, brightness float64) {
		c.StrokePolyline(pts, float32(w.cfg.LineWidth), w.closed, w.cfg.Color.Fade(brightness))
	})
}

func (w *Waveform) SaveConfig() ([]byte, error) { return json.Marshal(w.cfg) }

func (w *Waveform) LoadConfig(data []byte) error {
	return decodeConfig(data, &w.cfg, DefaultWaveformConfig())
}

func (w *Waveform) Dispose() {
	w.trail.Reset()
	w.samples = nil
}
