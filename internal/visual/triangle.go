// SPDX-License-Identifier: MIT
package visual

import (
	"encoding/json"
	"errors"
	"math"

	"audioviz/internal/analysis"
	"audioviz/internal/anim"
	"audioviz/internal/render"

	"github.com/go-gl/mathgl/mgl32"
)

// TriangleConfig drives a regular polygon whose size follows loudness.
type TriangleConfig struct {
	Sides         int          `json:"sides"`
	Source        Source       `json:"source"`
	X             float64      `json:"x"` // centre, fraction of viewport width
	Y             float64      `json:"y"`
	BaseSize      float64      `json:"baseSize"` // circumradius in pixels at unit level
	MinSize       float64      `json:"minSize"`
	Sensitivity   float64      `json:"sensitivity"`
	Amplitude     float64      `json:"amplitude"`
	Exponent      float64      `json:"exponent"`
	Rotation      float64      `json:"rotation"`      // manual, degrees
	RotationSpeed float64      `json:"rotationSpeed"` // degrees per second
	Filled        bool         `json:"filled"`
	LineWidth     float64      `json:"lineWidth"`
	Color         render.Color `json:"color"`
	Trail         TrailConfig  `json:"trail"`
}

// DefaultTriangleConfig returns the defaults used for missing fields.
func DefaultTriangleConfig() TriangleConfig {
	return TriangleConfig{
		Sides:         3,
		Source:        SourceWaveform,
		X:             0.5,
		Y:             0.5,
		BaseSize:      400,
		MinSize:       40,
		Sensitivity:   2,
		Amplitude:     1,
		Exponent:      1.5,
		RotationSpeed: 20,
		LineWidth:     3,
		Color:         render.RGB(0.2, 0.8, 1),
		Trail:         TrailConfig{Enabled: true, Length: 20, FadeSpeed: 0.9},
	}
}

// Validate clamps ranges and rejects an unknown source.
func (c *TriangleConfig) Validate() error {
	if !c.Source.valid() {
		return errors.New("source must be waveform or spectrum")
	}
	c.Sides = min(max(c.Sides, 3), 12)
	c.X = clamp(c.X, 0, 1)
	c.Y = clamp(c.Y, 0, 1)
	c.MinSize = max(c.MinSize, 0)
	c.BaseSize = max(c.BaseSize, 0)
	c.Sensitivity = max(c.Sensitivity, 0)
	c.Amplitude = max(c.Amplitude, 0)
	if c.Exponent <= 0 {
		c.Exponent = 1.5
	}
	c.Rotation = anim.WrapDegrees(c.Rotation)
	c.LineWidth = clamp(c.LineWidth, 0.5, 50)
	c.Trail.normalize()
	return nil
}

// Triangle is the polygon variant.
type Triangle struct {
	cfg   TriangleConfig
	angle anim.Angle
	trail *anim.Trail[[]mgl32.Vec2]

	size     float64
	rotation float64
}

// NewTriangle returns a polygon with default config.
func NewTriangle() *Triangle {
	t := &Triangle{cfg: DefaultTriangleConfig()}
	t.trail = anim.NewTrail[[]mgl32.Vec2](t.cfg.Trail.frameLength(), t.cfg.Trail.FadeSpeed)
	return t
}

func (t *Triangle) Type() string { return TypeTriangle }

// Config returns a copy of the current config.
func (t *Triangle) Config() TriangleConfig { return t.cfg }

func (t *Triangle) Initialize() error {
	t.trail.Configure(t.cfg.Trail.frameLength(), t.cfg.Trail.FadeSpeed)
	return nil
}

// Size returns the circumradius computed by the last Update.
func (t *Triangle) Size() float64 { return t.size }

// Rotation returns the manual plus accumulated angle in degrees.
func (t *Triangle) Rotation() float64 { return t.rotation }

// PolygonSize is max(min, (rms*sensitivity)^exp * amplitude * base).
func PolygonSize(rms float64, c TriangleConfig) float64 {
	return math.Max(c.MinSize, math.Pow(rms*c.Sensitivity, c.Exponent)*c.Amplitude*c.BaseSize)
}

func (t *Triangle) Update(f *Frame) {
	t.angle.Advance(t.cfg.RotationSpeed, f.DT)
	t.rotation = t.angle.Plus(t.cfg.Rotation)

	data := f.data(t.cfg.Source)
	if len(data) == 0 || f.Viewport.Empty() {
		// Without input the trail fades out instead of holding its last frame.
		if t.cfg.Trail.Enabled {
			t.trail.Decay()
		} else {
			t.trail.Reset()
		}
		return
	}
	t.size = PolygonSize(analysis.RMS(data), t.cfg)

	center := mgl32.Vec2{float32(t.cfg.X * float64(f.Viewport.Width)), float32(t.cfg.Y * float64(f.Viewport.Height))}
	slot := t.trail.Next()
	*slot = polygon((*slot)[:0], center, t.size, t.rotation, t.cfg.Sides)
}

// polygon appends the vertices of a regular n-gon with its first vertex
// pointing up before rotation.
func polygon(dst []mgl32.Vec2, center mgl32.Vec2, radius, rotationDeg float64, n int) []mgl32.Vec2 {
	base := (rotationDeg - 90) * math.Pi / 180
	for i := range n {
		a := base + float64(i)*2*math.Pi/float64(n)
		dst = append(dst, mgl32.Vec2{
			center[0] + float32(radius*math.Cos(a)),
			center[1] + float32(radius*math.Sin(a)),
		})
	}
	return dst
}

func (t *Triangle) Render(c *render.Canvas) {
	t.trail.Each(func(pts []mgl32.Vec2, brightness float64) {
		col := t.cfg.Color.Fade(brightness)
		if t.cfg.Filled {
			c.FillPolygon(pts, col)
			return
		}
		c.StrokePolyline(pts, float32(t.cfg.LineWidth), true, col)
	})
}

func (t *Triangle) SaveConfig() ([]byte, error) { return json.Marshal(t.cfg) }

func (t *Triangle) LoadConfig(data []byte) error {
	return decodeConfig(data, &t.cfg, DefaultTriangleConfig())
}

func (t *Triangle) Dispose() { t.trail.Reset() }
