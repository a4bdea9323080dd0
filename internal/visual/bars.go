// SPDX-License-Identifier: MIT
package visual

import (
	"encoding/json"
	"math"

	"audioviz/internal/analysis"
	"audioviz/internal/anim"
	"audioviz/internal/render"

	"github.com/go-gl/mathgl/mgl32"
)

// flatAngle is the arc angle (degrees) below which bars are laid on a line.
const flatAngle = 0.5

// BarsConfig drives the spectrum bar variant.
type BarsConfig struct {
	Bars          int            `json:"bars"`
	MinHz         float64        `json:"minHz"`
	MaxHz         float64        `json:"maxHz"`
	Scale         analysis.Scale `json:"scale"`
	X             float64        `json:"x"` // baseline centre
	Y             float64        `json:"y"`
	Width         float64        `json:"width"`    // total span, fraction of viewport width
	BarWidth      float64        `json:"barWidth"` // fraction of each slot
	Amplitude     float64        `json:"amplitude"`
	Angle         float64        `json:"angle"` // 0 flat, 360 full circle
	Smoothing     float64        `json:"smoothing"`
	Peaks         bool           `json:"peaks"`
	PeakDropSpeed float64        `json:"peakDropSpeed"` // pixels per frame
	PeakHeight    float64        `json:"peakHeight"`
	Color         render.Color   `json:"color"`
	PeakColor     render.Color   `json:"peakColor"`
}

// DefaultBarsConfig returns the defaults used for missing fields.
func DefaultBarsConfig() BarsConfig {
	return BarsConfig{
		Bars:          64,
		MinHz:         30,
		MaxHz:         16000,
		Scale:         analysis.Logarithmic,
		X:             0.5,
		Y:             0.85,
		Width:         0.8,
		BarWidth:      0.7,
		Amplitude:     3,
		Smoothing:     20,
		Peaks:         true,
		PeakDropSpeed: 3,
		PeakHeight:    4,
		Color:         render.RGB(0.3, 0.9, 0.5),
		PeakColor:     render.White,
	}
}

// Validate orders the frequency range and clamps the rest.
func (c *BarsConfig) Validate() error {
	c.Bars = min(max(c.Bars, 1), 512)
	c.MinHz = max(c.MinHz, 0)
	c.MaxHz = max(c.MaxHz, 0)
	if c.MinHz > c.MaxHz {
		c.MinHz, c.MaxHz = c.MaxHz, c.MinHz
	}
	if c.MinHz == c.MaxHz {
		c.MaxHz = c.MinHz + 1
	}
	c.X = clamp(c.X, 0, 1)
	c.Y = clamp(c.Y, 0, 1)
	c.Width = clamp(c.Width, 0.01, 1)
	c.BarWidth = clamp(c.BarWidth, 0.05, 1)
	c.Amplitude = max(c.Amplitude, 0)
	c.Angle = clamp(c.Angle, 0, 360)
	c.Smoothing = max(c.Smoothing, 0)
	c.PeakDropSpeed = max(c.PeakDropSpeed, 0)
	c.PeakHeight = clamp(c.PeakHeight, 0, 50)
	return nil
}

// Bars is the spectrum bar variant.
type Bars struct {
	cfg    BarsConfig
	levels []float64 // mapped magnitudes
	length []float64 // smoothed bar lengths, pixels
	peaks  *anim.PeakHold
	vp     render.Viewport
}

// NewBars returns a bar spectrum with default config.
func NewBars() *Bars {
	b := &Bars{cfg: DefaultBarsConfig()}
	b.peaks = anim.NewPeakHold(b.cfg.PeakDropSpeed)
	return b
}

func (b *Bars) Type() string { return TypeBars }

// Config returns a copy of the current config.
func (b *Bars) Config() BarsConfig { return b.cfg }

func (b *Bars) Initialize() error {
	if len(b.levels) != b.cfg.Bars {
		b.levels = make([]float64, b.cfg.Bars)
		b.length = make([]float64, b.cfg.Bars)
		b.peaks.Reset()
	}
	b.peaks.Drop = b.cfg.PeakDropSpeed
	return nil
}

// Lengths returns the bar lengths in pixels after the last Update.
func (b *Bars) Lengths() []float64 { return b.length }

// PeakLengths returns the peak envelope in pixels.
func (b *Bars) PeakLengths() []float64 { return b.peaks.Peaks() }

func (b *Bars) Update(f *Frame) {
	b.vp = f.Viewport
	if len(b.levels) != b.cfg.Bars {
		b.Initialize()
	}
	if len(f.Spectrum) == 0 {
		clear(b.levels)
	} else {
		r := analysis.BinRange{MinHz: b.cfg.MinHz, MaxHz: b.cfg.MaxHz, Nyquist: f.Nyquist(), Scale: b.cfg.Scale}
		r.MapBars(b.levels, f.Spectrum)
	}

	scale := b.cfg.Amplitude * float64(f.Viewport.Height)
	k := 1.0
	if b.cfg.Smoothing > 0 {
		k = anim.SmoothingFactor(f.DT, b.cfg.Smoothing)
	}
	for i, v := range b.levels {
		target := v * scale
		b.length[i] += (target - b.length[i]) * k
		// Smoothing only approaches zero; snap so bars and their peaks
		// actually clear once the input falls away.
		if target < 0.5 && b.length[i] < 0.5 {
			b.length[i] = 0
		}
	}
	if b.cfg.Peaks {
		b.peaks.Update(b.length)
	}
}

// barPlacement returns the base point, outward direction and tangent of
// bar i. With a non-zero angle the bars sit on an arc of radius
// span/angle whose top touches the baseline centre, so the layout bends
// continuously from a line into a full circle.
func (b *Bars) barPlacement(i int) (base, dir, tangent mgl32.Vec2) {
	vp := b.vp
	span := b.cfg.Width * float64(vp.Width)
	cx := b.cfg.X * float64(vp.Width)
	cy := b.cfg.Y * float64(vp.Height)
	t := (float64(i) + 0.5) / float64(b.cfg.Bars)

	if b.cfg.Angle < flatAngle {
		x := cx - span/2 + t*span
		return mgl32.Vec2{float32(x), float32(cy)}, mgl32.Vec2{0, -1}, mgl32.Vec2{1, 0}
	}
	angle := b.cfg.Angle * math.Pi / 180
	r := span / angle
	theta := -math.Pi/2 + (t-0.5)*angle
	cos, sin := math.Cos(theta), math.Sin(theta)
	base = mgl32.Vec2{float32(cx + r*cos), float32(cy + r + r*sin)}
	dir = mgl32.Vec2{float32(cos), float32(sin)}
	tangent = mgl32.Vec2{float32(-sin), float32(cos)}
	return base, dir, tangent
}

// ArcRadius returns the radius bars are laid on, or +Inf when flat.
func (b *Bars) ArcRadius(vp render.Viewport) float64 {
	if b.cfg.Angle < flatAngle {
		return math.Inf(1)
	}
	return b.cfg.Width * float64(vp.Width) / (b.cfg.Angle * math.Pi / 180)
}

func (b *Bars) Render(c *render.Canvas) {
	if b.vp.Empty() || len(b.length) == 0 {
		return
	}
	slot := b.cfg.Width * float64(b.vp.Width) / float64(b.cfg.Bars)
	halfW := float32(slot * b.cfg.BarWidth / 2)
	quad := make([]mgl32.Vec2, 4)

	for i, l := range b.length {
		base, dir, tan := b.barPlacement(i)
		if l >= 0.5 {
			tip := base.Add(dir.Mul(float32(l)))
			quad[0] = base.Sub(tan.Mul(halfW))
			quad[1] = base.Add(tan.Mul(halfW))
			quad[2] = tip.Add(tan.Mul(halfW))
			quad[3] = tip.Sub(tan.Mul(halfW))
			c.FillPolygon(quad, b.cfg.Color)
		}
		if b.cfg.Peaks && b.cfg.PeakHeight > 0 && i < len(b.peaks.Peaks()) && b.peaks.Peaks()[i] > 0 {
			p := float32(b.peaks.Peaks()[i])
			lo := base.Add(dir.Mul(p))
			hi := base.Add(dir.Mul(p + float32(b.cfg.PeakHeight)))
			quad[0] = lo.Sub(tan.Mul(halfW))
			quad[1] = lo.Add(tan.Mul(halfW))
			quad[2] = hi.Add(tan.Mul(halfW))
			quad[3] = hi.Sub(tan.Mul(halfW))
			c.FillPolygon(quad, b.cfg.PeakColor)
		}
	}
}

func (b *Bars) SaveConfig() ([]byte, error) { return json.Marshal(b.cfg) }

func (b *Bars) LoadConfig(data []byte) error {
	return decodeConfig(data, &b.cfg, DefaultBarsConfig())
}

func (b *Bars) Dispose() {
	b.levels = nil
	b.length = nil
	b.peaks.Reset()
}
