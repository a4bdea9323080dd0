// SPDX-License-Identifier: MIT
package visual

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"

	"audioviz/internal/anim"
	"audioviz/internal/render"

	"github.com/go-gl/mathgl/mgl32"
)

// CircleConfig drives the radial dot starburst.
type CircleConfig struct {
	Source      Source       `json:"source"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Radius      float64      `json:"radius"` // inner ring radius, pixels
	Spread      float64      `json:"spread"` // outward displacement at unit level, pixels
	DotsMin     int          `json:"dotsMin"`
	DotsMax     int          `json:"dotsMax"`
	DotSize     float64      `json:"dotSize"`
	Sensitivity float64      `json:"sensitivity"`
	Seed        uint64       `json:"seed"`
	Color       render.Color `json:"color"`
	Trail       TrailConfig  `json:"trail"`
}

// DefaultCircleConfig returns the defaults used for missing fields.
func DefaultCircleConfig() CircleConfig {
	return CircleConfig{
		Source:      SourceSpectrum,
		X:           0.5,
		Y:           0.5,
		Radius:      120,
		Spread:      220,
		DotsMin:     40,
		DotsMax:     120,
		DotSize:     3,
		Sensitivity: 4,
		Seed:        1337,
		Color:       render.RGB(1, 0.4, 0.7),
		Trail:       TrailConfig{Enabled: true, Length: 12, FadeSpeed: 0.8},
	}
}

// Validate enforces DotsMin <= DotsMax and clamps ranges.
func (c *CircleConfig) Validate() error {
	if !c.Source.valid() {
		return errors.New("source must be waveform or spectrum")
	}
	c.X = clamp(c.X, 0, 1)
	c.Y = clamp(c.Y, 0, 1)
	c.Radius = max(c.Radius, 0)
	c.Spread = max(c.Spread, 0)
	c.DotsMin = min(max(c.DotsMin, 2), 2000)
	c.DotsMax = min(max(c.DotsMax, c.DotsMin), 2000)
	c.DotSize = clamp(c.DotSize, 0.5, 50)
	c.Sensitivity = max(c.Sensitivity, 0)
	c.Trail.normalize()
	return nil
}

type dot struct {
	p mgl32.Vec2
	r float32
}

// Circle is the radial dot variant.
type Circle struct {
	cfg   CircleConfig
	trail *anim.Trail[[]dot]
	src   *rand.PCG
	rng   *rand.Rand
	count int
}

// NewCircle returns a starburst with default config.
func NewCircle() *Circle {
	c := &Circle{cfg: DefaultCircleConfig(), src: rand.NewPCG(0, 0)}
	c.rng = rand.New(c.src)
	c.trail = anim.NewTrail[[]dot](c.cfg.Trail.frameLength(), c.cfg.Trail.FadeSpeed)
	return c
}

func (c *Circle) Type() string { return TypeCircle }

// Config returns a copy of the current config.
func (c *Circle) Config() CircleConfig { return c.cfg }

// Count returns the dot count chosen by the last Update.
func (c *Circle) Count() int { return c.count }

func (c *Circle) Initialize() error {
	c.trail.Configure(c.cfg.Trail.frameLength(), c.cfg.Trail.FadeSpeed)
	return nil
}

// Update picks the dot count from a generator seeded with the configured
// seed, reseeds it, then draws one bin per dot. The generator is reset
// every frame, so the count and the bin sequence repeat frame to frame and
// only the audio moves the dots.
func (c *Circle) Update(f *Frame) {
	data := f.data(c.cfg.Source)
	if len(data) == 0 || f.Viewport.Empty() {
		if c.cfg.Trail.Enabled {
			c.trail.Decay()
		} else {
			c.trail.Reset()
		}
		return
	}

	c.src.Seed(c.cfg.Seed, c.cfg.Seed)
	c.count = c.cfg.DotsMin + c.rng.IntN(c.cfg.DotsMax-c.cfg.DotsMin+1)
	c.src.Seed(c.cfg.Seed, c.cfg.Seed)

	center := mgl32.Vec2{float32(c.cfg.X * float64(f.Viewport.Width)), float32(c.cfg.Y * float64(f.Viewport.Height))}
	slot := c.trail.Next()
	dots := (*slot)[:0]

	// Two half loops: the right semicircle top to bottom, then the left
	// bottom to top, each dot drawing its own bin. An odd count puts the
	// extra dot on the left.
	right := c.count / 2
	left := c.count - right
	for i := range right {
		a := -math.Pi/2 + math.Pi*(float64(i)+0.5)/float64(right)
		dots = append(dots, c.dotAt(center, data, a))
	}
	for i := range left {
		a := math.Pi/2 + math.Pi*(float64(i)+0.5)/float64(left)
		dots = append(dots, c.dotAt(center, data, a))
	}
	*slot = dots
}

func (c *Circle) dotAt(center mgl32.Vec2, data []float64, a float64) dot {
	r := c.radiusAt(data, c.rng.IntN(len(data)))
	return dot{p: polar(center, r, a), r: float32(c.cfg.DotSize)}
}

// radiusAt maps a bin through a double square root so quiet content still
// moves the dots.
func (c *Circle) radiusAt(data []float64, bin int) float64 {
	level := math.Sqrt(math.Sqrt(math.Abs(data[bin]) * c.cfg.Sensitivity))
	return c.cfg.Radius + level*c.cfg.Spread
}

func polar(center mgl32.Vec2, r, a float64) mgl32.Vec2 {
	return mgl32.Vec2{
		center[0] + float32(r*math.Cos(a)),
		center[1] + float32(r*math.Sin(a)),
	}
}

func (c *Circle) Render(cv *render.Canvas) {
	c.trail.Each(func(dots []dot, brightness float64) {
		col := c.cfg.Color.Fade(brightness)
		for _, d := range dots {
			cv.FillCircle(d.p, d.r, col)
		}
	})
}

func (c *Circle) SaveConfig() ([]byte, error) { return json.Marshal(c.cfg) }

func (c *Circle) LoadConfig(data []byte) error {
	return decodeConfig(data, &c.cfg, DefaultCircleConfig())
}

func (c *Circle) Dispose() { c.trail.Reset() }
