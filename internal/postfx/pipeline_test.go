// SPDX-License-Identifier: MIT
package postfx

import (
	"image"
	"image/color"
	"testing"

	"audioviz/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vp = render.Viewport{Width: 64, Height: 48}

func fill(img *image.RGBA, c color.RGBA) {
	for y := range img.Rect.Dy() {
		for x := range img.Rect.Dx() {
			img.SetRGBA(x, y, c)
		}
	}
}

func run(t *testing.T, cfg Config, paint func(*image.RGBA), tm float64) *image.RGBA {
	t.Helper()
	p := New()
	require.NoError(t, p.SetConfig(cfg))
	off := p.Begin(vp)
	paint(off)
	dst := image.NewRGBA(vp.Rect())
	p.End(dst, tm)
	return dst
}

func gray(v uint8) color.RGBA { return color.RGBA{v, v, v, 255} }

func TestPassThrough(t *testing.T) {
	dst := run(t, DefaultConfig(), func(img *image.RGBA) {
		fill(img, color.RGBA{10, 20, 30, 255})
	}, 0)
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, dst.RGBAAt(5, 5))
}

func TestBeginClearsAndResizes(t *testing.T) {
	p := New()
	off := p.Begin(vp)
	fill(off, gray(200))
	off = p.Begin(vp)
	assert.Equal(t, color.RGBA{}, off.RGBAAt(3, 3))

	big := p.Begin(render.Viewport{Width: 100, Height: 10})
	assert.Equal(t, 100, big.Rect.Dx())
}

func TestEndWithoutBeginIsNoop(t *testing.T) {
	dst := image.NewRGBA(vp.Rect())
	New().End(dst, 0)
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(0, 0))
}

func TestBloomSpreadsBrightAreas(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bloom.Enabled = true
	square := func(img *image.RGBA) {
		fill(img, gray(0))
		for y := 20; y < 28; y++ {
			for x := 28; x < 36; x++ {
				img.SetRGBA(x, y, gray(255))
			}
		}
	}
	dst := run(t, cfg, square, 0)
	assert.Positive(t, dst.RGBAAt(24, 24).R, "glow leaks past the square")
	assert.Equal(t, uint8(0), dst.RGBAAt(0, 0).R, "far corner stays dark")

	dim := run(t, cfg, func(img *image.RGBA) { fill(img, gray(100)) }, 0)
	assert.Equal(t, uint8(100), dim.RGBAAt(10, 10).R, "below threshold nothing glows")
}

func TestVignetteDarkensCorners(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vignette = VignetteConfig{Enabled: true, Strength: 1, Radius: 0.5}
	dst := run(t, cfg, func(img *image.RGBA) { fill(img, gray(200)) }, 0)
	assert.Equal(t, uint8(200), dst.RGBAAt(32, 24).R)
	assert.Less(t, dst.RGBAAt(0, 0).R, uint8(20))
}

func TestGrading(t *testing.T) {
	tests := []struct {
		name string
		g    GradingConfig
		in   color.RGBA
		want color.RGBA
	}{
		{"Identity", GradingConfig{Enabled: true, Contrast: 1, Saturation: 1, Tint: render.White}, color.RGBA{200, 100, 50, 255}, color.RGBA{200, 100, 50, 255}},
		{"Desaturate", GradingConfig{Enabled: true, Contrast: 1, Saturation: 0, Tint: render.White}, color.RGBA{255, 255, 255, 255}, color.RGBA{255, 255, 255, 255}},
		{"Flat Contrast", GradingConfig{Enabled: true, Contrast: 0, Saturation: 1, Tint: render.White}, color.RGBA{10, 240, 90, 255}, color.RGBA{128, 128, 128, 255}},
		{"Full Red Tint", GradingConfig{Enabled: true, Contrast: 1, Saturation: 1, Tint: render.RGB(1, 0, 0), TintAmount: 1}, color.RGBA{200, 200, 200, 255}, color.RGBA{200, 0, 0, 255}},
		{"Brighten", GradingConfig{Enabled: true, Brightness: 1, Contrast: 1, Saturation: 1, Tint: render.White}, color.RGBA{0, 0, 0, 255}, color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Grading = tt.g
			dst := run(t, cfg, func(img *image.RGBA) { fill(img, tt.in) }, 0)
			got := dst.RGBAAt(1, 1)
			assert.InDelta(t, tt.want.R, got.R, 1)
			assert.InDelta(t, tt.want.G, got.G, 1)
			assert.InDelta(t, tt.want.B, got.B, 1)
		})
	}
}

func TestChromaticOffsetsChannels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chromatic = ChromaticConfig{Enabled: true, Offset: 4}
	stripe := func(img *image.RGBA) {
		fill(img, gray(0))
		for y := range 48 {
			img.SetRGBA(60, y, gray(255))
		}
	}
	dst := run(t, cfg, stripe, 0)
	px := dst.RGBAAt(60, 24)
	assert.Equal(t, uint8(255), px.G, "green never moves")
	assert.Equal(t, uint8(0), px.R, "red samples further in")
	inner := dst.RGBAAt(57, 24)
	assert.Equal(t, uint8(255), inner.B, "blue samples further out")
	assert.Equal(t, uint8(0), inner.R)

	center := run(t, cfg, func(img *image.RGBA) { img.SetRGBA(32, 24, gray(255)) }, 0)
	assert.Equal(t, gray(255), center.RGBAAt(32, 24))
}

func TestGrainIsSeededByTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grain = GrainConfig{Enabled: true, Amount: 0.5}
	paint := func(img *image.RGBA) { fill(img, gray(128)) }
	a := run(t, cfg, paint, 1.5)
	b := run(t, cfg, paint, 1.5)
	c := run(t, cfg, paint, 2.5)
	assert.Equal(t, a.Pix, b.Pix)
	assert.NotEqual(t, a.Pix, c.Pix)
}

func TestConfigSaveLoad(t *testing.T) {
	p := New()
	cfg := DefaultConfig()
	cfg.Bloom.Enabled = true
	cfg.Bloom.Radius = 9
	cfg.Grading.Tint = render.RGB(1, 0, 0)
	require.NoError(t, p.SetConfig(cfg))
	data, err := p.SaveConfig()
	require.NoError(t, err)

	q := New()
	require.NoError(t, q.LoadConfig(data))
	assert.Equal(t, p.Config(), q.Config())

	assert.ErrorIs(t, q.LoadConfig([]byte(`{"bloom":`)), ErrConfig)
	assert.Equal(t, p.Config(), q.Config())

	require.NoError(t, q.LoadConfig([]byte(`{"vignette":{"enabled":true,"strength":7}}`)))
	assert.Equal(t, 1.0, q.Config().Vignette.Strength)
	assert.False(t, q.Config().Bloom.Enabled, "missing groups take defaults")
	assert.True(t, q.Config().Any())
}
