// SPDX-License-Identifier: MIT
package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCanvas(w, h int) *Canvas {
	vp := Viewport{Width: w, Height: h}
	return NewCanvas(image.NewRGBA(vp.Rect()), DefaultProjection(vp))
}

func TestProjectPixelSpace(t *testing.T) {
	c := newCanvas(200, 100)
	tests := []struct {
		in   mgl32.Vec2
		x, y float32
	}{
		{mgl32.Vec2{0, 0}, 0, 0},
		{mgl32.Vec2{200, 100}, 200, 100},
		{mgl32.Vec2{50, 25}, 50, 25},
	}
	for _, tt := range tests {
		x, y := c.Project(tt.in)
		assert.InDelta(t, tt.x, x, 1e-3, "x for %v", tt.in)
		assert.InDelta(t, tt.y, y, 1e-3, "y for %v", tt.in)
	}

	// A unit projection treats input as NDC.
	c.SetProjection(mgl32.Ident4())
	x, y := c.Project(mgl32.Vec2{-1, 1})
	assert.InDelta(t, 0, x, 1e-3)
	assert.InDelta(t, 0, y, 1e-3)
}

func TestFillRect(t *testing.T) {
	c := newCanvas(20, 20)
	c.Clear(Black)
	c.FillRect(5, 5, 10, 10, RGB(1, 0, 0))

	assert.Equal(t, color.RGBA{255, 0, 0, 255}, c.Image().RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, c.Image().RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, c.Image().RGBAAt(17, 17))
}

func TestFillCircle(t *testing.T) {
	c := newCanvas(40, 40)
	c.FillCircle(mgl32.Vec2{20, 20}, 10, White)
	assert.Equal(t, uint8(255), c.Image().RGBAAt(20, 20).A)
	assert.Equal(t, uint8(0), c.Image().RGBAAt(2, 2).A)
	assert.Equal(t, uint8(0), c.Image().RGBAAt(20, 35).A)

	before := append([]uint8(nil), c.Image().Pix...)
	c.FillCircle(mgl32.Vec2{5, 5}, 0, White)
	c.FillCircle(mgl32.Vec2{5, 5}, 3, Transparent)
	assert.Equal(t, before, c.Image().Pix, "degenerate shapes draw nothing")
}

func TestStrokePolyline(t *testing.T) {
	c := newCanvas(40, 40)
	c.StrokePolyline([]mgl32.Vec2{{5, 20}, {20, 20}, {35, 20}}, 4, false, White)
	assert.Equal(t, uint8(255), c.Image().RGBAAt(20, 20).A, "joint stays covered")
	assert.Equal(t, uint8(255), c.Image().RGBAAt(30, 19).A)
	assert.Equal(t, uint8(0), c.Image().RGBAAt(20, 30).A)

	c.StrokePolyline([]mgl32.Vec2{{1, 1}}, 4, false, White)
}

func TestHalfAlphaBlend(t *testing.T) {
	c := newCanvas(4, 4)
	c.Clear(Black)
	c.FillRect(0, 0, 4, 4, White.WithAlpha(0.5))
	px := c.Image().RGBAAt(1, 1)
	assert.InDelta(t, 128, int(px.R), 2)
	assert.Equal(t, uint8(255), px.A)
}

func TestDrawTextAndMeasure(t *testing.T) {
	c := newCanvas(100, 20)
	w, h := c.TextSize("FPS")
	assert.Equal(t, 21, w)
	assert.Equal(t, 13, h)

	c.DrawText(0, 0, "FPS", White)
	lit := 0
	for y := range 20 {
		for x := range 100 {
			if c.Image().RGBAAt(x, y).A > 0 {
				lit++
				assert.Less(t, x, w+1)
			}
		}
	}
	assert.Positive(t, lit)
}

func TestBlitScales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	c := newCanvas(8, 8)
	c.Blit(src, image.Rect(0, 0, 8, 8))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, c.Image().RGBAAt(4, 4))

	c2 := newCanvas(8, 8)
	c2.Blit(src, image.Rect(2, 2, 4, 4))
	assert.Equal(t, uint8(255), c2.Image().RGBAAt(3, 3).A)
	assert.Equal(t, uint8(0), c2.Image().RGBAAt(5, 5).A)
}

func TestRetarget(t *testing.T) {
	c := newCanvas(8, 8)
	big := image.NewRGBA(image.Rect(0, 0, 16, 4))
	c.Retarget(big)
	require.Equal(t, Viewport{Width: 16, Height: 4}, c.Viewport())
	c.SetProjection(DefaultProjection(c.Viewport()))
	c.FillRect(12, 0, 4, 4, White)
	assert.Equal(t, uint8(255), big.RGBAAt(14, 2).A)
}

func TestViewport(t *testing.T) {
	assert.True(t, Viewport{}.Empty())
	assert.False(t, Viewport{Width: 1, Height: 1}.Empty())
	assert.Equal(t, mgl32.Vec2{50, 25}, Viewport{Width: 100, Height: 50}.Center())
}
