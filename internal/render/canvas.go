// SPDX-License-Identifier: MIT
package render

import (
	"image"
	"image/draw"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Viewport is the output size in pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether nothing can be drawn.
func (v Viewport) Empty() bool { return v.Width <= 0 || v.Height <= 0 }

// Center returns the middle of the viewport.
func (v Viewport) Center() mgl32.Vec2 {
	return mgl32.Vec2{float32(v.Width) / 2, float32(v.Height) / 2}
}

// Rect returns the viewport bounds.
func (v Viewport) Rect() image.Rectangle { return image.Rect(0, 0, v.Width, v.Height) }

// DefaultProjection maps pixel coordinates (origin top-left, y down) to
// normalized device coordinates.
func DefaultProjection(vp Viewport) mgl32.Mat4 {
	return mgl32.Ortho2D(0, float32(vp.Width), float32(vp.Height), 0)
}

// Canvas draws vector shapes and text into an RGBA target. Geometry is
// given in world space and mapped through the projection, then from NDC to
// target pixels.
type Canvas struct {
	dst  *image.RGBA
	vp   Viewport
	proj mgl32.Mat4
	ras  *vector.Rasterizer
	face font.Face
}

// NewCanvas wraps dst. The viewport is dst's size.
func NewCanvas(dst *image.RGBA, proj mgl32.Mat4) *Canvas {
	b := dst.Bounds()
	vp := Viewport{Width: b.Dx(), Height: b.Dy()}
	return &Canvas{
		dst:  dst,
		vp:   vp,
		proj: proj,
		ras:  vector.NewRasterizer(vp.Width, vp.Height),
		face: basicfont.Face7x13,
	}
}

// Image returns the draw target.
func (c *Canvas) Image() *image.RGBA { return c.dst }

// Viewport returns the target size.
func (c *Canvas) Viewport() Viewport { return c.vp }

// Projection returns the current projection.
func (c *Canvas) Projection() mgl32.Mat4 { return c.proj }

// SetProjection replaces the projection.
func (c *Canvas) SetProjection(m mgl32.Mat4) { c.proj = m }

// Retarget points the canvas at a different image of the same or another
// size, keeping the projection.
func (c *Canvas) Retarget(dst *image.RGBA) {
	b := dst.Bounds()
	c.dst = dst
	if b.Dx() != c.vp.Width || b.Dy() != c.vp.Height {
		c.vp = Viewport{Width: b.Dx(), Height: b.Dy()}
		c.ras = vector.NewRasterizer(c.vp.Width, c.vp.Height)
	}
}

// Project maps a world point to target pixels.
func (c *Canvas) Project(p mgl32.Vec2) (float32, float32) {
	v := c.proj.Mul4x1(mgl32.Vec4{p[0], p[1], 0, 1})
	if v[3] != 0 && v[3] != 1 {
		v = v.Mul(1 / v[3])
	}
	x := (v[0] + 1) / 2 * float32(c.vp.Width)
	y := (1 - v[1]) / 2 * float32(c.vp.Height)
	return x, y
}

// Clear fills the whole target, replacing existing pixels.
func (c *Canvas) Clear(col Color) {
	draw.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col.NRGBA()), image.Point{}, draw.Src)
}

// FillRect fills an axis-aligned world-space rectangle.
func (c *Canvas) FillRect(x, y, w, h float32, col Color) {
	c.FillPolygon([]mgl32.Vec2{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}, col)
}

// FillPolygon fills a closed polygon.
func (c *Canvas) FillPolygon(pts []mgl32.Vec2, col Color) {
	if len(pts) < 3 || col.A <= 0 {
		return
	}
	c.ras.Reset(c.vp.Width, c.vp.Height)
	c.path(pts)
	c.flush(col)
}

// FillCircle fills a disc approximated by a polygon.
func (c *Canvas) FillCircle(center mgl32.Vec2, radius float32, col Color) {
	if radius <= 0 || col.A <= 0 {
		return
	}
	n := circleSegments(radius)
	c.ras.Reset(c.vp.Width, c.vp.Height)
	for i := range n {
		a := float64(i) / float64(n) * 2 * math.Pi
		p := mgl32.Vec2{
			center[0] + radius*float32(math.Cos(a)),
			center[1] + radius*float32(math.Sin(a)),
		}
		x, y := c.Project(p)
		if i == 0 {
			c.ras.MoveTo(x, y)
		} else {
			c.ras.LineTo(x, y)
		}
	}
	c.ras.ClosePath()
	c.flush(col)
}

// StrokePolyline draws connected segments of the given world-space width.
// Segments are emitted as quads with consistent winding so overlaps at the
// joints do not cancel.
func (c *Canvas) StrokePolyline(pts []mgl32.Vec2, width float32, closed bool, col Color) {
	if len(pts) < 2 || width <= 0 || col.A <= 0 {
		return
	}
	c.ras.Reset(c.vp.Width, c.vp.Height)
	half := width / 2
	segment := func(a, b mgl32.Vec2) {
		d := b.Sub(a)
		if d.Len() == 0 {
			return
		}
		n := mgl32.Vec2{-d[1], d[0]}.Normalize().Mul(half)
		c.path([]mgl32.Vec2{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)})
	}
	for i := 1; i < len(pts); i++ {
		segment(pts[i-1], pts[i])
	}
	if closed && len(pts) > 2 {
		segment(pts[len(pts)-1], pts[0])
	}
	c.flush(col)
}

// DrawText draws a single line with its top-left corner at (x, y) in
// target pixels.
func (c *Canvas) DrawText(x, y int, text string, col Color) {
	d := font.Drawer{
		Dst:  c.dst,
		Src:  image.NewUniform(col.NRGBA()),
		Face: c.face,
		Dot:  fixed.P(x, y+c.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// TextSize returns the pixel size of text in the canvas face.
func (c *Canvas) TextSize(text string) (int, int) {
	w := font.MeasureString(c.face, text).Ceil()
	return w, c.face.Metrics().Height.Ceil()
}

// Blit composites src over r, scaling when sizes differ.
func (c *Canvas) Blit(src image.Image, r image.Rectangle) {
	sb := src.Bounds()
	if sb.Dx() == r.Dx() && sb.Dy() == r.Dy() {
		draw.Draw(c.dst, r, src, sb.Min, draw.Over)
		return
	}
	xdraw.ApproxBiLinear.Scale(c.dst, r, src, sb, xdraw.Over, nil)
}

func (c *Canvas) path(pts []mgl32.Vec2) {
	for i, p := range pts {
		x, y := c.Project(p)
		if i == 0 {
			c.ras.MoveTo(x, y)
		} else {
			c.ras.LineTo(x, y)
		}
	}
	c.ras.ClosePath()
}

func (c *Canvas) flush(col Color) {
	c.ras.DrawOp = draw.Over
	c.ras.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col.NRGBA()), image.Point{})
}

func circleSegments(r float32) int {
	return min(max(int(r/2)+12, 12), 96)
}
