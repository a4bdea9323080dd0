// SPDX-License-Identifier: MIT

// Package postfx runs image-space effects over the composited frame.
package postfx

import (
	"encoding/json"
	"image"
	"image/draw"
	"math"
	"math/rand/v2"

	"audioviz/internal/render"

	"gonum.org/v1/gonum/stat/distuv"
)

// Pipeline captures a frame offscreen and composites it to the output
// with the enabled effects applied in fixed order: bloom, chromatic
// aberration, vignette, grading, grain.
type Pipeline struct {
	cfg       Config
	offscreen *image.RGBA
	vp        render.Viewport

	// planar float RGB working buffers
	work, tmp []float32
	// half-resolution bloom buffers
	bright, blur []float32
	kernel       []float32
	kernelRadius int

	noise *rand.PCG
}

// New returns a pipeline with every effect off.
func New() *Pipeline {
	return &Pipeline{cfg: DefaultConfig(), noise: rand.NewPCG(0, 0)}
}

// Type returns the registry key for the pipeline config.
func (p *Pipeline) Type() string { return "PostProcessing" }

// Config returns a copy of the config.
func (p *Pipeline) Config() Config { return p.cfg }

// SetConfig validates and stores cfg.
func (p *Pipeline) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.cfg = cfg
	return nil
}

// SaveConfig encodes the config as JSON.
func (p *Pipeline) SaveConfig() ([]byte, error) { return json.Marshal(p.cfg) }

// LoadConfig decodes over defaults. On error the previous config is kept.
func (p *Pipeline) LoadConfig(data []byte) error { return decodeConfig(data, &p.cfg) }

// Begin returns the offscreen target for this frame, sized to vp and
// cleared to transparent black.
func (p *Pipeline) Begin(vp render.Viewport) *image.RGBA {
	if p.offscreen == nil || p.vp != vp {
		p.offscreen = image.NewRGBA(vp.Rect())
		p.vp = vp
		n := vp.Width * vp.Height * 3
		p.work = make([]float32, n)
		p.tmp = make([]float32, n)
		hw, hh := (vp.Width+1)/2, (vp.Height+1)/2
		p.bright = make([]float32, hw*hh*3)
		p.blur = make([]float32, hw*hh*3)
	} else {
		clear(p.offscreen.Pix)
	}
	return p.offscreen
}

// End composites the captured frame into dst. t seeds the grain.
func (p *Pipeline) End(dst *image.RGBA, t float64) {
	if p.offscreen == nil {
		return
	}
	if !p.cfg.Any() {
		draw.Draw(dst, dst.Bounds(), p.offscreen, image.Point{}, draw.Src)
		return
	}

	p.load()
	if p.cfg.Bloom.Enabled {
		p.bloom()
	}
	if p.cfg.Chromatic.Enabled {
		p.chromatic()
	}
	if p.cfg.Vignette.Enabled {
		p.vignette()
	}
	if p.cfg.Grading.Enabled {
		p.grade()
	}
	if p.cfg.Grain.Enabled {
		p.grain(t)
	}
	p.store(dst)
}

func (p *Pipeline) load() {
	pix := p.offscreen.Pix
	for i, j := 0, 0; i < len(pix); i, j = i+4, j+3 {
		p.work[j] = float32(pix[i]) / 255
		p.work[j+1] = float32(pix[i+1]) / 255
		p.work[j+2] = float32(pix[i+2]) / 255
	}
}

func (p *Pipeline) store(dst *image.RGBA) {
	w, h := p.vp.Width, p.vp.Height
	b := dst.Bounds()
	for y := 0; y < h && y < b.Dy(); y++ {
		row := dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w && x < b.Dx(); x++ {
			j := (y*w + x) * 3
			row[x*4] = to8(p.work[j])
			row[x*4+1] = to8(p.work[j+1])
			row[x*4+2] = to8(p.work[j+2])
			row[x*4+3] = 255
		}
	}
}

func luminance(r, g, b float32) float32 { return 0.2126*r + 0.7152*g + 0.0722*b }

// bloom extracts the bright pass at half resolution, blurs it with a
// separable Gaussian and adds it back.
func (p *Pipeline) bloom() {
	w, h := p.vp.Width, p.vp.Height
	hw, hh := (w+1)/2, (h+1)/2
	cfg := p.cfg.Bloom
	threshold := float32(cfg.Threshold)
	scale := 1 / (1 - threshold)

	for y := range hh {
		for x := range hw {
			j := ((2*y)*w + 2*x) * 3
			r, g, b := p.work[j], p.work[j+1], p.work[j+2]
			k := (y*hw + x) * 3
			excess := max(luminance(r, g, b)-threshold, 0) * scale
			p.bright[k] = r * excess
			p.bright[k+1] = g * excess
			p.bright[k+2] = b * excess
		}
	}

	kernel := p.gaussian(cfg.Radius)
	blur1D(p.blur, p.bright, hw, hh, kernel, 3, hw*3)
	blur1D(p.bright, p.blur, hh, hw, kernel, hw*3, 3)

	intensity := float32(cfg.Intensity)
	for y := range h {
		for x := range w {
			j := (y*w + x) * 3
			k := ((y/2)*hw + x/2) * 3
			p.work[j] += p.bright[k] * intensity
			p.work[j+1] += p.bright[k+1] * intensity
			p.work[j+2] += p.bright[k+2] * intensity
		}
	}
}

// gaussian returns normalized weights for offsets -r..r with sigma r/2.
func (p *Pipeline) gaussian(r int) []float32 {
	if p.kernelRadius == r && p.kernel != nil {
		return p.kernel
	}
	dist := distuv.Normal{Mu: 0, Sigma: math.Max(float64(r)/2, 0.5)}
	k := make([]float32, 2*r+1)
	var sum float64
	for i := -r; i <= r; i++ {
		sum += dist.Prob(float64(i))
	}
	for i := -r; i <= r; i++ {
		k[i+r] = float32(dist.Prob(float64(i)) / sum)
	}
	p.kernel, p.kernelRadius = k, r
	return k
}

// blur1D convolves src along one axis into dst. lines is the number of
// independent lines, length the samples per line; step is the stride
// between neighbours on the blur axis and lineStride between lines.
func blur1D(dst, src []float32, length, lines int, kernel []float32, step, lineStride int) {
	r := len(kernel) / 2
	for l := range lines {
		base := l * lineStride
		for i := range length {
			var sr, sg, sb float32
			for k, wgt := range kernel {
				s := min(max(i+k-r, 0), length-1)
				o := base + s*step
				sr += src[o] * wgt
				sg += src[o+1] * wgt
				sb += src[o+2] * wgt
			}
			o := base + i*step
			dst[o], dst[o+1], dst[o+2] = sr, sg, sb
		}
	}
}

// chromatic shifts red outward and blue inward along the radius, scaled so
// the offset reaches its configured value at the frame edge.
func (p *Pipeline) chromatic() {
	w, h := p.vp.Width, p.vp.Height
	copy(p.tmp, p.work)
	cx, cy := float64(w)/2, float64(h)/2
	norm := math.Max(cx, 1)
	off := p.cfg.Chromatic.Offset
	sample := func(x, y float64, c int) float32 {
		xi := min(max(int(math.Round(x)), 0), w-1)
		yi := min(max(int(math.Round(y)), 0), h-1)
		return p.tmp[(yi*w+xi)*3+c]
	}
	for y := range h {
		for x := range w {
			dx := (float64(x) - cx) / norm * off
			dy := (float64(y) - cy) / norm * off
			j := (y*w + x) * 3
			p.work[j] = sample(float64(x)-dx, float64(y)-dy, 0)
			p.work[j+2] = sample(float64(x)+dx, float64(y)+dy, 2)
		}
	}
}

// vignette scales by 1 - strength*t^2, t rising from 0 at Radius to 1 at
// the corners.
func (p *Pipeline) vignette() {
	w, h := p.vp.Width, p.vp.Height
	cx, cy := float64(w)/2, float64(h)/2
	maxD := math.Hypot(cx, cy)
	cfg := p.cfg.Vignette
	for y := range h {
		for x := range w {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) / maxD
			t := clamp((d-cfg.Radius)/(1-cfg.Radius), 0, 1)
			f := float32(1 - cfg.Strength*t*t)
			j := (y*w + x) * 3
			p.work[j] *= f
			p.work[j+1] *= f
			p.work[j+2] *= f
		}
	}
}

func (p *Pipeline) grade() {
	cfg := p.cfg.Grading
	bright := float32(cfg.Brightness)
	contrast := float32(cfg.Contrast)
	sat := float32(cfg.Saturation)
	amt := float32(cfg.TintAmount)
	tint := cfg.Tint
	for j := 0; j < len(p.work); j += 3 {
		r := (p.work[j]-0.5)*contrast + 0.5 + bright
		g := (p.work[j+1]-0.5)*contrast + 0.5 + bright
		b := (p.work[j+2]-0.5)*contrast + 0.5 + bright
		l := luminance(r, g, b)
		r, g, b = l+(r-l)*sat, l+(g-l)*sat, l+(b-l)*sat
		p.work[j] = r + (r*tint.R-r)*amt
		p.work[j+1] = g + (g*tint.G-g)*amt
		p.work[j+2] = b + (b*tint.B-b)*amt
	}
}

// grain adds monochrome noise from a generator seeded by the frame time,
// so a still frame renders identically.
func (p *Pipeline) grain(t float64) {
	seed := uint64(int64(t * 1000))
	p.noise.Seed(seed, seed^0x5851f42d4c957f2d)
	rng := rand.New(p.noise)
	amt := float32(p.cfg.Grain.Amount)
	for j := 0; j < len(p.work); j += 3 {
		n := (rng.Float32() - 0.5) * amt
		p.work[j] += n
		p.work[j+1] += n
		p.work[j+2] += n
	}
}

func to8(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}
