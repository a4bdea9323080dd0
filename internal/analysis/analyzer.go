// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"sync"

	"audioviz/pkg/bitint"
)

// Defaults for Options.
const (
	DefaultSilenceEpsilon    = 1e-4
	DefaultDeadBandThreshold = 0.005
	DefaultDeadBandMaxCut    = 0.25
)

// DeadBand removes a run of quiet bins from the middle of the spectrum so
// bar mapping spends its resolution on the populated ends.
type DeadBand struct {
	Enabled   bool
	Threshold float64 // bins below this magnitude count as quiet
	MaxCut    float64 // upper bound on the removed fraction
}

// Options configures an Analyzer.
type Options struct {
	FrameSize      int
	SampleRate     float64
	Window         WindowFunc
	Backend        string
	SilenceEpsilon float64
	DeadBand       DeadBand
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64 // windowed frame
	magnitude []float64 // FrameSize/2 magnitudes
	compact   []float64 // dead-band output
	window    []float64 // precomputed coefficients

	mu     sync.RWMutex // guards latest
	latest []float64
}

// Analyzer converts time-domain frames into magnitude spectra. Analyze is
// called from the frame loop only; the latest result can be read from any
// goroutine through GetMagnitudesInto.
type Analyzer struct {
	opts      Options
	transform Transform
	norm      float64
	workspace fftWorkspace
}

// NewAnalyzer validates opts and precomputes the window.
func NewAnalyzer(opts Options) (*Analyzer, error) {
	if bitint.Log2(opts.FrameSize) < 2 {
		return nil, fmt.Errorf("frame size must be a power of 2, got %d", opts.FrameSize)
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", opts.SampleRate)
	}
	if opts.SilenceEpsilon <= 0 {
		opts.SilenceEpsilon = DefaultSilenceEpsilon
	}
	if opts.DeadBand.Threshold <= 0 {
		opts.DeadBand.Threshold = DefaultDeadBandThreshold
	}
	if opts.DeadBand.MaxCut <= 0 {
		opts.DeadBand.MaxCut = DefaultDeadBandMaxCut
	}

	transform, err := NewTransform(opts.Backend, opts.FrameSize)
	if err != nil {
		return nil, err
	}

	n := opts.FrameSize
	half := n / 2
	windowCoeffs := make([]float64, n)
	applyWindow(windowCoeffs, opts.Window)

	anaLog.Infof("analyzer ready (size %d, rate %.0f Hz, window %v, backend %s, dead band %t)",
		n, opts.SampleRate, opts.Window, transform.Name(), opts.DeadBand.Enabled)

	return &Analyzer{
		opts:      opts,
		transform: transform,
		norm:      1 / float64(n),
		workspace: fftWorkspace{
			input:     make([]float64, n),
			magnitude: make([]float64, half),
			compact:   make([]float64, half),
			window:    windowCoeffs,
			latest:    make([]float64, half),
		},
	}, nil
}

// FrameSize returns the analysis window length.
func (a *Analyzer) FrameSize() int { return a.opts.FrameSize }

// SampleRate returns the rate used for bin frequencies.
func (a *Analyzer) SampleRate() float64 { return a.opts.SampleRate }

// SetSampleRate updates the rate after a source switch.
func (a *Analyzer) SetSampleRate(hz float64) {
	if hz > 0 {
		a.opts.SampleRate = hz
	}
}

// Nyquist returns half the sample rate.
func (a *Analyzer) Nyquist() float64 { return a.opts.SampleRate / 2 }

// Analyze returns the magnitude spectrum of timeDomain, which must hold
// FrameSize samples. The result has FrameSize/2 bins, or fewer when the
// dead band removed a middle segment; it is owned by the Analyzer and
// overwritten by the next call. Magnitudes are scaled by 1/FrameSize.
func (a *Analyzer) Analyze(timeDomain []float64) []float64 {
	ws := &a.workspace
	n := a.opts.FrameSize
	if len(timeDomain) < n {
		clear(ws.magnitude)
		a.publish(ws.magnitude)
		return ws.magnitude
	}

	// Silence returns zeros before windowing so the FFT noise floor and
	// the dead band never see it.
	if isSilent(timeDomain[:n], a.opts.SilenceEpsilon) {
		clear(ws.magnitude)
		a.publish(ws.magnitude)
		return ws.magnitude
	}

	for i := range n {
		v := timeDomain[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		ws.input[i] = v * ws.window[i]
	}
	a.transform.Magnitudes(ws.magnitude, ws.input)
	for i := range ws.magnitude {
		ws.magnitude[i] *= a.norm
	}

	out := ws.magnitude
	if a.opts.DeadBand.Enabled {
		out = compressDeadBand(ws.compact, ws.magnitude, a.opts.DeadBand)
	}
	a.publish(out)
	return out
}

// isSilent reports whether every sample is below eps. NaN compares false
// both ways, so it is tested as "not below" and counts as signal.
func isSilent(x []float64, eps float64) bool {
	for _, v := range x {
		if !(math.Abs(v) < eps) {
			return false
		}
	}
	return true
}

// compressDeadBand writes spectrum minus its middle cut into dst and
// returns the used prefix. The cut is min(MaxCut, quiet/total) of the bins.
func compressDeadBand(dst, spectrum []float64, db DeadBand) []float64 {
	total := len(spectrum)
	if total == 0 {
		return dst[:0]
	}
	quiet := 0
	for _, v := range spectrum {
		if v < db.Threshold {
			quiet++
		}
	}
	cutFraction := math.Min(db.MaxCut, float64(quiet)/float64(total))
	cut := int(float64(total) * cutFraction)
	if cut <= 0 {
		return dst[:copy(dst, spectrum)]
	}
	start := (total - cut) / 2
	n := copy(dst, spectrum[:start])
	n += copy(dst[n:], spectrum[start+cut:])
	return dst[:n]
}

func (a *Analyzer) publish(mags []float64) {
	ws := &a.workspace
	ws.mu.Lock()
	ws.latest = ws.latest[:len(mags)]
	copy(ws.latest, mags)
	ws.mu.Unlock()
}

// GetMagnitudes returns a copy of the latest spectrum.
func (a *Analyzer) GetMagnitudes() []float64 {
	a.workspace.mu.RLock()
	defer a.workspace.mu.RUnlock()
	out := make([]float64, len(a.workspace.latest))
	copy(out, a.workspace.latest)
	return out
}

// GetMagnitudesInto copies the latest spectrum into dest without
// allocating and returns the number of bins written. dest must hold
// FrameSize/2 values.
func (a *Analyzer) GetMagnitudesInto(dest []float64) (int, error) {
	a.workspace.mu.RLock()
	defer a.workspace.mu.RUnlock()

	if len(dest) < len(a.workspace.latest) {
		return 0, fmt.Errorf("destination slice length %d is shorter than %d", len(dest), len(a.workspace.latest))
	}
	return copy(dest, a.workspace.latest), nil
}

// GetFrequencyForBin returns the center frequency (Hz) for an
// uncompressed bin index.
func (a *Analyzer) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= a.opts.FrameSize/2 {
		return 0.0
	}
	return float64(binIndex) * (a.opts.SampleRate / float64(a.opts.FrameSize))
}
