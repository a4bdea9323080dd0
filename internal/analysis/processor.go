// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform computes the magnitude of the first len(dst) bins of the real
// forward DFT of a windowed frame.
type Transform interface {
	Magnitudes(dst, frame []float64)
	Name() string
}

// NewTransform returns the backend registered under name ("gonum" or
// "godsp") for frames of length n.
func NewTransform(name string, n int) (Transform, error) {
	switch strings.ToLower(name) {
	case "", "gonum":
		return newGonumTransform(n), nil
	case "godsp":
		return godspTransform{}, nil
	}
	return nil, fmt.Errorf("unknown FFT backend %q", name)
}

// gonumTransform reuses one planned FFT and its coefficient buffer.
type gonumTransform struct {
	fft    *fourier.FFT
	coeffs []complex128 // n/2+1 bins for real input
}

func newGonumTransform(n int) *gonumTransform {
	return &gonumTransform{
		fft:    fourier.NewFFT(n),
		coeffs: make([]complex128, n/2+1),
	}
}

func (g *gonumTransform) Name() string { return "gonum" }

func (g *gonumTransform) Magnitudes(dst, frame []float64) {
	g.fft.Coefficients(g.coeffs, frame)
	for i := range dst {
		dst[i] = cmplx.Abs(g.coeffs[i])
	}
}

// godspTransform allocates per call; it exists as a cross-check and for
// platforms where its radix-2 path is faster.
type godspTransform struct{}

func (godspTransform) Name() string { return "godsp" }

func (godspTransform) Magnitudes(dst, frame []float64) {
	out := dspfft.FFTReal(frame)
	for i := range dst {
		dst[i] = cmplx.Abs(out[i])
	}
}
