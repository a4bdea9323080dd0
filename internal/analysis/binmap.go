// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Scale selects how bars are spread over frequency.
type Scale int

const (
	Linear Scale = iota
	Logarithmic
)

// minLogHz keeps log10 finite when a range starts at 0 Hz.
const minLogHz = 1.0

func (s Scale) String() string {
	if s == Logarithmic {
		return "log"
	}
	return "linear"
}

// MarshalText implements encoding.TextMarshaler for configs.
func (s Scale) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler for configs.
func (s *Scale) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "linear", "lin", "":
		*s = Linear
	case "log", "logarithmic":
		*s = Logarithmic
	default:
		return fmt.Errorf("unknown frequency scale %q", b)
	}
	return nil
}

// BinRange describes how bar indices map onto a spectrum.
type BinRange struct {
	MinHz   float64
	MaxHz   float64
	Nyquist float64
	Scale   Scale
}

// BinIndex returns the fractional spectrum index for bar i of n over a
// spectrum of length l. The result is clamped to [0, l-1], so the last bar
// lands on l-1 whenever MaxHz reaches the top bin.
func (r BinRange) BinIndex(i, n, l int) float64 {
	if l <= 0 || r.Nyquist <= 0 {
		return 0
	}
	t := 0.0
	if n > 1 {
		t = float64(i) / float64(n-1)
	}

	var hz float64
	switch r.Scale {
	case Logarithmic:
		lo := math.Log10(math.Max(r.MinHz, minLogHz))
		hi := math.Log10(math.Max(r.MaxHz, minLogHz))
		hz = math.Pow(10, lo+t*(hi-lo))
	default:
		hz = r.MinHz + t*(r.MaxHz-r.MinHz)
	}

	bin := hz * float64(l) / r.Nyquist
	return math.Max(0, math.Min(bin, float64(l-1)))
}

// Interpolate reads spectrum at a fractional index, blending the two
// neighbouring bins linearly.
func Interpolate(spectrum []float64, bin float64) float64 {
	l := len(spectrum)
	if l == 0 {
		return 0
	}
	if bin <= 0 {
		return spectrum[0]
	}
	if bin >= float64(l-1) {
		return spectrum[l-1]
	}
	lo := int(bin)
	frac := bin - float64(lo)
	return spectrum[lo]*(1-frac) + spectrum[lo+1]*frac
}

// MapBars fills dst with one interpolated magnitude per bar, using the
// actual length of spectrum.
func (r BinRange) MapBars(dst, spectrum []float64) {
	n := len(dst)
	for i := range dst {
		dst[i] = Interpolate(spectrum, r.BinIndex(i, n, len(spectrum)))
	}
}
