// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands splits the audible range the way the band meters and the
// background pulse expect.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// Features are per-frame scalars derived from the waveform and spectrum.
type Features struct {
	RMS   float64            `json:"rms"`
	Peak  float64            `json:"peak"`
	Bands map[string]float64 `json:"bands"`
	Beat  bool               `json:"beat"`
}

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// Peak returns the largest absolute value in x.
func Peak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(x)), math.Abs(floats.Min(x)))
}

// BandEnergies returns the RMS magnitude of each band. The spectrum is
// treated as spanning [0, nyquist) evenly, which holds for the compressed
// spectrum only approximately.
func BandEnergies(dst map[string]float64, spectrum []float64, nyquist float64, bands []FrequencyBand) map[string]float64 {
	if dst == nil {
		dst = make(map[string]float64, len(bands))
	}
	l := len(spectrum)
	for _, band := range bands {
		dst[band.Name] = 0
		if l == 0 || nyquist <= 0 {
			continue
		}
		lo := int(math.Floor(band.LowHz / nyquist * float64(l)))
		hi := int(math.Ceil(math.Min(band.HighHz, nyquist) / nyquist * float64(l)))
		lo = max(0, min(lo, l))
		hi = max(lo, min(hi, l))
		if hi == lo {
			continue
		}
		seg := spectrum[lo:hi]
		dst[band.Name] = math.Sqrt(floats.Dot(seg, seg) / float64(len(seg)))
	}
	return dst
}
