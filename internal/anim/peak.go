// SPDX-License-Identifier: MIT
package anim

// PeakHold is a decaying upper envelope, one value per bar.
type PeakHold struct {
	// Drop is subtracted from every peak once per Update.
	Drop  float64
	peaks []float64
}

// NewPeakHold returns a peak tracker with the given per-frame drop.
func NewPeakHold(drop float64) *PeakHold {
	return &PeakHold{Drop: drop}
}

// Update lowers every peak by Drop, then raises it to the current value,
// never below zero. The tracker resizes to len(values), zeroing new bars.
// The returned slice is owned by the PeakHold.
func (p *PeakHold) Update(values []float64) []float64 {
	if len(p.peaks) != len(values) {
		p.resize(len(values))
	}
	for i, v := range values {
		p.peaks[i] = max(p.peaks[i]-p.Drop, v, 0)
	}
	return p.peaks
}

// Peaks returns the current envelope.
func (p *PeakHold) Peaks() []float64 { return p.peaks }

// Reset zeroes all peaks.
func (p *PeakHold) Reset() { clear(p.peaks) }

func (p *PeakHold) resize(n int) {
	if cap(p.peaks) >= n {
		old := len(p.peaks)
		p.peaks = p.peaks[:n]
		if n > old {
			clear(p.peaks[old:])
		}
		return
	}
	peaks := make([]float64, n)
	copy(peaks, p.peaks)
	p.peaks = peaks
}
