// SPDX-License-Identifier: MIT
package audio

import (
	"math"

	"audioviz/internal/analysis"
)

func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// GateEnabled reports whether the noise gate is active.
func (e *Engine) GateEnabled() bool { return e.gateEnabled.Load() }

// SetGateThreshold adjusts the noise gate threshold.
// The value is a peak amplitude in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	e.gateThreshold.Store(math.Float64bits(threshold))
}

// GetGateThreshold returns the current noise gate threshold as a float64.
func (e *Engine) GetGateThreshold() float64 {
	return math.Float64frombits(e.gateThreshold.Load())
}

// gateOpen reports whether a window passes the gate. A closed gate turns
// the window into silence, so the analyzer short-circuits it.
func (e *Engine) gateOpen(window []float64) bool {
	if !e.gateEnabled.Load() {
		return true
	}
	return analysis.Peak(window) > e.GetGateThreshold()
}
