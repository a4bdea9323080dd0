// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"testing"
)

var (
	quietBuffer = constBuffer(1024, 0.001)
	loudBuffer  = constBuffer(1024, 0.8)
	testBuffer  = constBuffer(1024, 0.2)
)

func constBuffer(n int, amp float64) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		if i%2 == 0 {
			buf[i] = amp
		} else {
			buf[i] = -amp
		}
	}
	return buf
}

func formatFloat(f float64) string { return fmt.Sprintf("%.3f", f) }

func TestGateEnableHotPath(t *testing.T) {
	engine := &Engine{}

	if engine.GateEnabled() {
		t.Error("Gate should be disabled initially")
	}

	engine.EnableGate()
	if !engine.GateEnabled() {
		t.Error("Gate should be enabled after EnableGate()")
	}

	engine.DisableGate()
	if engine.GateEnabled() {
		t.Error("Gate should be disabled after DisableGate()")
	}

	engine.EnableGate()
	engine.EnableGate() // Multiple calls should be idempotent
	if !engine.GateEnabled() {
		t.Error("Gate should remain enabled after multiple EnableGate()")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0},       // Below min
		{0.0, 0.0},        // Minimum
		{0.5, 0.5},        // Middle
		{1.0, 1.0},        // Maximum
		{1.5, 1.0},        // Above max
		{math.NaN(), 0.0}, // Garbage
	}

	engine := &Engine{}
	for _, tt := range tests {
		t.Run(formatFloat(tt.input), func(t *testing.T) {
			engine.SetGateThreshold(tt.input)
			if got := engine.GetGateThreshold(); got != tt.expected {
				t.Errorf("Gate threshold: got %.3f, want %.3f", got, tt.expected)
			}
		})
	}
}

func TestGateDetectionHotPath(t *testing.T) {
	tests := []struct {
		desc          string
		buffer        []float64
		gateEnabled   bool
		threshold     float64
		shouldTrigger bool
	}{
		{"Gate disabled/Quiet signal", quietBuffer, false, 0.1, true},
		{"Gate disabled/Loud signal", loudBuffer, false, 0.1, true},
		{"Gate enabled/Quiet signal/Low threshold", quietBuffer, true, 0.0001, true},
		{"Gate enabled/Quiet signal/Mid threshold", quietBuffer, true, 0.1, false},
		{"Gate enabled/Loud signal/Mid threshold", loudBuffer, true, 0.1, true},
		{"Gate enabled/Loud signal/High threshold", loudBuffer, true, 0.999, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			engine := &Engine{}
			engine.gateEnabled.Store(tt.gateEnabled)
			engine.SetGateThreshold(tt.threshold)

			if got := engine.gateOpen(tt.buffer); got != tt.shouldTrigger {
				t.Errorf("Gate detection error: got open=%v, want %v", got, tt.shouldTrigger)
			}
		})
	}
}

func TestGateOpenNoAllocs(t *testing.T) {
	engine := &Engine{}
	engine.EnableGate()
	engine.SetGateThreshold(0.1)

	allocs := testing.AllocsPerRun(100, func() {
		_ = engine.gateOpen(testBuffer)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in gate check, got %.1f", allocs)
	}
}

func BenchmarkGateProcessingHotPath(b *testing.B) {
	benchmarks := []struct {
		name      string
		buffer    []float64
		threshold float64
		enabled   bool
	}{
		{"Gate disabled/Normal", testBuffer, 0.001, false},
		{"Gate enabled/Quiet signal/Low threshold", quietBuffer, 0.001, true},
		{"Gate enabled/Normal signal/Low threshold", testBuffer, 0.001, true},
		{"Gate enabled/Loud signal/High threshold", loudBuffer, 0.9, true},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			engine := &Engine{}
			engine.gateEnabled.Store(bm.enabled)
			engine.SetGateThreshold(bm.threshold)

			b.ReportAllocs()
			for b.Loop() {
				_ = engine.gateOpen(bm.buffer)
			}
		})
	}
}
