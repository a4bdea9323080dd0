// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},
		{0, 1},
		{1, 1},
		{3, 4},
		{8, 8},
		{1000, 1024},
		{2049, 4096},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			if got := NextPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, got, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwoAndLog2(t *testing.T) {
	tests := []struct {
		n    int
		pow  bool
		log2 int
	}{
		{-8, false, -1},
		{0, false, -1},
		{1, true, 0},
		{7, false, -1},
		{64, true, 6},
		{2048, true, 11},
		{3000, false, -1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			if got := IsPowerOfTwo(tt.n); got != tt.pow {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, got, tt.pow)
			}
			if got := Log2(tt.n); got != tt.log2 {
				t.Errorf("Log2(%d) = %d, expected %d", tt.n, got, tt.log2)
			}
		})
	}
}

func TestNoAllocs(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		_ = NextPowerOfTwo(1500)
		_ = IsPowerOfTwo(2048)
		_ = Log2(2048)
	})
	if allocs != 0 {
		t.Errorf("expected 0 allocations, got %v", allocs)
	}
}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	for b.Loop() {
		_ = NextPowerOfTwo(1500)
	}
}
