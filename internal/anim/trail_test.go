// SPDX-License-Identifier: MIT
package anim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailBrightnessIsGeometric(t *testing.T) {
	tr := NewTrail[int](200, 0.8)
	for i := range 10 {
		tr.Advance(i)
	}
	var got []float64
	var order []int
	tr.Each(func(v int, b float64) {
		order = append(order, v)
		got = append(got, b)
	})
	require.Len(t, got, 10)
	for i, b := range got {
		k := 9 - i
		assert.InDelta(t, math.Pow(0.8, float64(k)), b, 1e-12, "entry %d", order[i])
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order, "oldest first")
}

func TestTrailEvictionFrame(t *testing.T) {
	tests := []struct {
		fade float64
	}{
		{0.95},
		{0.9},
		{0.5},
	}
	for _, tt := range tests {
		want := int(math.Ceil(math.Log(MinBrightness) / math.Log(tt.fade)))
		tr := NewTrail[int](1000, tt.fade)
		tr.Advance(-1)
		evictedAt := 0
		for k := 1; k < 1000; k++ {
			tr.Advance(k)
			found := false
			tr.Each(func(v int, _ float64) {
				if v == -1 {
					found = true
				}
			})
			if !found {
				evictedAt = k
				break
			}
		}
		assert.Equal(t, want, evictedAt, "fade %v", tt.fade)
	}
	assert.Equal(t, 90, int(math.Ceil(math.Log(MinBrightness)/math.Log(0.95))))
}

func TestTrailBoundedByLength(t *testing.T) {
	tr := NewTrail[int](5, 0.99)
	for i := range 100 {
		tr.Advance(i)
		assert.LessOrEqual(t, tr.Len(), 5)
	}
	newest, ok := tr.Newest()
	require.True(t, ok)
	assert.Equal(t, 99, newest)

	tr.Configure(2, 0.99)
	assert.Equal(t, 2, tr.Len())

	tr.Reset()
	assert.Zero(t, tr.Len())
	_, ok = tr.Newest()
	assert.False(t, ok)
}

func TestTrailLengthOneIsDirectMode(t *testing.T) {
	tr := NewTrail[int](0, 0.9)
	tr.Advance(1)
	tr.Advance(2)
	assert.Equal(t, 1, tr.Len())
	tr.Each(func(v int, b float64) {
		assert.Equal(t, 2, v)
		assert.Equal(t, 1.0, b)
	})
}

func TestTrailRecyclesSlices(t *testing.T) {
	tr := NewTrail[[]float32](3, 0.9)
	for range 3 {
		slot := tr.Next()
		*slot = append((*slot)[:0], 1, 2, 3, 4)
	}
	allocs := testing.AllocsPerRun(50, func() {
		slot := tr.Next()
		*slot = append((*slot)[:0], 1, 2, 3, 4)
	})
	assert.Zero(t, allocs)
}

func TestTrailDecayEmptiesWithinBound(t *testing.T) {
	tests := []struct {
		length int
		fade   float64
	}{
		{200, 0.9},
		{200, 0.5},
		{20, 0.95},
		{1, 0.8},
	}
	for _, tt := range tests {
		tr := NewTrail[int](tt.length, tt.fade)
		for i := range 30 {
			tr.Advance(i)
		}
		before := tr.Len()
		newest, _ := tr.Newest()

		bound := int(math.Ceil(math.Log(MinBrightness) / math.Log(tt.fade)))
		tr.Decay()
		assert.LessOrEqual(t, tr.Len(), before, "fade %v", tt.fade)
		if tr.Len() > 0 {
			got, _ := tr.Newest()
			assert.Equal(t, newest, got, "decay never pushes a frame")
		}
		for range bound - 1 {
			tr.Decay()
		}
		assert.Zero(t, tr.Len(), "length %d fade %v after %d decays", tt.length, tt.fade, bound)
	}
}
