// SPDX-License-Identifier: MIT
package capture

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
)

func encodeFloats(vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func TestSnapshotInsufficient(t *testing.T) {
	buf := NewFrameBuffer(8, 1)
	buf.PushSamples([]float32{1, 2, 3})

	dst := make([]float64, 8)
	if err := buf.Snapshot(dst); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("Snapshot error = %v, want ErrInsufficient", err)
	}
}

func TestSnapshotReturnsNewestFrame(t *testing.T) {
	buf := NewFrameBuffer(4, 1)
	buf.PushSamples([]float32{1, 2, 3})
	buf.PushSamples([]float32{4, 5, 6})

	dst := make([]float64, 4)
	if err := buf.Snapshot(dst); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	want := []float64{3, 4, 5, 6}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", dst, want)
		}
	}
	if buf.Len() != 6 {
		t.Errorf("Snapshot consumed samples: len = %d", buf.Len())
	}
}

func TestPushTrimsToTwoFrames(t *testing.T) {
	const frame = 16
	buf := NewFrameBuffer(frame, 1)
	chunk := make([]float32, 7)
	for i := range 50 {
		for j := range chunk {
			chunk[j] = float32(i*len(chunk) + j)
		}
		buf.PushSamples(chunk)
		if buf.Len() > 2*frame {
			t.Fatalf("after push %d len = %d, exceeds %d", i, buf.Len(), 2*frame)
		}
	}

	dst := make([]float64, frame)
	if err := buf.Snapshot(dst); err != nil {
		t.Fatal(err)
	}
	last := float64(50*len(chunk) - 1)
	if dst[frame-1] != last {
		t.Errorf("newest sample = %v, want %v", dst[frame-1], last)
	}
}

func TestPushTruncatesPartialSample(t *testing.T) {
	tests := []struct {
		name          string
		channels      int
		bytesRecorded int
		wantLen       int
	}{
		{"whole samples", 1, 12, 3},
		{"partial trailing sample", 1, 14, 3},
		{"less than one sample", 1, 3, 0},
		{"stereo partial frame", 2, 20, 2},
		{"bytesRecorded beyond buffer", 1, 100, 4},
		{"negative count", 1, -4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewFrameBuffer(64, tt.channels)
			raw := encodeFloats(0.1, 0.2, 0.3, 0.4)
			buf.Push(raw, tt.bytesRecorded)
			if got := buf.Len(); got != tt.wantLen {
				t.Errorf("len = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestPushMonoReduction(t *testing.T) {
	buf := NewFrameBuffer(2, 2)
	raw := encodeFloats(1, 0, -0.5, 0.5)
	buf.Push(raw, len(raw))

	dst := make([]float64, 2)
	if err := buf.Snapshot(dst); err != nil {
		t.Fatal(err)
	}
	if dst[0] != 0.5 || dst[1] != 0 {
		t.Errorf("mono = %v, want [0.5 0]", dst)
	}
}

func TestClearAndReset(t *testing.T) {
	buf := NewFrameBuffer(4, 1)
	buf.PushSamples([]float32{1, 2, 3, 4})
	buf.Clear()
	if buf.Len() != 0 {
		t.Fatalf("len after Clear = %d", buf.Len())
	}

	buf.Reset(2)
	buf.PushSamples([]float32{1, 3, 1, 3})
	if buf.Len() != 2 {
		t.Errorf("stereo push after Reset produced %d samples, want 2", buf.Len())
	}
}

func TestConcurrentPushSnapshot(t *testing.T) {
	const frame = 256
	buf := NewFrameBuffer(frame, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		chunk := make([]float32, 100)
		for range 2000 {
			buf.PushSamples(chunk)
		}
	}()

	dst := make([]float64, frame)
	for range 2000 {
		if err := buf.Snapshot(dst); err != nil && !errors.Is(err, ErrInsufficient) {
			t.Fatalf("Snapshot: %v", err)
		}
		if n := buf.Len(); n > 2*frame {
			t.Fatalf("len %d exceeds bound", n)
		}
	}
	wg.Wait()
}

func TestPushHotPathNoAllocs(t *testing.T) {
	buf := NewFrameBuffer(2048, 2)
	raw := encodeFloats(make([]float32, 1024)...)
	buf.Push(raw, len(raw)) // warm scratch

	allocs := testing.AllocsPerRun(100, func() {
		buf.Push(raw, len(raw))
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Push, got %.1f", allocs)
	}
}

func BenchmarkPush(b *testing.B) {
	buf := NewFrameBuffer(2048, 2)
	raw := encodeFloats(make([]float32, 1024)...)
	b.ReportAllocs()
	for b.Loop() {
		buf.Push(raw, len(raw))
	}
}
