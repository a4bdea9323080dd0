// SPDX-License-Identifier: MIT
/*
Package capture turns audio capture callbacks into fixed-size analysis
frames.

Thread Safety:
  - FrameBuffer is the only structure shared between the capture callback
    and the frame loop. Its mutex is held for append/trim and for the
    snapshot copy, never across analysis or rendering.
  - Decode workspaces belong to the producer side and are reused between
    callbacks, so the hot path does not allocate once warmed up.
*/
package capture

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

// ErrInsufficient is returned by Snapshot until a full frame has arrived.
var ErrInsufficient = errors.New("capture: insufficient samples")

const bytesPerSample = 4

// Tap observes mono samples as they are appended. The slice is only valid
// for the duration of the call.
type Tap func(mono []float32)

// FrameBuffer accumulates mono samples from capture callbacks and hands out
// the newest frameSize of them. After every push its length is at most
// twice the frame size.
type FrameBuffer struct {
	mu        sync.Mutex
	frameSize int
	channels  int
	pending   []float32

	// Producer-side scratch, reused across callbacks.
	mono []float32

	tap atomic.Pointer[Tap]
}

// NewFrameBuffer returns a buffer for interleaved input with the given
// channel count. Channels below 1 are treated as mono.
func NewFrameBuffer(frameSize, channels int) *FrameBuffer {
	if channels < 1 {
		channels = 1
	}
	return &FrameBuffer{
		frameSize: frameSize,
		channels:  channels,
		pending:   make([]float32, 0, 2*frameSize+frameSize/2),
	}
}

// FrameSize returns the snapshot length.
func (b *FrameBuffer) FrameSize() int { return b.frameSize }

// SetTap installs (or with nil removes) a tap called after each push.
func (b *FrameBuffer) SetTap(t Tap) {
	if t == nil {
		b.tap.Store(nil)
		return
	}
	b.tap.Store(&t)
}

// Push decodes bytesRecorded bytes of interleaved little-endian float32 PCM
// from buf. Trailing bytes that do not form a whole sample, and trailing
// samples that do not form a whole frame across channels, are dropped.
func (b *FrameBuffer) Push(buf []byte, bytesRecorded int) {
	if bytesRecorded > len(buf) {
		bytesRecorded = len(buf)
	}
	if bytesRecorded <= 0 {
		return
	}

	b.mu.Lock()
	channels := b.channels
	b.mu.Unlock()

	frames := bytesRecorded / bytesPerSample / channels
	if frames == 0 {
		return
	}
	mono := b.scratch(frames)
	stride := bytesPerSample * channels
	for i := range frames {
		off := i * stride
		var sum float32
		for c := range channels {
			bits := binary.LittleEndian.Uint32(buf[off+c*bytesPerSample:])
			sum += math.Float32frombits(bits)
		}
		mono[i] = sum / float32(channels)
	}
	b.append(mono)
}

// PushSamples appends interleaved float32 samples, as delivered by a
// PortAudio float32 stream.
func (b *FrameBuffer) PushSamples(in []float32) {
	b.mu.Lock()
	channels := b.channels
	b.mu.Unlock()

	if channels == 1 {
		b.append(in)
		return
	}
	frames := len(in) / channels
	if frames == 0 {
		return
	}
	mono := b.scratch(frames)
	for i := range frames {
		var sum float32
		for _, s := range in[i*channels : (i+1)*channels] {
			sum += s
		}
		mono[i] = sum / float32(channels)
	}
	b.append(mono)
}

func (b *FrameBuffer) scratch(n int) []float32 {
	if cap(b.mono) < n {
		b.mono = make([]float32, n)
	}
	return b.mono[:n]
}

func (b *FrameBuffer) append(mono []float32) {
	if len(mono) == 0 {
		return
	}
	limit := 2 * b.frameSize

	b.mu.Lock()
	b.pending = append(b.pending, mono...)
	if excess := len(b.pending) - limit; excess > 0 {
		// Slide in place so the backing array is reused.
		n := copy(b.pending, b.pending[excess:])
		b.pending = b.pending[:n]
	}
	b.mu.Unlock()

	if t := b.tap.Load(); t != nil {
		(*t)(mono)
	}
}

// Snapshot copies the newest FrameSize samples into dst, which must hold
// at least FrameSize values. The buffer is not consumed. It returns
// ErrInsufficient while fewer samples are available.
func (b *FrameBuffer) Snapshot(dst []float64) error {
	if len(dst) < b.frameSize {
		return errors.New("capture: snapshot destination shorter than frame size")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) < b.frameSize {
		return ErrInsufficient
	}
	src := b.pending[len(b.pending)-b.frameSize:]
	for i, s := range src {
		dst[i] = float64(s)
	}
	return nil
}

// Len returns the number of pending mono samples.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Clear drops all pending samples.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	b.pending = b.pending[:0]
	b.mu.Unlock()
}

// Reset clears the buffer and changes the interleaved channel count for
// the next source.
func (b *FrameBuffer) Reset(channels int) {
	if channels < 1 {
		channels = 1
	}
	b.mu.Lock()
	b.pending = b.pending[:0]
	b.channels = channels
	b.mu.Unlock()
}
