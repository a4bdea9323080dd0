// SPDX-License-Identifier: MIT
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

// WavSource replays a PCM WAV file as if it were a live capture: every
// tick it hands one callback's worth of interleaved little-endian float32
// bytes to the buffer, paced at the file's sample rate.
type WavSource struct {
	name            string
	samples         []float32 // interleaved, normalized to [-1, 1)
	channels        int
	sampleRate      int
	framesPerBuffer int
	loop            bool
	buf             *FrameBuffer

	pos   int    // next interleaved sample
	chunk []byte // reused callback payload

	mu       sync.Mutex
	done     chan struct{}
	wg       sync.WaitGroup
	finished chan struct{}
}

var _ Source = (*WavSource)(nil)

// NewWavSource decodes the whole file up front.
func NewWavSource(path string, framesPerBuffer int, loop bool, buf *FrameBuffer) (*WavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	channels := int(dec.NumChans)
	if dec.BitDepth == 0 || dec.BitDepth > 32 {
		return nil, fmt.Errorf("%s has unsupported bit depth %d", path, dec.BitDepth)
	}
	if channels < 1 || len(pcm.Data) < channels {
		return nil, fmt.Errorf("%s contains no audio", path)
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = 512
	}

	scale := float32(1.0 / float64(int64(1)<<(dec.BitDepth-1)))
	samples := make([]float32, len(pcm.Data)-len(pcm.Data)%channels)
	for i := range samples {
		samples[i] = float32(pcm.Data[i]) * scale
	}

	return &WavSource{
		name:            filepath.Base(path),
		samples:         samples,
		channels:        channels,
		sampleRate:      int(dec.SampleRate),
		framesPerBuffer: framesPerBuffer,
		loop:            loop,
		buf:             buf,
		chunk:           make([]byte, framesPerBuffer*channels*bytesPerSample),
	}, nil
}

// Name returns the file name.
func (s *WavSource) Name() string { return s.name }

// Channels returns the file's channel count.
func (s *WavSource) Channels() int { return s.channels }

// SampleRate returns the file's rate in Hz.
func (s *WavSource) SampleRate() float64 { return float64(s.sampleRate) }

// Duration returns the playback length of one pass.
func (s *WavSource) Duration() time.Duration {
	frames := len(s.samples) / s.channels
	return time.Duration(float64(frames) / float64(s.sampleRate) * float64(time.Second))
}

// Finished is closed when a non-looping source reaches the end of the file.
func (s *WavSource) Finished() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished == nil {
		s.finished = make(chan struct{})
	}
	return s.finished
}

// Start begins real-time replay. Starting again after Finished has fired
// rewinds and hands out a fresh Finished channel.
func (s *WavSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("wav source already started")
	}
	if s.finished == nil {
		s.finished = make(chan struct{})
	}
	select {
	case <-s.finished:
		// Restarting after the end replays the file from the top.
		s.finished = make(chan struct{})
		s.pos = 0
	default:
	}
	s.done = make(chan struct{})
	interval := time.Duration(float64(s.framesPerBuffer) / float64(s.sampleRate) * float64(time.Second))

	done, finished := s.done, s.finished
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !s.Pump() {
					close(finished)
					return
				}
			case <-done:
				return
			}
		}
	}()
	return nil
}

// Stop halts replay and waits for the pacing goroutine.
func (s *WavSource) Stop() error {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	close(done)
	s.wg.Wait()
	return nil
}

// Pump delivers one callback's worth of audio. It reports false once a
// non-looping source is exhausted.
func (s *WavSource) Pump() bool {
	want := s.framesPerBuffer * s.channels
	n := 0
	for n < want {
		if s.pos >= len(s.samples) {
			if !s.loop {
				break
			}
			s.pos = 0
		}
		take := min(want-n, len(s.samples)-s.pos)
		for i, v := range s.samples[s.pos : s.pos+take] {
			binary.LittleEndian.PutUint32(s.chunk[(n+i)*bytesPerSample:], math.Float32bits(v))
		}
		n += take
		s.pos += take
	}
	if n == 0 {
		return false
	}
	s.buf.Push(s.chunk, n*bytesPerSample)
	return true
}
