// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Source delivers captured audio into a FrameBuffer until stopped.
type Source interface {
	Name() string
	Channels() int
	SampleRate() float64
	Start() error
	Stop() error
}

// StreamConfig describes a PortAudio input stream.
type StreamConfig struct {
	DeviceID        int
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
	LowLatency      bool
}

type paStream interface {
	Start() error
	Stop() error
	Close() error
}

func openStream(params portaudio.StreamParameters, cb func(in []float32)) (paStream, error) {
	return portaudio.OpenStream(params, cb)
}

// PortAudioSource captures from a PortAudio input device. Loopback capture
// works with any device that exposes the system mix as an input (monitor
// sources on PulseAudio, BlackHole on macOS, Stereo Mix on Windows).
type PortAudioSource struct {
	cfg     StreamConfig
	device  *portaudio.DeviceInfo
	latency time.Duration
	stream  paStream
	buf     *FrameBuffer

	callbacks atomic.Uint64
}

var _ Source = (*PortAudioSource)(nil)

// NewPortAudioSource resolves the device and prepares a stream that pushes
// into buf. Channel count is clamped to what the device offers.
func NewPortAudioSource(cfg StreamConfig, buf *FrameBuffer) (*PortAudioSource, error) {
	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}
	if cfg.Channels > device.MaxInputChannels {
		cfg.Channels = device.MaxInputChannels
	}
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("device %q has no input channels", device.Name)
	}

	s := &PortAudioSource{cfg: cfg, device: device, buf: buf}
	if cfg.LowLatency {
		s.latency = device.DefaultLowInputLatency
	} else {
		s.latency = device.DefaultHighInputLatency
	}
	return s, nil
}

// Name returns the device name.
func (s *PortAudioSource) Name() string { return s.device.Name }

// Channels returns the interleaved channel count of the stream.
func (s *PortAudioSource) Channels() int { return s.cfg.Channels }

// SampleRate returns the stream rate in Hz.
func (s *PortAudioSource) SampleRate() float64 { return s.cfg.SampleRate }

// Callbacks returns the number of capture callbacks received.
func (s *PortAudioSource) Callbacks() uint64 { return s.callbacks.Load() }

// Start opens and starts the input stream.
func (s *PortAudioSource) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.cfg.Channels,
			Device:   s.device,
			Latency:  s.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: s.cfg.FramesPerBuffer,
		SampleRate:      s.cfg.SampleRate,
	}

	stream, err := paLibOpenStream(params, s.process)
	if err != nil {
		return fmt.Errorf("failed to open stream on %q: %w", s.device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start stream on %q: %w", s.device.Name, err)
	}
	s.stream = stream
	return nil
}

// Stop stops and closes the stream. Safe to call when not started.
func (s *PortAudioSource) Stop() error {
	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

// process is the capture callback.
// Performance Critical:
// - Runs on the PortAudio callback thread
// - Uses the buffer's pre-allocated workspace only
func (s *PortAudioSource) process(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s.callbacks.Add(1)
	s.buf.PushSamples(in)
}
