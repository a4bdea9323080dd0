// SPDX-License-Identifier: MIT
package capture

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

type fakeStream struct {
	started, stopped, closed bool
	startErr                 error
}

func (s *fakeStream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}
func (s *fakeStream) Stop() error  { s.stopped = true; return nil }
func (s *fakeStream) Close() error { s.closed = true; return nil }

func withFakeDevices(t *testing.T, devices []*portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return devices[0], nil }
}

func withFakeStream(t *testing.T, stream *fakeStream) *func([]float32) {
	t.Helper()
	orig := paLibOpenStream
	t.Cleanup(func() { paLibOpenStream = orig })
	var cb func([]float32)
	paLibOpenStream = func(p portaudio.StreamParameters, f func([]float32)) (paStream, error) {
		cb = f
		return stream, nil
	}
	return &cb
}

func TestPortAudioSourceDeliversToBuffer(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{{
		Name:                    "Monitor of Built-in",
		MaxInputChannels:        2,
		DefaultHighInputLatency: 20 * time.Millisecond,
	}})
	stream := &fakeStream{}
	cb := withFakeStream(t, stream)

	buf := NewFrameBuffer(4, 2)
	src, err := NewPortAudioSource(StreamConfig{DeviceID: -1, Channels: 8, SampleRate: 48000, FramesPerBuffer: 4}, buf)
	if err != nil {
		t.Fatalf("NewPortAudioSource: %v", err)
	}
	if src.Channels() != 2 {
		t.Errorf("channels = %d, want clamped 2", src.Channels())
	}
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !stream.started {
		t.Fatal("stream not started")
	}

	(*cb)([]float32{1, 1, 0, 0, 1, 0, 0, 1})
	if buf.Len() != 4 || src.Callbacks() != 1 {
		t.Errorf("len = %d callbacks = %d", buf.Len(), src.Callbacks())
	}

	if err := src.Stop(); err != nil {
		t.Fatal(err)
	}
	if !stream.stopped || !stream.closed {
		t.Error("stream not stopped and closed")
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestPortAudioSourceStartFailureClosesStream(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{{Name: "mic", MaxInputChannels: 1}})
	stream := &fakeStream{startErr: errors.New("device busy")}
	withFakeStream(t, stream)

	src, err := NewPortAudioSource(StreamConfig{DeviceID: 0, Channels: 1, SampleRate: 44100, FramesPerBuffer: 64}, NewFrameBuffer(64, 1))
	if err != nil {
		t.Fatal(err)
	}
	err = src.Start()
	if err == nil || !strings.Contains(err.Error(), "device busy") {
		t.Fatalf("Start error = %v", err)
	}
	if !stream.closed {
		t.Error("stream leaked after failed start")
	}
}

func TestPortAudioSourceRejectsOutputOnlyDevice(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{
		{Name: "mic", MaxInputChannels: 1},
		{Name: "speakers", MaxOutputChannels: 2},
	})
	_, err := NewPortAudioSource(StreamConfig{DeviceID: 1, Channels: 2}, NewFrameBuffer(64, 1))
	if err == nil || !strings.Contains(err.Error(), "does not support input") {
		t.Errorf("error = %v, want does not support input", err)
	}
}
