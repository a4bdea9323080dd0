// SPDX-License-Identifier: MIT
package capture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
)

const (
	testSampleRate = 44100
	testFrameSize  = 512
)

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	rec := NewRecorder(testSampleRate, 16)

	if err := rec.Start(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !rec.Recording() {
		t.Error("Recorder should be in recording state")
	}
	if rec.outputFile == nil || rec.wavEncoder == nil || rec.sampleBuf == nil {
		t.Fatal("Recorder resources should be initialized")
	}
	if rec.sampleBuf.Format.NumChannels != 1 {
		t.Errorf("Buffer channels mismatch: got %d, want 1", rec.sampleBuf.Format.NumChannels)
	}

	outputFile := rec.outputFile
	if err := rec.Stop(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if rec.Recording() {
		t.Error("Recorder should not be in recording state after stopping")
	}
	if rec.outputFile != nil || rec.wavEncoder != nil {
		t.Error("Recorder resources should be released after stopping")
	}
	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		t.Error("Recording file was not created")
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		desc          string
		filename      string
		bitDepth      int
		alreadyActive bool
		errorContains string
	}{
		{"Already recording", "valid.wav", 16, true, "already recording"},
		{"Invalid path", "/nonexistent/path/file.wav", 16, false, "no such file"},
		{"Bad bit depth", "depth.wav", 12, false, "unsupported bit depth"},
		{"Valid path", "test.wav", 24, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			rec := NewRecorder(testSampleRate, tt.bitDepth)
			name := tt.filename
			if !filepath.IsAbs(name) {
				name = filepath.Join(dir, name)
			}
			if tt.alreadyActive {
				if err := rec.Start(name + ".first"); err != nil {
					t.Fatalf("setup: %v", err)
				}
				defer rec.Stop()
			}

			err := rec.Start(name)
			if err == nil {
				_ = rec.Stop()
			}
			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Error %v does not contain %q", err, tt.errorContains)
			}
		})
	}
}

func TestStopWhenNotRecording(t *testing.T) {
	rec := NewRecorder(testSampleRate, 16)
	if err := rec.Stop(); err != nil {
		t.Errorf("Stop on idle recorder: %v", err)
	}
}

func TestRecordingTapWritesFrames(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "tap.wav")
	rec := NewRecorder(testSampleRate, 16)
	if err := rec.Start(filename); err != nil {
		t.Fatal(err)
	}

	buf := NewFrameBuffer(testFrameSize, 2)
	buf.SetTap(rec.Write)
	stereo := make([]float32, 2*testFrameSize)
	for i := range stereo {
		stereo[i] = 0.25
	}
	buf.PushSamples(stereo)
	buf.PushSamples(stereo)
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pcm.Data) != 2*testFrameSize {
		t.Fatalf("recorded %d frames, want %d", len(pcm.Data), 2*testFrameSize)
	}
	if want := 8192; pcm.Data[0] < want-1 || pcm.Data[0] > want+1 {
		t.Errorf("sample = %d, want about %d", pcm.Data[0], want)
	}
}

func TestRecordingWriteIdleNoAllocs(t *testing.T) {
	rec := NewRecorder(testSampleRate, 16)
	samples := make([]float32, testFrameSize)

	allocs := testing.AllocsPerRun(100, func() {
		rec.Write(samples)
	})
	if allocs > 0 {
		t.Errorf("idle Write allocated: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkRecordingWrite(b *testing.B) {
	rec := NewRecorder(testSampleRate, 16)
	if err := rec.Start(filepath.Join(b.TempDir(), "bench.wav")); err != nil {
		b.Fatal(err)
	}
	defer rec.Stop()
	samples := make([]float32, testFrameSize)

	b.ReportAllocs()
	for b.Loop() {
		rec.Write(samples)
	}
}
