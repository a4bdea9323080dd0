package capture

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	applog "audioviz/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// maxWriteFailures stops a recording after this many consecutive encoder
// errors.
const maxWriteFailures = 5

var recLog = applog.Named("recorder")

// Recorder writes the captured mono signal to a WAV file. Install
// Recorder.Write as the FrameBuffer tap.
type Recorder struct {
	sampleRate int
	bitDepth   int

	isRecording atomic.Bool
	mu          sync.Mutex
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	failures    int
}

// NewRecorder returns an idle recorder. Bit depth must be 16, 24 or 32.
func NewRecorder(sampleRate, bitDepth int) *Recorder {
	return &Recorder{sampleRate: sampleRate, bitDepth: bitDepth}
}

// Recording reports whether a file is open.
func (r *Recorder) Recording() bool { return r.isRecording.Load() }

// Start creates filename and begins accepting samples.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return errors.New("already recording")
	}
	switch r.bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", r.bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, r.bitDepth, 1, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  r.sampleRate,
		},
		Data:           make([]int, 0, 4096),
		SourceBitDepth: r.bitDepth,
	}
	r.failures = 0
	r.isRecording.Store(true)
	recLog.Infof("recording to %s (%d Hz, %d-bit)", filename, r.sampleRate, r.bitDepth)
	return nil
}

// Write converts and encodes mono samples. It runs on the capture thread
// and returns immediately when not recording.
func (r *Recorder) Write(mono []float32) {
	if !r.isRecording.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return
	}

	full := float64(int64(1)<<(r.bitDepth-1)) - 1
	data := r.sampleBuf.Data[:0]
	for _, s := range mono {
		v := math.Max(-1, math.Min(1, float64(s)))
		data = append(data, int(math.Round(v*full)))
	}
	r.sampleBuf.Data = data

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		r.failures++
		if r.failures >= maxWriteFailures {
			recLog.Errorf("stopping after %d write failures: %v", r.failures, err)
			r.isRecording.Store(false)
		}
		return
	}
	r.failures = 0
}

// Stop finalizes the WAV header and closes the file. Safe to call when
// idle.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isRecording.Store(false)

	var errs []error
	if r.wavEncoder != nil {
		errs = append(errs, r.wavEncoder.Close())
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		errs = append(errs, r.outputFile.Close())
		r.outputFile = nil
	}
	return errors.Join(errs...)
}
