// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"sync"

	applog "audioviz/internal/log"
)

var capLog = applog.Named("capture")

// Opener builds the next source. It is called with the previous source
// already stopped and the buffer cleared.
type Opener func(buf *FrameBuffer) (Source, error)

// Capture owns the active source and the frame buffer it feeds. Switching
// sources is a full teardown and rebuild; readers see a short silent gap.
type Capture struct {
	mu  sync.Mutex
	buf *FrameBuffer
	src Source
}

// New returns a capture with no active source.
func New(buf *FrameBuffer) *Capture {
	return &Capture{buf: buf}
}

// Buffer returns the frame buffer fed by the active source.
func (c *Capture) Buffer() *FrameBuffer { return c.buf }

// Open replaces the active source. On failure the error is logged and
// returned, and capture is left without a source; readers then see no
// new samples.
func (c *Capture) Open(open Opener) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.buf.Clear()

	src, err := open(c.buf)
	if err != nil {
		capLog.Errorf("open failed: %v", err)
		return fmt.Errorf("capture open: %w", err)
	}
	c.buf.Reset(src.Channels())
	if err := src.Start(); err != nil {
		capLog.Errorf("start %q failed: %v", src.Name(), err)
		return fmt.Errorf("capture start: %w", err)
	}
	c.src = src
	capLog.Infof("capturing from %q (%d ch, %.0f Hz)", src.Name(), src.Channels(), src.SampleRate())
	return nil
}

// Active reports whether a source is running.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src != nil
}

// Source returns the running source or nil.
func (c *Capture) Source() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src
}

// SampleRate returns the running source's rate, or fallback when idle.
func (c *Capture) SampleRate(fallback float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src == nil {
		return fallback
	}
	return c.src.SampleRate()
}

// Close stops the active source.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	return nil
}

func (c *Capture) stopLocked() {
	if c.src == nil {
		return
	}
	if err := c.src.Stop(); err != nil {
		capLog.Warnf("stop %q: %v", c.src.Name(), err)
	}
	c.src = nil
}

// DeviceOpener opens a PortAudio input with cfg.
func DeviceOpener(cfg StreamConfig) Opener {
	return func(buf *FrameBuffer) (Source, error) {
		return NewPortAudioSource(cfg, buf)
	}
}

// WavOpener replays path.
func WavOpener(path string, framesPerBuffer int, loop bool) Opener {
	return func(buf *FrameBuffer) (Source, error) {
		return NewWavSource(path, framesPerBuffer, loop, buf)
	}
}
