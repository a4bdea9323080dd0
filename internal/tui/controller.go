// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"time"

	"audioviz/internal/audio"
	"audioviz/internal/capture"
	"audioviz/internal/registry"
)

// Status is the one-line summary shown under the instance list.
type Status struct {
	Frames uint64
	RMS    float64
	Source string
}

// Controller is what the panel drives. Every call may block briefly.
type Controller interface {
	Snapshot() ([]registry.Info, Status, error)
	Types() []string
	Add(typeName string) (string, error)
	Remove(id string) error
	SetEnabled(id string, enabled bool) error
	ResetStats(id string) error
	SavePreset() (string, error)
	Devices() ([]capture.Device, error)
	SwitchDevice(id int, sampleRate float64) error
}

// EngineController runs panel actions on the engine's frame goroutine.
type EngineController struct {
	engine     *audio.Engine
	presetPath string
	stream     capture.StreamConfig
	timeout    time.Duration
}

// NewEngineController wraps e. stream is the template for device
// switches; its DeviceID and SampleRate are replaced per switch.
func NewEngineController(e *audio.Engine, presetPath string, stream capture.StreamConfig) *EngineController {
	return &EngineController{engine: e, presetPath: presetPath, stream: stream, timeout: 2 * time.Second}
}

func (c *EngineController) do(fn func(*audio.Engine) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	var err error
	if derr := c.engine.Do(ctx, func(e *audio.Engine) { err = fn(e) }); derr != nil {
		return derr
	}
	return err
}

func (c *EngineController) Snapshot() ([]registry.Info, Status, error) {
	var rows []registry.Info
	var st Status
	err := c.do(func(e *audio.Engine) error {
		rows = e.Manager().Instances()
		st = Status{Frames: e.Seq(), RMS: e.Features().RMS, Source: e.SourceName()}
		return nil
	})
	return rows, st, err
}

func (c *EngineController) Types() []string { return c.engine.Manager().Types() }

func (c *EngineController) Add(typeName string) (string, error) {
	var id string
	err := c.do(func(e *audio.Engine) error {
		inst, err := e.Manager().Add(typeName)
		if err != nil {
			return err
		}
		id = inst.ID()
		return nil
	})
	return id, err
}

func (c *EngineController) Remove(id string) error {
	return c.do(func(e *audio.Engine) error {
		if !e.Manager().Remove(id) {
			return registry.ErrNotFound
		}
		return nil
	})
}

func (c *EngineController) SetEnabled(id string, enabled bool) error {
	return c.do(func(e *audio.Engine) error { return e.Manager().SetEnabled(id, enabled) })
}

func (c *EngineController) ResetStats(id string) error {
	return c.do(func(e *audio.Engine) error { return e.Manager().ResetStats(id) })
}

func (c *EngineController) SavePreset() (string, error) {
	return c.presetPath, c.do(func(e *audio.Engine) error { return e.SavePreset(c.presetPath) })
}

// Devices lists PortAudio devices. PortAudio is initialized by main.
func (c *EngineController) Devices() ([]capture.Device, error) { return capture.HostDevices() }

func (c *EngineController) SwitchDevice(id int, sampleRate float64) error {
	cfg := c.stream
	cfg.DeviceID = id
	cfg.SampleRate = sampleRate
	return c.do(func(e *audio.Engine) error { return e.SwitchSource(capture.DeviceOpener(cfg)) })
}

var _ Controller = (*EngineController)(nil)
