// SPDX-License-Identifier: MIT

// Package registry owns the ordered set of visualizer instances and the
// background and post-processing singletons, and drives them once per
// frame.
package registry

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"audioviz/internal/config"
	applog "audioviz/internal/log"
	"audioviz/internal/postfx"
	"audioviz/internal/render"
	"audioviz/internal/visual"

	"github.com/go-gl/mathgl/mgl32"
)

// Reserved preset keys for the singletons.
const (
	KeyBackground     = "Background"
	KeyPostProcessing = "PostProcessing"
)

var (
	// ErrNotFound is returned for an unknown instance id.
	ErrNotFound = errors.New("instance not found")
	// ErrNoStats is returned by ResetStats for variants without statistics.
	ErrNoStats = errors.New("instance has no statistics")
)

var regLog = applog.Named("registry")

// Info is a read-only row for management panels.
type Info struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Number      int    `json:"number"`
	DisplayName string `json:"displayName"`
	Enabled     bool   `json:"enabled"`
	Error       string `json:"error,omitempty"`
}

// Manager is not safe for concurrent use; the engine calls it from the
// frame goroutine only.
type Manager struct {
	instances  []*Instance // creation order
	byID       map[string]*Instance
	seq        uint64
	background *visual.Background
	post       *postfx.Pipeline
	canvas     *render.Canvas
	time       float64

	onError func(inst *Instance, stage string)
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackground installs the background singleton.
func WithBackground(b *visual.Background) Option {
	return func(m *Manager) { m.background = b }
}

// WithPostProcessing installs the post-processing singleton.
func WithPostProcessing(p *postfx.Pipeline) Option {
	return func(m *Manager) { m.post = p }
}

// WithErrorHook is called whenever an instance enters the error state.
func WithErrorHook(fn func(inst *Instance, stage string)) Option {
	return func(m *Manager) { m.onError = fn }
}

// New returns an empty manager.
func New(opts ...Option) *Manager {
	m := &Manager{byID: make(map[string]*Instance)}
	for _, opt := range opts {
		opt(m)
	}
	if m.background != nil {
		m.guard(nil, "initialize", func() { m.background.Initialize() })
	}
	return m
}

// Types lists the type names Add accepts.
func (m *Manager) Types() []string { return visual.Types() }

// Background returns the background singleton, or nil.
func (m *Manager) Background() *visual.Background { return m.background }

// PostProcessing returns the post-processing singleton, or nil.
func (m *Manager) PostProcessing() *postfx.Pipeline { return m.post }

// Len returns the number of instances.
func (m *Manager) Len() int { return len(m.instances) }

// nextNumber returns the lowest n >= 1 with no "{typeName}_{n}" registered.
func (m *Manager) nextNumber(typeName string) int {
	n := 1
	for {
		if _, taken := m.byID[InstanceID(typeName, n)]; !taken {
			return n
		}
		n++
	}
}

// Add creates and registers a new instance of typeName.
func (m *Manager) Add(typeName string) (*Instance, error) {
	vis, err := visual.New(typeName)
	if err != nil {
		return nil, err
	}
	inst := NewInstance(vis, m.nextNumber(typeName))
	m.Register(inst)
	return inst, nil
}

// Register appends inst in creation order and initializes it. A duplicate
// id is logged and ignored; Register reports whether inst was added.
func (m *Manager) Register(inst *Instance) bool {
	if _, dup := m.byID[inst.id]; dup {
		regLog.Warnf("instance %s already registered, ignoring", inst.id)
		return false
	}
	m.seq++
	inst.created = m.seq
	m.instances = append(m.instances, inst)
	m.byID[inst.id] = inst

	m.initialize(inst)
	regLog.Debugf("registered %s", inst.id)
	return true
}

// Remove disposes and drops the instance.
func (m *Manager) Remove(id string) bool {
	inst, ok := m.byID[id]
	if !ok {
		return false
	}
	m.guard(inst, "dispose", inst.vis.Dispose)
	delete(m.byID, id)
	m.instances = slices.DeleteFunc(m.instances, func(i *Instance) bool { return i == inst })
	regLog.Debugf("removed %s", id)
	return true
}

// Get returns the instance with id.
func (m *Manager) Get(id string) (*Instance, bool) {
	inst, ok := m.byID[id]
	return inst, ok
}

// Instances returns one row per instance in creation order.
func (m *Manager) Instances() []Info {
	out := make([]Info, len(m.instances))
	for i, inst := range m.instances {
		out[i] = Info{
			ID:          inst.id,
			Type:        inst.typeName,
			Number:      inst.number,
			DisplayName: inst.displayName,
			Enabled:     inst.enabled,
			Error:       inst.errMsg,
		}
	}
	return out
}

// SetEnabled toggles whether the instance is updated and drawn.
func (m *Manager) SetEnabled(id string, enabled bool) error {
	inst, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	inst.enabled = enabled
	return nil
}

// Rename sets the display name.
func (m *Manager) Rename(id, name string) error {
	inst, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	inst.displayName = name
	return nil
}

// Configure applies a settings blob to one instance. On failure the
// previous settings stay and the error is returned.
func (m *Manager) Configure(id string, settings []byte) error {
	inst, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := inst.vis.LoadConfig(settings); err != nil {
		return err
	}
	m.initialize(inst)
	return nil
}

// ResetStats clears statistics on one instance.
func (m *Manager) ResetStats(id string) error {
	inst, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r, ok := inst.vis.(visual.Resetter)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoStats, id)
	}
	r.ResetStats()
	return nil
}

// ResetAllStats clears statistics on every instance that keeps any.
func (m *Manager) ResetAllStats() {
	for _, inst := range m.instances {
		if r, ok := inst.vis.(visual.Resetter); ok {
			r.ResetStats()
		}
	}
}

func (m *Manager) active(inst *Instance) bool { return inst.enabled && inst.errMsg == "" }

// UpdateAll advances the background and every enabled instance in
// creation order.
func (m *Manager) UpdateAll(f *visual.Frame) {
	m.time = f.Time
	if m.background != nil {
		m.guard(nil, "update", func() { m.background.Update(f) })
	}
	for _, inst := range m.instances {
		if !m.active(inst) {
			continue
		}
		m.guard(inst, "update", func() { inst.vis.Update(f) })
	}
}

// RenderAll draws into dst: post-processing capture, background, enabled
// instances in creation order, then the post-processing composite.
func (m *Manager) RenderAll(dst *image.RGBA, proj mgl32.Mat4, vp render.Viewport) {
	target := dst
	if m.post != nil {
		target = m.post.Begin(vp)
	}
	if m.canvas == nil {
		m.canvas = render.NewCanvas(target, proj)
	} else {
		m.canvas.Retarget(target)
		m.canvas.SetProjection(proj)
	}

	if m.background != nil {
		m.guard(nil, "render", func() { m.background.Render(m.canvas) })
	} else {
		m.canvas.Clear(render.Black)
	}
	for _, inst := range m.instances {
		if !m.active(inst) {
			continue
		}
		m.guard(inst, "render", func() { inst.vis.Render(m.canvas) })
	}

	if m.post != nil {
		m.guard(nil, "postprocess", func() { m.post.End(dst, m.time) })
	}
}

// initialize runs Initialize under guard and reports a new error state.
func (m *Manager) initialize(inst *Instance) {
	if !m.guard(inst, "initialize", inst.initialize) && inst.errMsg != "" {
		m.fail(inst, "initialize")
	}
}

// guard runs fn and converts a panic into the instance's error state so
// one broken visualizer never takes down the frame. It reports whether fn
// panicked.
func (m *Manager) guard(inst *Instance, stage string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if inst == nil {
				regLog.Errorf("%s panicked: %v", stage, r)
				return
			}
			inst.errMsg = fmt.Sprintf("%s panicked: %v", stage, r)
			m.fail(inst, stage)
		}
	}()
	fn()
	return false
}

func (m *Manager) fail(inst *Instance, stage string) {
	regLog.Errorf("%s: %s", inst.id, inst.errMsg)
	if m.onError != nil {
		m.onError(inst, stage)
	}
}

// SaveAll regenerates the full preset from live state.
func (m *Manager) SaveAll() *config.Preset {
	p := &config.Preset{
		Order:   make([]string, 0, len(m.instances)),
		Enabled: []string{},
		Configs: make(map[string]string, len(m.instances)+2),
	}
	for _, inst := range m.instances {
		data, err := inst.Save()
		if err != nil {
			regLog.Errorf("failed to save %s: %v", inst.id, err)
			continue
		}
		p.Order = append(p.Order, inst.id)
		p.Configs[inst.id] = string(data)
		if inst.enabled {
			p.Enabled = append(p.Enabled, inst.id)
		}
	}
	if m.background != nil {
		if data, err := m.background.SaveConfig(); err == nil {
			p.Configs[KeyBackground] = string(data)
		}
	}
	if m.post != nil {
		if data, err := m.post.SaveConfig(); err == nil {
			p.Configs[KeyPostProcessing] = string(data)
		}
	}
	return p
}

// LoadAll applies a preset. Instances named in the preset but missing here
// are created from the type encoded in their id, in preset order. Unknown
// keys are skipped. When the preset carries an enabled list, it decides
// the enabled flag of every instance it configures.
func (m *Manager) LoadAll(p *config.Preset) {
	if p == nil {
		return
	}
	if data, ok := p.Configs[KeyBackground]; ok && m.background != nil {
		if err := m.background.LoadConfig([]byte(data)); err != nil {
			regLog.Warnf("background config ignored: %v", err)
		} else {
			m.guard(nil, "initialize", func() { m.background.Initialize() })
		}
	}
	if data, ok := p.Configs[KeyPostProcessing]; ok && m.post != nil {
		if err := m.post.LoadConfig([]byte(data)); err != nil {
			regLog.Warnf("post-processing config ignored: %v", err)
		}
	}

	var enabled map[string]bool
	if p.Enabled != nil {
		enabled = make(map[string]bool, len(p.Enabled))
		for _, id := range p.Enabled {
			enabled[id] = true
		}
	}

	for _, id := range presetOrder(p) {
		typeName, n, ok := ParseInstanceID(id)
		if !ok || !visual.Known(typeName) {
			regLog.Debugf("skipping unknown preset key %q", id)
			continue
		}
		inst, exists := m.byID[id]
		if !exists {
			vis, err := visual.New(typeName)
			if err != nil {
				continue
			}
			inst = NewInstance(vis, n)
			m.Register(inst)
		}
		before := inst.errMsg
		var err error
		if !m.guard(inst, "load", func() { err = inst.Load([]byte(p.Configs[id])) }) {
			if err != nil {
				regLog.Warnf("%v", err)
			} else if inst.errMsg != "" && inst.errMsg != before {
				m.fail(inst, "initialize")
			}
		}
		if enabled != nil {
			inst.enabled = enabled[id]
		}
	}
}

// presetOrder returns the instance keys of p: those in Order first, then
// any remaining config keys sorted.
func presetOrder(p *config.Preset) []string {
	seen := make(map[string]bool, len(p.Configs))
	var out []string
	for _, id := range p.Order {
		if _, ok := p.Configs[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	var rest []string
	for id := range p.Configs {
		if !seen[id] && id != KeyBackground && id != KeyPostProcessing {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Dispose releases every instance.
func (m *Manager) Dispose() {
	for _, inst := range m.instances {
		m.guard(inst, "dispose", inst.vis.Dispose)
	}
	m.instances = nil
	m.byID = make(map[string]*Instance)
	if m.background != nil {
		m.background.Dispose()
	}
}
