// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"testing"

	"audioviz/internal/capture"
	"audioviz/internal/registry"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	rows     []registry.Info
	status   Status
	added    []string
	removed  []string
	reset    []string
	saved    int
	switched []float64
	err      error
}

func (f *fakeController) Snapshot() ([]registry.Info, Status, error) {
	return append([]registry.Info(nil), f.rows...), f.status, nil
}

func (f *fakeController) Types() []string { return []string{"Bars", "Circle", "Waveform"} }

func (f *fakeController) Add(typeName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	id := typeName + "_1"
	f.added = append(f.added, typeName)
	f.rows = append(f.rows, registry.Info{ID: id, Type: typeName, DisplayName: typeName, Enabled: true})
	return id, nil
}

func (f *fakeController) Remove(id string) error {
	f.removed = append(f.removed, id)
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return registry.ErrNotFound
}

func (f *fakeController) SetEnabled(id string, enabled bool) error {
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Enabled = enabled
			return nil
		}
	}
	return registry.ErrNotFound
}

func (f *fakeController) ResetStats(id string) error {
	f.reset = append(f.reset, id)
	return nil
}

func (f *fakeController) SavePreset() (string, error) {
	f.saved++
	return "presets/default.yaml", nil
}

func (f *fakeController) Devices() ([]capture.Device, error) {
	return []capture.Device{{ID: 0, Name: "Mic", MaxInputChannels: 2, DefaultSampleRate: 48000}}, nil
}

func (f *fakeController) SwitchDevice(id int, sampleRate float64) error {
	f.switched = append(f.switched, sampleRate)
	return nil
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// send feeds msg and follows the returned commands until none remain.
// None of the panel's actions schedule ticks, so the chain ends.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	for i := 0; msg != nil; i++ {
		require.Less(t, i, 10, "command chain did not settle")
		next, cmd := m.Update(msg)
		m = next.(Model)
		msg = nil
		if cmd != nil {
			msg = cmd()
		}
	}
	return m
}

func newTestModel(t *testing.T, ctl *fakeController) Model {
	t.Helper()
	m := NewModel(ctl)
	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return send(t, m, m.snapshot()())
}

func TestPanelShowsInstances(t *testing.T) {
	ctl := &fakeController{
		rows: []registry.Info{
			{ID: "Bars_1", Type: "Bars", DisplayName: "Bars 1", Enabled: true},
			{ID: "Circle_1", Type: "Circle", DisplayName: "Circle 1", Error: "panic: boom"},
		},
		status: Status{Frames: 42, RMS: 0.25, Source: "Mic"},
	}
	m := newTestModel(t, ctl)
	view := m.View()
	assert.Contains(t, view, "[x] Bars_1")
	assert.Contains(t, view, "[ ] Circle_1")
	assert.Contains(t, view, "panic: boom")
	assert.Contains(t, view, "frame 42")
	assert.Contains(t, view, "Mic")
}

func TestPanelToggleAndRemove(t *testing.T) {
	ctl := &fakeController{rows: []registry.Info{
		{ID: "Bars_1", Type: "Bars", Enabled: true},
		{ID: "Circle_1", Type: "Circle", Enabled: true},
	}}
	m := newTestModel(t, ctl)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	assert.False(t, ctl.rows[1].Enabled)
	assert.True(t, ctl.rows[0].Enabled)

	m = send(t, m, runes("x"))
	assert.Equal(t, []string{"Circle_1"}, ctl.removed)
	require.Len(t, m.rows, 1)
	assert.Equal(t, 0, m.cursor, "cursor clamps after removal")

	m = send(t, m, runes("r"))
	assert.Equal(t, []string{"Bars_1"}, ctl.reset)
}

func TestPanelAddFromTypeMenu(t *testing.T) {
	ctl := &fakeController{}
	m := newTestModel(t, ctl)

	m = send(t, m, runes("a"))
	require.Equal(t, AddScreen, m.Screen())
	assert.Contains(t, m.View(), "Waveform")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, PanelScreen, m.Screen())
	assert.Equal(t, []string{"Circle"}, ctl.added)
	assert.Contains(t, m.View(), "added Circle_1")

	m = send(t, m, runes("a"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, PanelScreen, m.Screen())
	assert.Len(t, ctl.added, 1)
}

func TestPanelShowsActionErrors(t *testing.T) {
	ctl := &fakeController{err: errors.New("unknown visualizer type")}
	m := newTestModel(t, ctl)
	m = send(t, m, runes("a"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "unknown visualizer type")
}

func TestPanelSavePreset(t *testing.T) {
	ctl := &fakeController{}
	m := newTestModel(t, ctl)
	m = send(t, m, runes("s"))
	assert.Equal(t, 1, ctl.saved)
	assert.Contains(t, m.View(), "saved presets/default.yaml")
}

func TestPanelDeviceSwitch(t *testing.T) {
	ctl := &fakeController{}
	m := newTestModel(t, ctl)

	m = send(t, m, runes("i"))
	require.Equal(t, DevicesScreen, m.Screen())
	assert.Contains(t, m.View(), "Mic")

	// list, then sample rate, then switch
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, PanelScreen, m.Screen())
	require.Len(t, ctl.switched, 1)
	assert.Equal(t, 48000.0, ctl.switched[0])
	assert.Contains(t, m.View(), "capturing from Mic at 48000 Hz")
}

func TestPanelQuit(t *testing.T) {
	m := NewModel(&fakeController{})
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
