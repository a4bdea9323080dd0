// SPDX-License-Identifier: MIT

// Package tui is the terminal management panel: the instance list with
// enable toggles, the type menu for new instances, and the capture device
// screens.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"audioviz/internal/registry"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const refreshInterval = 250 * time.Millisecond

// Screen is the active panel page.
type Screen int

const (
	PanelScreen Screen = iota
	AddScreen
	DevicesScreen
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Add     key.Binding
	Remove  key.Binding
	Reset   key.Binding
	Save    key.Binding
	Devices key.Binding
	Select  key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Add, k.Remove, k.Reset, k.Save, k.Devices, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var defaultKeys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "enable")),
	Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Remove:  key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove")),
	Reset:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset stats")),
	Save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save preset")),
	Devices: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "input device")),
	Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

type snapshotMsg struct {
	rows   []registry.Info
	status Status
}

// flashMsg is a one-line result of an action.
type flashMsg string

// Model is the management panel.
type Model struct {
	ctl    Controller
	keys   keyMap
	help   help.Model
	screen Screen

	rows       []registry.Info
	status     Status
	cursor     int
	types      []string
	typeCursor int
	devices    DeviceListModel

	width, height int
	flash         string
	err           error
}

// NewModel returns a panel driving ctl.
func NewModel(ctl Controller) Model {
	return Model{ctl: ctl, keys: defaultKeys, help: help.New(), types: ctl.Types()}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.snapshot(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) snapshot() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		rows, st, err := ctl.Snapshot()
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{rows: rows, status: st}
	}
}

// action runs fn off the UI goroutine, then refreshes.
func (m Model) action(fn func() (string, error)) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		text, err := fn()
		if err != nil {
			return errMsg{err}
		}
		rows, st, err := ctl.Snapshot()
		if err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{flash: text, snap: snapshotMsg{rows: rows, status: st}}
	}
}

type actionDoneMsg struct {
	flash string
	snap  snapshotMsg
}

// Screen returns the active page.
func (m Model) Screen() Screen { return m.screen }

func (m Model) selected() (registry.Info, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return registry.Info{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if m.screen == DevicesScreen {
			var cmd tea.Cmd
			m.devices, cmd = m.devices.update(msg)
			return m, cmd
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.snapshot(), tick())

	case snapshotMsg:
		m.applySnapshot(msg)
		return m, nil

	case actionDoneMsg:
		m.applySnapshot(msg.snap)
		m.flash, m.err = msg.flash, nil
		return m, nil

	case errMsg:
		if m.screen == DevicesScreen {
			var cmd tea.Cmd
			m.devices, cmd = m.devices.update(msg)
			return m, cmd
		}
		m.err = msg.err
		return m, nil

	case deviceBackMsg:
		m.screen = PanelScreen
		return m, nil

	case deviceChosenMsg:
		m.screen = PanelScreen
		d, rate := msg.device, msg.sampleRate
		return m, m.action(func() (string, error) {
			if err := m.ctl.SwitchDevice(d.ID, rate); err != nil {
				return "", err
			}
			return fmt.Sprintf("capturing from %s at %.0f Hz", d.Name, rate), nil
		})
	}

	switch m.screen {
	case DevicesScreen:
		var cmd tea.Cmd
		m.devices, cmd = m.devices.update(msg)
		return m, cmd
	case AddScreen:
		if k, ok := msg.(tea.KeyMsg); ok {
			return m.updateAdd(k)
		}
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok {
		return m.updatePanel(k)
	}
	return m, nil
}

func (m *Model) applySnapshot(s snapshotMsg) {
	m.rows, m.status = s.rows, s.status
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

func (m Model) updatePanel(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(k, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(k, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(k, m.keys.Add):
		m.screen = AddScreen
		m.typeCursor = 0
	case key.Matches(k, m.keys.Devices):
		m.screen = DevicesScreen
		m.devices = newEmbeddedDeviceList(m.ctl.Devices, m.width, m.height)
		return m, m.devices.Init()
	case key.Matches(k, m.keys.Save):
		return m, m.action(func() (string, error) {
			path, err := m.ctl.SavePreset()
			if err != nil {
				return "", err
			}
			return "saved " + path, nil
		})
	}

	row, ok := m.selected()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, m.keys.Toggle):
		return m, m.action(func() (string, error) {
			return "", m.ctl.SetEnabled(row.ID, !row.Enabled)
		})
	case key.Matches(k, m.keys.Remove):
		return m, m.action(func() (string, error) {
			return "removed " + row.ID, m.ctl.Remove(row.ID)
		})
	case key.Matches(k, m.keys.Reset):
		return m, m.action(func() (string, error) {
			return "reset " + row.ID, m.ctl.ResetStats(row.ID)
		})
	}
	return m, nil
}

func (m Model) updateAdd(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, m.keys.Back):
		m.screen = PanelScreen
	case key.Matches(k, m.keys.Up):
		if m.typeCursor > 0 {
			m.typeCursor--
		}
	case key.Matches(k, m.keys.Down):
		if m.typeCursor < len(m.types)-1 {
			m.typeCursor++
		}
	case key.Matches(k, m.keys.Select):
		if len(m.types) == 0 {
			return m, nil
		}
		typeName := m.types[m.typeCursor]
		m.screen = PanelScreen
		return m, m.action(func() (string, error) {
			id, err := m.ctl.Add(typeName)
			return "added " + id, err
		})
	case key.Matches(k, m.keys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	switch m.screen {
	case DevicesScreen:
		return m.devices.View()
	case AddScreen:
		return m.viewAdd()
	}
	return m.viewPanel()
}

func (m Model) viewPanel() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Visualizers"))
	sb.WriteString("\n\n")

	if len(m.rows) == 0 {
		sb.WriteString(dimStyle.Render("No instances. Press a to add one."))
		sb.WriteString("\n")
	}
	for i, r := range m.rows {
		check := "[ ]"
		if r.Enabled {
			check = "[x]"
		}
		line := fmt.Sprintf("%s %-12s %-20s %s", check, r.ID, r.DisplayName, r.Type)
		if i == m.cursor {
			line = highlightStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line)
		if r.Error != "" {
			sb.WriteString("  " + errorStyle.Render(r.Error))
		}
		sb.WriteString("\n")
	}

	source := m.status.Source
	if source == "" {
		source = "no input"
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(fmt.Sprintf("%s • frame %d • rms %.3f", source, m.status.Frames, m.status.RMS)))
	sb.WriteString("\n")
	switch {
	case m.err != nil:
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n")
	case m.flash != "":
		sb.WriteString(dimStyle.Render(m.flash))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m Model) viewAdd() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Add Visualizer"))
	sb.WriteString("\n\n")
	for i, t := range m.types {
		if i == m.typeCursor {
			sb.WriteString(highlightStyle.Render("▶ " + t))
		} else {
			sb.WriteString("  " + t)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("↑/↓: Navigate • Enter: Add • Esc: Back"))
	return sb.String()
}

// Run starts the panel on the terminal's alternate screen and blocks
// until the user quits or ctx is done.
func Run(ctx context.Context, ctl Controller) error {
	_, err := tea.NewProgram(NewModel(ctl), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
