// Package tui implements the interactive device browser behind the
// `list` command.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"soundviz/internal/source"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0"))
)

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k")),
	Down: key.NewBinding(key.WithKeys("down", "j")),
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
}

type devicesMsg struct {
	devices []source.Device
}

type errMsg struct {
	err error
}

// DeviceBrowser is the Bubble Tea model for browsing audio devices. It
// shows each device's direction, channel counts, and default rate, with
// cursor-based navigation through the list.
type DeviceBrowser struct {
	devices  []source.Device
	cursor   int
	viewport viewport.Model
	ready    bool
	err      error
}

// NewDeviceBrowser creates the browser model. Devices are fetched
// asynchronously by Init.
func NewDeviceBrowser() DeviceBrowser {
	return DeviceBrowser{}
}

// Init fetches the device list.
func (m DeviceBrowser) Init() tea.Cmd {
	return func() tea.Msg {
		devices, err := source.GetDevices()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Update handles key and window events.
func (m DeviceBrowser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
			m.viewport.SetContent(m.renderDevices())
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case devicesMsg:
		m.devices = msg.devices
		if m.ready {
			m.viewport.SetContent(m.renderDevices())
		}

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.viewport.SetContent(m.renderDevices())
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.devices)-1 {
				m.cursor++
				m.viewport.SetContent(m.renderDevices())
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the browser.
func (m DeviceBrowser) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	title := titleStyle.Render("Audio Devices")
	help := helpStyle.Render("↑/↓: Navigate • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func deviceDirection(d source.Device) string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "None"
	}
}

func (m DeviceBrowser) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s %s\n", d.ID, d.Name,
			badgeStyle.Render("("+deviceDirection(d)+")"))
		entry += fmt.Sprintf("    in: %d ch, out: %d ch, default rate: %.0f Hz\n",
			d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)

		if i == m.cursor {
			entry = selectedStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

// RunDeviceBrowser launches the interactive device browser.
func RunDeviceBrowser() error {
	p := tea.NewProgram(NewDeviceBrowser(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
