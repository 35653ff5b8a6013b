package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/avgrelay/relay/internal/tui/client"
	"github.com/avgrelay/relay/internal/tui/theme"
	"github.com/avgrelay/relay/internal/tui/views/gauge"
	"github.com/avgrelay/relay/internal/tui/views/status"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const historyLen = 12

// Model is the root Bubble Tea model.
type Model struct {
	listen *client.StreamClient
	sender *client.StreamClient // nil unless sending was requested
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	gauge     gauge.Model
	statusBar status.Model
	input     textinput.Model

	history []int64 // most recent averages, oldest first
	lastErr string
	lastOut string
}

// New creates the root model. sender may be nil for a listen-only client.
func New(listen, sender *client.StreamClient) Model {
	ctx, cancel := context.WithCancel(context.Background())

	input := textinput.New()
	input.Placeholder = "integer"
	input.Prompt = "value> "
	input.CharLimit = 20

	return Model{
		listen:    listen,
		sender:    sender,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		gauge:     gauge.New(),
		statusBar: status.New(sender != nil),
		input:     input,
	}
}

// Init starts the WebSocket connections.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listen.Connect(m.ctx)}
	if m.sender != nil {
		cmds = append(cmds, m.sender.Connect(m.ctx))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.gauge.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.ConnectedMsg:
		sc := m.streamClient(msg.Stream)
		m.setConnected(msg.Stream, true)
		return m, sc.ReadLoop(m.ctx)

	case client.DisconnectedMsg:
		sc := m.streamClient(msg.Stream)
		m.setConnected(msg.Stream, false)
		return m, sc.Connect(m.ctx)

	case client.AverageMsg:
		m.statusBar.Updates++
		m.history = append(m.history, msg.Value)
		if len(m.history) > historyLen {
			m.history = m.history[len(m.history)-historyLen:]
		}
		return m, tea.Batch(m.gauge.SetValue(msg.Value), m.listen.ReadLoop(m.ctx))

	case gauge.FrameMsg:
		var cmd tea.Cmd
		m.gauge, cmd = m.gauge.Update(msg)
		return m, cmd

	case client.SentMsg:
		m.lastErr = ""
		m.lastOut = fmt.Sprintf("sent %d", msg.Value)
		return m, nil

	case client.SendFailedMsg:
		m.lastErr = fmt.Sprintf("send failed: %v", msg.Err)
		return m, nil
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		switch {
		case msg.Type == tea.KeyCtrlC:
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Escape):
			m.input.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Focus):
		if m.sender == nil {
			return m, nil
		}
		return m, m.input.Focus()
	}

	return m, nil
}

// submit sends the typed value. Anything that is not a whole number is
// rejected locally; the relay would discard it anyway.
func (m Model) submit() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" || m.sender == nil {
		return m, nil
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		m.lastErr = fmt.Sprintf("%q is not a whole number", raw)
		return m, nil
	}

	m.lastErr = ""
	m.input.SetValue("")
	return m, m.sender.Send(value)
}

func (m Model) streamClient(s client.Stream) *client.StreamClient {
	if s == client.StreamSend {
		return m.sender
	}
	return m.listen
}

func (m *Model) setConnected(s client.Stream, connected bool) {
	if s == client.StreamSend {
		m.statusBar.SendConnected = connected
		return
	}
	m.statusBar.ListenConnected = connected
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.statusBar.View(),
		"",
		m.gauge.View(),
		"",
		m.renderHistory(),
	}

	if !m.statusBar.ListenConnected {
		sections = append(sections, "", theme.StyleError.Render("  DISCONNECTED. Reconnecting..."))
	}

	if m.sender != nil {
		sections = append(sections, "", m.input.View())
	}
	if m.lastErr != "" {
		sections = append(sections, theme.StyleError.Render("  "+m.lastErr))
	} else if m.lastOut != "" {
		sections = append(sections, theme.StyleDimmed.Render("  "+m.lastOut))
	}

	help := "  q:quit"
	if m.sender != nil {
		help = "  tab:edit value  enter:send  esc:stop editing  q:quit"
	}
	sections = append(sections, "", theme.StyleDimmed.Render(help))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return theme.StyleDimmed.Render("  no broadcasts yet")
	}
	parts := make([]string, len(m.history))
	for i, v := range m.history {
		parts[i] = lipgloss.NewStyle().Foreground(theme.ValueColor(v)).Render(strconv.FormatInt(v, 10))
	}
	return theme.StyleDimmed.Render("  recent: ") + strings.Join(parts, " ")
}
