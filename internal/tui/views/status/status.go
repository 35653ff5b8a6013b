package status

import (
	"fmt"

	"github.com/avgrelay/relay/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	ListenConnected bool
	SendConnected   bool
	Sending         bool // a send stream was requested
	Updates         int
	Width           int
}

// New creates a status bar model.
func New(sending bool) Model {
	return Model{Sending: sending}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connLabel("listen", m.ListenConnected)
	if m.Sending {
		content += sep + connLabel("send", m.SendConnected)
	}
	content += sep + fmt.Sprintf("%d updates", m.Updates)

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func connLabel(name string, connected bool) string {
	text := "○ " + name + " connecting..."
	if connected {
		text = "● " + name
	}
	return lipgloss.NewStyle().Foreground(connColor(connected)).Render(text)
}

// connColor is amber while a stream is (re)connecting, since the client
// retries on its own.
func connColor(connected bool) lipgloss.Color {
	if connected {
		return theme.ColorHealthy
	}
	return theme.ColorWarning
}
