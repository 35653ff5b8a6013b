// Package gauge renders the live average as a horizontal bar that springs
// toward each new value.
package gauge

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/avgrelay/relay/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	fps       = 60
	frequency = 6.0
	damping   = 0.6
	settle    = 0.01
)

// FrameMsg advances the spring animation by one frame.
type FrameMsg struct{}

type Model struct {
	Width int

	value    int64 // last received average
	received bool
	lo, hi   int64 // observed range, always spanning zero

	spring    harmonica.Spring
	pos, vel  float64
	animating bool
}

func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping),
	}
}

// SetValue retargets the gauge. The returned command starts the animation
// if it is not already running.
func (m *Model) SetValue(v int64) tea.Cmd {
	m.value = v
	m.received = true
	m.lo = min(m.lo, v)
	m.hi = max(m.hi, v)

	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

func (m Model) Value() int64 { return m.value }

func (m Model) Animating() bool { return m.animating }

// Position is the value currently drawn, mid-animation.
func (m Model) Position() float64 { return m.pos }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok || !m.animating {
		return m, nil
	}

	target := float64(m.value)
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, target)
	if math.Abs(m.pos-target) < settle && math.Abs(m.vel) < settle {
		m.pos, m.vel = target, 0
		m.animating = false
		return m, nil
	}
	return m, frame()
}

func (m Model) View() string {
	width := m.Width - 4
	if width < 20 {
		width = 20
	}

	label := "AVERAGE"
	if !m.received {
		return theme.StyleHeader.Render(label) + "  " + theme.StyleDimmed.Render("waiting for first broadcast")
	}

	color := theme.ValueColor(m.value)
	valueStr := theme.StyleValue.Foreground(color).Render(fmt.Sprintf("%d", m.value))
	header := theme.StyleHeader.Render(label) + " " + valueStr

	span := float64(m.hi - m.lo)
	if span == 0 {
		span = 1
	}
	zero := int(math.Round(float64(-m.lo) / span * float64(width)))
	cur := int(math.Round((m.pos - float64(m.lo)) / span * float64(width)))
	cur = max(0, min(width, cur))
	zero = max(0, min(width, zero))

	start, end := min(zero, cur), max(zero, cur)
	fill := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", end-start))
	track := lipgloss.NewStyle().Foreground(theme.ColorTrack)
	bar := track.Render(strings.Repeat("░", start)) + fill + track.Render(strings.Repeat("░", width-end))

	scale := theme.StyleDimmed.Render(fmt.Sprintf("%d", m.lo)) +
		strings.Repeat(" ", max(1, width-len(fmt.Sprint(m.lo))-len(fmt.Sprint(m.hi)))) +
		theme.StyleDimmed.Render(fmt.Sprintf("%d", m.hi))

	return lipgloss.JoinVertical(lipgloss.Left, header, bar, scale)
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg {
		return FrameMsg{}
	})
}
