// Package theme provides the Lip Gloss color palette and reusable styles
// for the relay TUI. It is a leaf package with no internal imports.
package theme

import "github.com/charmbracelet/lipgloss"

// Gauge colors.
var (
	ColorPositive = lipgloss.Color("#22c55e")
	ColorNegative = lipgloss.Color("#dc2626")
	ColorZero     = lipgloss.Color("#9ca3af")
	ColorTrack    = lipgloss.Color("#374151")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// Reusable styles.
var (
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorBright).
			Bold(true)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleValue = lipgloss.NewStyle().
			Foreground(ColorBright).
			Bold(true).
			Padding(0, 1)
)

// ValueColor picks the gauge color for a value's sign.
func ValueColor(v int64) lipgloss.Color {
	switch {
	case v > 0:
		return ColorPositive
	case v < 0:
		return ColorNegative
	default:
		return ColorZero
	}
}
