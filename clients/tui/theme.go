// Package tui provides a terminal user interface for watching a running
// interpreter: the live state value, the event history, and an input
// line for sending events by hand.
package tui

import "github.com/charmbracelet/lipgloss"

// Adaptive colors (light/dark terminal detection).
var (
	ColorState  = lipgloss.AdaptiveColor{Light: "#6B21A8", Dark: "#D8A6FF"}
	ColorEvent  = lipgloss.AdaptiveColor{Light: "#0070F3", Dark: "#79C0FF"}
	ColorDone   = lipgloss.AdaptiveColor{Light: "#065F46", Dark: "#7EE2B8"}
	ColorError  = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#FF6B6B"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	ColorBorder = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}
)

// Component styles.
var (
	StateStyle = lipgloss.NewStyle().
			Foreground(ColorState).
			Bold(true)

	EventStyle = lipgloss.NewStyle().
			Foreground(ColorEvent)

	DoneStyle = lipgloss.NewStyle().
			Foreground(ColorDone).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
)
