package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("#FF0000")
	colorYellow = lipgloss.Color("#FFFF00")
	colorCyan   = lipgloss.Color("#00FFFF")
	colorGray   = lipgloss.Color("#666666")
	colorGreen  = lipgloss.Color("#00FF00")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	recordingDotStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	idleDotStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	savedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)
