package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	ColorPrimary = lipgloss.Color("#7C3AED")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorSuccess = lipgloss.Color("#10B981")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorError   = lipgloss.Color("#EF4444")
	ColorLink    = lipgloss.Color("#3B82F6")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	questionStyle = lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1)

	waitingStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	offerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarning).
			Padding(0, 1).
			MarginTop(1)

	offerErrorStyle = offerStyle.
			BorderForeground(ColorError)

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSuccess).
			Padding(0, 1)

	notFoundStyle = answerStyle.
			BorderForeground(ColorError)

	linkTitleStyle = lipgloss.NewStyle().Bold(true)

	linkURLStyle = lipgloss.NewStyle().
			Foreground(ColorLink).
			Underline(true)

	errorStyle = lipgloss.NewStyle().Foreground(ColorError)

	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginTop(1)
)
