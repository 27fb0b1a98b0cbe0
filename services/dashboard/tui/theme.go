package tui

import "github.com/charmbracelet/lipgloss"

var (
	base     = lipgloss.Color("#0b1220")
	surface  = lipgloss.Color("#313244")
	text     = lipgloss.Color("#cdd6f4")
	subtext  = lipgloss.Color("#a6adc8")
	sapphire = lipgloss.Color("#74c7ec")
	peach    = lipgloss.Color("#fab387")
	red      = lipgloss.Color("#f38ba8")

	appStyle = lipgloss.NewStyle().
		Background(base).
		Foreground(text).
		Padding(1, 2)

	paneStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(surface).
		Foreground(text).
		Padding(0, 1)

	cardStyle = paneStyle.Width(30)

	titleStyle = lipgloss.NewStyle().Foreground(sapphire).Bold(true)
	valueStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(subtext)
	staleStyle = lipgloss.NewStyle().Foreground(peach)
	errorStyle = lipgloss.NewStyle().Foreground(red)
)
