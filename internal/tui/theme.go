package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the review screen styles.
type Theme struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Info     lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Box      lipgloss.Style
	Dialog   lipgloss.Style
}

// DefaultTheme is the default palette.
var DefaultTheme = Theme{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fafafa")).MarginBottom(1),
	Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("#a3a3a3")).Width(18),
	Value:    lipgloss.NewStyle().Foreground(lipgloss.Color("#fafafa")),
	Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#737373")),
	Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a78bfa")),
	Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("#3b82f6")),
	Warning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f59e0b")),
	Error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444")),
	Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")).
		Padding(0, 1),
	Dialog: lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("#ef4444")).
		Padding(0, 2),
}
