package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#1E3A8A", Dark: "#93C5FD"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	colorGood    = lipgloss.AdaptiveColor{Light: "#166534", Dark: "#4ADE80"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#92400E", Dark: "#FBBF24"}
	colorBad     = lipgloss.AdaptiveColor{Light: "#991B1B", Dark: "#F87171"}

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	helpStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	footerStyle   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(colorBad)
	alertStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorWarn).
			Padding(0, 1)

	badgeStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)

	noticeInfoStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorPrimary).
			PaddingLeft(1)
	noticeErrorStyle = noticeInfoStyle.BorderForeground(colorBad)
)
