package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	header   lipgloss.Style
	panel    lipgloss.Style
	title    lipgloss.Style
	cursor   lipgloss.Style
	selected lipgloss.Style
	muted    lipgloss.Style
	stderr   lipgloss.Style
	errLine  lipgloss.Style
	key      lipgloss.Style
	dimKey   lipgloss.Style
	modal    lipgloss.Style
	warning  lipgloss.Style
}

func newStyles() styles {
	accent := lipgloss.AdaptiveColor{Light: "#0b6bcb", Dark: "#5fafff"}
	muted := lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#8a8f98"}
	red := lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#ff6b6b"}
	yellow := lipgloss.AdaptiveColor{Light: "#a16207", Dark: "#f5c451"}

	return styles{
		header: lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		title:    lipgloss.NewStyle().Bold(true),
		cursor:   lipgloss.NewStyle().Foreground(accent).Bold(true),
		selected: lipgloss.NewStyle().Foreground(accent),
		muted:    lipgloss.NewStyle().Foreground(muted),
		stderr:   lipgloss.NewStyle().Foreground(muted),
		errLine:  lipgloss.NewStyle().Foreground(red),
		key:      lipgloss.NewStyle().Bold(true),
		dimKey:   lipgloss.NewStyle().Faint(true).Foreground(muted),
		modal: lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(yellow).
			Padding(1, 2),
		warning: lipgloss.NewStyle().Foreground(yellow).Bold(true),
	}
}
