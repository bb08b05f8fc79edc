package main

import "github.com/charmbracelet/lipgloss"

// theme holds the colors and prebuilt styles used for terminal output.
type theme struct {
	Accent  lipgloss.Color
	Muted   lipgloss.Color
	Error   lipgloss.Color
	Success lipgloss.Color

	Title        lipgloss.Style
	Label        lipgloss.Style
	Subtle       lipgloss.Style
	Highlight    lipgloss.Style
	ErrorStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
}

func newTheme() *theme {
	t := &theme{
		Accent:  lipgloss.Color("#4ade80"),
		Muted:   lipgloss.Color("#909090"),
		Error:   lipgloss.Color("#f87171"),
		Success: lipgloss.Color("#4ade80"),
	}
	t.Title = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	t.Label = lipgloss.NewStyle().Foreground(t.Muted).Width(8)
	t.Subtle = lipgloss.NewStyle().Foreground(t.Muted)
	t.Highlight = lipgloss.NewStyle().Foreground(t.Accent)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(t.Error).Bold(true)
	t.SuccessStyle = lipgloss.NewStyle().Foreground(t.Success)
	return t
}

// row renders a "label value" line.
func (t *theme) row(label, value string) string {
	return t.Label.Render(label) + " " + value
}
