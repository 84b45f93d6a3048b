package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type styles struct {
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Editor   lipgloss.Style
	Focused  lipgloss.Style
	Error    lipgloss.Style
	Notice   lipgloss.Style
	Table    table.Styles
	Disabled lipgloss.Style
}

// applyColorProfile honours NO_COLOR and CLICOLOR_FORCE.
func applyColorProfile() {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

func defaultStyles() styles {
	border := lipgloss.RoundedBorder()
	t := table.DefaultStyles()
	t.Header = t.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	t.Selected = t.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))

	return styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Subtle:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Editor:   lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("240")),
		Focused:  lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("205")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Table:    t,
		Disabled: lipgloss.NewStyle().Faint(true),
	}
}
