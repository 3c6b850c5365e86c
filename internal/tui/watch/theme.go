// Package watch implements the ordergate watch TUI: dispatcher state, recent
// order outcomes and the live event stream of a running desk.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme keeps every color used by the monitor in one place.
type Theme struct {
	Sent    lipgloss.Style
	Failed  lipgloss.Style
	Active  lipgloss.Style
	Pending lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	DotOn    lipgloss.Style
	DotOff   lipgloss.Style
	Progress lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		Sent:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Active:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Pending: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		DotOn:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		DotOff:   lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
		Progress: lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
	}
}
