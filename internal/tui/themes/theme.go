// Package themes holds the color palettes of the review TUI.
package themes

import "github.com/charmbracelet/lipgloss"

// Theme is the set of styles the review screen renders with.
type Theme struct {
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Bold          lipgloss.Style
	Code          lipgloss.Style
	RoundedBox    lipgloss.Style
	StatusPending lipgloss.Style
	StatusInfo    lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSuccess lipgloss.Style
	Primary       lipgloss.Color
}

type palette struct {
	primary, text, subtle, surface, border lipgloss.Color
	success, warning, danger               lipgloss.Color
}

func (p palette) theme() Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return Theme{
		Primary:       p.primary,
		Title:         fg(p.text).Bold(true).MarginBottom(1),
		Subtitle:      fg(p.subtle),
		Bold:          fg(p.text).Bold(true),
		Code:          fg(p.text).Background(p.surface).Padding(0, 1),
		RoundedBox:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.border).Padding(1, 2),
		StatusSuccess: fg(p.success).Bold(true),
		StatusWarning: fg(p.warning).Bold(true),
		StatusError:   fg(p.danger).Bold(true),
		StatusInfo:    fg(p.primary).Bold(true),
		StatusPending: fg(p.subtle).Italic(true),
	}
}

// Default is the dark-terminal palette.
var Default = palette{
	primary: "#3FA7D6",
	text:    "#ECEFF4",
	subtle:  "#8A8F9E",
	surface: "#2B2E3A",
	border:  "#3A3D4A",
	success: "#59CD90",
	warning: "#FAC05E",
	danger:  "#EE6352",
}.theme()

// Plain renders without colors, for terminals that cannot show them.
var Plain = Theme{
	Title:         lipgloss.NewStyle().Bold(true).MarginBottom(1),
	Bold:          lipgloss.NewStyle().Bold(true),
	RoundedBox:    lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
	Subtitle:      lipgloss.NewStyle(),
	Code:          lipgloss.NewStyle(),
	StatusSuccess: lipgloss.NewStyle(),
	StatusWarning: lipgloss.NewStyle(),
	StatusError:   lipgloss.NewStyle(),
	StatusInfo:    lipgloss.NewStyle(),
	StatusPending: lipgloss.NewStyle(),
}

// ByName returns the theme registered under name, falling back to Default.
func ByName(name string) Theme {
	if name == "plain" {
		return Plain
	}
	return Default
}
