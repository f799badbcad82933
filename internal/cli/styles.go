// Package cli provides the plain terminal review and styled output helpers
// shared by the artmap commands.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.Color("#3FA7D6")
	green   = lipgloss.Color("#59CD90")
	amber   = lipgloss.Color("#FAC05E")
	red     = lipgloss.Color("#EE6352")
	teal    = lipgloss.Color("#79C7C5")
	gray    = lipgloss.Color("#6C6F7D")
	divider = lipgloss.Color("#3A3D4A")

	// SuccessStyle renders article numbers and completed actions.
	SuccessStyle = lipgloss.NewStyle().Foreground(green)
	// WarningStyle renders synthesized identifiers and rejections.
	WarningStyle = lipgloss.NewStyle().Foreground(amber)
	// InfoStyle renders model stages and hints.
	InfoStyle = lipgloss.NewStyle().Foreground(teal)
	// SubtleStyle renders secondary text such as timestamps.
	SubtleStyle = lipgloss.NewStyle().Foreground(gray)
	// BoldStyle renders field labels.
	BoldStyle = lipgloss.NewStyle().Bold(true)

	errorStyle  = lipgloss.NewStyle().Foreground(red)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(divider).
			Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(divider)
)

// ChartIcon prefixes summary statistics.
const ChartIcon = "📊"

const (
	successIcon = "✓"
	errorIcon   = "✗"
	warningIcon = "!"
	infoIcon    = "›"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(successIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return errorStyle.Render(errorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(warningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(infoIcon + " " + message)
}

// FormatPrompt formats an input prompt.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt)
}

// RenderBox renders content under a title inside a rounded border.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}

// RenderTable renders rows under a bold header with padded columns.
func RenderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range header {
			if i < len(row) {
				widths[i] = max(widths[i], lipgloss.Width(row[i]))
			}
		}
	}

	cell := lipgloss.NewStyle().PaddingRight(2)
	renderRow := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(header))
		for i := range header {
			var value string
			if i < len(cells) {
				value = cells[i]
			}
			parts[i] = cell.Width(widths[i] + 2).Render(value)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, renderRow(header, headerStyle))
	for _, row := range rows {
		lines = append(lines, renderRow(row, lipgloss.NewStyle()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
