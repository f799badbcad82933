package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/artmap/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.theme.Title.Render("Article Number Review"),
		m.renderProgress(),
	}

	switch m.state {
	case StateLoading:
		sections = append(sections, m.spinner.View()+" Loading next component...")
	case StateReviewing:
		sections = append(sections, m.renderPending())
	case StateManual:
		sections = append(sections,
			m.renderPending(),
			m.theme.Bold.Render("Article number")+" (blank uses the proposal)",
			m.input.View(),
		)
	case StateDone:
		sections = append(sections, m.renderSummary())
	}

	if m.status != "" {
		sections = append(sections, m.theme.StatusSuccess.Render(m.status))
	}
	if m.lastError != nil {
		sections = append(sections, m.theme.StatusError.Render("Error: "+m.lastError.Error()))
	}
	if m.state != StateDone {
		sections = append(sections, m.help.View(m.keymap))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderProgress() string {
	if m.total == 0 {
		return m.theme.StatusPending.Render("Queue empty")
	}
	return m.theme.Subtitle.Render(fmt.Sprintf("%d of %d reviewed", min(m.decided, m.total), m.total))
}

func (m Model) renderPending() string {
	p := m.pending
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", m.theme.Bold.Render("Component:"), p.Entry.Description)
	if p.Entry.ContextID != "" {
		fmt.Fprintf(&b, "%s %s\n", m.theme.Bold.Render("Serial:"), p.Entry.ContextID)
	}
	fmt.Fprintf(&b, "%s %s\n", m.theme.Bold.Render("Proposal:"), m.theme.Code.Render(p.Prediction.ArticleNumber))
	fmt.Fprintf(&b, "%s %s", m.theme.Bold.Render("Stage:"), m.renderStage(p.Prediction))

	width := max(m.width-4, 20)
	return m.theme.RoundedBox.Width(width).Render(b.String())
}

func (m Model) renderStage(p model.Prediction) string {
	if p.Stage == model.StageSynthesized {
		return m.theme.StatusWarning.Render("new identifier")
	}
	return m.theme.StatusInfo.Render(fmt.Sprintf("%s (%.0f%%)", strings.ToLower(string(p.Stage)), p.Confidence*100))
}

func (m Model) renderSummary() string {
	stats := m.reviewer.Stats()
	lines := []string{
		fmt.Sprintf("Approved: %d", stats.Approved),
		fmt.Sprintf("Entered manually: %d", stats.Overridden),
		fmt.Sprintf("Rejected: %d", stats.Rejected),
		fmt.Sprintf("Skipped: %d", len(m.skipped)),
	}
	return m.theme.RoundedBox.Render(strings.Join(lines, "\n"))
}
