package tui

import (
	"errors"
	"fmt"

	"github.com/Veraticus/artmap/internal/common"
	tea "github.com/charmbracelet/bubbletea"
)

// loadNext claims the next queue entry with its proposal.
func (m Model) loadNext() tea.Cmd {
	ctx, reviewer := m.ctx, m.reviewer
	return func() tea.Msg {
		pending, err := reviewer.Next(ctx)
		if errors.Is(err, common.ErrNotFound) {
			return queueEmptyMsg{}
		}
		if err != nil {
			return errorMsg{err: err, fatal: true}
		}
		return pendingLoadedMsg{pending: pending}
	}
}

func (m Model) approve(description, articleNumber string) tea.Cmd {
	ctx, reviewer := m.ctx, m.reviewer
	return func() tea.Msg {
		d, err := reviewer.Commit(ctx, description, articleNumber)
		if err != nil {
			return errorMsg{err: err}
		}
		return decidedMsg{status: fmt.Sprintf("Mapped %q to %s", description, d.Mapping.ArticleNumber)}
	}
}

func (m Model) override(description, articleNumber string) tea.Cmd {
	ctx, reviewer := m.ctx, m.reviewer
	return func() tea.Msg {
		d, err := reviewer.Override(ctx, description, articleNumber)
		if err != nil {
			return errorMsg{err: err}
		}
		return decidedMsg{status: fmt.Sprintf("Mapped %q to %s (%s)", description, d.Mapping.ArticleNumber, d.Mapping.Source)}
	}
}

func (m Model) reject(description string) tea.Cmd {
	ctx, reviewer := m.ctx, m.reviewer
	return func() tea.Msg {
		removed, err := reviewer.Reject(ctx, description)
		if err != nil {
			return errorMsg{err: err}
		}
		return decidedMsg{status: fmt.Sprintf("Rejected %q (%d queue entries cleared)", description, removed)}
	}
}
