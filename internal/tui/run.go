package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/artmap/internal/service"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the review TUI until the queue is exhausted or the operator
// quits. Entries left undecided are handed back to the queue.
func Run(ctx context.Context, reviewer Reviewer, opts ...Option) (service.ReviewStats, error) {
	if reviewer == nil {
		return service.ReviewStats{}, errors.New("reviewer is required")
	}

	m := NewModel(ctx, reviewer, opts...)
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())

	final, runErr := program.Run()
	if fm, ok := final.(Model); ok {
		m = fm
	}

	if err := releaseAll(reviewer, m.Skipped()); err != nil {
		return reviewer.Stats(), fmt.Errorf("failed to release skipped entries: %w", err)
	}
	if runErr != nil {
		return reviewer.Stats(), fmt.Errorf("review interface failed: %w", runErr)
	}
	return reviewer.Stats(), m.Err()
}
