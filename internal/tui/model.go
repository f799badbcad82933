// Package tui is the full-screen review interface built on bubbletea.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/service"
	"github.com/Veraticus/artmap/internal/tui/themes"
	"github.com/Veraticus/artmap/internal/workflow"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Reviewer is the approval workflow driven by the TUI.
type Reviewer interface {
	Next(ctx context.Context) (model.PendingMapping, error)
	Commit(ctx context.Context, description, articleNumber string) (workflow.Decision, error)
	Override(ctx context.Context, description, articleNumber string) (workflow.Decision, error)
	Reject(ctx context.Context, description string) (int, error)
	Release(ctx context.Context, id int64) error
	Stats() service.ReviewStats
}

// State represents the current state of the TUI.
type State int

const (
	StateLoading State = iota
	StateReviewing
	StateManual
	StateDone
)

// Model holds the review TUI state.
type Model struct {
	ctx       context.Context
	reviewer  Reviewer
	fatal     error
	lastError error
	theme     themes.Theme
	keymap    KeyMap
	help      help.Model
	input     textinput.Model
	spinner   spinner.Model
	status    string
	pending   model.PendingMapping
	skipped   []int64
	total     int
	decided   int
	width     int
	state     State
	quitting  bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Model)

// WithTheme sets the color theme.
func WithTheme(theme themes.Theme) Option {
	return func(m *Model) {
		m.theme = theme
	}
}

// NewModel creates a review model over reviewer. ctx bounds every workflow call.
func NewModel(ctx context.Context, reviewer Reviewer, opts ...Option) Model {
	input := textinput.New()
	input.Placeholder = "JTL_..."
	input.CharLimit = 64
	input.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		reviewer: reviewer,
		theme:    themes.Default,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		input:    input,
		spinner:  s,
		width:    80,
		state:    StateLoading,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts loading the first entry.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadNext(), m.spinner.Tick)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pendingLoadedMsg:
		m.pending = msg.pending
		if m.total == 0 {
			m.total = msg.pending.Remaining
		}
		m.state = StateReviewing
		return m, nil

	case queueEmptyMsg:
		m.state = StateDone
		m.status = "No more unmapped components."
		return m, tea.Quit

	case decidedMsg:
		m.decided++
		m.status = msg.status
		m.lastError = nil
		m.state = StateLoading
		return m, m.loadNext()

	case errorMsg:
		m.lastError = msg.err
		if msg.fatal {
			m.fatal = msg.err
			m.state = StateDone
			return m, tea.Quit
		}
		m.state = StateReviewing
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.state == StateManual {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		return m.quit()
	}

	switch m.state {
	case StateManual:
		switch {
		case key.Matches(msg, m.keymap.Confirm):
			m.state = StateLoading
			m.input.Blur()
			return m, m.override(m.pending.Entry.Description, m.input.Value())
		case key.Matches(msg, m.keymap.Cancel):
			m.state = StateReviewing
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case StateReviewing:
		description := m.pending.Entry.Description
		switch {
		case key.Matches(msg, m.keymap.Approve):
			m.state = StateLoading
			return m, m.approve(description, m.pending.Prediction.ArticleNumber)
		case key.Matches(msg, m.keymap.Reject):
			m.state = StateLoading
			return m, m.reject(description)
		case key.Matches(msg, m.keymap.Manual):
			m.state = StateManual
			m.input.Reset()
			return m, m.input.Focus()
		case key.Matches(msg, m.keymap.Skip):
			m.skipped = append(m.skipped, m.pending.Entry.ID)
			m.decided++
			m.status = "Skipped " + description
			m.state = StateLoading
			return m, m.loadNext()
		case key.Matches(msg, m.keymap.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keymap.Quit):
			return m.quit()
		}

	case StateDone:
		if key.Matches(msg, m.keymap.Quit) {
			return m.quit()
		}
	}
	return m, nil
}

// quit leaves the current entry undecided.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.state == StateReviewing || m.state == StateManual {
		m.skipped = append(m.skipped, m.pending.Entry.ID)
	}
	m.quitting = true
	return m, tea.Quit
}

// Skipped returns the ids of entries left claimed but undecided.
func (m Model) Skipped() []int64 {
	return m.skipped
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.fatal
}

// State returns the current state.
func (m Model) State() State {
	return m.state
}

// releaseAll hands undecided entries back to the queue. Entries already
// removed by a later decision are ignored.
func releaseAll(reviewer Reviewer, ids []int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, id := range ids {
		if err := reviewer.Release(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
	}
	return nil
}
