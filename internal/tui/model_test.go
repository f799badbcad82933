package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/testutil"
	"github.com/Veraticus/artmap/internal/tui/themes"
	"github.com/Veraticus/artmap/internal/workflow"
)

type fixedPredictor struct {
	err        error
	prediction model.Prediction
}

func (p fixedPredictor) Predict(_ context.Context, description string) (model.Prediction, error) {
	if p.err != nil {
		return model.Prediction{}, p.err
	}
	pred := p.prediction
	pred.Description = description
	return pred, nil
}

var fanPrediction = fixedPredictor{prediction: model.Prediction{
	ArticleNumber: "JTL_FAN_120",
	Stage:         model.StagePrimary,
	Confidence:    0.9,
}}

func newFixture(t *testing.T, predictor workflow.Predictor, queue ...string) (*testutil.TestDB, *workflow.Workflow) {
	t.Helper()
	seeds := make([]testutil.QueueSeed, len(queue))
	for i, d := range queue {
		seeds[i] = testutil.QueueSeed{Description: d, ContextID: "SN-7"}
	}
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{Queue: seeds})
	return db, workflow.New(db.Storage, predictor)
}

// collect runs cmd and flattens batches. Only commands that return
// immediately may be passed here.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// drive applies msg and feeds the model's own follow-up messages back in.
func drive(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for _, out := range collect(cmd) {
		switch out.(type) {
		case pendingLoadedMsg, queueEmptyMsg, decidedMsg, errorMsg:
			m = drive(t, m, out)
		}
	}
	return m
}

// press applies a key without running the resulting command.
func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func start(t *testing.T, m Model) Model {
	t.Helper()
	for _, out := range collect(m.Init()) {
		switch out.(type) {
		case pendingLoadedMsg, queueEmptyMsg, errorMsg:
			m = drive(t, m, out)
		}
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_LoadsFirstEntry(t *testing.T) {
	_, wf := newFixture(t, fanPrediction, "Fan 120mm", "Case Black")

	m := start(t, NewModel(context.Background(), wf))

	assert.Equal(t, StateReviewing, m.State())
	assert.Equal(t, "Fan 120mm", m.pending.Entry.Description)
	assert.Equal(t, 2, m.total)

	view := m.View()
	assert.Contains(t, view, "Fan 120mm")
	assert.Contains(t, view, "JTL_FAN_120")
	assert.Contains(t, view, "SN-7")
}

func TestModel_ApproveUntilEmpty(t *testing.T) {
	db, wf := newFixture(t, fanPrediction, "Fan 120mm", "Fan 120mm")

	m := start(t, NewModel(context.Background(), wf))
	m = drive(t, m, runes("a"))

	assert.Equal(t, StateDone, m.State())
	assert.Equal(t, "JTL_FAN_120", db.MustCorpus()["Fan 120mm"])
	assert.Equal(t, 0, db.MustQueueLen())
	assert.Contains(t, m.View(), "Approved: 1")
}

func TestModel_EnterApproves(t *testing.T) {
	db, wf := newFixture(t, fanPrediction, "Fan 120mm")

	m := start(t, NewModel(context.Background(), wf))
	m = drive(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, StateDone, m.State())
	assert.Equal(t, "JTL_FAN_120", db.MustCorpus()["Fan 120mm"])
}

func TestModel_Reject(t *testing.T) {
	db, wf := newFixture(t, fanPrediction, "Sticker", "Fan 120mm")

	m := start(t, NewModel(context.Background(), wf))
	m = drive(t, m, runes("r"))

	assert.Equal(t, StateReviewing, m.State())
	assert.Equal(t, "Fan 120mm", m.pending.Entry.Description)
	assert.Empty(t, db.MustCorpus())
	assert.Equal(t, 1, db.MustQueueLen())
}

func TestModel_ManualEntry(t *testing.T) {
	db, wf := newFixture(t, fanPrediction, "Mainboard X")

	m := start(t, NewModel(context.Background(), wf))
	m = press(t, m, runes("m"))
	require.Equal(t, StateManual, m.State())

	for _, r := range "JTL_MB_9" {
		m = press(t, m, runes(string(r)))
	}
	m = drive(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, StateDone, m.State())
	got, err := db.Storage.GetMapping(context.Background(), "Mainboard X")
	require.NoError(t, err)
	assert.Equal(t, "JTL_MB_9", got.ArticleNumber)
	assert.Equal(t, model.SourceManual, got.Source)
}

func TestModel_ManualCancel(t *testing.T) {
	db, wf := newFixture(t, fanPrediction, "Mainboard X")

	m := start(t, NewModel(context.Background(), wf))
	m = press(t, m, runes("m"))
	m = press(t, m, runes("x"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, StateReviewing, m.State())
	assert.Empty(t, db.MustCorpus())
}

func TestModel_SkipAndQuitRelease(t *testing.T) {
	db, wf := newFixture(t, fanPrediction, "Case Black", "PSU 650W")

	m := start(t, NewModel(context.Background(), wf))
	m = drive(t, m, runes("s"))
	require.Equal(t, "PSU 650W", m.pending.Entry.Description)

	next, cmd := m.Update(runes("q"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Len(t, m.Skipped(), 2)
	assert.Empty(t, m.View())

	require.NoError(t, releaseAll(wf, m.Skipped()))

	entries, err := db.Storage.GetUnmapped(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Nil(t, e.ClaimedAt)
	}
	assert.Equal(t, 2, wf.Stats().Skipped)
}

func TestModel_ForceQuitWhileTyping(t *testing.T) {
	_, wf := newFixture(t, fanPrediction, "Case Black")

	m := start(t, NewModel(context.Background(), wf))
	m = press(t, m, runes("m"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.True(t, m.quitting)
	assert.Len(t, m.Skipped(), 1)
}

func TestModel_PredictionFailureEndsSession(t *testing.T) {
	boom := errors.New("no models")
	db, wf := newFixture(t, fixedPredictor{err: boom}, "Case Black")

	m := start(t, NewModel(context.Background(), wf))

	assert.Equal(t, StateDone, m.State())
	require.ErrorIs(t, m.Err(), boom)
	assert.Equal(t, 1, db.MustQueueLen())
	assert.Contains(t, m.View(), "no models")
}

func TestModel_EmptyQueue(t *testing.T) {
	_, wf := newFixture(t, fanPrediction)

	m := start(t, NewModel(context.Background(), wf, WithTheme(themes.Plain)))

	assert.Equal(t, StateDone, m.State())
	assert.NoError(t, m.Err())
	assert.Contains(t, m.View(), "No more unmapped components.")
}

func TestModel_HelpToggle(t *testing.T) {
	_, wf := newFixture(t, fanPrediction, "Case Black")

	m := start(t, NewModel(context.Background(), wf))
	assert.False(t, m.help.ShowAll)
	m = press(t, m, runes("?"))
	assert.True(t, m.help.ShowAll)
}

func TestKeyMap_Help(t *testing.T) {
	k := DefaultKeyMap()
	assert.Len(t, k.ShortHelp(), 6)
	assert.Len(t, k.FullHelp(), 3)
}

func TestThemesByName(t *testing.T) {
	assert.Equal(t, themes.Plain.Primary, themes.ByName("plain").Primary)
	assert.Equal(t, themes.Default.Primary, themes.ByName("anything").Primary)
}
