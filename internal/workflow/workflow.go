// Package workflow is the operator-driven approval loop: fetch the next
// unmapped component with a proposal, then approve, override, reject or skip it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/service"
)

// DefaultLease is how long a fetched entry stays reserved for one operator.
const DefaultLease = 10 * time.Minute

// ErrBlankDescription is returned when a decision names no component.
var ErrBlankDescription = errors.New("component description is required")

// Store is the part of the storage layer the workflow drives.
type Store interface {
	ClaimNext(ctx context.Context, lease time.Duration) (model.UnmappedComponent, error)
	ReleaseClaim(ctx context.Context, id int64) error
	RemoveByDescription(ctx context.Context, description string) (int, error)
	CommitDecision(ctx context.Context, mapping *model.Mapping) (int, error)
	CountUnmapped(ctx context.Context) (int, error)
}

// Predictor proposes an article number for a description.
type Predictor interface {
	Predict(ctx context.Context, description string) (model.Prediction, error)
}

// Decision is the outcome of approve or override.
type Decision struct {
	Mapping model.Mapping
	Removed int
}

// Workflow orchestrates operator decisions.
type Workflow struct {
	started   time.Time
	store     Store
	predictor Predictor
	logger    *slog.Logger
	stats     service.ReviewStats
	lease     time.Duration
	mu        sync.Mutex
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLease sets how long a fetched entry stays reserved.
func WithLease(lease time.Duration) Option {
	return func(w *Workflow) {
		if lease > 0 {
			w.lease = lease
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// New creates a workflow over store and predictor.
func New(store Store, predictor Predictor, opts ...Option) *Workflow {
	w := &Workflow{
		store:     store,
		predictor: predictor,
		lease:     DefaultLease,
		logger:    slog.Default(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Next claims the oldest open queue entry and attaches a proposal.
// An empty queue yields common.ErrNotFound.
func (w *Workflow) Next(ctx context.Context) (model.PendingMapping, error) {
	entry, err := w.store.ClaimNext(ctx, w.lease)
	if err != nil {
		return model.PendingMapping{}, err
	}

	prediction, err := w.predictor.Predict(ctx, entry.Description)
	if err != nil {
		w.releaseAfterFailure(ctx, entry.ID)
		return model.PendingMapping{}, fmt.Errorf("predict %q: %w", entry.Description, err)
	}

	remaining, err := w.store.CountUnmapped(ctx)
	if err != nil {
		w.releaseAfterFailure(ctx, entry.ID)
		return model.PendingMapping{}, fmt.Errorf("count queue: %w", err)
	}

	return model.PendingMapping{
		Entry:      entry,
		Prediction: prediction,
		Remaining:  remaining,
	}, nil
}

// releaseAfterFailure hands a claimed entry back when Next cannot present it.
func (w *Workflow) releaseAfterFailure(ctx context.Context, id int64) {
	if err := w.store.ReleaseClaim(context.WithoutCancel(ctx), id); err != nil {
		w.logger.Warn("Failed to release claim", "id", id, "error", err)
	}
}

// Predict proposes an article number without touching the queue.
func (w *Workflow) Predict(ctx context.Context, description string) (model.Prediction, error) {
	if strings.TrimSpace(description) == "" {
		return model.Prediction{}, ErrBlankDescription
	}
	return w.predictor.Predict(ctx, description)
}

// Commit approves articleNumber for description: the corpus is updated and
// every queue entry for description is removed.
func (w *Workflow) Commit(ctx context.Context, description, articleNumber string) (Decision, error) {
	d, err := w.decide(ctx, description, articleNumber, model.SourceApproved)
	if err != nil {
		return d, err
	}
	w.record(func(s *service.ReviewStats) { s.Approved++ })
	w.logger.Info("Approved mapping", "component", description, "article_number", articleNumber, "removed", d.Removed)
	return d, nil
}

// Override commits an operator-supplied article number. A blank value is
// replaced by a fresh proposal.
func (w *Workflow) Override(ctx context.Context, description, articleNumber string) (Decision, error) {
	source := model.SourceManual
	articleNumber = strings.TrimSpace(articleNumber)
	if articleNumber == "" {
		prediction, err := w.Predict(ctx, description)
		if err != nil {
			return Decision{}, err
		}
		articleNumber = prediction.ArticleNumber
		source = prediction.Source()
	}

	d, err := w.decide(ctx, description, articleNumber, source)
	if err != nil {
		return d, err
	}
	w.record(func(s *service.ReviewStats) { s.Overridden++ })
	w.logger.Info("Created mapping", "component", description, "article_number", articleNumber, "source", source)
	return d, nil
}

// Reject removes every queue entry for description without writing the corpus.
func (w *Workflow) Reject(ctx context.Context, description string) (int, error) {
	if strings.TrimSpace(description) == "" {
		return 0, ErrBlankDescription
	}
	removed, err := w.store.RemoveByDescription(ctx, description)
	if err != nil {
		return 0, err
	}
	w.record(func(s *service.ReviewStats) { s.Rejected++ })
	w.logger.Info("Rejected component", "component", description, "removed", removed)
	return removed, nil
}

// Release hands a claimed entry back to the queue undecided.
func (w *Workflow) Release(ctx context.Context, id int64) error {
	if err := w.store.ReleaseClaim(ctx, id); err != nil {
		return err
	}
	w.record(func(s *service.ReviewStats) { s.Skipped++ })
	return nil
}

// Stats returns the decisions taken since the workflow was created.
func (w *Workflow) Stats() service.ReviewStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := w.stats
	stats.Duration = time.Since(w.started)
	return stats
}

func (w *Workflow) decide(ctx context.Context, description, articleNumber string, source model.MappingSource) (Decision, error) {
	if strings.TrimSpace(description) == "" {
		return Decision{}, ErrBlankDescription
	}
	mapping := model.Mapping{
		Component:     description,
		ArticleNumber: strings.TrimSpace(articleNumber),
		Source:        source,
	}
	removed, err := w.store.CommitDecision(ctx, &mapping)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Mapping: mapping, Removed: removed}, nil
}

func (w *Workflow) record(fn func(*service.ReviewStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}
