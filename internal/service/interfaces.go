// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/artmap/internal/model"
)

// CorpusStore is the training corpus: a mapping keyed by component description.
type CorpusStore interface {
	GetMappings(ctx context.Context) ([]model.Mapping, error)
	GetMapping(ctx context.Context, component string) (*model.Mapping, error)
	UpsertMapping(ctx context.Context, mapping *model.Mapping) error
	DeleteMapping(ctx context.Context, component string) error
	GetArticleNumbers(ctx context.Context) (map[string]struct{}, error)
	CountMappings(ctx context.Context) (int, error)
}

// QueueStore is the ordered set of components awaiting a decision.
type QueueStore interface {
	Enqueue(ctx context.Context, description, contextID string) (int64, error)
	PopFirst(ctx context.Context) (model.UnmappedComponent, error)
	ClaimNext(ctx context.Context, lease time.Duration) (model.UnmappedComponent, error)
	ReleaseClaim(ctx context.Context, id int64) error
	RemoveByDescription(ctx context.Context, description string) (int, error)
	GetUnmapped(ctx context.Context) ([]model.UnmappedComponent, error)
	CountUnmapped(ctx context.Context) (int, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	CorpusStore
	QueueStore

	// Resolve writes mappings and deletes the given queue entries atomically,
	// skipping mappings whose entries were already decided elsewhere.
	Resolve(ctx context.Context, mappings []model.Mapping, resolvedIDs []int64) ([]string, error)
	// CommitDecision upserts one mapping and removes every queue entry for it.
	CommitDecision(ctx context.Context, mapping *model.Mapping) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ReviewStats summarizes an operator review session.
type ReviewStats struct {
	Approved   int
	Overridden int
	Rejected   int
	Skipped    int
	Duration   time.Duration
}

// Total returns the number of decisions taken in the session.
func (s ReviewStats) Total() int {
	return s.Approved + s.Overridden + s.Rejected + s.Skipped
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
