// Package retrain rebuilds both classifiers from the corpus and bulk-resolves
// the unmapped queue with the fresh fallback model.
package retrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/artmap/internal/classify"
	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
)

// Store is the part of the storage layer a retraining run needs.
type Store interface {
	GetMappings(ctx context.Context) ([]model.Mapping, error)
	GetUnmapped(ctx context.Context) ([]model.UnmappedComponent, error)
	Resolve(ctx context.Context, mappings []model.Mapping, resolvedIDs []int64) ([]string, error)
}

// Publisher receives a freshly trained model set.
type Publisher interface {
	PublishSet(set *classify.ModelSet)
}

// Synthesizer creates new article numbers absent from existing.
type Synthesizer interface {
	Synthesize(description string, existing map[string]struct{}) (string, error)
}

// Config tunes the models a run trains.
type Config struct {
	// ArtifactPath is where the trained set is saved. Empty disables saving.
	ArtifactPath string
	Trees        int
	Seed         uint64
	Neighbors    int
}

// Report describes one completed run.
type Report struct {
	StartedAt           time.Time
	RunID               string
	ModelSetID          string
	CorpusSize          int
	QueueSize           int
	ResolvedFallback    int
	ResolvedSynthesized int
	AlreadyMapped       int
	Unresolved          int
	// Superseded counts resolutions dropped because an operator decided the
	// component while the run was in progress.
	Superseded          int
	TrainDuration       time.Duration
	Duration            time.Duration
}

// Resolved returns how many queue entries the run removed.
func (r Report) Resolved() int {
	return r.ResolvedFallback + r.ResolvedSynthesized + r.AlreadyMapped
}

// discount moves resolutions the store skipped out of the resolved counts.
func (r *Report) discount(resolutions []model.Mapping, superseded []string) {
	sources := make(map[string]model.MappingSource, len(resolutions))
	for _, m := range resolutions {
		sources[m.Component] = m.Source
	}
	for _, component := range superseded {
		switch sources[component] {
		case model.SourceFallback:
			r.ResolvedFallback--
		case model.SourceSynthesized:
			r.ResolvedSynthesized--
		}
		r.Superseded++
	}
}

// Job retrains the models and resolves the queue. Use a Runner to keep
// runs from overlapping.
type Job struct {
	store     Store
	publisher Publisher
	synth     Synthesizer
	logger    *slog.Logger
	cfg       Config
}

// NewJob creates a retraining job.
func NewJob(store Store, publisher Publisher, synth Synthesizer, cfg Config, logger *slog.Logger) *Job {
	if cfg.Trees <= 0 {
		cfg.Trees = classify.DefaultTrees
	}
	if cfg.Seed == 0 {
		cfg.Seed = classify.DefaultSeed
	}
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = classify.DefaultNeighbors
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		store:     store,
		publisher: publisher,
		synth:     synth,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one retraining cycle. Nothing is written unless every step
// before the final write succeeds, and a cancelled context aborts between steps.
func (j *Job) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := j.logger.With("run_id", report.RunID)

	mappings, err := j.store.GetMappings(ctx)
	if err != nil {
		return report, fmt.Errorf("load corpus: %w", err)
	}
	if len(mappings) == 0 {
		logger.Error("Training aborted", "error", common.ErrEmptyCorpus)
		return report, common.ErrEmptyCorpus
	}
	report.CorpusSize = len(mappings)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	trainStart := time.Now()
	set, err := j.train(ctx, mappings)
	if err != nil {
		return report, fmt.Errorf("train models: %w", err)
	}
	report.TrainDuration = time.Since(trainStart)
	report.ModelSetID = set.ID

	if j.cfg.ArtifactPath != "" {
		if err := classify.SaveModelSet(j.cfg.ArtifactPath, set); err != nil {
			logger.Warn("Failed to save models", "path", j.cfg.ArtifactPath, "error", err)
		}
	}
	j.publisher.PublishSet(set)
	logger.Info("Models trained",
		"corpus_size", report.CorpusSize,
		"model_set", set.ID,
		"duration", report.TrainDuration)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	entries, err := j.store.GetUnmapped(ctx)
	if err != nil {
		return report, fmt.Errorf("load unmapped queue: %w", err)
	}
	report.QueueSize = len(entries)

	resolutions, ids := j.resolve(entries, mappings, set.Fallback, &report, logger)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	if len(ids) > 0 {
		superseded, err := j.store.Resolve(ctx, resolutions, ids)
		if err != nil {
			return report, fmt.Errorf("write resolutions: %w", err)
		}
		report.discount(resolutions, superseded)
	}

	report.Duration = time.Since(report.StartedAt)
	logger.Info("Retraining complete",
		"queue_size", report.QueueSize,
		"fallback", report.ResolvedFallback,
		"synthesized", report.ResolvedSynthesized,
		"already_mapped", report.AlreadyMapped,
		"unresolved", report.Unresolved,
		"superseded", report.Superseded,
		"duration", report.Duration)
	return report, nil
}

// train fits both models concurrently. The set is returned only when both succeed.
func (j *Job) train(ctx context.Context, mappings []model.Mapping) (*classify.ModelSet, error) {
	descriptions := make([]string, len(mappings))
	labels := make([]string, len(mappings))
	for i, m := range mappings {
		descriptions[i] = m.Component
		labels[i] = m.ArticleNumber
	}

	primary := classify.NewPrimary(classify.WithTrees(j.cfg.Trees), classify.WithSeed(j.cfg.Seed))
	fallback := classify.NewFallback(j.cfg.Neighbors)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := primary.Fit(descriptions, labels); err != nil {
			return fmt.Errorf("primary: %w", err)
		}
		return gctx.Err()
	})
	g.Go(func() error {
		if err := fallback.Fit(descriptions, labels); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return classify.NewModelSet(primary, fallback, len(mappings)), nil
}

// resolve decides every queue entry in memory. Descriptions already in the
// corpus keep their label; repeated descriptions reuse the first decision.
func (j *Job) resolve(
	entries []model.UnmappedComponent,
	corpus []model.Mapping,
	fallback *classify.FallbackPipeline,
	report *Report,
	logger *slog.Logger,
) ([]model.Mapping, []int64) {
	known := make(map[string]struct{}, len(corpus))
	existing := make(map[string]struct{}, len(corpus))
	for _, m := range corpus {
		known[m.Component] = struct{}{}
		existing[m.ArticleNumber] = struct{}{}
	}

	decided := make(map[string]bool)
	var resolutions []model.Mapping
	var ids []int64

	for _, entry := range entries {
		if _, ok := known[entry.Description]; ok {
			report.AlreadyMapped++
			ids = append(ids, entry.ID)
			continue
		}
		if decided[entry.Description] {
			ids = append(ids, entry.ID)
			continue
		}

		mapping, err := j.decide(entry.Description, fallback, existing)
		if err != nil {
			report.Unresolved++
			logger.Warn("Could not resolve component", "id", entry.ID, "description", entry.Description, "error", err)
			continue
		}

		switch mapping.Source {
		case model.SourceFallback:
			report.ResolvedFallback++
		case model.SourceSynthesized:
			report.ResolvedSynthesized++
			existing[mapping.ArticleNumber] = struct{}{}
		}
		decided[entry.Description] = true
		resolutions = append(resolutions, mapping)
		ids = append(ids, entry.ID)
	}
	return resolutions, ids
}

func (j *Job) decide(description string, fallback *classify.FallbackPipeline, existing map[string]struct{}) (model.Mapping, error) {
	res, err := fallback.Predict(description)
	if err == nil && res.Label != "" && res.Informed() {
		return model.Mapping{Component: description, ArticleNumber: res.Label, Source: model.SourceFallback}, nil
	}
	if err != nil && !errors.Is(err, classify.ErrNoSignal) {
		j.logger.Debug("Fallback model failed", "description", description, "error", err)
	}

	id, err := j.synth.Synthesize(description, existing)
	if err != nil {
		return model.Mapping{}, err
	}
	return model.Mapping{Component: description, ArticleNumber: id, Source: model.SourceSynthesized}, nil
}
