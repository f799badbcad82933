package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/Veraticus/artmap/internal/classify"
	"github.com/Veraticus/artmap/internal/config"
	"github.com/Veraticus/artmap/internal/predict"
	"github.com/Veraticus/artmap/internal/retrain"
	"github.com/Veraticus/artmap/internal/storage"
	"github.com/Veraticus/artmap/internal/synth"
	"github.com/Veraticus/artmap/internal/workflow"
)

const (
	defaultDatabasePath = "$HOME/.local/share/artmap/artmap.db"
	defaultModelsDir    = "$HOME/.local/share/artmap/models"
)

// initStorage opens the database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}

	store, err := storage.NewSQLiteStorage(config.ExpandPath(dbPath))
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}

// modelArtifactPath is where the retraining job saves the model set.
func modelArtifactPath() string {
	dir := viper.GetString("models.dir")
	if dir == "" {
		dir = defaultModelsDir
	}
	return filepath.Join(config.ExpandPath(dir), classify.ModelFile)
}

// services wires the prediction service, the retraining runner and the
// approval workflow around one store.
type services struct {
	store     *storage.SQLiteStorage
	predictor *predict.Service
	runner    *retrain.Runner
}

func initServices(ctx context.Context) (*services, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	synthesizer := synth.New()
	predictor := predict.NewService(store, synthesizer,
		predict.WithMinConfidence(viper.GetFloat64("predict.min_confidence")))

	artifact := modelArtifactPath()
	if err := predictor.LoadFromDisk(artifact); err != nil {
		closeStorage(store)
		return nil, fmt.Errorf("failed to load models: %w", err)
	}

	job := retrain.NewJob(store, predictor, synthesizer, retrain.Config{
		ArtifactPath: artifact,
		Trees:        viper.GetInt("retrain.trees"),
		Neighbors:    viper.GetInt("retrain.neighbors"),
		Seed:         viper.GetUint64("retrain.seed"),
	}, slog.Default())

	return &services{
		store:     store,
		predictor: predictor,
		runner:    retrain.NewRunner(job),
	}, nil
}

func (s *services) Close() {
	closeStorage(s.store)
}

func (s *services) workflow() *workflow.Workflow {
	return workflow.New(s.store, s.predictor,
		workflow.WithLease(viper.GetDuration("review.lease")))
}

// ensureModels trains once when no saved model set exists and the corpus
// has something to learn from. Until then predictions are synthesized.
func (s *services) ensureModels(ctx context.Context) error {
	if s.predictor.Models() != nil {
		return nil
	}

	count, err := s.store.CountMappings(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		slog.Warn("Corpus is empty, proposals will be new identifiers until mappings exist")
		return nil
	}

	slog.Info("No saved models found, training now", "corpus", count)
	_, err = s.runner.Run(ctx)
	return err
}
