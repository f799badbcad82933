// Package predict runs the escalation chain that turns a component
// description into an article number: primary model, then fallback model,
// then the identifier synthesizer.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/Veraticus/artmap/internal/classify"
	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
)

var (
	// ErrInvalidDescription is returned for a blank description.
	ErrInvalidDescription = errors.New("description is empty")
	// ErrLowConfidence marks a primary prediction below the configured threshold.
	ErrLowConfidence = errors.New("prediction below confidence threshold")
	// ErrEmptyLabel marks a stage that answered without a label.
	ErrEmptyLabel = errors.New("model returned an empty label")
)

// Predictor is one trained stage of the chain.
type Predictor interface {
	Predict(description string) (classify.Result, error)
}

// Synthesizer creates new article numbers absent from existing.
type Synthesizer interface {
	Synthesize(description string, existing map[string]struct{}) (string, error)
}

// LabelSource supplies every article number currently in the corpus.
type LabelSource interface {
	GetArticleNumbers(ctx context.Context) (map[string]struct{}, error)
}

// Models is the pair of stages published together. Either may be nil.
type Models struct {
	Primary  Predictor
	Fallback Predictor
	ID       string
}

// FromModelSet adapts a trained artifact to the stages it carries.
func FromModelSet(set *classify.ModelSet) *Models {
	if set == nil {
		return nil
	}
	m := &Models{ID: set.ID}
	if set.Primary != nil {
		m.Primary = set.Primary
	}
	if set.Fallback != nil {
		m.Fallback = set.Fallback
	}
	return m
}

// Service predicts article numbers. Models are swapped atomically, so a
// prediction in flight keeps using the pair it started with.
type Service struct {
	labels        LabelSource
	synth         Synthesizer
	logger        *slog.Logger
	models        atomic.Pointer[Models]
	minConfidence float64
}

// Option configures a Service.
type Option func(*Service)

// WithMinConfidence rejects primary predictions whose vote share is below
// threshold. Zero disables the check.
func WithMinConfidence(threshold float64) Option {
	return func(s *Service) {
		s.minConfidence = threshold
	}
}

// WithLogger sets the logger used for escalation traces.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service with no models loaded.
func NewService(labels LabelSource, synth Synthesizer, opts ...Option) *Service {
	s := &Service{
		labels: labels,
		synth:  synth,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish replaces the current models.
func (s *Service) Publish(m *Models) {
	s.models.Store(m)
	if m != nil {
		s.logger.Info("Published models", "model_set", m.ID)
	}
}

// PublishSet publishes a trained artifact.
func (s *Service) PublishSet(set *classify.ModelSet) {
	s.Publish(FromModelSet(set))
}

// Models returns the current models, or nil before the first training.
func (s *Service) Models() *Models {
	return s.models.Load()
}

// LoadFromDisk publishes the artifact saved at path. A missing artifact is
// not an error; the service then predicts with the synthesizer alone.
func (s *Service) LoadFromDisk(path string) error {
	set, err := classify.LoadModelSet(path)
	if errors.Is(err, classify.ErrNoArtifact) {
		s.logger.Info("No saved models, predictions will be synthesized until retraining", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	s.PublishSet(set)
	return nil
}

// Predict runs the escalation chain for description.
func (s *Service) Predict(ctx context.Context, description string) (model.Prediction, error) {
	if strings.TrimSpace(description) == "" {
		return model.Prediction{}, ErrInvalidDescription
	}

	models := s.models.Load()

	res, err := s.primary(models, description)
	if err == nil {
		return model.Prediction{
			Description:   description,
			ArticleNumber: res.Label,
			Stage:         model.StagePrimary,
			Confidence:    res.Confidence,
		}, nil
	}
	s.logger.Debug("Primary model declined", "description", description, "reason", err)

	res, err = runStage(models, func(m *Models) Predictor { return m.Fallback }, description)
	if err == nil {
		return model.Prediction{
			Description:   description,
			ArticleNumber: res.Label,
			Stage:         model.StageFallback,
			Confidence:    res.Confidence,
		}, nil
	}
	s.logger.Debug("Fallback model declined", "description", description, "reason", err)

	existing, err := s.labels.GetArticleNumbers(ctx)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("load existing article numbers: %w", err)
	}
	id, err := s.synth.Synthesize(description, existing)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("synthesize article number: %w", err)
	}

	return model.Prediction{
		Description:   description,
		ArticleNumber: id,
		Stage:         model.StageSynthesized,
	}, nil
}

func (s *Service) primary(models *Models, description string) (classify.Result, error) {
	res, err := runStage(models, func(m *Models) Predictor { return m.Primary }, description)
	if err != nil {
		return res, err
	}
	if s.minConfidence > 0 && res.Confidence < s.minConfidence {
		return res, fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, res.Confidence, s.minConfidence)
	}
	return res, nil
}

func runStage(models *Models, pick func(*Models) Predictor, description string) (classify.Result, error) {
	if models == nil {
		return classify.Result{}, common.ErrPredictionUnavailable
	}
	stage := pick(models)
	if stage == nil {
		return classify.Result{}, common.ErrPredictionUnavailable
	}
	res, err := stage.Predict(description)
	if err != nil {
		return classify.Result{}, err
	}
	if strings.TrimSpace(res.Label) == "" {
		return classify.Result{}, ErrEmptyLabel
	}
	if !res.Informed() {
		return classify.Result{}, fmt.Errorf("%w: guessed %s", classify.ErrNoSignal, res.Label)
	}
	return res, nil
}
