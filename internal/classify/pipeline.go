package classify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/artmap/internal/textvec"
)

// Pipeline pairs a fitted vectorizer with a classifier trained on its output.
type Pipeline[C Classifier] struct {
	Vectorizer *textvec.Vectorizer `json:"vectorizer"`
	Classifier C                   `json:"classifier"`
}

// Fit trains the vectorizer and the classifier on the same descriptions.
func (p *Pipeline[C]) Fit(descriptions, labels []string) error {
	if err := validateTrainingSet(len(descriptions), labels); err != nil {
		return err
	}

	vec := &textvec.Vectorizer{}
	samples, err := vec.FitTransform(descriptions)
	if err != nil {
		return fmt.Errorf("vectorize corpus: %w", err)
	}
	if err := p.Classifier.Fit(samples, labels); err != nil {
		return err
	}
	p.Vectorizer = vec
	return nil
}

// Predict vectorizes description and classifies it.
func (p *Pipeline[C]) Predict(description string) (Result, error) {
	if !p.Vectorizer.Fitted() {
		return Result{}, ErrNotTrained
	}
	vec, err := p.Vectorizer.Transform(description)
	if err != nil {
		return Result{}, err
	}
	return p.Classifier.Predict(vec)
}

// PrimaryPipeline is the random forest model.
type PrimaryPipeline = Pipeline[*Forest]

// FallbackPipeline is the nearest-neighbor model.
type FallbackPipeline = Pipeline[*KNN]

// NewPrimary returns an untrained random forest pipeline.
func NewPrimary(opts ...ForestOption) *PrimaryPipeline {
	return &PrimaryPipeline{Classifier: NewForest(opts...)}
}

// NewFallback returns an untrained k-NN pipeline.
func NewFallback(k int) *FallbackPipeline {
	return &FallbackPipeline{Classifier: NewKNN(k)}
}

// ModelSet is a primary and fallback model trained on the same corpus.
type ModelSet struct {
	TrainedAt  time.Time         `json:"trained_at"`
	Primary    *PrimaryPipeline  `json:"primary"`
	Fallback   *FallbackPipeline `json:"fallback"`
	ID         string            `json:"id"`
	CorpusSize int               `json:"corpus_size"`
}

// NewModelSet stamps a trained pair with an id and training time.
func NewModelSet(primary *PrimaryPipeline, fallback *FallbackPipeline, corpusSize int) *ModelSet {
	return &ModelSet{
		ID:         uuid.NewString(),
		TrainedAt:  time.Now().UTC(),
		Primary:    primary,
		Fallback:   fallback,
		CorpusSize: corpusSize,
	}
}
