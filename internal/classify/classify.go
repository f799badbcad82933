// Package classify implements the text classifiers used to propose article
// numbers: a random forest as the primary model and k-nearest-neighbor as
// the fallback.
package classify

import (
	"errors"
	"sort"

	"github.com/Veraticus/artmap/internal/textvec"
)

var (
	// ErrEmptyTrainingSet is returned when fitting on no samples.
	ErrEmptyTrainingSet = errors.New("training set is empty")
	// ErrLengthMismatch is returned when samples and labels differ in length.
	ErrLengthMismatch = errors.New("samples and labels differ in length")
	// ErrNotTrained is returned when predicting with an unfitted classifier.
	ErrNotTrained = errors.New("classifier is not trained")
	// ErrNoSignal reports input that shares no feature with the training
	// data. Callers treat it as a routine miss.
	ErrNoSignal = errors.New("description has no known features")
)

// Result is a predicted label with the share of votes behind it.
type Result struct {
	Label      string
	Confidence float64
}

// Informed reports whether any feature of the input backed the label. An
// uninformed result is a guess and escalates like a missing label.
func (r Result) Informed() bool {
	return r.Confidence > 0
}

// Classifier is trained on feature vectors and predicts one of the training labels.
type Classifier interface {
	Fit(samples []textvec.Vector, labels []string) error
	Predict(sample textvec.Vector) (Result, error)
}

func validateTrainingSet(n int, labels []string) error {
	if n == 0 {
		return ErrEmptyTrainingSet
	}
	if n != len(labels) {
		return ErrLengthMismatch
	}
	return nil
}

// encodeLabels returns the sorted distinct labels and each sample's index into them.
func encodeLabels(labels []string) ([]string, []int) {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, l := range classes {
		index[l] = i
	}
	encoded := make([]int, len(labels))
	for i, l := range labels {
		encoded[i] = index[l]
	}
	return classes, encoded
}

// argmax returns the index of the largest count. Ties go to the lowest index.
func argmax(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}
