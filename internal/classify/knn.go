package classify

import (
	"sort"

	"github.com/Veraticus/artmap/internal/textvec"
)

// DefaultNeighbors is the neighbor count of the fallback model.
const DefaultNeighbors = 3

// KNN is a k-nearest-neighbor classifier over cosine distance.
type KNN struct {
	Samples []textvec.Vector `json:"samples"`
	Labels  []string         `json:"labels"`
	K       int              `json:"k"`
}

// NewKNN creates an untrained classifier. Non-positive k selects DefaultNeighbors.
func NewKNN(k int) *KNN {
	if k <= 0 {
		k = DefaultNeighbors
	}
	return &KNN{K: k}
}

// Fit stores the training data.
func (m *KNN) Fit(samples []textvec.Vector, labels []string) error {
	if err := validateTrainingSet(len(samples), labels); err != nil {
		return err
	}
	m.Samples = append([]textvec.Vector(nil), samples...)
	m.Labels = append([]string(nil), labels...)
	return nil
}

type neighbor struct {
	label    string
	distance float64
	index    int
}

// Predict returns the plurality label of the k nearest samples. When k
// exceeds the training size every sample votes. Ties go to the label whose
// closest member is nearest, then to the smaller label. An empty sample is
// equally far from everything, so the first k samples vote and the result
// carries zero confidence.
func (m *KNN) Predict(sample textvec.Vector) (Result, error) {
	if len(m.Samples) == 0 {
		return Result{}, ErrNotTrained
	}

	neighbors := make([]neighbor, len(m.Samples))
	for i, s := range m.Samples {
		neighbors[i] = neighbor{label: m.Labels[i], distance: textvec.CosineDistance(sample, s), index: i}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].distance != neighbors[j].distance {
			return neighbors[i].distance < neighbors[j].distance
		}
		return neighbors[i].index < neighbors[j].index
	})

	k := min(m.K, len(neighbors))
	votes := make(map[string]int, k)
	closest := make(map[string]float64, k)
	for _, n := range neighbors[:k] {
		votes[n.label]++
		if _, ok := closest[n.label]; !ok {
			closest[n.label] = n.distance
		}
	}

	var best string
	first := true
	for label, v := range votes {
		if first {
			best, first = label, false
			continue
		}
		switch {
		case v > votes[best]:
			best = label
		case v == votes[best] && closest[label] < closest[best]:
			best = label
		case v == votes[best] && closest[label] == closest[best] && label < best:
			best = label
		}
	}

	res := Result{Label: best}
	if !sample.Empty() {
		res.Confidence = float64(votes[best]) / float64(k)
	}
	return res, nil
}
