package textvec

import (
	"math"
	"sort"
)

// Vector is a sparse feature vector with strictly increasing indices.
type Vector struct {
	Indices []int     `json:"i"`
	Values  []float64 `json:"v"`
}

// Empty reports whether the vector has no non-zero component.
func (v Vector) Empty() bool {
	return len(v.Indices) == 0
}

// Len returns the number of stored components.
func (v Vector) Len() int {
	return len(v.Indices)
}

// At returns the value of feature idx, or 0 when it is not stored.
func (v Vector) At(idx int) float64 {
	i := sort.SearchInts(v.Indices, idx)
	if i < len(v.Indices) && v.Indices[i] == idx {
		return v.Values[i]
	}
	return 0
}

// Dot returns the inner product of a and b.
func Dot(a, b Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// CosineDistance returns 1 - cos(a, b). Empty vectors are at distance 1 from everything.
func CosineDistance(a, b Vector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - Dot(a, b)/(na*nb)
}
