// Package textvec turns component descriptions into TF-IDF feature vectors
// over unigrams and bigrams.
package textvec

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// ErrNotFitted is returned when transforming with an untrained vectorizer.
var ErrNotFitted = errors.New("vectorizer is not fitted")

// Vectorizer is a fitted TF-IDF model. The zero value is unfitted.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	Documents  int            `json:"documents"`
}

// Tokenize lowercases and splits on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Terms returns the unigrams followed by the space-joined bigrams of text.
func Terms(text string) []string {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	terms := make([]string, 0, 2*len(tokens)-1)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// Fit learns the vocabulary and smoothed inverse document frequencies.
// Vocabulary indices follow lexicographic term order.
func (v *Vectorizer) Fit(docs []string) {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range Terms(doc) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	v.Documents = len(docs)
}

// Fitted reports whether Fit has been called.
func (v *Vectorizer) Fitted() bool {
	return v != nil && v.Vocabulary != nil
}

// Features returns the vocabulary size.
func (v *Vectorizer) Features() int {
	return len(v.IDF)
}

// Transform maps text to an L2-normalized TF-IDF vector. Terms outside the
// vocabulary are ignored, so unfamiliar text yields the empty vector.
func (v *Vectorizer) Transform(text string) (Vector, error) {
	if !v.Fitted() {
		return Vector{}, ErrNotFitted
	}

	counts := make(map[int]float64)
	for _, term := range Terms(text) {
		if idx, ok := v.Vocabulary[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return Vector{}, nil
	}

	out := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		out.Indices = append(out.Indices, idx)
	}
	sort.Ints(out.Indices)

	var norm float64
	for _, idx := range out.Indices {
		w := counts[idx] * v.IDF[idx]
		out.Values = append(out.Values, w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range out.Values {
		out.Values[i] /= norm
	}
	return out, nil
}

// FitTransform fits on docs and returns their vectors in order.
func (v *Vectorizer) FitTransform(docs []string) ([]Vector, error) {
	v.Fit(docs)
	out := make([]Vector, len(docs))
	for i, doc := range docs {
		vec, err := v.Transform(doc)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
