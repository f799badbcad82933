// Package synth generates new article numbers for components no model can place.
package synth

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// Prefix starts every synthesized article number.
	Prefix = "JTL"

	minSuffix   = 100
	maxSuffix   = 999
	suffixSpace = maxSuffix - minSuffix + 1

	maxBaseTokens  = 3
	tokenKeepAbove = 3
	tokenTruncate  = 4
)

var (
	// ErrEmptyDescription is returned for a blank description.
	ErrEmptyDescription = errors.New("description is empty")
	// ErrSuffixSpaceExhausted is returned when every suffix for a base is taken.
	ErrSuffixSpaceExhausted = errors.New("all numeric suffixes taken for base")
)

// Synthesizer composes JTL_<base>_<n> identifiers that are unique against a
// caller-supplied set. It is safe for concurrent use.
type Synthesizer struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithRand replaces the random source used to draw suffixes.
func WithRand(r *rand.Rand) Option {
	return func(s *Synthesizer) {
		s.rng = r
	}
}

// WithSeed makes suffix draws reproducible.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// New creates a Synthesizer seeded from the runtime's random source.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns an identifier for description that is not in existing.
func (s *Synthesizer) Synthesize(description string, existing map[string]struct{}) (string, error) {
	base, err := Base(description)
	if err != nil {
		return "", err
	}

	tried := make(map[int]struct{}, 8)
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(tried) < suffixSpace {
		n := minSuffix + s.rng.IntN(suffixSpace)
		if _, seen := tried[n]; seen {
			continue
		}
		tried[n] = struct{}{}

		id := compose(base, n)
		if _, taken := existing[id]; !taken {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrSuffixSpaceExhausted, base)
}

// Base derives the identifier base from a description: the first three
// tokens longer than three characters, uppercased and cut to four. When no
// token qualifies, the first three tokens of any length are used instead.
func Base(description string) (string, error) {
	tokens := strings.Fields(description)
	if len(tokens) == 0 {
		return "", ErrEmptyDescription
	}

	parts := pick(tokens, func(tok string) bool {
		return utf8.RuneCountInString(tok) > tokenKeepAbove
	})
	if len(parts) == 0 {
		parts = pick(tokens, func(string) bool { return true })
	}
	return strings.Join(parts, "_"), nil
}

func pick(tokens []string, keep func(string) bool) []string {
	parts := make([]string, 0, maxBaseTokens)
	for _, tok := range tokens {
		if len(parts) == maxBaseTokens {
			break
		}
		if !keep(tok) {
			continue
		}
		parts = append(parts, truncate(strings.ToUpper(tok), tokenTruncate))
	}
	return parts
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func compose(base string, n int) string {
	return fmt.Sprintf("%s_%s_%d", Prefix, base, n)
}
