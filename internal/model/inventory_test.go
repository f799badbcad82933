package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingArticleNumber(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		value *string
		name  string
		want  bool
	}{
		{name: "nil", value: nil, want: true},
		{name: "empty", value: str(""), want: true},
		{name: "whitespace", value: str("  "), want: true},
		{name: "None literal", value: str("None"), want: true},
		{name: "json null string", value: str("null"), want: true},
		{name: "real number", value: str("JTL_RAM8"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissingArticleNumber(tt.value))
		})
	}
}

func TestMappingSourceValid(t *testing.T) {
	assert.True(t, SourceApproved.Valid())
	assert.True(t, SourceSynthesized.Valid())
	assert.False(t, MappingSource("GUESSED").Valid())
}

func TestPredictionSource(t *testing.T) {
	assert.Equal(t, SourceSynthesized, Prediction{Stage: StageSynthesized}.Source())
	assert.Equal(t, SourceApproved, Prediction{Stage: StageFallback}.Source())
	assert.Equal(t, SourceApproved, Prediction{Stage: StagePrimary}.Source())
}
