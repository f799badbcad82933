// Package model defines the core domain models used throughout the application.
package model

import "time"

// MappingSource indicates how a corpus mapping was created.
type MappingSource string

const (
	// SourceApproved indicates the operator accepted a model prediction.
	SourceApproved MappingSource = "APPROVED"
	// SourceManual indicates the operator typed the article number.
	SourceManual MappingSource = "MANUAL"
	// SourceFallback indicates bulk resolution by the nearest-neighbor model.
	SourceFallback MappingSource = "FALLBACK"
	// SourceSynthesized indicates bulk resolution by the identifier synthesizer.
	SourceSynthesized MappingSource = "SYNTHESIZED"
	// SourceImported indicates the mapping came from a CSV mirror.
	SourceImported MappingSource = "IMPORTED"
)

// Valid reports whether s is a known source.
func (s MappingSource) Valid() bool {
	switch s {
	case SourceApproved, SourceManual, SourceFallback, SourceSynthesized, SourceImported:
		return true
	}
	return false
}

// Mapping is a confirmed component description to article number assignment.
type Mapping struct {
	UpdatedAt     time.Time
	Component     string
	ArticleNumber string
	Source        MappingSource
}
