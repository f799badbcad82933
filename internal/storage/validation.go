// Package storage provides the SQLite persistence layer for the corpus and the unmapped queue.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/artmap/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidMapping = errors.New("invalid mapping")
	ErrInvalidLease   = errors.New("claim lease must be positive")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateMapping validates a corpus mapping and fills in a default source.
func validateMapping(mapping *model.Mapping) error {
	if mapping == nil {
		return fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if strings.TrimSpace(mapping.Component) == "" {
		return fmt.Errorf("%w: missing component", ErrInvalidMapping)
	}
	if strings.TrimSpace(mapping.ArticleNumber) == "" {
		return fmt.Errorf("%w: missing article number", ErrInvalidMapping)
	}
	if mapping.Source == "" {
		mapping.Source = model.SourceApproved
	}
	if !mapping.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidMapping, mapping.Source)
	}
	return nil
}

func validateLease(lease time.Duration) error {
	if lease <= 0 {
		return ErrInvalidLease
	}
	return nil
}
