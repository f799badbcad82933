package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
)

// GetMappings returns the whole corpus ordered by component.
func (s *SQLiteStorage) GetMappings(ctx context.Context) ([]model.Mapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getMappingsTx(ctx, s.db)
}

func (s *SQLiteStorage) getMappingsTx(ctx context.Context, q queryable) ([]model.Mapping, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT component, article_number, source, updated_at
		FROM mappings
		ORDER BY component
	`)
	if err != nil {
		return nil, common.PersistenceError("query mappings", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.Mapping
	for rows.Next() {
		var m model.Mapping
		var source string
		if err := rows.Scan(&m.Component, &m.ArticleNumber, &source, &m.UpdatedAt); err != nil {
			return nil, common.PersistenceError("scan mapping", err)
		}
		m.Source = model.MappingSource(source)
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError("iterate mappings", err)
	}
	return mappings, nil
}

// GetMapping retrieves the mapping for one component.
func (s *SQLiteStorage) GetMapping(ctx context.Context, component string) (*model.Mapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(component, "component"); err != nil {
		return nil, err
	}

	var m model.Mapping
	var source string
	err := s.db.QueryRowContext(ctx, `
		SELECT component, article_number, source, updated_at
		FROM mappings
		WHERE component = ?
	`, component).Scan(&m.Component, &m.ArticleNumber, &source, &m.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mapping %q: %w", component, common.ErrNotFound)
	}
	if err != nil {
		return nil, common.PersistenceError("get mapping", err)
	}
	m.Source = model.MappingSource(source)
	return &m, nil
}

// UpsertMapping assigns an article number to a component, replacing any
// previous assignment. Re-applying the same values leaves the row untouched.
func (s *SQLiteStorage) UpsertMapping(ctx context.Context, mapping *model.Mapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(mapping); err != nil {
		return err
	}
	return s.upsertMappingTx(ctx, s.db, mapping)
}

func (s *SQLiteStorage) upsertMappingTx(ctx context.Context, q queryable, mapping *model.Mapping) error {
	if mapping.UpdatedAt.IsZero() {
		mapping.UpdatedAt = s.now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO mappings (component, article_number, source, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(component) DO UPDATE SET
			article_number = excluded.article_number,
			source = excluded.source,
			updated_at = excluded.updated_at
		WHERE mappings.article_number != excluded.article_number
			OR mappings.source != excluded.source
	`, mapping.Component, mapping.ArticleNumber, string(mapping.Source), mapping.UpdatedAt)
	if err != nil {
		return common.PersistenceError("upsert mapping", err)
	}
	return nil
}

// DeleteMapping removes a component from the corpus.
func (s *SQLiteStorage) DeleteMapping(ctx context.Context, component string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(component, "component"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM mappings WHERE component = ?`, component)
	if err != nil {
		return common.PersistenceError("delete mapping", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return common.PersistenceError("delete mapping", err)
	}
	if rows == 0 {
		return fmt.Errorf("mapping %q: %w", component, common.ErrNotFound)
	}
	return nil
}

// GetArticleNumbers returns the set of every article number in the corpus.
func (s *SQLiteStorage) GetArticleNumbers(ctx context.Context) (map[string]struct{}, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT article_number FROM mappings`)
	if err != nil {
		return nil, common.PersistenceError("query article numbers", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.PersistenceError("scan article number", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError("iterate article numbers", err)
	}
	return ids, nil
}

// CountMappings returns the number of distinct components in the corpus.
func (s *SQLiteStorage) CountMappings(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mappings`).Scan(&count); err != nil {
		return 0, common.PersistenceError("count mappings", err)
	}
	return count, nil
}
