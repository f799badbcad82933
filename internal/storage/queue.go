package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
)

const unmappedColumns = `id, component, context_id, enqueued_at, claimed_at`

// Enqueue appends a component to the unmapped queue. Duplicates are allowed.
func (s *SQLiteStorage) Enqueue(ctx context.Context, description, contextID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(description, "description"); err != nil {
		return 0, err
	}
	return s.enqueueTx(ctx, s.db, description, contextID)
}

func (s *SQLiteStorage) enqueueTx(ctx context.Context, q queryable, description, contextID string) (int64, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO unmapped_components (component, context_id, enqueued_at)
		VALUES (?, ?, ?)
	`, description, contextID, s.now().UTC())
	if err != nil {
		return 0, common.PersistenceError("enqueue component", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, common.PersistenceError("enqueue component", err)
	}
	return id, nil
}

// PopFirst removes and returns the oldest queue entry.
func (s *SQLiteStorage) PopFirst(ctx context.Context) (model.UnmappedComponent, error) {
	if err := validateContext(ctx); err != nil {
		return model.UnmappedComponent{}, err
	}

	var entry model.UnmappedComponent
	err := s.withTx(ctx, "pop first", func(tx *sql.Tx) error {
		var err error
		entry, err = scanUnmapped(tx.QueryRowContext(ctx, `
			SELECT `+unmappedColumns+`
			FROM unmapped_components
			ORDER BY id
			LIMIT 1
		`))
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM unmapped_components WHERE id = ?`, entry.ID); err != nil {
			return common.PersistenceError("pop first", err)
		}
		return nil
	})
	if err != nil {
		return model.UnmappedComponent{}, err
	}
	return entry, nil
}

// ClaimNext marks the oldest unclaimed entry as claimed and returns it.
// Claims older than lease are considered abandoned and may be reclaimed.
func (s *SQLiteStorage) ClaimNext(ctx context.Context, lease time.Duration) (model.UnmappedComponent, error) {
	if err := validateContext(ctx); err != nil {
		return model.UnmappedComponent{}, err
	}
	if err := validateLease(lease); err != nil {
		return model.UnmappedComponent{}, err
	}

	now := s.now().UTC()
	staleBefore := now.Add(-lease)

	var entry model.UnmappedComponent
	err := s.withTx(ctx, "claim next", func(tx *sql.Tx) error {
		var err error
		entry, err = scanUnmapped(tx.QueryRowContext(ctx, `
			SELECT `+unmappedColumns+`
			FROM unmapped_components
			WHERE claimed_at IS NULL OR claimed_at < ?
			ORDER BY id
			LIMIT 1
		`, staleBefore))
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE unmapped_components SET claimed_at = ? WHERE id = ?
		`, now, entry.ID); err != nil {
			return common.PersistenceError("claim entry", err)
		}
		entry.ClaimedAt = &now
		return nil
	})
	if err != nil {
		return model.UnmappedComponent{}, err
	}
	return entry, nil
}

// ReleaseClaim returns a claimed entry to the queue without deciding it.
func (s *SQLiteStorage) ReleaseClaim(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE unmapped_components SET claimed_at = NULL WHERE id = ?
	`, id)
	if err != nil {
		return common.PersistenceError("release claim", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return common.PersistenceError("release claim", err)
	}
	if rows == 0 {
		return common.ErrNotFound
	}
	return nil
}

// RemoveByDescription deletes every queue entry with the given description.
func (s *SQLiteStorage) RemoveByDescription(ctx context.Context, description string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(description, "description"); err != nil {
		return 0, err
	}
	return removeByDescriptionTx(ctx, s.db, description)
}

func removeByDescriptionTx(ctx context.Context, q queryable, description string) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM unmapped_components WHERE component = ?`, description)
	if err != nil {
		return 0, common.PersistenceError("remove by description", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, common.PersistenceError("remove by description", err)
	}
	return int(rows), nil
}

// RemoveUnmappedByIDs deletes the queue entries with the given ids.
func (s *SQLiteStorage) RemoveUnmappedByIDs(ctx context.Context, ids []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, "remove unmapped", func(tx *sql.Tx) error {
		return s.deleteUnmappedByIDsTx(ctx, tx, ids)
	})
}

// deleteUnmappedByIDsTx deletes in chunks to stay under SQLite's variable limit.
func (s *SQLiteStorage) deleteUnmappedByIDsTx(ctx context.Context, q queryable, ids []int64) error {
	const chunkSize = 500

	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		chunk := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		// #nosec G201 - placeholders only contains question marks
		query := `DELETE FROM unmapped_components WHERE id IN (` + placeholders + `)`
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return common.PersistenceError("delete unmapped", err)
		}
	}
	return nil
}

// queuedComponentsTx returns the descriptions of those ids still in the queue.
func queuedComponentsTx(ctx context.Context, q queryable, ids []int64) (map[string]struct{}, error) {
	const chunkSize = 500

	queued := make(map[string]struct{})
	for start := 0; start < len(ids); start += chunkSize {
		chunk := ids[start:min(start+chunkSize, len(ids))]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		// #nosec G201 - placeholders only contains question marks
		query := `SELECT DISTINCT component FROM unmapped_components WHERE id IN (` + placeholders + `)`
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, common.PersistenceError("read queued components", err)
		}
		for rows.Next() {
			var component string
			if err := rows.Scan(&component); err != nil {
				_ = rows.Close()
				return nil, common.PersistenceError("scan queued component", err)
			}
			queued[component] = struct{}{}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, common.PersistenceError("read queued components", err)
		}
	}
	return queued, nil
}

// GetUnmapped returns the queue in FIFO order.
func (s *SQLiteStorage) GetUnmapped(ctx context.Context) ([]model.UnmappedComponent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+unmappedColumns+`
		FROM unmapped_components
		ORDER BY id
	`)
	if err != nil {
		return nil, common.PersistenceError("query unmapped", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.UnmappedComponent
	for rows.Next() {
		entry, err := scanUnmapped(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, common.PersistenceError("iterate unmapped", err)
	}
	return entries, nil
}

// CountUnmapped returns the number of queue entries.
func (s *SQLiteStorage) CountUnmapped(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unmapped_components`).Scan(&count); err != nil {
		return 0, common.PersistenceError("count unmapped", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnmapped(row rowScanner) (model.UnmappedComponent, error) {
	var entry model.UnmappedComponent
	var claimedAt sql.NullTime

	err := row.Scan(&entry.ID, &entry.Description, &entry.ContextID, &entry.EnqueuedAt, &claimedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, common.ErrNotFound
	}
	if err != nil {
		return entry, common.PersistenceError("scan unmapped", err)
	}

	if claimedAt.Valid {
		t := claimedAt.Time
		entry.ClaimedAt = &t
	}
	return entry, nil
}
