package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var _ service.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	now    func() time.Time
	dbPath string
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes every statement, which also makes queue
	// claims exclusive and keeps a :memory: database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// withTx runs fn inside a transaction, committing only when fn succeeds.
func (s *SQLiteStorage) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.PersistenceError(op+": begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return common.PersistenceError(op+": commit", err)
	}
	return nil
}

// Resolve upserts mappings and deletes the resolved queue entries in one
// transaction, so an aborted caller leaves the store unchanged. A mapping is
// written only while one of resolvedIDs for its component is still queued:
// once an operator has decided the component, its entries are gone and the
// operator's mapping stands. The components skipped that way are returned.
func (s *SQLiteStorage) Resolve(ctx context.Context, mappings []model.Mapping, resolvedIDs []int64) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	for i := range mappings {
		if err := validateMapping(&mappings[i]); err != nil {
			return nil, fmt.Errorf("mapping at index %d: %w", i, err)
		}
	}
	if len(mappings) == 0 && len(resolvedIDs) == 0 {
		return nil, nil
	}

	var superseded []string
	err := s.withTx(ctx, "resolve", func(tx *sql.Tx) error {
		queued, err := queuedComponentsTx(ctx, tx, resolvedIDs)
		if err != nil {
			return err
		}
		for i := range mappings {
			if _, ok := queued[mappings[i].Component]; !ok {
				superseded = append(superseded, mappings[i].Component)
				continue
			}
			if err := s.upsertMappingTx(ctx, tx, &mappings[i]); err != nil {
				return err
			}
		}
		return s.deleteUnmappedByIDsTx(ctx, tx, resolvedIDs)
	})
	if err != nil {
		return nil, err
	}
	return superseded, nil
}

// CommitDecision records an operator decision: the mapping is upserted and
// every queue entry carrying the same description is removed.
func (s *SQLiteStorage) CommitDecision(ctx context.Context, mapping *model.Mapping) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateMapping(mapping); err != nil {
		return 0, err
	}

	var removed int
	err := s.withTx(ctx, "commit decision", func(tx *sql.Tx) error {
		if err := s.upsertMappingTx(ctx, tx, mapping); err != nil {
			return err
		}
		n, err := removeByDescriptionTx(ctx, tx, mapping.Component)
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
