// Package testutil provides test helpers for packages that need a seeded store.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/storage"
)

// QueueSeed is a queue entry to insert before a test runs.
type QueueSeed struct {
	Description string
	ContextID   string
}

// TestDB represents a migrated in-memory database with seeded content.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup func(context.Context, *storage.SQLiteStorage) error
	Corpus      map[string]string
	Queue       []QueueSeed
}

// SetupTestDB creates a new in-memory database seeded with corpus and queue.
// Cleanup is registered with t.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.TestDBOptions{
//		Corpus: map[string]string{"8GB DDR4 RAM": "JTL_RAM8"},
//		Queue:  []testutil.QueueSeed{{Description: "16GB DDR4 RAM", ContextID: "ctx1"}},
//	})
func SetupTestDB(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for component, article := range opts.Corpus {
		m := model.Mapping{Component: component, ArticleNumber: article, Source: model.SourceApproved}
		if err := store.UpsertMapping(ctx, &m); err != nil {
			t.Fatalf("failed to seed mapping %q: %v", component, err)
		}
	}

	for _, q := range opts.Queue {
		if _, err := store.Enqueue(ctx, q.Description, q.ContextID); err != nil {
			t.Fatalf("failed to seed queue entry %q: %v", q.Description, err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{Storage: store, t: t}
}

// MustCorpus returns the corpus as a map or fails the test.
func (db *TestDB) MustCorpus() map[string]string {
	db.t.Helper()
	mappings, err := db.Storage.GetMappings(context.Background())
	if err != nil {
		db.t.Fatalf("failed to load corpus: %v", err)
	}
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		out[m.Component] = m.ArticleNumber
	}
	return out
}

// MustQueueLen returns the number of queue entries or fails the test.
func (db *TestDB) MustQueueLen() int {
	db.t.Helper()
	n, err := db.Storage.CountUnmapped(context.Background())
	if err != nil {
		db.t.Fatalf("failed to count queue: %v", err)
	}
	return n
}
