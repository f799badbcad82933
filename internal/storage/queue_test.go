package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/artmap/internal/common"
)

func TestPopFirst_FIFO(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "first", "ctx1")
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, "second", "ctx2")
	require.NoError(t, err)

	entry, err := store.PopFirst(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", entry.Description)
	assert.Equal(t, "ctx1", entry.ContextID)

	entry, err = store.PopFirst(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", entry.Description)

	_, err = store.PopFirst(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRemoveByDescription_ThenPopIsEmpty(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "16GB DDR4 RAM", "ctx1")
	require.NoError(t, err)

	n, err := store.RemoveByDescription(ctx, "16GB DDR4 RAM")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.PopFirst(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRemoveByDescription_RemovesAllContexts(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	for _, c := range []string{"ctx1", "ctx2", "ctx3"} {
		_, err := store.Enqueue(ctx, "Fan 120mm", c)
		require.NoError(t, err)
	}
	_, err := store.Enqueue(ctx, "Fan 140mm", "ctx4")
	require.NoError(t, err)

	n, err := store.RemoveByDescription(ctx, "Fan 120mm")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := store.GetUnmapped(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Fan 140mm", entries[0].Description)
}

func TestClaimNext_LeaseExpiry(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	setNow := fixedClock(store, start)

	id, err := store.Enqueue(ctx, "Case fan", "ctx1")
	require.NoError(t, err)

	entry, err := store.ClaimNext(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, id, entry.ID)
	require.NotNil(t, entry.ClaimedAt)

	// Still leased.
	setNow(start.Add(30 * time.Second))
	_, err = store.ClaimNext(ctx, time.Minute)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Abandoned claim is handed out again.
	setNow(start.Add(2 * time.Minute))
	entry, err = store.ClaimNext(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, id, entry.ID)

	// Released claims are immediately available.
	require.NoError(t, store.ReleaseClaim(ctx, id))
	entry, err = store.ClaimNext(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, id, entry.ID)

	assert.ErrorIs(t, store.ReleaseClaim(ctx, 9999), common.ErrNotFound)
}

func TestClaimNext_RejectsNonPositiveLease(t *testing.T) {
	store := createTestStorage(t)
	_, err := store.ClaimNext(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLease)
}

func TestClaimNext_ConcurrentClaimsAreExclusive(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	const entries = 20
	for i := 0; i < entries; i++ {
		_, err := store.Enqueue(ctx, "Same description", "ctx")
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[int64]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				entry, err := store.ClaimNext(ctx, time.Hour)
				if errors.Is(err, common.ErrNotFound) {
					return
				}
				if err != nil {
					t.Errorf("ClaimNext() error = %v", err)
					return
				}
				mu.Lock()
				claimed[entry.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, entries)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "entry %d delivered %d times", id, n)
	}
}

func TestRemoveUnmappedByIDs(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := store.Enqueue(ctx, "Cable", "ctx")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, store.RemoveUnmappedByIDs(ctx, ids[:2]))

	count, err := store.CountUnmapped(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.RemoveUnmappedByIDs(ctx, nil))
}

func TestEnqueue_RejectsBlankDescription(t *testing.T) {
	store := createTestStorage(t)
	_, err := store.Enqueue(context.Background(), "  ", "ctx")
	assert.ErrorIs(t, err, ErrEmptyString)
}
