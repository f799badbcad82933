package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/artmap/internal/service"
)

var fast = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
	Multiplier:   2,
}

func TestWithRetry(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		wantErr   error
		failures  int
		fail      error
		wantCalls int
		name      string
	}{
		{name: "first try", failures: 0, wantCalls: 1},
		{name: "recovers", failures: 2, fail: boom, wantCalls: 3},
		{name: "exhausts", failures: 5, fail: boom, wantCalls: 3, wantErr: ErrMaxRetries},
		{name: "permanent stops", failures: 5, fail: Permanent(boom), wantCalls: 1, wantErr: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					return tt.fail
				}
				return nil
			}, fast)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return errors.New("busy") }, service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Hour,
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(Permanent(errors.New("bad request"))))
	assert.True(t, IsRetryable(fmt.Errorf("search SN1: %w", ErrInventoryBusy)))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("flaky"), Retryable: true}))
}
