package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/artmap/internal/common"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		expr    string
	}{
		{name: "daily at three", expr: "0 3 * * *"},
		{name: "weekdays", expr: "30 6 * * 1-5"},
		{name: "descriptor", expr: "@hourly"},
		{name: "empty disables", expr: "  ", wantErr: ErrDisabled},
		{name: "seconds field rejected", expr: "0 0 3 * * *", wantErr: common.ErrInvalidConfig},
		{name: "garbage", expr: "every day", wantErr: common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScheduler_Next(t *testing.T) {
	s, err := New(context.Background(), "0 3 * * *", func(context.Context) error { return nil }, nil)
	require.NoError(t, err)

	from := time.Date(2025, 2, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 8, 3, 0, 0, 0, time.UTC), s.Next(from))
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(context.Background(), "@every 1h", func(context.Context) error { return nil }, nil)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
