package inventory

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/testutil"
)

func str(s string) *string { return &s }

type mapSearcher map[string]model.ComputerInventory

func (m mapSearcher) Search(_ context.Context, serial string) (model.ComputerInventory, error) {
	c, ok := m[serial]
	if !ok {
		return model.ComputerInventory{}, ErrNotFoundSerial
	}
	c.Serial = serial
	return c, nil
}

func TestUnmapped(t *testing.T) {
	computer := model.ComputerInventory{
		ModelName:     "Gaming PC X",
		ArticleNumber: str("null"),
		Components: []model.InventoryComponent{
			{Description: "8GB DDR4 RAM", ArticleNumber: str("JTL_RAM8")},
			{Description: "Mystery Cable", ArticleNumber: nil},
			{Description: "Odd Bracket", ArticleNumber: str("None")},
			{Description: "  ", ArticleNumber: nil},
		},
	}

	assert.Equal(t, []string{"Gaming PC X", "Mystery Cable", "Odd Bracket"}, Unmapped(computer))

	computer.ArticleNumber = str("JTL_PC")
	assert.Equal(t, []string{"Mystery Cable", "Odd Bracket"}, Unmapped(computer))
}

func TestImport(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	searcher := mapSearcher{
		"SN1": {
			ModelName:     "Office PC",
			ArticleNumber: str("JTL_OFFICE"),
			Components: []model.InventoryComponent{
				{Description: "16GB DDR4 RAM", ArticleNumber: nil},
				{Description: "512GB SSD", ArticleNumber: str("JTL_SSD512")},
			},
		},
		"SN2": {
			ModelName: "Custom PC",
			Components: []model.InventoryComponent{
				{Description: "16GB DDR4 RAM", ArticleNumber: str("")},
			},
		},
	}

	var ticks atomic.Int32
	importer := NewImporter(searcher, db.Storage, WithConcurrency(2), WithProgress(func() { ticks.Add(1) }))

	result, err := importer.Import(context.Background(), []string{"SN1", "SN2", "SN-missing", " "})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Computers)
	assert.Equal(t, 3, result.Components)
	assert.Equal(t, 3, result.Enqueued)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "SN-missing", result.Failures[0].Serial)
	assert.ErrorIs(t, result.FailureError(), ErrNotFoundSerial)
	assert.Equal(t, int32(3), ticks.Load())

	entries, err := db.Storage.GetUnmapped(context.Background())
	require.NoError(t, err)
	var got []string
	for _, e := range entries {
		got = append(got, e.Description+"@"+e.ContextID)
	}
	sort.Strings(got)
	assert.Equal(t, []string{"16GB DDR4 RAM@SN1", "16GB DDR4 RAM@SN2", "Custom PC@SN2"}, got)
}

func TestFailureError_KeepsCauses(t *testing.T) {
	tests := []struct {
		cause  error
		target error
		name   string
	}{
		{name: "unknown serial", cause: common.Permanent(ErrNotFoundSerial), target: ErrNotFoundSerial},
		{name: "busy inventory", cause: common.ErrInventoryBusy, target: common.ErrInventoryBusy},
		{name: "canceled", cause: context.Canceled, target: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ImportResult{Failures: []SerialError{{Serial: "SN-7", Err: tt.cause}}}

			err := result.FailureError()
			require.ErrorIs(t, err, tt.target)

			var serialErr SerialError
			require.ErrorAs(t, err, &serialErr)
			assert.Equal(t, "SN-7", serialErr.Serial)
		})
	}

	assert.NoError(t, ImportResult{}.FailureError())
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, string, string) (int64, error) {
	return 0, errors.New("disk full")
}

func TestImport_QueueFailureStops(t *testing.T) {
	searcher := mapSearcher{"SN1": {Components: []model.InventoryComponent{{Description: "Cable"}}}}
	_, err := NewImporter(searcher, failingQueue{}).Import(context.Background(), []string{"SN1"})
	assert.Error(t, err)
}

func TestStaticSourceAndDayRange(t *testing.T) {
	src := StaticSource{"a", "b"}
	got, err := src.FinishedSerials(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	day := time.Date(2025, 2, 7, 15, 4, 5, 0, time.UTC)
	from, to := DayRange(day)
	assert.Equal(t, time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 2, 8, 0, 0, 0, 0, time.UTC), to)
}
