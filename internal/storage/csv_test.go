package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/artmap/internal/model"
)

func TestImportMappingsCSV_LastRowWins(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	input := "component,jtl_article_number\n" +
		"8GB DDR4 RAM,JTL_OLD\n" +
		"512GB SSD,JTL_SSD512\n" +
		"8GB DDR4 RAM,JTL_RAM8\n" +
		",JTL_IGNORED\n"

	n, err := store.ImportMappingsCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.GetMapping(ctx, "8GB DDR4 RAM")
	require.NoError(t, err)
	assert.Equal(t, "JTL_RAM8", got.ArticleNumber)
	assert.Equal(t, model.SourceImported, got.Source)
}

func TestMappingsCSV_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMapping(ctx, &model.Mapping{Component: "Case, black", ArticleNumber: "JTL_CASE"}))
	require.NoError(t, store.UpsertMapping(ctx, &model.Mapping{Component: "512GB SSD", ArticleNumber: "JTL_SSD512"}))

	var buf bytes.Buffer
	n, err := store.ExportMappingsCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "component,jtl_article_number\n512GB SSD,JTL_SSD512\n\"Case, black\",JTL_CASE\n", buf.String())

	other := createTestStorage(t)
	_, err = other.ImportMappingsCSV(ctx, &buf)
	require.NoError(t, err)

	got, err := other.GetMapping(ctx, "Case, black")
	require.NoError(t, err)
	assert.Equal(t, "JTL_CASE", got.ArticleNumber)
}

func TestQueueCSV_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	input := "component,customer_serial\n16GB DDR4 RAM,SN-1\n16GB DDR4 RAM,SN-2\n"
	n, err := store.ImportQueueCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var buf bytes.Buffer
	_, err = store.ExportQueueCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, input, buf.String())
}

func TestImportCSV_BadHeader(t *testing.T) {
	store := createTestStorage(t)
	_, err := store.ImportMappingsCSV(context.Background(), strings.NewReader("a,b\nx,y\n"))
	assert.ErrorIs(t, err, ErrCSVHeader)
}
