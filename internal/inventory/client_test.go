package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/service"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

func TestClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "SN 42", r.URL.Query().Get("customer_serial"))
		_, _ = w.Write([]byte(`{
			"model_name": "Office PC",
			"jtl_article_number": "None",
			"components": [
				{"description": "8GB DDR4 RAM", "jtl_article_number": "JTL_RAM8"},
				{"description": "Mystery Cable", "jtl_article_number": null}
			]
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", WithRetry(fastRetry))
	require.NoError(t, err)

	got, err := client.Search(context.Background(), "SN 42")
	require.NoError(t, err)
	assert.Equal(t, "SN 42", got.Serial)
	assert.Equal(t, "Office PC", got.ModelName)
	require.Len(t, got.Components, 2)
	assert.Equal(t, "JTL_RAM8", *got.Components[0].ArticleNumber)
	assert.Nil(t, got.Components[1].ArticleNumber)
}

func TestClientSearch_RetriesWhileBusy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"error": "database busy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"model_name": "PC", "jtl_article_number": "JTL_PC", "components": []}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithRetry(fastRetry))
	require.NoError(t, err)

	got, err := client.Search(context.Background(), "SN1")
	require.NoError(t, err)
	assert.Empty(t, got.Components)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientSearch_BusyExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithRetry(fastRetry))
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "SN1")
	assert.ErrorIs(t, err, common.ErrInventoryBusy)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
}

func TestClientSearch_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithRetry(fastRetry))
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "SN404")
	assert.ErrorIs(t, err, ErrNotFoundSerial)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(" ")
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
