package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/artmap/internal/predict"
	"github.com/Veraticus/artmap/internal/retrain"
	"github.com/Veraticus/artmap/internal/synth"
	"github.com/Veraticus/artmap/internal/testutil"
	"github.com/Veraticus/artmap/internal/workflow"
)

type fixture struct {
	db     *testutil.TestDB
	server *Server
	runner *retrain.Runner
}

func newFixture(t *testing.T, opts testutil.TestDBOptions) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t, opts)
	predictor := predict.NewService(db.Storage, synth.New(synth.WithSeed(5)))
	wf := workflow.New(db.Storage, predictor)
	runner := retrain.NewRunner(retrain.NewJob(db.Storage, predictor, synth.New(), retrain.Config{Trees: 20}, nil))
	return &fixture{db: db, server: New(wf, runner, db.Storage, nil), runner: runner}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec, payload
}

func TestNext_EmptyQueueIs404(t *testing.T) {
	f := newFixture(t, testutil.TestDBOptions{})
	rec, payload := f.do(t, http.MethodGet, "/next", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No more unmapped components", payload["message"])
}

func TestRetrainThenNextThenApprove(t *testing.T) {
	f := newFixture(t, testutil.TestDBOptions{
		Corpus: map[string]string{"8GB DDR4 RAM": "JTL_RAM8", "512GB SSD": "JTL_SSD512"},
		Queue:  []testutil.QueueSeed{{Description: "Gaming Mouse", ContextID: "SN1"}},
	})

	rec, payload := f.do(t, http.MethodGet, "/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gaming Mouse", payload["component"])
	assert.Equal(t, "SN1", payload["customer_serial"])
	assert.Equal(t, "SYNTHESIZED", payload["stage"])
	predicted, _ := payload["predicted_jtl"].(string)
	assert.True(t, strings.HasPrefix(predicted, "JTL_GAMI_MOUS_"), predicted)

	rec, payload = f.do(t, http.MethodPost, "/approve", `{"component":"Gaming Mouse","jtl_article_number":"`+predicted+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), payload["removed"])
	assert.Equal(t, predicted, f.db.MustCorpus()["Gaming Mouse"])

	rec, payload = f.do(t, http.MethodPost, "/retrain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), payload["corpus_size"])

	rec, payload = f.do(t, http.MethodPost, "/predict", `{"component":"16GB DDR4 RAM"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, []any{"PRIMARY", "FALLBACK"}, payload["stage"])

	rec, payload = f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), payload["approved"])
	assert.Equal(t, float64(3), payload["corpus"])
	assert.NotNil(t, payload["last_retrain"])
}

func TestApprove_Validation(t *testing.T) {
	f := newFixture(t, testutil.TestDBOptions{})

	rec, _ := f.do(t, http.MethodPost, "/approve", `{"component":"Fan"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/approve", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReject(t *testing.T) {
	f := newFixture(t, testutil.TestDBOptions{
		Queue: []testutil.QueueSeed{{Description: "Sticker", ContextID: "a"}, {Description: "Sticker", ContextID: "b"}},
	})

	rec, payload := f.do(t, http.MethodPost, "/reject", `{"component":"Sticker"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), payload["removed"])
	assert.Empty(t, f.db.MustCorpus())
}

func TestNewMapping_BlankValueIsGenerated(t *testing.T) {
	f := newFixture(t, testutil.TestDBOptions{
		Queue: []testutil.QueueSeed{{Description: "Odd Widget", ContextID: "a"}},
	})

	rec, payload := f.do(t, http.MethodPost, "/new_mapping", `{"component":"Odd Widget","jtl_article_number":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SYNTHESIZED", payload["source"])
	assert.Zero(t, f.db.MustQueueLen())
}

func TestRetrain_EmptyCorpus(t *testing.T) {
	f := newFixture(t, testutil.TestDBOptions{})
	rec, _ := f.do(t, http.MethodPost, "/retrain", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRelease_SkippedEntryIsServedAgain(t *testing.T) {
	f := newFixture(t, testutil.TestDBOptions{
		Queue: []testutil.QueueSeed{{Description: "Case Black", ContextID: "a"}, {Description: "PSU 650W", ContextID: "b"}},
	})

	rec, first := f.do(t, http.MethodGet, "/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Case Black", first["component"])

	rec, second := f.do(t, http.MethodGet, "/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PSU 650W", second["component"])

	id := int64(first["id"].(float64))
	rec, payload := f.do(t, http.MethodPost, "/release", fmt.Sprintf(`{"id":%d}`, id))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Entry released", payload["message"])

	rec, again := f.do(t, http.MethodGet, "/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Case Black", again["component"])

	_, stats := f.do(t, http.MethodGet, "/stats", "")
	assert.Equal(t, float64(1), stats["skipped"])
}

func TestRelease_Validation(t *testing.T) {
	f := newFixture(t, testutil.TestDBOptions{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing id", body: `{}`, want: http.StatusBadRequest},
		{name: "malformed body", body: `not json`, want: http.StatusBadRequest},
		{name: "unknown id", body: `{"id":999}`, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := f.do(t, http.MethodPost, "/release", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
