package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/artmap/internal/model"
)

type updateCall struct {
	rangeName string
	values    [][]any
}

type fakeAPI struct {
	ensureErr   error
	formatErr   error
	failUpdates int
	ensuredID   string
	cleared     []string
	updates     []updateCall
	formatted   int
}

func (f *fakeAPI) ensure(_ context.Context, spreadsheetID, _ string, _ []string) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	if spreadsheetID == "" {
		spreadsheetID = "new-sheet"
	}
	f.ensuredID = spreadsheetID
	return spreadsheetID, nil
}

func (f *fakeAPI) clear(_ context.Context, _ string, tab string) error {
	f.cleared = append(f.cleared, tab)
	return nil
}

func (f *fakeAPI) update(_ context.Context, _ string, rangeName string, values [][]any) error {
	if f.failUpdates > 0 {
		f.failUpdates--
		return errors.New("backend error")
	}
	f.updates = append(f.updates, updateCall{rangeName: rangeName, values: values})
	return nil
}

func (f *fakeAPI) format(context.Context, string, []string) error {
	f.formatted++
	return f.formatErr
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ServiceAccountPath = "/unused.json"
	cfg.RetryDelay = time.Millisecond
	return cfg
}

var (
	stamp    = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	mappings = []model.Mapping{
		{Component: "RAM 8GB DDR4", ArticleNumber: "JTL_RAM8", Source: model.SourceApproved, UpdatedAt: stamp},
		{Component: "SSD 512GB", ArticleNumber: "JTL_SSD512", Source: model.SourceImported, UpdatedAt: stamp},
	}
	queue = []model.UnmappedComponent{
		{ID: 1, Description: "Fan 120mm", ContextID: "SN-1", EnqueuedAt: stamp},
	}
)

func TestWriteMirror(t *testing.T) {
	api := &fakeAPI{}
	w := newWriter(api, testConfig(), nil)

	result, err := w.WriteMirror(context.Background(), mappings, queue)
	require.NoError(t, err)

	assert.Equal(t, "new-sheet", result.SpreadsheetID)
	assert.Equal(t, 2, result.Mappings)
	assert.Equal(t, 1, result.Unmapped)
	assert.Equal(t, []string{MappingsTab, UnmappedTab}, api.cleared)
	assert.Equal(t, 1, api.formatted)

	require.Len(t, api.updates, 2)
	assert.Equal(t, "Mappings!A1", api.updates[0].rangeName)
	assert.Equal(t, MappingsHeader, api.updates[0].values[0])
	assert.Equal(t, []any{"RAM 8GB DDR4", "JTL_RAM8", "APPROVED", "2024-05-06T07:08:09Z"}, api.updates[0].values[1])

	assert.Equal(t, "Unmapped!A1", api.updates[1].rangeName)
	assert.Equal(t, []any{"Fan 120mm", "SN-1", "2024-05-06T07:08:09Z"}, api.updates[1].values[1])
}

func TestWriteMirror_Batches(t *testing.T) {
	api := &fakeAPI{}
	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.EnableFormatting = false
	w := newWriter(api, cfg, nil)

	_, err := w.WriteMirror(context.Background(), mappings, nil)
	require.NoError(t, err)

	var ranges []string
	for _, u := range api.updates {
		ranges = append(ranges, u.rangeName)
	}
	assert.Equal(t, []string{"Mappings!A1", "Mappings!A3", "Unmapped!A1"}, ranges)
	assert.Zero(t, api.formatted)
}

func TestWriteMirror_RetriesTransientFailures(t *testing.T) {
	api := &fakeAPI{failUpdates: 1}
	w := newWriter(api, testConfig(), nil)

	_, err := w.WriteMirror(context.Background(), mappings, queue)
	require.NoError(t, err)
	assert.Equal(t, []string{MappingsTab, MappingsTab, UnmappedTab}, api.cleared)
}

func TestWriteMirror_KeepsExistingSpreadsheet(t *testing.T) {
	api := &fakeAPI{}
	cfg := testConfig()
	cfg.SpreadsheetID = "existing"
	w := newWriter(api, cfg, nil)

	result, err := w.WriteMirror(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "existing", result.SpreadsheetID)
}

func TestWriteMirror_EnsureFails(t *testing.T) {
	api := &fakeAPI{ensureErr: errors.New("forbidden")}
	w := newWriter(api, testConfig(), nil)

	_, err := w.WriteMirror(context.Background(), mappings, queue)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
	assert.Empty(t, api.updates)
}

func TestWriteMirror_FormattingFailureIsNotFatal(t *testing.T) {
	api := &fakeAPI{formatErr: errors.New("quota")}
	cfg := testConfig()
	cfg.RetryAttempts = 1
	w := newWriter(api, cfg, nil)

	_, err := w.WriteMirror(context.Background(), mappings, queue)
	require.NoError(t, err)
	assert.Equal(t, 1, api.formatted)
}

func TestNewWriter_InvalidConfig(t *testing.T) {
	_, err := NewWriter(context.Background(), DefaultConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestMockWriter(t *testing.T) {
	m := NewMockWriter()
	result, err := m.WriteMirror(context.Background(), mappings, queue)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Mappings)
	m.AssertWriteCalled(t, 1)

	m.SetWriteError(errors.New("boom"))
	_, err = m.WriteMirror(context.Background(), nil, nil)
	assert.EqualError(t, err, "boom")
}

// sheetsServer records requests against a fake Sheets endpoint.
type sheetsServer struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (s *sheetsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.bodies = append(s.bodies, string(body))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{
			SpreadsheetId: "sheet-1",
			Sheets: []*sheets.Sheet{
				{Properties: &sheets.SheetProperties{Title: MappingsTab, SheetId: 11}},
			},
		})
		return
	}
	_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
}

func TestGoogleAPI_AgainstFakeEndpoint(t *testing.T) {
	fake := &sheetsServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.SpreadsheetID = "sheet-1"
	w := newWriter(&googleAPI{svc: svc}, cfg, nil)

	_, err = w.WriteMirror(context.Background(), mappings, queue)
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	joined := strings.Join(fake.requests, "\n")
	assert.Contains(t, joined, "GET /v4/spreadsheets/sheet-1")
	assert.Contains(t, joined, "POST /v4/spreadsheets/sheet-1:batchUpdate")
	assert.Contains(t, joined, "/v4/spreadsheets/sheet-1/values/")

	// The Unmapped tab is missing on the fake and must be added.
	bodies := strings.Join(fake.bodies, "\n")
	assert.Contains(t, bodies, `"addSheet"`)
	assert.Contains(t, bodies, "JTL_RAM8")
}
