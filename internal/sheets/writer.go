package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Column headers of the mirror tabs. They match the legacy CSV files.
var (
	MappingsHeader = []any{"component", "jtl_article_number", "source", "updated_at"}
	UnmappedHeader = []any{"component", "customer_serial", "enqueued_at"}
)

// MirrorResult describes a completed mirror write.
type MirrorResult struct {
	SpreadsheetID string
	Mappings      int
	Unmapped      int
}

// spreadsheetAPI is the subset of the Sheets API the writer needs.
type spreadsheetAPI interface {
	ensure(ctx context.Context, spreadsheetID, title string, tabs []string) (string, error)
	clear(ctx context.Context, spreadsheetID, tab string) error
	update(ctx context.Context, spreadsheetID, rangeName string, values [][]any) error
	format(ctx context.Context, spreadsheetID string, tabs []string) error
}

// Writer mirrors the corpus and the unmapped queue into a spreadsheet.
type Writer struct {
	api    spreadsheetAPI
	logger *slog.Logger
	config Config
}

// NewWriter creates a new Google Sheets mirror writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newWriter(&googleAPI{svc: srv}, config, logger), nil
}

func newWriter(api spreadsheetAPI, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{api: api, config: config, logger: logger}
}

// WriteMirror replaces the contents of the Mappings and Unmapped tabs.
func (w *Writer) WriteMirror(ctx context.Context, mappings []model.Mapping, queue []model.UnmappedComponent) (MirrorResult, error) {
	w.logger.Info("starting mirror export",
		"mappings", len(mappings),
		"unmapped", len(queue))

	tabs := []string{MappingsTab, UnmappedTab}
	spreadsheetID, err := w.api.ensure(ctx, w.config.SpreadsheetID, w.config.SpreadsheetName, tabs)
	if err != nil {
		return MirrorResult{}, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  max(w.config.RetryAttempts, 1),
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	tables := map[string][][]any{
		MappingsTab: mappingRows(mappings),
		UnmappedTab: unmappedRows(queue),
	}
	for _, tab := range tabs {
		values := tables[tab]
		err := common.WithRetry(ctx, func() error {
			if err := w.api.clear(ctx, spreadsheetID, tab); err != nil {
				return fmt.Errorf("failed to clear %s: %w", tab, err)
			}
			return w.writeData(ctx, spreadsheetID, tab, values)
		}, retryOpts)
		if err != nil {
			return MirrorResult{}, fmt.Errorf("failed to write %s: %w", tab, err)
		}
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.api.format(ctx, spreadsheetID, tabs)
		}, retryOpts)
		if err != nil {
			// Unformatted data is still a usable mirror.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	result := MirrorResult{
		SpreadsheetID: spreadsheetID,
		Mappings:      len(mappings),
		Unmapped:      len(queue),
	}
	w.logger.Info("mirror export completed",
		"spreadsheet_id", spreadsheetID,
		"mappings", result.Mappings,
		"unmapped", result.Unmapped)
	return result, nil
}

func mappingRows(mappings []model.Mapping) [][]any {
	values := make([][]any, 0, len(mappings)+1)
	values = append(values, MappingsHeader)
	for _, m := range mappings {
		values = append(values, []any{
			m.Component,
			m.ArticleNumber,
			string(m.Source),
			m.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return values
}

func unmappedRows(queue []model.UnmappedComponent) [][]any {
	values := make([][]any, 0, len(queue)+1)
	values = append(values, UnmappedHeader)
	for _, e := range queue {
		values = append(values, []any{
			e.Description,
			e.ContextID,
			e.EnqueuedAt.UTC().Format(time.RFC3339),
		})
	}
	return values
}

// writeData writes values to tab in batches to stay within API limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		rangeName := fmt.Sprintf("%s!A%d", tab, i+1)
		if err := w.api.update(ctx, spreadsheetID, rangeName, batch); err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "tab", tab, "start_row", i+1, "rows", len(batch))
	}
	return nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := oauthConfig(OAuth2Config{ClientID: config.ClientID, ClientSecret: config.ClientSecret})

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		if config.RefreshToken == "" && config.TokenFile != "" {
			saved, err := LoadToken(config.TokenFile)
			if err != nil {
				return nil, fmt.Errorf("unable to load token file: %w", err)
			}
			token = saved
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// googleAPI implements spreadsheetAPI on the Sheets v4 service.
type googleAPI struct {
	svc *sheets.Service
}

func (g *googleAPI) ensure(ctx context.Context, spreadsheetID, title string, tabs []string) (string, error) {
	if spreadsheetID == "" {
		spreadsheet := &sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{Title: title},
		}
		for _, tab := range tabs {
			spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{
				Properties: &sheets.SheetProperties{Title: tab},
			})
		}

		created, err := g.svc.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to create spreadsheet: %w", err)
		}
		slog.Info("created new spreadsheet",
			"id", created.SpreadsheetId,
			"url", created.SpreadsheetUrl)
		return created.SpreadsheetId, nil
	}

	existing, err := g.sheetIDs(ctx, spreadsheetID)
	if err != nil {
		return "", err
	}

	var requests []*sheets.Request
	for _, tab := range tabs {
		if _, ok := existing[tab]; ok {
			continue
		}
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: tab},
			},
		})
	}
	if len(requests) > 0 {
		batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
		if _, err := g.svc.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("unable to add tabs: %w", err)
		}
	}
	return spreadsheetID, nil
}

func (g *googleAPI) sheetIDs(ctx context.Context, spreadsheetID string) (map[string]int64, error) {
	spreadsheet, err := g.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, err)
	}

	ids := make(map[string]int64, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			ids[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}
	return ids, nil
}

func (g *googleAPI) clear(ctx context.Context, spreadsheetID, tab string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(spreadsheetID, tab+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (g *googleAPI) update(ctx context.Context, spreadsheetID, rangeName string, values [][]any) error {
	// RAW keeps component names starting with "=" from being evaluated.
	_, err := g.svc.Spreadsheets.Values.Update(spreadsheetID, rangeName, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// format bolds and freezes the header row of every tab.
func (g *googleAPI) format(ctx context.Context, spreadsheetID string, tabs []string) error {
	ids, err := g.sheetIDs(ctx, spreadsheetID)
	if err != nil {
		return err
	}

	var requests []*sheets.Request
	for _, tab := range tabs {
		sheetID, ok := ids[tab]
		if !ok {
			continue
		}
		requests = append(requests,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: 0,
						EndRowIndex:   1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat: &sheets.TextFormat{Bold: true},
						},
					},
					Fields: "userEnteredFormat.textFormat",
				},
			},
			&sheets.Request{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId:        sheetID,
						GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
			&sheets.Request{
				AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
					Dimensions: &sheets.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "COLUMNS",
						StartIndex: 0,
						EndIndex:   4,
					},
				},
			},
		)
	}
	if len(requests) == 0 {
		return nil
	}

	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	_, err = g.svc.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}
