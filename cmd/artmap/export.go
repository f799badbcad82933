package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/artmap/internal/cli"
	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/config"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/sheets"
	"github.com/Veraticus/artmap/internal/storage"
)

// Legacy mirror file names.
const (
	mappingsFile = "mapped_components.csv"
	queueFile    = "unmapped_components.csv"
)

type mirrorWriter interface {
	WriteMirror(ctx context.Context, mappings []model.Mapping, queue []model.UnmappedComponent) (sheets.MirrorResult, error)
}

// newMirrorWriter is replaced in tests.
var newMirrorWriter = func(ctx context.Context, cfg sheets.Config) (mirrorWriter, error) {
	w, err := sheets.NewWriter(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	return w, nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Mirror the corpus and queue to CSV files or Google Sheets",
		Long: `Write the corpus and the unmapped queue to read-only mirrors.

--csv-dir writes mapped_components.csv and unmapped_components.csv.
--sheets replaces the Mappings and Unmapped tabs of the configured spreadsheet.`,
		RunE: runExport,
	}

	cmd.Flags().String("csv-dir", "", "directory for the CSV mirror files")
	cmd.Flags().Bool("sheets", false, "mirror to Google Sheets")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	csvDir, _ := cmd.Flags().GetString("csv-dir")
	toSheets, _ := cmd.Flags().GetBool("sheets")

	if csvDir == "" && !toSheets {
		return common.NewUserError("nothing to export: pass --csv-dir or --sheets", nil)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	out := cmd.OutOrStdout()

	if csvDir != "" {
		if err := writeCSVMirror(ctx, store, config.ExpandPath(csvDir)); err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess("CSV mirror written to "+csvDir))
	}

	if toSheets {
		cfg, err := config.LoadSheetsConfig()
		if err != nil {
			return common.NewUserError("Google Sheets is not configured", err)
		}

		writer, err := newMirrorWriter(ctx, *cfg)
		if err != nil {
			return err
		}

		mappings, err := store.GetMappings(ctx)
		if err != nil {
			return fmt.Errorf("failed to get mappings: %w", err)
		}
		queue, err := store.GetUnmapped(ctx)
		if err != nil {
			return fmt.Errorf("failed to get queue: %w", err)
		}

		result, err := writer.WriteMirror(ctx, mappings, queue)
		if err != nil {
			return fmt.Errorf("sheets export failed: %w", err)
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Mirrored %d mappings and %d queued components to spreadsheet %s",
			result.Mappings, result.Unmapped, result.SpreadsheetID)))
	}

	return nil
}

func writeCSVMirror(ctx context.Context, store *storage.SQLiteStorage, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	files := []struct {
		write func(*os.File) (int, error)
		name  string
	}{
		{name: mappingsFile, write: func(f *os.File) (int, error) { return store.ExportMappingsCSV(ctx, f) }},
		{name: queueFile, write: func(f *os.File) (int, error) { return store.ExportQueueCSV(ctx, f) }},
	}

	for _, file := range files {
		path := filepath.Join(dir, file.name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		n, err := file.write(f)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		slog.Debug("Wrote mirror file", "path", path, "rows", n)
	}
	return nil
}
