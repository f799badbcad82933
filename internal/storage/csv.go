package storage

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/artmap/internal/model"
)

// CSV headers of the legacy mirror files.
var (
	MappingsCSVHeader = []string{"component", "jtl_article_number"}
	QueueCSVHeader    = []string{"component", "customer_serial"}
)

// ErrCSVHeader is returned when a mirror file does not start with the expected header.
var ErrCSVHeader = errors.New("unexpected csv header")

// ExportMappingsCSV writes the corpus to w.
func (s *SQLiteStorage) ExportMappingsCSV(ctx context.Context, w io.Writer) (int, error) {
	mappings, err := s.GetMappings(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(MappingsCSVHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for _, m := range mappings {
		if err := cw.Write([]string{m.Component, m.ArticleNumber}); err != nil {
			return 0, fmt.Errorf("failed to write mapping %q: %w", m.Component, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(mappings), nil
}

// ImportMappingsCSV upserts every row of r into the corpus in one
// transaction. Later rows win over earlier rows with the same component.
func (s *SQLiteStorage) ImportMappingsCSV(ctx context.Context, r io.Reader) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	records, err := readCSV(r, MappingsCSVHeader)
	if err != nil {
		return 0, err
	}

	latest := make(map[string]string, len(records))
	var order []string
	for _, rec := range records {
		component := strings.TrimSpace(rec[0])
		article := strings.TrimSpace(rec[1])
		if component == "" || article == "" {
			continue
		}
		if _, seen := latest[component]; !seen {
			order = append(order, component)
		}
		latest[component] = article
	}

	err = s.withTx(ctx, "import mappings", func(tx *sql.Tx) error {
		for _, component := range order {
			m := model.Mapping{
				Component:     component,
				ArticleNumber: latest[component],
				Source:        model.SourceImported,
			}
			if err := s.upsertMappingTx(ctx, tx, &m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(order), nil
}

// ExportQueueCSV writes the unmapped queue to w in FIFO order.
func (s *SQLiteStorage) ExportQueueCSV(ctx context.Context, w io.Writer) (int, error) {
	entries, err := s.GetUnmapped(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(QueueCSVHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Description, e.ContextID}); err != nil {
			return 0, fmt.Errorf("failed to write queue entry %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(entries), nil
}

// ImportQueueCSV appends every row of r to the unmapped queue.
func (s *SQLiteStorage) ImportQueueCSV(ctx context.Context, r io.Reader) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	records, err := readCSV(r, QueueCSVHeader)
	if err != nil {
		return 0, err
	}

	var added int
	err = s.withTx(ctx, "import queue", func(tx *sql.Tx) error {
		for _, rec := range records {
			description := strings.TrimSpace(rec[0])
			if description == "" {
				continue
			}
			if _, err := s.enqueueTx(ctx, tx, description, strings.TrimSpace(rec[1])); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func readCSV(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	got, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(got[i], "\ufeff")) != name {
			return nil, fmt.Errorf("%w: got %v, want %v", ErrCSVHeader, got, header)
		}
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}
