package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/artmap/internal/model"
)

// DefaultConcurrency bounds parallel inventory lookups.
const DefaultConcurrency = 4

// Searcher fetches one computer's inventory record.
type Searcher interface {
	Search(ctx context.Context, serial string) (model.ComputerInventory, error)
}

// Enqueuer appends an unmapped component to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, description, contextID string) (int64, error)
}

// SerialError records a computer that could not be imported.
type SerialError struct {
	Err    error
	Serial string
}

func (e SerialError) Error() string {
	return fmt.Sprintf("%s: %v", e.Serial, e.Err)
}

func (e SerialError) Unwrap() error {
	return e.Err
}

// ImportResult summarizes an import.
type ImportResult struct {
	Failures   []SerialError
	Computers  int
	Components int
	Enqueued   int
}

// Importer queues every component without an article number.
type Importer struct {
	searcher    Searcher
	queue       Enqueuer
	logger      *slog.Logger
	progress    func()
	concurrency int
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithConcurrency bounds parallel lookups.
func WithConcurrency(n int) ImporterOption {
	return func(i *Importer) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithProgress registers a callback invoked after each computer.
func WithProgress(fn func()) ImporterOption {
	return func(i *Importer) {
		i.progress = fn
	}
}

// WithImportLogger sets the logger.
func WithImportLogger(logger *slog.Logger) ImporterOption {
	return func(i *Importer) {
		i.logger = logger
	}
}

// NewImporter creates an importer.
func NewImporter(searcher Searcher, queue Enqueuer, opts ...ImporterOption) *Importer {
	i := &Importer{
		searcher:    searcher,
		queue:       queue,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import looks up every serial and enqueues its unmapped parts with the
// serial as context. A failing serial is recorded and skipped; only a
// cancelled context or a queue write failure stops the import.
func (i *Importer) Import(ctx context.Context, serials []string) (ImportResult, error) {
	var (
		mu     sync.Mutex
		result ImportResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for _, serial := range serials {
		serial = strings.TrimSpace(serial)
		if serial == "" {
			continue
		}
		g.Go(func() error {
			defer i.tick()

			computer, err := i.searcher.Search(gctx, serial)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				i.logger.Warn("Inventory lookup failed", "serial", serial, "error", err)
				mu.Lock()
				result.Failures = append(result.Failures, SerialError{Serial: serial, Err: err})
				mu.Unlock()
				return nil
			}

			unmapped := Unmapped(computer)
			for _, description := range unmapped {
				if _, err := i.queue.Enqueue(gctx, description, serial); err != nil {
					return fmt.Errorf("enqueue %q for %s: %w", description, serial, err)
				}
			}

			mu.Lock()
			result.Computers++
			result.Components += len(computer.Components)
			result.Enqueued += len(unmapped)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	sort.Slice(result.Failures, func(a, b int) bool {
		return result.Failures[a].Serial < result.Failures[b].Serial
	})
	if err != nil {
		return result, err
	}

	i.logger.Info("Inventory import complete",
		"computers", result.Computers,
		"components", result.Components,
		"enqueued", result.Enqueued,
		"failed", len(result.Failures))
	return result, nil
}

// FailureError joins the per-serial failures, or returns nil when there are none.
func (r ImportResult) FailureError() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (i *Importer) tick() {
	if i.progress != nil {
		i.progress()
	}
}

// Unmapped returns the descriptions in a record that still need an article
// number: the computer model itself and every such component.
func Unmapped(computer model.ComputerInventory) []string {
	var out []string
	if name := strings.TrimSpace(computer.ModelName); name != "" && model.MissingArticleNumber(computer.ArticleNumber) {
		out = append(out, name)
	}
	for _, c := range computer.Components {
		description := strings.TrimSpace(c.Description)
		if description == "" {
			continue
		}
		if model.MissingArticleNumber(c.ArticleNumber) {
			out = append(out, description)
		}
	}
	return out
}
