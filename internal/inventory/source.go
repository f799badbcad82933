package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Veraticus/artmap/internal/common"
)

// ComputerSource lists serials of computers finished in a time range.
type ComputerSource interface {
	FinishedSerials(ctx context.Context, from, to time.Time) ([]string, error)
}

// Queryer is the subset of pgxpool.Pool the source needs.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the computers table of the production database.
type PostgresSource struct {
	db     Queryer
	closer func()
}

// finishedStatus marks a computer that left production.
const finishedStatus = "Fertig"

// ConnectPostgres opens a pool to dsn.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresSource, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: inventory.computers_dsn", common.ErrMissingConfig)
	}
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect computers database: %w", err)
	}
	return &PostgresSource{db: pool, closer: pool.Close}, nil
}

// NewPostgresSource wraps an existing pool or transaction.
func NewPostgresSource(db Queryer) *PostgresSource {
	return &PostgresSource{db: db}
}

// Close releases the pool opened by ConnectPostgres.
func (s *PostgresSource) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// FinishedSerials returns the serials of finished computers with disk
// information whose finished_time falls in [from, to).
func (s *PostgresSource) FinishedSerials(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT customer_serial
		FROM computers
		WHERE finished_time >= $1 AND finished_time < $2
			AND full_disk_info IS NOT NULL
			AND customer_serial IS NOT NULL
			AND status = $3
		ORDER BY finished_time, customer_serial
	`, from, to, finishedStatus)
	if err != nil {
		return nil, fmt.Errorf("query finished computers: %w", err)
	}
	defer rows.Close()

	var serials []string
	for rows.Next() {
		var serial string
		if err := rows.Scan(&serial); err != nil {
			return nil, fmt.Errorf("scan serial: %w", err)
		}
		serials = append(serials, serial)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finished computers: %w", err)
	}
	return serials, nil
}

// StaticSource returns a fixed serial list regardless of the range.
type StaticSource []string

// FinishedSerials returns the list.
func (s StaticSource) FinishedSerials(context.Context, time.Time, time.Time) ([]string, error) {
	return append([]string(nil), s...), nil
}

// DayRange returns the [start, end) range covering the calendar day of t.
func DayRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
