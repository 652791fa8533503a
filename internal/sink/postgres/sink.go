// Package postgres implements the relational result sink on pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricebot/scraperd/internal/scraper"
)

// DB is the subset of pgxpool.Pool the sink needs; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Sink persists outcomes as rows keyed by (job_id, url). Appends are
// idempotent at the storage level: a repeated outcome for the same URL is a
// no-op, matching the tracker's at-most-once counting.
//
// Expected schema:
//
//	CREATE TABLE scrape_results (
//	    job_id      TEXT        NOT NULL,
//	    url         TEXT        NOT NULL,
//	    success     BOOLEAN     NOT NULL,
//	    payload     JSONB,
//	    error_text  TEXT,
//	    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (job_id, url)
//	);
type Sink struct {
	db   DB
	pool *pgxpool.Pool
}

// New connects a pool for the given DSN.
func New(ctx context.Context, dsn string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Sink{db: pool, pool: pool}, nil
}

// Close releases the underlying connection pool, if this sink owns one.
func (s *Sink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// NewWithDB wraps an existing pool or mock.
func NewWithDB(db DB) *Sink {
	return &Sink{db: db}
}

// Append inserts the outcome row, ignoring duplicates.
func (s *Sink) Append(ctx context.Context, jobID string, outcome scraper.ScrapeOutcome) error {
	query := `
		INSERT INTO scrape_results (job_id, url, success, payload, error_text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, url) DO NOTHING;
	`
	var payload any
	if len(outcome.Payload) > 0 {
		payload = []byte(outcome.Payload)
	}
	if _, err := s.db.Exec(ctx, query, jobID, outcome.URL, outcome.Success, payload, nullableText(outcome.Error)); err != nil {
		return fmt.Errorf("insert outcome row: %w", err)
	}
	return nil
}

// Query returns the job's outcomes in recording order.
func (s *Sink) Query(ctx context.Context, jobID string) ([]scraper.ScrapeOutcome, error) {
	query := `
		SELECT url, success, payload, error_text
		FROM scrape_results
		WHERE job_id = $1
		ORDER BY recorded_at;
	`
	rows, err := s.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("query outcome rows: %w", err)
	}
	defer rows.Close()

	var outcomes []scraper.ScrapeOutcome
	for rows.Next() {
		var (
			outcome scraper.ScrapeOutcome
			payload []byte
			errText *string
		)
		if err := rows.Scan(&outcome.URL, &outcome.Success, &payload, &errText); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		if len(payload) > 0 {
			outcome.Payload = payload
		}
		if errText != nil {
			outcome.Error = *errText
		}
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	return outcomes, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
