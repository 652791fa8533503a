// Package remote calls the external task executor service over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pricebot/scraperd/internal/scraper"
)

// Config captures the executor service endpoint.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

const defaultTimeout = 90 * time.Second

// Executor delegates single-URL scrapes to the executor service. Ordinary
// scrape failures come back encoded in the outcome body; transport errors
// and 5xx responses surface as scraper.ErrExecutorUnavailable so the
// dispatch layer retries them.
type Executor struct {
	baseURL string
	client  *http.Client
}

type executeRequest struct {
	URL string `json:"url"`
}

// New constructs an Executor.
func New(cfg Config) (*Executor, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("executor base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Executor{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Execute posts one URL for scraping and returns its outcome.
func (e *Executor) Execute(ctx context.Context, url string) (scraper.ScrapeOutcome, error) {
	body, err := json.Marshal(executeRequest{URL: url})
	if err != nil {
		return scraper.ScrapeOutcome{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/execute", bytes.NewReader(body))
	if err != nil {
		return scraper.ScrapeOutcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return scraper.ScrapeOutcome{}, ctx.Err()
		}
		return scraper.ScrapeOutcome{}, fmt.Errorf("%w: %v", scraper.ErrExecutorUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusInternalServerError {
		return scraper.ScrapeOutcome{}, fmt.Errorf("%w: executor returned %d", scraper.ErrExecutorUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return scraper.ScrapeOutcome{}, fmt.Errorf("executor rejected request with %d", resp.StatusCode)
	}
	var outcome scraper.ScrapeOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return scraper.ScrapeOutcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	if outcome.URL == "" {
		outcome.URL = url
	}
	return outcome, nil
}
