// Package remote calls the external URL discovery service over HTTP.
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

// Config captures the discovery service endpoint.
type Config struct {
	// BaseURL is the root of the discovery service, e.g. http://discovery:9090.
	BaseURL string
	// Timeout bounds one discovery call; sitemap expansion can be slow.
	Timeout time.Duration
}

const defaultTimeout = 5 * time.Minute

// Discoverer expands seed domains by delegating to the discovery service.
type Discoverer struct {
	baseURL string
	client  *http.Client
}

type discoverRequest struct {
	Domains []string `json:"domains"`
}

type discoverResponse struct {
	URLs []string `json:"urls"`
}

// New constructs a Discoverer.
func New(cfg Config) (*Discoverer, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("discovery base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Discoverer{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Discover posts the seed domains and returns the discovered URL set in
// service order. Any failure is reported as *scraper.DiscoveryError.
func (d *Discoverer) Discover(ctx context.Context, domains []string) ([]string, error) {
	body, err := json.Marshal(discoverRequest{Domains: domains})
	if err != nil {
		return nil, &scraper.DiscoveryError{Reason: "encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/discover", bytes.NewReader(body))
	if err != nil {
		return nil, &scraper.DiscoveryError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &scraper.DiscoveryError{Reason: "discovery service unreachable", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &scraper.DiscoveryError{
			Reason: fmt.Sprintf("discovery service returned %d", resp.StatusCode),
		}
	}
	var decoded discoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &scraper.DiscoveryError{Reason: "decode response", Err: err}
	}
	return decoded.URLs, nil
}
