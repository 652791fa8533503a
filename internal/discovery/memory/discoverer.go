// Package memory provides a scripted discoverer for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/pricebot/scraperd/internal/scraper"
)

// Discoverer returns preconfigured URL sets per domain.
type Discoverer struct {
	mu       sync.RWMutex
	byDomain map[string][]string
	err      error
}

// New constructs an empty Discoverer.
func New() *Discoverer {
	return &Discoverer{byDomain: make(map[string][]string)}
}

// SetURLs scripts the URL expansion for one domain.
func (d *Discoverer) SetURLs(domain string, urls []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byDomain[domain] = append([]string(nil), urls...)
}

// Fail makes every subsequent Discover call return the given error.
func (d *Discoverer) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Discover concatenates the scripted URL sets in domain order.
func (d *Discoverer) Discover(_ context.Context, domains []string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, &scraper.DiscoveryError{Reason: "scripted failure", Err: d.err}
	}
	var urls []string
	for _, domain := range domains {
		urls = append(urls, d.byDomain[domain]...)
	}
	return urls, nil
}
