// Package memory provides a scripted executor for development and tests.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pricebot/scraperd/internal/scraper"
)

// Executor returns scripted outcomes per URL. Unscripted URLs succeed with
// an empty payload.
type Executor struct {
	mu       sync.RWMutex
	failures map[string]string
	errs     map[string]error

	delay    func(url string)
	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
}

// New constructs an Executor.
func New() *Executor {
	return &Executor{
		failures: make(map[string]string),
		errs:     make(map[string]error),
	}
}

// FailURL scripts a scrape failure (encoded in the outcome) for one URL.
func (e *Executor) FailURL(url, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[url] = reason
}

// ErrURL scripts an infrastructure error return for one URL. The script is
// consumed: later calls for the same URL succeed.
func (e *Executor) ErrURL(url string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs[url] = err
}

// SetDelay installs a hook invoked before each call, letting tests hold
// executions open.
func (e *Executor) SetDelay(fn func(url string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = fn
}

// Calls returns how many Execute calls were made.
func (e *Executor) Calls() int64 {
	return e.calls.Load()
}

// MaxInFlight returns the highest observed concurrent call count.
func (e *Executor) MaxInFlight() int64 {
	return e.maxSeen.Load()
}

// Execute returns the scripted outcome for the URL.
func (e *Executor) Execute(ctx context.Context, url string) (scraper.ScrapeOutcome, error) {
	e.calls.Add(1)
	cur := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		max := e.maxSeen.Load()
		if cur <= max || e.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	e.mu.RLock()
	delay := e.delay
	e.mu.RUnlock()
	if delay != nil {
		delay(url)
	}
	if ctx.Err() != nil {
		return scraper.ScrapeOutcome{}, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.errs[url]; ok {
		delete(e.errs, url)
		return scraper.ScrapeOutcome{}, err
	}
	if reason, ok := e.failures[url]; ok {
		return scraper.ScrapeOutcome{URL: url, Success: false, Error: reason}, nil
	}
	return scraper.ScrapeOutcome{URL: url, Success: true}, nil
}
