// Package memory provides an in-memory result sink for development and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/pricebot/scraperd/internal/scraper"
)

// Sink stores outcomes per job in memory.
type Sink struct {
	mu       sync.RWMutex
	outcomes map[string][]scraper.ScrapeOutcome

	failAppends int
}

// New constructs an empty Sink.
func New() *Sink {
	return &Sink{outcomes: make(map[string][]scraper.ScrapeOutcome)}
}

// Append records the outcome for the job.
func (s *Sink) Append(_ context.Context, jobID string, outcome scraper.ScrapeOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppends > 0 {
		s.failAppends--
		return context.DeadlineExceeded
	}
	s.outcomes[jobID] = append(s.outcomes[jobID], outcome)
	return nil
}

// Query returns a copy of the recorded outcomes for the job.
func (s *Sink) Query(_ context.Context, jobID string) ([]scraper.ScrapeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scraper.ScrapeOutcome, len(s.outcomes[jobID]))
	copy(out, s.outcomes[jobID])
	return out, nil
}

// FailNextAppends makes the next n Append calls fail; used to exercise the
// dispatch layer's retry path in tests.
func (s *Sink) FailNextAppends(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppends = n
}
