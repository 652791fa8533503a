// Package sink provides result sink composition helpers.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/pricebot/scraperd/internal/scraper"
)

// ErrQueryUnsupported marks a backend that accepts appends but cannot serve
// reads (e.g. the append-only file).
var ErrQueryUnsupported = errors.New("result queries not supported by this sink")

// Fanout writes every outcome to all backends and reads from the first one
// that supports queries. An append fails if any backend fails, so the
// dispatch layer's retry covers the whole set.
type Fanout struct {
	backends []scraper.ResultSink
}

// NewFanout builds a Fanout over the given backends, in order.
func NewFanout(backends ...scraper.ResultSink) *Fanout {
	return &Fanout{backends: backends}
}

// Append forwards the outcome to every backend.
func (f *Fanout) Append(ctx context.Context, jobID string, outcome scraper.ScrapeOutcome) error {
	for _, b := range f.backends {
		if err := b.Append(ctx, jobID, outcome); err != nil {
			return fmt.Errorf("fanout append: %w", err)
		}
	}
	return nil
}

// Query returns the outcomes from the first backend that can serve them.
func (f *Fanout) Query(ctx context.Context, jobID string) ([]scraper.ScrapeOutcome, error) {
	for _, b := range f.backends {
		outcomes, err := b.Query(ctx, jobID)
		if errors.Is(err, ErrQueryUnsupported) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fanout query: %w", err)
		}
		return outcomes, nil
	}
	return nil, ErrQueryUnsupported
}
