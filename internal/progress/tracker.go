// Package progress maintains per-job outcome counters. The tracker is the
// single source of truth for job completion detection.
package progress

import (
	"sync"

	"github.com/pricebot/scraperd/internal/scraper"
)

// Tracker aggregates outcome counters for all known jobs. Counters for
// distinct jobs use independent locks, so concurrent recording across jobs
// never serializes.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*jobProgress
}

type jobProgress struct {
	mu        sync.Mutex
	total     int64
	succeeded int64
	failed    int64
	seen      map[string]struct{}
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*jobProgress)}
}

// Init fixes the total URL count for a job. It must be called exactly once,
// after discovery completes and before any outcome is recorded.
func (t *Tracker) Init(jobID string, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.jobs[jobID]; exists {
		return scraper.ErrAlreadyInitialized
	}
	t.jobs[jobID] = &jobProgress{
		total: int64(total),
		seen:  make(map[string]struct{}, total),
	}
	return nil
}

// RecordOutcome applies one URL outcome to the job's counters. Recording is
// idempotent per (jobID, url): a repeated outcome leaves the counters
// unchanged and returns applied=false. The returned counters reflect the
// state after this call.
func (t *Tracker) RecordOutcome(jobID, url string, success bool) (scraper.ProgressCounters, bool, error) {
	jp, err := t.lookup(jobID)
	if err != nil {
		return scraper.ProgressCounters{}, false, err
	}

	jp.mu.Lock()
	defer jp.mu.Unlock()
	if _, dup := jp.seen[url]; dup {
		return jp.countersLocked(), false, nil
	}
	if jp.succeeded+jp.failed >= jp.total {
		// An outcome for a URL that was never part of the discovered set
		// cannot push completed past total.
		return jp.countersLocked(), false, nil
	}
	jp.seen[url] = struct{}{}
	if success {
		jp.succeeded++
	} else {
		jp.failed++
	}
	return jp.countersLocked(), true, nil
}

// Snapshot returns the current counters for a job.
func (t *Tracker) Snapshot(jobID string) (scraper.ProgressCounters, error) {
	jp, err := t.lookup(jobID)
	if err != nil {
		return scraper.ProgressCounters{}, err
	}
	jp.mu.Lock()
	defer jp.mu.Unlock()
	return jp.countersLocked(), nil
}

func (t *Tracker) lookup(jobID string) (*jobProgress, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	jp, ok := t.jobs[jobID]
	if !ok {
		return nil, scraper.ErrNotFound
	}
	return jp, nil
}

func (jp *jobProgress) countersLocked() scraper.ProgressCounters {
	return scraper.ProgressCounters{
		Total:     jp.total,
		Completed: jp.succeeded + jp.failed,
		Succeeded: jp.succeeded,
		Failed:    jp.failed,
	}
}
