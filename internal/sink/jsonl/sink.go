// Package jsonl implements the append-only line-delimited result file.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pricebot/scraperd/internal/scraper"
	"github.com/pricebot/scraperd/internal/sink"
)

// Sink appends one JSON line per outcome to a single file. Writes are
// serialized so concurrent appends never interleave lines.
type Sink struct {
	mu   sync.Mutex
	file *os.File
}

type line struct {
	JobID      string                `json:"job_id"`
	RecordedAt time.Time             `json:"recorded_at"`
	Outcome    scraper.ScrapeOutcome `json:"outcome"`
}

// New opens (or creates) the results file in append mode.
func New(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	return &Sink{file: f}, nil
}

// Append writes the outcome as one JSON line.
func (s *Sink) Append(_ context.Context, jobID string, outcome scraper.ScrapeOutcome) error {
	data, err := json.Marshal(line{
		JobID:      jobID,
		RecordedAt: time.Now().UTC(),
		Outcome:    outcome,
	})
	if err != nil {
		return fmt.Errorf("marshal outcome line: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("append outcome line: %w", err)
	}
	return nil
}

// Query is unsupported; the file is write-only from the orchestrator's side.
func (s *Sink) Query(context.Context, string) ([]scraper.ScrapeOutcome, error) {
	return nil, sink.ErrQueryUnsupported
}

// Close flushes and closes the results file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close results file: %w", err)
	}
	return nil
}
