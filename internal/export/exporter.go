// Package export archives finished job results to blob storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pricebot/scraperd/internal/scraper"
)

// Exporter snapshots a job's outcomes from the result sink into a JSONL
// object under jobs/<job_id>/results.jsonl.
type Exporter struct {
	sink   scraper.ResultSink
	store  scraper.BlobStore
	logger *zap.Logger
}

// New constructs an Exporter.
func New(sink scraper.ResultSink, store scraper.BlobStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{sink: sink, store: store, logger: logger}
}

// Export writes the job's full outcome set as one JSONL object. Exports
// run after the job reaches a terminal state, so the snapshot is stable.
func (e *Exporter) Export(ctx context.Context, jobID string) error {
	outcomes, err := e.sink.Query(ctx, jobID)
	if err != nil {
		return fmt.Errorf("query outcomes for export: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, outcome := range outcomes {
		if err := enc.Encode(outcome); err != nil {
			return fmt.Errorf("encode outcome line: %w", err)
		}
	}

	path := fmt.Sprintf("jobs/%s/results.jsonl", jobID)
	uri, err := e.store.PutObject(ctx, path, "application/x-ndjson", buf.Bytes())
	if err != nil {
		return fmt.Errorf("write archive object: %w", err)
	}
	e.logger.Info("archived job results",
		zap.String("job_id", jobID),
		zap.Int("outcomes", len(outcomes)),
		zap.String("uri", uri),
	)
	return nil
}
