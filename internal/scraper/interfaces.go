package scraper

import (
	"context"
	"time"
)

// Discoverer expands seed domains into the full ordered set of URLs to
// scrape. Failures are reported as *DiscoveryError.
type Discoverer interface {
	Discover(ctx context.Context, domains []string) ([]string, error)
}

// Executor performs the scrape/extraction for a single URL. Ordinary scrape
// failures are encoded in the outcome; an error return is reserved for
// infrastructure problems and wraps ErrExecutorUnavailable.
type Executor interface {
	Execute(ctx context.Context, url string) (ScrapeOutcome, error)
}

// ResultSink is durable, append-only storage for outcomes keyed by job and
// URL.
type ResultSink interface {
	Append(ctx context.Context, jobID string, outcome ScrapeOutcome) error
	Query(ctx context.Context, jobID string) ([]ScrapeOutcome, error)
}

// Environment is the provisioning primitive the autoscaler reconciles
// against.
type Environment interface {
	SetWorkerCount(ctx context.Context, desired int) error
	WorkerCount(ctx context.Context) (int, error)
}

// Publisher pushes job lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
