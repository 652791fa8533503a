package scraper

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by controller and tracker operations.
var (
	// ErrNotFound signals an operation against an unknown job ID.
	ErrNotFound = errors.New("job not found")
	// ErrAlreadyInitialized signals a second Init for the same job.
	ErrAlreadyInitialized = errors.New("progress already initialized")
	// ErrExecutorUnavailable marks infrastructure-level executor failures,
	// which the dispatch layer retries rather than recording as outcomes.
	ErrExecutorUnavailable = errors.New("executor unavailable")
)

// DiscoveryError reports that URL discovery failed for a submission. The job
// never reaches RUNNING and no job record is retained.
type DiscoveryError struct {
	Reason string
	Err    error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("discovery failed: %s", e.Reason)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
