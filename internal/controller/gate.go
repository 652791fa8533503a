package controller

import (
	"context"
	"errors"
	"fmt"
)

// ErrJobCancelled tells a dispatch loop to stop issuing new work.
var ErrJobCancelled = errors.New("job cancelled")

// Gate is the dispatch layer's view of one job's pause/cancel state. A
// dispatch worker consults it at its suspension points: before issuing each
// URL.
type Gate struct {
	js *jobState
}

// DispatchGate returns the gate for a job.
func (c *Controller) DispatchGate(jobID string) (*Gate, error) {
	js, err := c.lookup(jobID)
	if err != nil {
		return nil, fmt.Errorf("dispatch gate: %w", err)
	}
	return &Gate{js: js}, nil
}

// Cancelled exposes the cancellation signal for in-flight call teardown.
func (g *Gate) Cancelled() <-chan struct{} {
	g.js.mu.Lock()
	defer g.js.mu.Unlock()
	return g.js.cancelCh
}

// AwaitRunnable blocks while the job is paused and returns nil once dispatch
// may proceed. It returns ErrJobCancelled when the job reached a terminal
// state, or the context error if ctx ends first. The wait parks on a
// channel; it never spins.
func (g *Gate) AwaitRunnable(ctx context.Context) error {
	for {
		g.js.mu.Lock()
		status := g.js.job.Status
		resume := g.js.resumeCh
		cancel := g.js.cancelCh
		g.js.mu.Unlock()

		if status.Terminal() {
			return ErrJobCancelled
		}
		if resume == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cancel:
			return ErrJobCancelled
		case <-resume:
		}
	}
}
