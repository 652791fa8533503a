// Package memory provides an in-process worker environment for development
// and tests.
package memory

import (
	"context"
	"sync"
)

// Environment tracks a simulated worker count.
type Environment struct {
	mu       sync.Mutex
	workers  int
	setErr   error
	countErr error
	history  []int
}

// New constructs an Environment with the given initial worker count.
func New(initial int) *Environment {
	return &Environment{workers: initial}
}

// FailSet makes SetWorkerCount return the given error until cleared.
func (e *Environment) FailSet(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setErr = err
}

// FailCount makes WorkerCount return the given error until cleared.
func (e *Environment) FailCount(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.countErr = err
}

// SetWorkerCount records the requested count.
func (e *Environment) SetWorkerCount(_ context.Context, n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setErr != nil {
		return e.setErr
	}
	e.workers = n
	e.history = append(e.history, n)
	return nil
}

// WorkerCount returns the current simulated count.
func (e *Environment) WorkerCount(_ context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.countErr != nil {
		return 0, e.countErr
	}
	return e.workers, nil
}

// History returns every count passed to SetWorkerCount, in order.
func (e *Environment) History() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.history...)
}
