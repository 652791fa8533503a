package autoscaler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricebot/scraperd/internal/autoscaler"
	envmemory "github.com/pricebot/scraperd/internal/env/memory"
)

type fakeCounter struct {
	active atomic.Int64
}

func (f *fakeCounter) ActiveJobCount() int {
	return int(f.active.Load())
}

func (f *fakeCounter) set(n int) {
	f.active.Store(int64(n))
}

func TestReconcileScalesWithActiveJobs(t *testing.T) {
	t.Parallel()

	jobs := &fakeCounter{}
	env := envmemory.New(0)
	scaler := autoscaler.New(jobs, env, autoscaler.Config{Ratio: 5, Floor: 1, Ceiling: 100}, nil, nil)
	ctx := context.Background()

	// Two concurrent jobs at ratio 5.
	jobs.set(2)
	scaler.Reconcile(ctx)
	workers, err := env.WorkerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, workers)

	// One job finishes.
	jobs.set(1)
	scaler.Reconcile(ctx)
	workers, err = env.WorkerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, workers)

	// Idle: drive the pool to the floor.
	jobs.set(0)
	scaler.Reconcile(ctx)
	workers, err = env.WorkerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, workers)
}

func TestReconcileIsIdempotentAtLevel(t *testing.T) {
	t.Parallel()

	jobs := &fakeCounter{}
	env := envmemory.New(0)
	scaler := autoscaler.New(jobs, env, autoscaler.Config{Ratio: 2, Ceiling: 50}, nil, nil)
	ctx := context.Background()

	jobs.set(3)
	scaler.Reconcile(ctx)
	scaler.Reconcile(ctx)
	scaler.Reconcile(ctx)

	// Only the first tick changed anything.
	assert.Equal(t, []int{6}, env.History())
}

func TestReconcileClampsToBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     autoscaler.Config
		active  int
		desired int
	}{
		{"floor applies under low load", autoscaler.Config{Ratio: 1, Floor: 4, Ceiling: 10}, 1, 4},
		{"ceiling caps burst", autoscaler.Config{Ratio: 10, Floor: 1, Ceiling: 8}, 5, 8},
		{"zero ceiling means uncapped", autoscaler.Config{Ratio: 10, Floor: 1}, 5, 50},
		{"idle returns to floor", autoscaler.Config{Ratio: 3, Floor: 2, Ceiling: 10}, 0, 2},
		{"idle with zero floor drains pool", autoscaler.Config{Ratio: 3, Ceiling: 10}, 0, 0},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			jobs := &fakeCounter{}
			jobs.set(tc.active)
			env := envmemory.New(-1) // sentinel so every case issues a set
			scaler := autoscaler.New(jobs, env, tc.cfg, nil, nil)

			scaler.Reconcile(context.Background())
			workers, err := env.WorkerCount(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.desired, workers)
		})
	}
}

func TestReconcileToleratesEnvironmentFailures(t *testing.T) {
	t.Parallel()

	jobs := &fakeCounter{}
	jobs.set(2)
	env := envmemory.New(0)
	scaler := autoscaler.New(jobs, env, autoscaler.Config{Ratio: 3, Ceiling: 20}, nil, nil)
	ctx := context.Background()

	// Observation failure: skip the tick entirely.
	env.FailCount(errors.New("docker daemon unreachable"))
	scaler.Reconcile(ctx)
	assert.Empty(t, env.History())

	// Scaling failure: no state change, next tick retries.
	env.FailCount(nil)
	env.FailSet(errors.New("compose up failed"))
	scaler.Reconcile(ctx)
	assert.Empty(t, env.History())

	env.FailSet(nil)
	scaler.Reconcile(ctx)
	assert.Equal(t, []int{6}, env.History())
}
