// Package autoscaler reconciles the worker process pool against the number
// of active jobs.
package autoscaler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pricebot/scraperd/internal/metrics"
	"github.com/pricebot/scraperd/internal/scraper"
)

// Config fixes the reconciliation parameters.
type Config struct {
	// Ratio is the worker processes provisioned per active job.
	Ratio int
	// Floor is the minimum worker count while any job is active; the pool is
	// driven to the floor when no job is active.
	Floor int
	// Ceiling caps the pool. Zero means uncapped.
	Ceiling int
	// Interval is the reconciliation tick period.
	Interval time.Duration
}

const (
	defaultRatio    = 1
	defaultInterval = 5 * time.Second
)

// ActiveCounter is the autoscaler's read-only view of the job controller.
type ActiveCounter interface {
	ActiveJobCount() int
}

// Autoscaler is a level-triggered reconciler: each tick recomputes the
// desired worker count from scratch and corrects any drift. Ticks are safe
// to run redundantly, and a failed or missed tick self-corrects on the next
// one.
type Autoscaler struct {
	jobs    ActiveCounter
	env     scraper.Environment
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New constructs an Autoscaler.
func New(jobs ActiveCounter, env scraper.Environment, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Autoscaler {
	if cfg.Ratio <= 0 {
		cfg.Ratio = defaultRatio
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autoscaler{
		jobs:    jobs,
		env:     env,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Run blocks, reconciling on every tick until the context finishes. The loop
// runs on its own timer and is never blocked by a stalled job.
func (a *Autoscaler) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Reconcile(ctx)
		}
	}
}

// Reconcile performs one tick: observe active jobs and running workers,
// compute the desired pool size, and issue a single fire-and-forget scaling
// request if they differ. Environment failures are logged and left for the
// next tick.
func (a *Autoscaler) Reconcile(ctx context.Context) {
	active := a.jobs.ActiveJobCount()
	desired := a.desiredFor(active)

	running, err := a.env.WorkerCount(ctx)
	if err != nil {
		a.logger.Warn("worker count unavailable", zap.Error(err))
		return
	}
	a.metrics.ObserveReconcile(desired, running)

	if desired == running {
		return
	}
	if err := a.env.SetWorkerCount(ctx, desired); err != nil {
		a.metrics.ObserveScaleFailure()
		a.logger.Warn("scaling request failed",
			zap.Int("desired", desired),
			zap.Int("running", running),
			zap.Error(err),
		)
		return
	}
	a.metrics.ObserveScaleRequest(desired, running)
	a.logger.Info("worker pool scaled",
		zap.Int("active_jobs", active),
		zap.Int("running", running),
		zap.Int("desired", desired),
	)
}

// desiredFor maps the active job count to a worker count, clamped to the
// configured floor and ceiling.
func (a *Autoscaler) desiredFor(active int) int {
	if active == 0 {
		return a.cfg.Floor
	}
	desired := active * a.cfg.Ratio
	if desired < a.cfg.Floor {
		desired = a.cfg.Floor
	}
	if a.cfg.Ceiling > 0 && desired > a.cfg.Ceiling {
		desired = a.cfg.Ceiling
	}
	return desired
}
