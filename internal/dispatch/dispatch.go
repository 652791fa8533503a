// Package dispatch fans discovered URLs out to the task executor through a
// bounded concurrency pool, honoring pause and cancel signals.
package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricebot/scraperd/internal/controller"
	"github.com/pricebot/scraperd/internal/metrics"
	"github.com/pricebot/scraperd/internal/progress"
	"github.com/pricebot/scraperd/internal/scraper"
)

// Config controls per-job dispatch behavior.
type Config struct {
	// PoolSize bounds concurrent in-flight executor calls per job.
	PoolSize int
	// CallTimeout is the defensive watchdog applied to each executor call.
	// Expiry is treated as a failed outcome for that URL.
	CallTimeout time.Duration
	// ExecRetries bounds re-attempts when the executor is unavailable.
	ExecRetries int
	// ExecBackoff is the base delay between executor re-attempts.
	ExecBackoff time.Duration
	// SinkRetries bounds local retries of result sink appends.
	SinkRetries int
	// SinkBackoff is the base delay between sink append retries.
	SinkBackoff time.Duration
}

const (
	defaultPoolSize    = 8
	defaultCallTimeout = 2 * time.Minute
	defaultExecRetries = 2
	defaultExecBackoff = 250 * time.Millisecond
	defaultSinkRetries = 3
	defaultSinkBackoff = 100 * time.Millisecond
)

// Layer runs one dispatch loop per started job. Each loop owns a bounded
// worker pool; pools of distinct jobs are independent.
type Layer struct {
	exec    scraper.Executor
	sink    scraper.ResultSink
	tracker *progress.Tracker
	ctrl    *controller.Controller
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger

	baseCtx context.Context
	wg      sync.WaitGroup
}

// New constructs a Layer. The base context bounds all dispatch work; ending
// it stops every loop.
func New(
	baseCtx context.Context,
	exec scraper.Executor,
	sink scraper.ResultSink,
	tracker *progress.Tracker,
	ctrl *controller.Controller,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Layer {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.ExecRetries < 0 {
		cfg.ExecRetries = defaultExecRetries
	}
	if cfg.ExecBackoff <= 0 {
		cfg.ExecBackoff = defaultExecBackoff
	}
	if cfg.SinkRetries < 0 {
		cfg.SinkRetries = defaultSinkRetries
	}
	if cfg.SinkBackoff <= 0 {
		cfg.SinkBackoff = defaultSinkBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Layer{
		exec:    exec,
		sink:    sink,
		tracker: tracker,
		ctrl:    ctrl,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Start launches the dispatch loop for one job. It implements
// controller.Dispatcher and returns immediately.
func (l *Layer) Start(jobID string, urls []string) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(jobID, urls)
	}()
}

// Wait blocks until every started dispatch loop has drained. Intended for
// shutdown and tests.
func (l *Layer) Wait() {
	l.wg.Wait()
}

func (l *Layer) run(jobID string, urls []string) {
	gate, err := l.ctrl.DispatchGate(jobID)
	if err != nil {
		l.logger.Error("dispatch gate unavailable", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	sem := make(chan struct{}, l.cfg.PoolSize)
	var wg sync.WaitGroup
	for _, url := range urls {
		// Suspension point: blocks while paused, aborts on cancel.
		if err := gate.AwaitRunnable(l.baseCtx); err != nil {
			if errors.Is(err, controller.ErrJobCancelled) {
				l.logger.Info("dispatch stopped by cancel", zap.String("job_id", jobID))
			}
			break
		}
		acquired := false
		select {
		case sem <- struct{}{}:
			acquired = true
		case <-gate.Cancelled():
		case <-l.baseCtx.Done():
		}
		if !acquired {
			break
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer func() { <-sem }()
			l.processURL(jobID, u)
		}(url)
	}

	// Drain in-flight calls before reporting the loop done.
	wg.Wait()
	l.ctrl.FinishDispatch(jobID)
	l.logger.Debug("dispatch loop drained", zap.String("job_id", jobID))
}

func (l *Layer) processURL(jobID, url string) {
	outcome := l.execute(jobID, url)
	l.record(jobID, outcome)
}

// execute invokes the executor under the watchdog, retrying only
// infrastructure-level unavailability. Every path yields a final outcome.
func (l *Layer) execute(jobID, url string) scraper.ScrapeOutcome {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.ExecRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(l.cfg.ExecBackoff, attempt)
			select {
			case <-time.After(delay):
			case <-l.baseCtx.Done():
				return failedOutcome(url, l.baseCtx.Err().Error())
			}
		}

		callCtx, cancel := context.WithTimeout(l.baseCtx, l.cfg.CallTimeout)
		outcome, err := l.exec.Execute(callCtx, url)
		cancel()
		if err == nil {
			if outcome.URL == "" {
				outcome.URL = url
			}
			return outcome
		}
		if errors.Is(err, context.DeadlineExceeded) {
			l.logger.Warn("executor watchdog expired",
				zap.String("job_id", jobID), zap.String("url", url))
			return failedOutcome(url, "executor call exceeded watchdog timeout")
		}
		if !errors.Is(err, scraper.ErrExecutorUnavailable) {
			return failedOutcome(url, err.Error())
		}
		lastErr = err
		l.logger.Warn("executor unavailable, retrying",
			zap.String("job_id", jobID),
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
		)
	}
	return failedOutcome(url, "executor unavailable: "+lastErr.Error())
}

// record forwards the outcome to the tracker and the result sink. The
// tracker gates idempotence: a duplicate outcome touches neither counters
// nor sink. A sink append that exhausts its retries becomes a job warning,
// never a job failure.
func (l *Layer) record(jobID string, outcome scraper.ScrapeOutcome) {
	counters, applied, err := l.tracker.RecordOutcome(jobID, outcome.URL, outcome.Success)
	if err != nil {
		l.logger.Error("record outcome failed",
			zap.String("job_id", jobID), zap.String("url", outcome.URL), zap.Error(err))
		return
	}
	if !applied {
		return
	}
	l.metrics.ObserveOutcome(outcome.Success)

	if err := l.appendWithRetry(jobID, outcome); err != nil {
		l.metrics.ObserveSinkFailure()
		l.ctrl.AddWarning(jobID, "result sink append failed for "+outcome.URL+": "+err.Error())
	}

	l.ctrl.NoteProgress(jobID, counters)
}

func (l *Layer) appendWithRetry(jobID string, outcome scraper.ScrapeOutcome) error {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.SinkRetries; attempt++ {
		if attempt > 0 {
			l.metrics.ObserveSinkRetry()
			delay := backoffDelay(l.cfg.SinkBackoff, attempt)
			select {
			case <-time.After(delay):
			case <-l.baseCtx.Done():
				return l.baseCtx.Err()
			}
		}
		ctx, cancel := context.WithTimeout(l.baseCtx, 10*time.Second)
		lastErr = l.sink.Append(ctx, jobID, outcome)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// backoffDelay doubles the base per attempt and adds up to 50% random
// jitter so concurrent retries against the same backend spread out.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	return delay + time.Duration(rand.Int63n(int64(delay/2+1)))
}

func failedOutcome(url, reason string) scraper.ScrapeOutcome {
	return scraper.ScrapeOutcome{URL: url, Success: false, Error: reason}
}
