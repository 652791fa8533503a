// Package controller owns the job lifecycle state machine and mediates
// between the dispatch layer and the progress tracker.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricebot/scraperd/internal/metrics"
	"github.com/pricebot/scraperd/internal/progress"
	"github.com/pricebot/scraperd/internal/scraper"
)

// Dispatcher consumes the discovered URL list for a job. The dispatch layer
// implements it; the controller only hands work over.
type Dispatcher interface {
	Start(jobID string, urls []string)
}

// Archiver exports a job's results once the job reaches a terminal state.
type Archiver interface {
	Export(ctx context.Context, jobID string) error
}

// Options wires the controller's collaborators. Discoverer, Tracker, Sink,
// Clock, and IDGen are required; the rest are optional.
type Options struct {
	Discoverer   scraper.Discoverer
	Tracker      *progress.Tracker
	Sink         scraper.ResultSink
	Clock        scraper.Clock
	IDGen        scraper.IDGenerator
	Publisher    scraper.Publisher
	PublishTopic string
	Archiver     Archiver
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Controller tracks every submitted job and enforces the allowed lifecycle
// transitions. All state transitions for one job are serialized on that
// job's lock; distinct jobs never contend.
type Controller struct {
	mu   sync.RWMutex
	jobs map[string]*jobState

	discoverer   scraper.Discoverer
	tracker      *progress.Tracker
	sink         scraper.ResultSink
	clock        scraper.Clock
	idGen        scraper.IDGenerator
	publisher    scraper.Publisher
	publishTopic string
	archiver     Archiver
	metrics      *metrics.Metrics
	dispatcher   Dispatcher
	logger       *zap.Logger
}

type jobState struct {
	mu       sync.Mutex
	job      scraper.Job
	resumeCh chan struct{} // non-nil while paused; closed on resume
	cancelCh chan struct{} // closed on cancel
}

// New constructs a Controller. Call Bind before submitting jobs.
func New(opts Options) (*Controller, error) {
	if opts.Discoverer == nil || opts.Tracker == nil || opts.Sink == nil {
		return nil, errors.New("discoverer, tracker, and sink are required")
	}
	if opts.Clock == nil || opts.IDGen == nil {
		return nil, errors.New("clock and id generator are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		jobs:         make(map[string]*jobState),
		discoverer:   opts.Discoverer,
		tracker:      opts.Tracker,
		sink:         opts.Sink,
		clock:        opts.Clock,
		idGen:        opts.IDGen,
		publisher:    opts.Publisher,
		publishTopic: opts.PublishTopic,
		archiver:     opts.Archiver,
		metrics:      opts.Metrics,
		logger:       logger,
	}, nil
}

// Bind attaches the dispatch layer. It must happen before the first Submit;
// the two-step wiring breaks the construction cycle between controller and
// dispatcher.
func (c *Controller) Bind(d Dispatcher) {
	c.dispatcher = d
}

// Submit materializes the URL set for the given seed domains and starts
// dispatch. A discovery failure is returned synchronously as
// *scraper.DiscoveryError and leaves no job record behind.
func (c *Controller) Submit(ctx context.Context, domains []string) (string, error) {
	if len(domains) == 0 {
		return "", errors.New("at least one seed domain required")
	}
	if c.dispatcher == nil {
		return "", errors.New("controller is not bound to a dispatcher")
	}

	jobID, err := c.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}

	js := &jobState{
		job: scraper.Job{
			ID:        jobID,
			Domains:   append([]string(nil), domains...),
			Status:    scraper.JobStatusPending,
			Submitted: c.clock.Now(),
		},
		cancelCh: make(chan struct{}),
	}
	c.mu.Lock()
	c.jobs[jobID] = js
	c.mu.Unlock()
	c.metrics.ObserveTransition(string(scraper.JobStatusPending))
	c.metrics.SetActiveJobs(c.ActiveJobCount())

	urls, err := c.discoverer.Discover(ctx, domains)
	if err != nil {
		c.mu.Lock()
		delete(c.jobs, jobID)
		c.mu.Unlock()
		c.metrics.SetActiveJobs(c.ActiveJobCount())
		var discErr *scraper.DiscoveryError
		if errors.As(err, &discErr) {
			return "", discErr
		}
		return "", &scraper.DiscoveryError{Reason: "discovery adapter error", Err: err}
	}

	urls = dedupe(urls)
	if err := c.tracker.Init(jobID, len(urls)); err != nil {
		c.mu.Lock()
		delete(c.jobs, jobID)
		c.mu.Unlock()
		c.metrics.SetActiveJobs(c.ActiveJobCount())
		return "", fmt.Errorf("seed progress tracker: %w", err)
	}

	if len(urls) == 0 {
		// Empty discovery result: nothing to dispatch, trivially complete.
		c.logger.Info("job discovered no urls", zap.String("job_id", jobID))
		js.mu.Lock()
		c.finishLocked(js, scraper.JobStatusCompleted, "")
		js.mu.Unlock()
		return jobID, nil
	}

	js.mu.Lock()
	js.job.Status = scraper.JobStatusRunning
	js.mu.Unlock()
	c.metrics.ObserveTransition(string(scraper.JobStatusRunning))

	c.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.Int("domains", len(domains)),
		zap.Int("urls", len(urls)),
	)
	c.dispatcher.Start(jobID, urls)
	return jobID, nil
}

// Pause suspends further dispatch for a running job. Pausing a paused or
// terminal job is a no-op, not an error. The resulting status is returned.
func (c *Controller) Pause(jobID string) (scraper.JobStatus, error) {
	js, err := c.lookup(jobID)
	if err != nil {
		return "", err
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.job.Status != scraper.JobStatusRunning {
		return js.job.Status, nil
	}
	js.job.Status = scraper.JobStatusPaused
	js.resumeCh = make(chan struct{})
	c.metrics.ObserveTransition(string(scraper.JobStatusPaused))
	c.logger.Info("job paused", zap.String("job_id", jobID))
	return js.job.Status, nil
}

// Resume lifts a pause. If every outcome already landed while the job was
// paused, the job completes immediately; otherwise dispatch continues from
// the undispatched remainder.
func (c *Controller) Resume(jobID string) (scraper.JobStatus, error) {
	js, err := c.lookup(jobID)
	if err != nil {
		return "", err
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.job.Status != scraper.JobStatusPaused {
		return js.job.Status, nil
	}
	close(js.resumeCh)
	js.resumeCh = nil

	if counters, err := c.tracker.Snapshot(jobID); err == nil && counters.Completed == counters.Total {
		c.finishLocked(js, scraper.JobStatusCompleted, "")
		return js.job.Status, nil
	}
	js.job.Status = scraper.JobStatusRunning
	c.metrics.ObserveTransition(string(scraper.JobStatusRunning))
	c.logger.Info("job resumed", zap.String("job_id", jobID))
	return js.job.Status, nil
}

// Cancel terminates a job. It is idempotent; cancelling a terminal job
// returns the existing status. In-flight executor calls drain on their own
// and late outcomes are recorded for bookkeeping only.
func (c *Controller) Cancel(jobID string) (scraper.JobStatus, error) {
	js, err := c.lookup(jobID)
	if err != nil {
		return "", err
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.job.Status.Terminal() {
		return js.job.Status, nil
	}
	if js.resumeCh != nil {
		// Unblock dispatch workers parked on the pause gate.
		close(js.resumeCh)
		js.resumeCh = nil
	}
	select {
	case <-js.cancelCh:
	default:
		close(js.cancelCh)
	}
	c.finishLocked(js, scraper.JobStatusCancelled, "cancelled by caller")
	return js.job.Status, nil
}

// GetStatus returns the job's lifecycle status and best-known progress.
func (c *Controller) GetStatus(jobID string) (scraper.JobStatusView, error) {
	js, err := c.lookup(jobID)
	if err != nil {
		return scraper.JobStatusView{}, err
	}
	counters, err := c.tracker.Snapshot(jobID)
	if err != nil && !errors.Is(err, scraper.ErrNotFound) {
		return scraper.JobStatusView{}, err
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	return scraper.JobStatusView{
		JobID:    jobID,
		Status:   js.job.Status,
		Progress: counters.View(),
		Warnings: append([]string(nil), js.job.Warnings...),
	}, nil
}

// GetResults returns every outcome recorded for the job so far.
func (c *Controller) GetResults(ctx context.Context, jobID string) ([]scraper.ScrapeOutcome, error) {
	if _, err := c.lookup(jobID); err != nil {
		return nil, err
	}
	outcomes, err := c.sink.Query(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("query result sink: %w", err)
	}
	return outcomes, nil
}

// NoteProgress is called by the dispatch layer after each recorded outcome.
// It completes the job once every outcome has landed while the job is still
// running; outcomes arriving after cancellation never change the status.
func (c *Controller) NoteProgress(jobID string, counters scraper.ProgressCounters) {
	js, err := c.lookup(jobID)
	if err != nil {
		return
	}
	if counters.Completed < counters.Total {
		return
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.job.Status != scraper.JobStatusRunning {
		return
	}
	c.finishLocked(js, scraper.JobStatusCompleted, "")
}

// FinishDispatch is called when a job's dispatch loop drains. It closes the
// window where the final outcome landed between the loop's last gate check
// and its exit.
func (c *Controller) FinishDispatch(jobID string) {
	counters, err := c.tracker.Snapshot(jobID)
	if err != nil {
		return
	}
	c.NoteProgress(jobID, counters)
}

// AddWarning attaches a non-fatal warning to the job record, visible via
// GetStatus.
func (c *Controller) AddWarning(jobID, warning string) {
	js, err := c.lookup(jobID)
	if err != nil {
		return
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	js.job.Warnings = append(js.job.Warnings, warning)
	c.logger.Warn("job warning", zap.String("job_id", jobID), zap.String("warning", warning))
}

// ActiveJobCount returns how many jobs are pending, running, or paused.
func (c *Controller) ActiveJobCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	for _, js := range c.jobs {
		js.mu.Lock()
		if js.job.Status.Active() {
			count++
		}
		js.mu.Unlock()
	}
	return count
}

// finishLocked moves the job into a terminal status. The caller holds js.mu.
func (c *Controller) finishLocked(js *jobState, status scraper.JobStatus, errText string) {
	js.job.Status = status
	js.job.ErrorText = errText
	now := c.clock.Now()
	js.job.Finished = &now
	c.metrics.ObserveTransition(string(status))
	c.logger.Info("job finished",
		zap.String("job_id", js.job.ID),
		zap.String("status", string(status)),
	)

	jobID := js.job.ID
	go c.afterFinish(jobID, status)
}

// afterFinish runs the fire-and-forget terminal side effects: update the
// active gauge, publish the completion event, and archive results.
func (c *Controller) afterFinish(jobID string, status scraper.JobStatus) {
	c.metrics.SetActiveJobs(c.ActiveJobCount())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if c.publisher != nil && c.publishTopic != "" {
		counters, _ := c.tracker.Snapshot(jobID)
		payload := map[string]any{
			"job_id":    jobID,
			"status":    string(status),
			"total":     counters.Total,
			"completed": counters.Completed,
			"succeeded": counters.Succeeded,
			"failed":    counters.Failed,
			"timestamp": c.clock.Now().Format(time.RFC3339),
		}
		if _, err := c.publisher.Publish(ctx, c.publishTopic, payload); err != nil {
			c.logger.Warn("publish completion event failed",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}
	if c.archiver != nil {
		if err := c.archiver.Export(ctx, jobID); err != nil {
			c.logger.Warn("archive job results failed",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}
}

func (c *Controller) lookup(jobID string) (*jobState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	js, ok := c.jobs[jobID]
	if !ok {
		return nil, scraper.ErrNotFound
	}
	return js, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
