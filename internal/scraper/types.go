// Package scraper defines core types shared across subsystems.
package scraper

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values reported by the controller.
const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusPaused    JobStatus = "PAUSED"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether the job counts toward autoscaler demand.
// PENDING, RUNNING, and PAUSED jobs all hold worker capacity.
func (s JobStatus) Active() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusPaused:
		return true
	default:
		return false
	}
}

// Job represents the metadata kept for each submitted scrape request.
type Job struct {
	ID        string     `json:"id"`
	Domains   []string   `json:"domains"`
	Status    JobStatus  `json:"status"`
	Submitted time.Time  `json:"submitted_at"`
	Finished  *time.Time `json:"finished_at,omitempty"`
	ErrorText string     `json:"error_text,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// ProgressCounters tracks per-job outcome aggregates. Completed is always
// Succeeded+Failed and never exceeds Total.
type ProgressCounters struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Percent formats completion as a two-decimal percentage string. A job with
// zero discovered URLs is trivially complete, so it reports 100%.
func (c ProgressCounters) Percent() string {
	if c.Total == 0 {
		return "100.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(c.Completed)/float64(c.Total)*100)
}

// ScrapeOutcome is the terminal result of scraping one URL. The payload is
// carried opaque; its shape belongs to the executor.
type ScrapeOutcome struct {
	URL     string          `json:"url"`
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ProgressView is the progress block returned by the status endpoint.
type ProgressView struct {
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
	Percent   string `json:"percent"`
}

// View converts counters into the serialized status representation.
func (c ProgressCounters) View() ProgressView {
	return ProgressView{
		Total:     c.Total,
		Completed: c.Completed,
		Succeeded: c.Succeeded,
		Failed:    c.Failed,
		Percent:   c.Percent(),
	}
}

// JobStatusView is returned by GetStatus.
type JobStatusView struct {
	JobID    string       `json:"job_id"`
	Status   JobStatus    `json:"status"`
	Progress ProgressView `json:"progress"`
	Warnings []string     `json:"warnings,omitempty"`
}
