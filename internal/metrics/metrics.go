// Package metrics exposes Prometheus collectors for the orchestrator.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns all collectors for job lifecycle, dispatch outcomes, and
// autoscaling. A nil *Metrics is valid and records nothing, so components can
// treat instrumentation as optional.
type Metrics struct {
	jobsTotal     *prometheus.CounterVec
	activeJobs    prometheus.Gauge
	outcomesTotal *prometheus.CounterVec

	desiredWorkers prometheus.Gauge
	runningWorkers prometheus.Gauge
	scaleRequests  *prometheus.CounterVec
	scaleFailures  prometheus.Counter

	sinkRetries  prometheus.Counter
	sinkFailures prometheus.Counter

	registry *prometheus.Registry
}

// New registers the collectors against a fresh registry.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraperd_jobs_total",
			Help: "Job lifecycle transitions partitioned by resulting status.",
		}, []string{"status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraperd_active_jobs",
			Help: "Jobs currently pending, running, or paused.",
		}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraperd_outcomes_total",
			Help: "URL outcomes recorded, partitioned by result.",
		}, []string{"result"}),
		desiredWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraperd_desired_workers",
			Help: "Worker count the autoscaler last computed.",
		}),
		runningWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraperd_running_workers",
			Help: "Worker count observed from the execution environment.",
		}),
		scaleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraperd_scale_requests_total",
			Help: "Scaling requests issued, partitioned by direction.",
		}, []string{"direction"}),
		scaleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraperd_scale_failures_total",
			Help: "Scaling requests the environment rejected.",
		}),
		sinkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraperd_sink_retries_total",
			Help: "Local retries of result sink appends.",
		}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraperd_sink_failures_total",
			Help: "Sink appends abandoned after exhausting retries.",
		}),
		registry: reg,
	}
	for _, collector := range []prometheus.Collector{
		m.jobsTotal,
		m.activeJobs,
		m.outcomesTotal,
		m.desiredWorkers,
		m.runningWorkers,
		m.scaleRequests,
		m.scaleFailures,
		m.sinkRetries,
		m.sinkFailures,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTransition records a job entering the given status.
func (m *Metrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
}

// SetActiveJobs updates the active jobs gauge.
func (m *Metrics) SetActiveJobs(n int) {
	if m == nil {
		return
	}
	m.activeJobs.Set(float64(n))
}

// ObserveOutcome records one URL outcome.
func (m *Metrics) ObserveOutcome(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.outcomesTotal.WithLabelValues(result).Inc()
}

// ObserveReconcile records one autoscaler tick's view of the pool.
func (m *Metrics) ObserveReconcile(desired, running int) {
	if m == nil {
		return
	}
	m.desiredWorkers.Set(float64(desired))
	m.runningWorkers.Set(float64(running))
}

// ObserveScaleRequest records a scaling request issued to the environment.
func (m *Metrics) ObserveScaleRequest(desired, running int) {
	if m == nil {
		return
	}
	direction := "down"
	if desired > running {
		direction = "up"
	}
	m.scaleRequests.WithLabelValues(direction).Inc()
}

// ObserveScaleFailure records a rejected scaling request.
func (m *Metrics) ObserveScaleFailure() {
	if m == nil {
		return
	}
	m.scaleFailures.Inc()
}

// ObserveSinkRetry records one local retry of a sink append.
func (m *Metrics) ObserveSinkRetry() {
	if m == nil {
		return
	}
	m.sinkRetries.Inc()
}

// ObserveSinkFailure records a sink append abandoned after retries.
func (m *Metrics) ObserveSinkFailure() {
	if m == nil {
		return
	}
	m.sinkFailures.Inc()
}
