// Package metrics exposes Prometheus collectors for job mutations and press
// queue renumbering.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pressline/internal/jobs"
)

// Collectors holds every pressline metric on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	mutations        *prometheus.CounterVec
	reassignRuns     *prometheus.CounterVec
	reassignDuration prometheus.Histogram
	renumbered       prometheus.Counter
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressline",
			Name:      "job_mutations_total",
			Help:      "Job mutations by operation and outcome kind.",
		}, []string{"op", "result"}),
		reassignRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressline",
			Name:      "reassign_runs_total",
			Help:      "Press queue renumbering runs by outcome.",
		}, []string{"result"}),
		reassignDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pressline",
			Name:      "reassign_duration_seconds",
			Help:      "Time spent renumbering one press queue, including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		renumbered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pressline",
			Name:      "reassign_renumbered_jobs_total",
			Help:      "Queued jobs whose priority was rewritten.",
		}),
	}
	c.registry.MustRegister(
		c.mutations,
		c.reassignRuns,
		c.reassignDuration,
		c.renumbered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveMutation counts a completed job mutation under its error kind, or
// "ok" on success.
func (c *Collectors) ObserveMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(jobs.KindOf(err))
	}
	c.mutations.WithLabelValues(op, result).Inc()
}

// ObserveReassign records one press renumbering run.
func (c *Collectors) ObserveReassign(_ string, renumbered int, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.reassignRuns.WithLabelValues(result).Inc()
	c.reassignDuration.Observe(elapsed.Seconds())
	c.renumbered.Add(float64(renumbered))
}

// Registry returns the registry backing the collectors.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
