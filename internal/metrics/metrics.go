// Package metrics exposes snapshot run counters over Prometheus and a small
// HTTP server for scraping and health checks.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"prop-engine/internal/snapshot"
)

// RunStatus is the last outcome of one job.
type RunStatus struct {
	snapshot.Report
	Error string `json:"error,omitempty"`
}

// Collectors holds the engine's metrics.
type Collectors struct {
	runs        *prometheus.CounterVec
	scanned     *prometheus.CounterVec
	written     *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	failed      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	mu   sync.Mutex
	last map[string]RunStatus
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_runs_total", Help: "Snapshot job runs by outcome.",
		}, []string{"job", "status"}),
		scanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_quotes_scanned_total", Help: "Prop quotes read from the lookback window.",
		}, []string{"job"}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_rows_written_total", Help: "Snapshot rows upserted.",
		}, []string{"job"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_rows_skipped_total", Help: "Props skipped for missing or unusable data.",
		}, []string{"job"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_rows_failed_total", Help: "Snapshot rows whose upsert failed.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snapshot_run_duration_seconds",
			Help:    "Wall time of one job run.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "snapshot_last_success_timestamp_seconds", Help: "Unix time of the last successful run.",
		}, []string{"job"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_cache_hits_total", Help: "Reference data lookups served from the run cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_cache_misses_total", Help: "Reference data lookups that went to the store.",
		}),
		last: make(map[string]RunStatus),
	}
	reg.MustRegister(c.runs, c.scanned, c.written, c.skipped, c.failed, c.duration, c.lastSuccess, c.cacheHits, c.cacheMisses)
	return c
}

// Observe records one finished job run.
func (c *Collectors) Observe(r snapshot.Report, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.runs.WithLabelValues(r.Job, status).Inc()
	c.scanned.WithLabelValues(r.Job).Add(float64(r.Scanned))
	c.written.WithLabelValues(r.Job).Add(float64(r.Written))
	c.skipped.WithLabelValues(r.Job).Add(float64(r.Skipped))
	c.failed.WithLabelValues(r.Job).Add(float64(r.Failed))
	c.duration.WithLabelValues(r.Job).Observe(r.Duration.Seconds())
	if err == nil {
		c.lastSuccess.WithLabelValues(r.Job).Set(float64(r.Started.Add(r.Duration).Unix()))
	}

	rs := RunStatus{Report: r}
	if err != nil {
		rs.Error = err.Error()
	}
	c.mu.Lock()
	c.last[r.Job] = rs
	c.mu.Unlock()
}

// ObserveCache adds one run's cache hit and miss counts.
func (c *Collectors) ObserveCache(hits, misses int) {
	c.cacheHits.Add(float64(hits))
	c.cacheMisses.Add(float64(misses))
}

// Last returns the most recent status of each job, ordered by job name.
func (c *Collectors) Last() []RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RunStatus, 0, len(c.last))
	for _, rs := range c.last {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
