package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects cache and job observability signals. It is created
// once per process and injected into every component that needs it;
// there are no package-level registries. Every Track method is
// fire-and-forget and must never fail the caller.
type Recorder struct {
	registry *prometheus.Registry

	cacheReads    *prometheus.CounterVec
	cacheLatency  *prometheus.HistogramVec
	invalidations *prometheus.CounterVec
	jobEvents     *prometheus.CounterVec

	// Cheap read-back counters for the stats endpoint; prometheus
	// counters are write-oriented.
	hits          atomic.Int64
	misses        atomic.Int64
	invalidated   atomic.Int64
	bySourceMu    sync.Mutex
	bySourceCount map[string]int64
}

// NewRecorder builds a Recorder backed by its own prometheus registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		cacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcache",
			Name:      "cache_reads_total",
			Help:      "Cache-aside reads by tenant, data type and source tier.",
		}, []string{"tenant", "data_type", "source"}),
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragcache",
			Name:      "cache_read_latency_ms",
			Help:      "Cache-aside read latency in milliseconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"tenant", "data_type"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcache",
			Name:      "cache_invalidations_total",
			Help:      "Keys removed by coordinated invalidation.",
		}, []string{"tenant", "data_type"}),
		jobEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcache",
			Name:      "job_events_total",
			Help:      "Job lifecycle transitions.",
		}, []string{"event"}),
		bySourceCount: make(map[string]int64),
	}

	registry.MustRegister(r.cacheReads, r.cacheLatency, r.invalidations, r.jobEvents)
	return r
}

// Registry exposes the underlying registry for the /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// TrackCacheRead records one cache-aside call.
func (r *Recorder) TrackCacheRead(tenantID, dataType, source string, hit bool, latencyMs float64) {
	r.cacheReads.WithLabelValues(tenantID, dataType, source).Inc()
	r.cacheLatency.WithLabelValues(tenantID, dataType).Observe(latencyMs)

	if hit {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	r.bySourceMu.Lock()
	r.bySourceCount[source]++
	r.bySourceMu.Unlock()
}

// TrackInvalidation records keys removed for one data type.
func (r *Recorder) TrackInvalidation(tenantID, dataType string, count int64) {
	if count < 0 {
		return
	}
	r.invalidations.WithLabelValues(tenantID, dataType).Add(float64(count))
	r.invalidated.Add(count)
}

// TrackJobEvent records a lifecycle transition (enqueued, locked,
// completed, failed, cancelled, retried, swept).
func (r *Recorder) TrackJobEvent(event string) {
	r.jobEvents.WithLabelValues(event).Inc()
}

// Snapshot returns the aggregate counters for the stats endpoint.
func (r *Recorder) Snapshot() (hits, misses, invalidations int64, bySource map[string]int64) {
	r.bySourceMu.Lock()
	bySource = make(map[string]int64, len(r.bySourceCount))
	for k, v := range r.bySourceCount {
		bySource[k] = v
	}
	r.bySourceMu.Unlock()
	return r.hits.Load(), r.misses.Load(), r.invalidated.Load(), bySource
}
