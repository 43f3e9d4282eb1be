// Package metrics exposes Prometheus collectors for snapshot loading.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/pipeline"
)

const namespace = "depcha"

// Recorder owns a private registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	rawRecords       *prometheus.CounterVec
	droppedRecords   *prometheus.CounterVec
	bookFetches      *prometheus.CounterVec
	snapshotDuration prometheus.Histogram
	distinctAgents   *prometheus.GaugeVec

	mu       sync.Mutex
	sketches map[string]*hyperloglog.Sketch
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rawRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_records_total",
			Help:      "Raw transfer records received from the archive.",
		}, []string{"context"}),
		droppedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_records_total",
			Help:      "Raw records rejected because their date could not be parsed.",
		}, []string{"context"}),
		bookFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "book_fetches_total",
			Help:      "Book fetch attempts by outcome.",
		}, []string{"outcome"}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_build_seconds",
			Help:      "Time taken to fetch and process every book of a context.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		distinctAgents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distinct_agents",
			Help:      "Approximate number of distinct agents seen per context.",
		}, []string{"context"}),
		sketches: make(map[string]*hyperloglog.Sketch),
	}
	r.registry.MustRegister(
		r.rawRecords,
		r.droppedRecords,
		r.bookFetches,
		r.snapshotDuration,
		r.distinctAgents,
	)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveBookFetch counts one book fetch.
func (r *Recorder) ObserveBookFetch(status domain.BookLoadStatus) {
	if r == nil {
		return
	}
	outcome := "success"
	if !status.Success {
		outcome = "failure"
	}
	r.bookFetches.WithLabelValues(outcome).Inc()
}

// ObserveSnapshot records the size of a processed dataset and feeds its agents
// into the context's cardinality sketch.
func (r *Recorder) ObserveSnapshot(contextID string, data pipeline.Dataset, took time.Duration) {
	if r == nil {
		return
	}
	r.rawRecords.WithLabelValues(contextID).Add(float64(data.RawCount))
	r.droppedRecords.WithLabelValues(contextID).Add(float64(data.Dropped()))
	r.snapshotDuration.Observe(took.Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	sketch, ok := r.sketches[contextID]
	if !ok {
		sketch = hyperloglog.New14()
		r.sketches[contextID] = sketch
	}
	for _, tr := range data.Transfers {
		if tr.From.ID != "" {
			sketch.Insert([]byte(tr.From.ID))
		}
		if tr.To.ID != "" {
			sketch.Insert([]byte(tr.To.ID))
		}
	}
	r.distinctAgents.WithLabelValues(contextID).Set(float64(sketch.Estimate()))
}

// DistinctAgents returns the sketch estimate for a context.
func (r *Recorder) DistinctAgents(contextID string) uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sketch, ok := r.sketches[contextID]; ok {
		return sketch.Estimate()
	}
	return 0
}
