// Package metrics exposes enrichment counters to Prometheus. Collector
// implements enrich.Observer and owns its registry, so tests and multiple
// instances never collide on the global one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/listenupapp/enrichd/internal/domain"
)

const namespace = "enrichd"

// Collector records cache, source and batch metrics.
type Collector struct {
	registry      *prometheus.Registry
	cacheLookups  *prometheus.CounterVec
	sourceCalls   *prometheus.CounterVec
	itemOutcomes  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
}

// New creates a collector with its own registry, including the Go runtime
// and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Shared cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		sourceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "calls_total",
			Help:      "External source calls by source, kind and result.",
		}, []string{"source", "kind", "result"}),
		itemOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch item outcomes by kind and status.",
		}, []string{"kind", "status"}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Wall time of finished batches.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"kind"}),
	}
}

// CacheLookup implements enrich.Observer.
func (c *Collector) CacheLookup(kind domain.Kind, result string) {
	c.cacheLookups.WithLabelValues(string(kind), result).Inc()
}

// SourceCall implements enrich.Observer.
func (c *Collector) SourceCall(source string, kind domain.Kind, result string) {
	c.sourceCalls.WithLabelValues(source, string(kind), result).Inc()
}

// ItemOutcome implements enrich.Observer.
func (c *Collector) ItemOutcome(kind domain.Kind, status domain.OutcomeStatus) {
	c.itemOutcomes.WithLabelValues(string(kind), string(status)).Inc()
}

// BatchFinished implements enrich.Observer.
func (c *Collector) BatchFinished(kind domain.Kind, d time.Duration) {
	c.batchDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
