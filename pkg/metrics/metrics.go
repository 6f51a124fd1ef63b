// Package metrics defines the Prometheus metric collectors used by the build
// pipeline and the query service, and exposes an HTTP handler for scraping.
//
// Every recording method is safe to call on a nil *Metrics so components can
// run without instrumentation in tests and small tools.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DocsProcessedTotal  *prometheus.CounterVec
	DuplicatesTotal     prometheus.Counter
	FrontierQueueDepth  prometheus.Gauge
	BatchFlushesTotal   *prometheus.CounterVec
	ShardMergeDuration  *prometheus.HistogramVec
	ShardTermCount      *prometheus.GaugeVec
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	ShardCacheHits      prometheus.Counter
	ShardCacheMisses    prometheus.Counter
	ShardCacheEvictions prometheus.Counter
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
}

// New creates all collectors and registers them on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_documents_processed_total",
				Help: "Documents taken off the frontier by outcome (indexed, duplicate, failed).",
			},
			[]string{"status"},
		),
		DuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_near_duplicates_total",
				Help: "Documents skipped by the near-duplicate filter.",
			},
		),
		FrontierQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_frontier_queue_depth",
				Help: "Identifiers waiting in the frontier run queue.",
			},
		),
		BatchFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_batch_flushes_total",
				Help: "Total batch flush operations by status.",
			},
			[]string{"status"},
		),
		ShardMergeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_shard_merge_duration_seconds",
				Help:    "Time spent merging the partial files of one shard.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"shard"},
		),
		ShardTermCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_shard_terms",
				Help: "Number of distinct terms in each merged shard.",
			},
			[]string{"shard"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),
		ShardCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_shard_cache_hits_total",
				Help: "Shard lookups served from the in-process LRU.",
			},
		),
		ShardCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_shard_cache_misses_total",
				Help: "Shard lookups that loaded the shard file from disk.",
			},
		),
		ShardCacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_shard_cache_evictions_total",
				Help: "Shards evicted from the in-process LRU.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query result cache misses.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocsProcessedTotal,
		m.DuplicatesTotal,
		m.FrontierQueueDepth,
		m.BatchFlushesTotal,
		m.ShardMergeDuration,
		m.ShardTermCount,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.ShardCacheHits,
		m.ShardCacheMisses,
		m.ShardCacheEvictions,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

func (m *Metrics) DocProcessed(status string) {
	if m == nil {
		return
	}
	m.DocsProcessedTotal.WithLabelValues(status).Inc()
	if status == "duplicate" {
		m.DuplicatesTotal.Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.FrontierQueueDepth.Set(float64(n))
}

func (m *Metrics) BatchFlushed(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BatchFlushesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ShardMerged(shard string, terms int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ShardMergeDuration.WithLabelValues(shard).Observe(elapsed.Seconds())
	m.ShardTermCount.WithLabelValues(shard).Set(float64(terms))
}

func (m *Metrics) ShardCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ShardCacheHits.Inc()
	} else {
		m.ShardCacheMisses.Inc()
	}
}

func (m *Metrics) ShardEvicted() {
	if m == nil {
		return
	}
	m.ShardCacheEvictions.Inc()
}

func (m *Metrics) ResultCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// QueryServed records one answered query.
func (m *Metrics) QueryServed(results int, cacheHit bool, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	switch {
	case err != nil:
		m.SearchQueriesTotal.WithLabelValues("error").Inc()
		return
	case results == 0:
		m.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
	m.SearchResultsCount.Observe(float64(results))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
