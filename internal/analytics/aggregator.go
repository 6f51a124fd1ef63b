package analytics

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/kafka"
)

const (
	// maxLatencySamples bounds the latency window used for percentiles.
	maxLatencySamples = 10000
	// maxTrackedKeys bounds each frequency table; queries and terms first
	// seen past the bound still count toward the totals.
	maxTrackedKeys = 50000
	topListSize    = 10
	maxListSize    = 100
)

// AggregatedStats is the body of GET /api/v1/analytics.
type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgResults        float64      `json:"avg_results"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopTerms          []QueryCount `json:"top_terms"`
	// MissingTerms are stems searched for in queries that found nothing,
	// the corpus vocabulary gaps users run into most.
	MissingTerms     []QueryCount `json:"missing_terms"`
	QueriesPerMinute float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// counter is a frequency table that stops admitting new keys at its bound.
type counter map[string]int64

func (c counter) add(key string) {
	if _, ok := c[key]; ok || len(c) < maxTrackedKeys {
		c[key]++
	}
}

// Aggregator keeps running counters over search events. Queries are keyed by
// their stemmed terms so "dog" and "dogs" count as the same query; a query
// with no indexable terms is keyed by its trimmed lower-cased text.
type Aggregator struct {
	mu          sync.RWMutex
	total       int64
	cacheHits   int64
	zeroResults int64
	returned    int64
	latencies   []int64
	next        int
	queries     counter
	zeroQueries counter
	terms       counter
	missing     counter
	startTime   time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		queries:     counter{},
		zeroQueries: counter{},
		terms:       counter{},
		missing:     counter{},
		startTime:   time.Now(),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler that records search events published
// by any searcher instance. Undecodable messages are dropped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func queryKey(event SearchEvent) string {
	if len(event.Terms) == 0 {
		return strings.ToLower(strings.TrimSpace(event.Query))
	}
	terms := slices.Clone(event.Terms)
	slices.Sort(terms)
	return strings.Join(terms, " ")
}

// Record adds one event to the counters.
func (a *Aggregator) Record(event SearchEvent) {
	key := queryKey(event)
	zero := event.Returned == 0

	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	a.returned += int64(event.Returned)
	if event.CacheHit {
		a.cacheHits++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}

	a.queries.add(key)
	for _, term := range event.Terms {
		a.terms.add(term)
	}
	if zero {
		a.zeroResults++
		a.zeroQueries.add(key)
		for _, term := range event.Terms {
			a.missing.add(term)
		}
	}
}

// Stats summarises everything recorded so far with the default list size.
func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(topListSize)
}

// StatsTop is Stats with each ranked list cut to n entries.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:     a.total,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.total - a.cacheHits,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queries, n),
		ZeroResultQueries: topN(a.zeroQueries, n),
		TopTerms:          topN(a.terms, n),
		MissingTerms:      topN(a.missing, n),
	}
	if a.total > 0 {
		stats.AvgResults = float64(a.returned) / float64(a.total)
	}
	if n := len(a.latencies); n > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(n)
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

// percentile picks the nearest-rank sample from an ascending slice.
func percentile(sorted []int64, pct int) int64 {
	idx := (pct*len(sorted)+99)/100 - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}

// topN returns the n most frequent keys, ties in key order.
func topN(counts counter, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for key, count := range counts {
		out = append(out, QueryCount{Query: key, Count: count})
	}
	slices.SortFunc(out, func(x, y QueryCount) int {
		if x.Count != y.Count {
			if x.Count > y.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(x.Query, y.Query)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
