// Package analytics aggregates search events for the analytics endpoint and
// renders the end-of-build report.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewSearchEvent stamps an event, typed by whether anything was returned.
func NewSearchEvent(query string, terms []string, returned int, latency time.Duration, cacheHit bool, requestID string) SearchEvent {
	typ := EventSearch
	if returned == 0 {
		typ = EventZeroResult
	}
	return SearchEvent{
		Type:      typ,
		Query:     query,
		Terms:     terms,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
