// Package analytics emits search telemetry to Kafka. Collection is fire and
// forget: a bounded buffer decouples request handling from the broker, and an
// event is dropped rather than ever delaying a search response.
package analytics

import "time"

type EventType string

const (
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
	EventPhrase     EventType = "phrase"
)

// SearchEvent records one query served by the search API.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Threshold float64   `json:"threshold"`
	Required  int       `json:"required"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
