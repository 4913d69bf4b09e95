// Package analytics records what users search for: every answered query
// becomes a QueryEvent, which is either aggregated in-process or published
// to Kafka and aggregated by whichever search instance consumes the topic.
package analytics

import "time"

type QueryEvent struct {
	Query           string    `json:"query"`
	Canonical       string    `json:"canonical"`
	Dropped         []string  `json:"dropped,omitempty"`
	TotalCandidates int       `json:"total_candidates"`
	Returned        int       `json:"returned"`
	LatencyMs       int64     `json:"latency_ms"`
	CacheHit        bool      `json:"cache_hit"`
	IndexVersion    uint64    `json:"index_version"`
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id,omitempty"`
}

// Tracker accepts query events. Track must not block the query path.
type Tracker interface {
	Track(event QueryEvent)
}
