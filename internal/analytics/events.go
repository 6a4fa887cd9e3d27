package analytics

import "time"

type EventType string

const (
	EventSearch          EventType = "search"
	EventDocumentIndexed EventType = "document_indexed"
	EventDocumentSkipped EventType = "document_skipped"
	EventIndexBuilt      EventType = "index_built"
)

// Event is the single envelope for everything the service reports. Search
// fields are set for EventSearch; the rest describe index builds.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Query     string   `json:"query,omitempty"`
	Tokens    []string `json:"tokens,omitempty"`
	TotalHits int      `json:"total_hits"`
	Returned  int      `json:"returned"`
	LatencyMs float64  `json:"latency_ms,omitempty"`
	CacheHit  bool     `json:"cache_hit,omitempty"`
	RequestID string   `json:"request_id,omitempty"`

	Filename   string `json:"filename,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Documents  int    `json:"documents,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
}
