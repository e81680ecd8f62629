// Package events defines the Kafka message shapes shared between producers
// and consumers. Messages carry IDs, not payloads; the processor loads raw
// content from the datastore.
package events

import "time"

// DocumentProcessRequested asks the processor to run a document through the
// ingestion pipeline.
type DocumentProcessRequested struct {
	DocumentID  string    `json:"document_id"`
	OwnerID     string    `json:"owner_id"`
	Reprocess   bool      `json:"reprocess,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// AnalyticsEvent is one observation emitted by the services and aggregated
// by the analytics consumer.
type AnalyticsEvent struct {
	Type       string    `json:"type"`
	OwnerID    string    `json:"owner_id,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	CacheHit   bool      `json:"cache_hit,omitempty"`
	ZeroResult bool      `json:"zero_result,omitempty"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	LatencyMS  int64     `json:"latency_ms,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Analytics event types.
const (
	TypeDocumentProcessed = "document_processed"
	TypeDocumentFailed    = "document_failed"
	TypeQueryServed       = "query_served"
)
