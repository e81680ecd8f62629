// Package analytics consumes pipeline and query events from Kafka and keeps
// in-memory aggregates served by a stats endpoint.
package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docforge/rag-pipeline/internal/events"
	"github.com/docforge/rag-pipeline/pkg/kafka"
	"github.com/docforge/rag-pipeline/pkg/logger"
)

const maxLatencySamples = 10000

// Aggregator accumulates event counts and latency samples.
type Aggregator struct {
	mu sync.RWMutex

	docsProcessed  int64
	docsFailed     int64
	docsDegraded   int64
	chunksCreated  int64
	queriesServed  int64
	cacheHits      int64
	zeroResults    int64
	stageCounts    map[string]int64
	queryLatencies []int64
	startedAt      time.Time
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		stageCounts: make(map[string]int64),
		startedAt:   time.Now().UTC(),
	}
}

// Handle consumes one Kafka analytics message. Malformed events are dropped;
// analytics must never wedge the consumer group.
func (a *Aggregator) Handle(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[events.AnalyticsEvent](value)
	if err != nil {
		logger.FromContext(ctx).Warn("dropping malformed analytics event", "error", err)
		return nil
	}
	a.Record(event)
	return nil
}

// Record folds one event into the aggregates.
func (a *Aggregator) Record(event events.AnalyticsEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case events.TypeDocumentProcessed:
		a.docsProcessed++
		if event.Outcome == "degraded" {
			a.docsDegraded++
		}
		a.chunksCreated += int64(event.ChunkCount)
	case events.TypeDocumentFailed:
		a.docsFailed++
	case events.TypeQueryServed:
		a.queriesServed++
		if event.CacheHit {
			a.cacheHits++
		}
		if event.ZeroResult {
			a.zeroResults++
		}
		if event.Stage != "" {
			a.stageCounts[event.Stage]++
		}
		if len(a.queryLatencies) < maxLatencySamples {
			a.queryLatencies = append(a.queryLatencies, event.LatencyMS)
		}
	}
}

// Stats is the aggregate snapshot served over HTTP.
type Stats struct {
	DocsProcessed int64            `json:"docs_processed"`
	DocsFailed    int64            `json:"docs_failed"`
	DocsDegraded  int64            `json:"docs_degraded"`
	ChunksCreated int64            `json:"chunks_created"`
	QueriesServed int64            `json:"queries_served"`
	CacheHits     int64            `json:"cache_hits"`
	ZeroResults   int64            `json:"zero_results"`
	StageCounts   map[string]int64 `json:"stage_counts"`
	LatencyP50MS  int64            `json:"latency_p50_ms"`
	LatencyP95MS  int64            `json:"latency_p95_ms"`
	LatencyP99MS  int64            `json:"latency_p99_ms"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Snapshot returns a copy of the current aggregates.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Stats{
		DocsProcessed: a.docsProcessed,
		DocsFailed:    a.docsFailed,
		DocsDegraded:  a.docsDegraded,
		ChunksCreated: a.chunksCreated,
		QueriesServed: a.queriesServed,
		CacheHits:     a.cacheHits,
		ZeroResults:   a.zeroResults,
		StageCounts:   make(map[string]int64, len(a.stageCounts)),
		UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
	}
	for stage, n := range a.stageCounts {
		s.StageCounts[stage] = n
	}
	if len(a.queryLatencies) > 0 {
		sorted := make([]int64, len(a.queryLatencies))
		copy(sorted, a.queryLatencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		s.LatencyP50MS = percentile(sorted, 0.50)
		s.LatencyP95MS = percentile(sorted, 0.95)
		s.LatencyP99MS = percentile(sorted, 0.99)
	}
	return s
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
