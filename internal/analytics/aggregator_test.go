package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docforge/rag-pipeline/internal/events"
)

func TestAggregatorRecordsDocumentEvents(t *testing.T) {
	a := NewAggregator()
	a.Record(events.AnalyticsEvent{Type: events.TypeDocumentProcessed, ChunkCount: 4, Outcome: "ok"})
	a.Record(events.AnalyticsEvent{Type: events.TypeDocumentProcessed, ChunkCount: 2, Outcome: "degraded"})
	a.Record(events.AnalyticsEvent{Type: events.TypeDocumentFailed, Outcome: "error"})

	s := a.Snapshot()
	assert.Equal(t, int64(2), s.DocsProcessed)
	assert.Equal(t, int64(1), s.DocsDegraded)
	assert.Equal(t, int64(1), s.DocsFailed)
	assert.Equal(t, int64(6), s.ChunksCreated)
}

func TestAggregatorRecordsQueryEvents(t *testing.T) {
	a := NewAggregator()
	for i, stage := range []string{"vector", "vector", "keyword", "recency", "empty"} {
		a.Record(events.AnalyticsEvent{
			Type:       events.TypeQueryServed,
			Stage:      stage,
			CacheHit:   i == 1,
			ZeroResult: stage == "empty",
			LatencyMS:  int64(10 * (i + 1)),
		})
	}

	s := a.Snapshot()
	assert.Equal(t, int64(5), s.QueriesServed)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(1), s.ZeroResults)
	assert.Equal(t, int64(2), s.StageCounts["vector"])
	assert.Equal(t, int64(1), s.StageCounts["keyword"])
	assert.Equal(t, int64(30), s.LatencyP50MS)
	assert.GreaterOrEqual(t, s.LatencyP99MS, s.LatencyP50MS)
}

func TestAggregatorHandleDropsMalformed(t *testing.T) {
	a := NewAggregator()
	err := a.Handle(context.Background(), nil, []byte("{not json"))
	require.NoError(t, err, "malformed events are dropped, not retried")
	assert.Equal(t, int64(0), a.Snapshot().QueriesServed)
}

func TestAggregatorHandleDecodesEvent(t *testing.T) {
	a := NewAggregator()
	raw, err := json.Marshal(events.AnalyticsEvent{
		Type:       events.TypeQueryServed,
		Stage:      "vector",
		LatencyMS:  12,
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, a.Handle(context.Background(), []byte("owner-1"), raw))
	assert.Equal(t, int64(1), a.Snapshot().QueriesServed)
}
