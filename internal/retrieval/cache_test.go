package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docforge/rag-pipeline/internal/store"
)

func TestQueryCacheNilRedisPassesThrough(t *testing.T) {
	s := &fakeSearcher{vectorHits: []store.ChunkHit{hit("d1", 0, "direct result", 0.8)}}
	e := NewEngine(s, fakeEmbedder{}, testConfig(), nil)
	c := NewQueryCache(nil, 0, nil)

	hits, stage, cached, err := c.Retrieve(context.Background(), e, "some query", "owner1", 10)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, StageVector, stage)
	require.Len(t, hits, 1)
	assert.Equal(t, "direct result", hits[0].Content)
}

func TestQueryCacheNilRedisInvalidateIsNoop(t *testing.T) {
	c := NewQueryCache(nil, 0, nil)
	removed, err := c.Invalidate(context.Background(), "owner1")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestBuildKeyScopedByOwner(t *testing.T) {
	k1 := buildKey("query", "owner1", 10)
	k2 := buildKey("query", "owner2", 10)
	assert.NotEqual(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, cacheKeyPrefix+"owner1:"))
	assert.True(t, strings.HasPrefix(k2, cacheKeyPrefix+"owner2:"))

	// Same inputs must produce the same key or invalidation misses entries.
	assert.Equal(t, k1, buildKey("query", "owner1", 10))
	assert.NotEqual(t, k1, buildKey("query", "owner1", 5))
}
