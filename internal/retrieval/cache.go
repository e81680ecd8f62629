package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/docforge/rag-pipeline/internal/store"
	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/metrics"
	"github.com/docforge/rag-pipeline/pkg/redis"
)

const cacheKeyPrefix = "retrieval:query:"

// cachedResult is the JSON shape stored in Redis.
type cachedResult struct {
	Hits  []store.ChunkHit `json:"hits"`
	Stage Stage            `json:"stage"`
}

// QueryCache fronts the retrieval engine with a Redis cache. Concurrent
// identical queries are collapsed through singleflight so only one reaches
// the engine.
type QueryCache struct {
	redis   *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
}

// NewQueryCache creates a QueryCache. redis may be nil, disabling caching;
// m may be nil in tests.
func NewQueryCache(rc *redis.Client, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{redis: rc, ttl: ttl, metrics: m}
}

// Retrieve returns cached results when fresh, otherwise runs the engine and
// caches the outcome. The bool reports whether the cache answered.
func (c *QueryCache) Retrieve(ctx context.Context, engine *Engine, query, ownerID string, limit int) ([]store.ChunkHit, Stage, bool, error) {
	if c.redis == nil {
		hits, stage, err := engine.Retrieve(ctx, query, ownerID, limit)
		return hits, stage, false, err
	}

	key := buildKey(query, ownerID, limit)
	log := logger.FromContext(ctx).With("component", "query-cache")

	if raw, err := c.redis.Get(ctx, key); err == nil {
		var cached cachedResult
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			c.countHit(true)
			log.Debug("cache hit", "key", key)
			return cached.Hits, cached.Stage, true, nil
		}
	} else if !redis.IsNilError(err) {
		log.Warn("cache read failed", "error", err)
	}
	c.countHit(false)

	result, err, _ := c.group.Do(key, func() (any, error) {
		hits, stage, err := engine.Retrieve(ctx, query, ownerID, limit)
		if err != nil {
			return nil, err
		}
		cached := cachedResult{Hits: hits, Stage: stage}
		if raw, err := json.Marshal(cached); err == nil {
			if err := c.redis.Set(ctx, key, string(raw), c.ttl); err != nil {
				log.Warn("cache write failed", "error", err)
			}
		}
		return cached, nil
	})
	if err != nil {
		return nil, StageEmpty, false, err
	}
	cached := result.(cachedResult)
	return cached.Hits, cached.Stage, false, nil
}

// Invalidate removes all cached queries for an owner, called after a
// document is (re)processed.
func (c *QueryCache) Invalidate(ctx context.Context, ownerID string) (int64, error) {
	if c.redis == nil {
		return 0, nil
	}
	return c.redis.FlushByPattern(ctx, cacheKeyPrefix+ownerID+":*")
}

func (c *QueryCache) countHit(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.Inc()
	} else {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(query, ownerID string, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", query, limit, ownerID)))
	return cacheKeyPrefix + ownerID + ":" + hex.EncodeToString(sum[:16])
}
