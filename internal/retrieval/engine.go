// Package retrieval finds the chunks most relevant to a query. Search
// cascades from vector similarity to keyword matching to a recency listing;
// a later stage runs only when the previous one produced nothing, and a
// stage error falls through rather than surfacing to the user.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/docforge/rag-pipeline/internal/store"
	"github.com/docforge/rag-pipeline/pkg/config"
	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/metrics"
	"github.com/docforge/rag-pipeline/pkg/tracing"
)

// Stage identifies which cascade stage produced the results.
type Stage string

const (
	StageVector  Stage = "vector"
	StageKeyword Stage = "keyword"
	StageRecency Stage = "recency"
	StageEmpty   Stage = "empty"
)

// Searcher is the subset of the store the engine needs. Tests substitute an
// instrumented fake.
type Searcher interface {
	VectorSearch(ctx context.Context, embedding []float32, ownerID string, threshold float64, count int) ([]store.ChunkHit, error)
	KeywordSearch(ctx context.Context, keywords []string, ownerID string, limit int) ([]store.ChunkHit, error)
	RecentChunks(ctx context.Context, ownerID string, limit int) ([]store.ChunkHit, error)
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Engine runs the retrieval cascade.
type Engine struct {
	searcher Searcher
	embedder Embedder
	cfg      config.RetrievalConfig
	metrics  *metrics.Metrics
}

// NewEngine creates an Engine. m may be nil in tests.
func NewEngine(searcher Searcher, embedder Embedder, cfg config.RetrievalConfig, m *metrics.Metrics) *Engine {
	return &Engine{searcher: searcher, embedder: embedder, cfg: cfg, metrics: m}
}

// Retrieve returns the most relevant chunks for the query, most relevant
// first, together with the stage that produced them. It returns an error
// only when the query itself is unusable; search failures degrade through
// the cascade and an all-stage miss yields an empty result.
func (e *Engine) Retrieve(ctx context.Context, query, ownerID string, limit int) ([]store.ChunkHit, Stage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, StageEmpty, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}

	log := logger.FromContext(ctx).With("component", "retrieval")
	ctx, span := tracing.StartChildSpan(ctx, "retrieval.cascade")
	defer span.End()

	start := time.Now()
	hits, stage := e.cascade(ctx, query, ownerID, log)
	span.SetAttr("stage", string(stage))
	e.observe(stage, time.Since(start))

	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	log.Debug("retrieval complete", "stage", string(stage), "hits", len(hits))
	return hits, stage, nil
}

func (e *Engine) cascade(ctx context.Context, query, ownerID string, log *slog.Logger) ([]store.ChunkHit, Stage) {
	embedding := e.embedder.Embed(ctx, query)
	hits, err := e.searcher.VectorSearch(ctx, embedding, ownerID, e.cfg.MatchThreshold, e.cfg.MatchCount)
	if err != nil {
		log.Warn("vector search failed, falling back to keywords", "error", err)
	}
	if len(hits) > 0 {
		return hits, StageVector
	}

	keywords := Tokenize(query)
	if len(keywords) > 0 {
		hits, err = e.searcher.KeywordSearch(ctx, keywords, ownerID, e.cfg.KeywordLimit)
		if err != nil {
			log.Warn("keyword search failed, falling back to recency", "error", err)
		}
		if len(hits) > 0 {
			return hits, StageKeyword
		}
	}

	hits, err = e.searcher.RecentChunks(ctx, ownerID, e.cfg.RecencyLimit)
	if err != nil {
		log.Warn("recency listing failed, returning empty context", "error", err)
		return nil, StageEmpty
	}
	if len(hits) > 0 {
		return hits, StageRecency
	}
	return nil, StageEmpty
}

func (e *Engine) observe(stage Stage, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.RetrievalStageTotal.WithLabelValues(string(stage)).Inc()
	e.metrics.RetrievalLatency.WithLabelValues("miss").Observe(elapsed.Seconds())
}

// sortHits orders by similarity descending; within equal similarity (and
// for stages that report none) earlier chunk_index wins.
func sortHits(hits []store.ChunkHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		si, sj := simOf(hits[i]), simOf(hits[j])
		if si != sj {
			return si > sj
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
}

func simOf(h store.ChunkHit) float64 {
	if h.Similarity == nil {
		return 0
	}
	return *h.Similarity
}

// Tokenize lowercases the query and keeps words longer than two characters
// for keyword matching.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// AssembleContext concatenates the top-K hits into one context block for
// prompt assembly. Each entry is labeled with its source filename, or
// "Unknown" when the source is not recorded.
func AssembleContext(hits []store.ChunkHit, topK int) string {
	if len(hits) == 0 {
		return ""
	}
	if topK <= 0 || topK > 10 {
		topK = 10
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}

	var sb strings.Builder
	for i, h := range hits {
		source := h.Filename
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&sb, "[Source: %s]\n", source)
		if h.Heading != nil && *h.Heading != "" {
			fmt.Fprintf(&sb, "%s\n", *h.Heading)
		}
		sb.WriteString(h.Content)
		if i < len(hits)-1 {
			sb.WriteString("\n\n---\n\n")
		}
	}
	return sb.String()
}
