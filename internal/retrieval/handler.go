package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/docforge/rag-pipeline/internal/events"
	"github.com/docforge/rag-pipeline/internal/llm"
	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/kafka"
	"github.com/docforge/rag-pipeline/pkg/logger"
)

// QueryRequest is the JSON body of POST /api/v1/query.
type QueryRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Answer bool   `json:"answer,omitempty"`
}

// QueryResult is one retrieved chunk in the response.
type QueryResult struct {
	Content    string   `json:"content"`
	Heading    *string  `json:"heading,omitempty"`
	Source     string   `json:"source"`
	Similarity *float64 `json:"similarity,omitempty"`
	DocumentID string   `json:"document_id"`
	ChunkIndex int      `json:"chunk_index"`
}

// QueryResponse is the retrieval API response. Answer is present only when
// grounded answering was requested and an inference endpoint is configured.
type QueryResponse struct {
	Results []QueryResult `json:"results"`
	Stage   string        `json:"stage"`
	Context string        `json:"context,omitempty"`
	Answer  string        `json:"answer,omitempty"`
}

// AnalyticsPublisher emits query analytics. Nil disables publishing.
type AnalyticsPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Handler serves the query API.
type Handler struct {
	engine    *Engine
	cache     *QueryCache
	llm       *llm.Client
	topK      int
	analytics AnalyticsPublisher
}

// NewHandler creates the query handler. llmClient and analytics may be nil.
func NewHandler(engine *Engine, cache *QueryCache, llmClient *llm.Client, topK int, analytics AnalyticsPublisher) *Handler {
	return &Handler{engine: engine, cache: cache, llm: llmClient, topK: topK, analytics: analytics}
}

// Routes registers the query API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/query", h.query)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.invalidate)
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx).With("component", "retrieval-api")

	ownerID := r.Header.Get("X-Owner-ID")
	if ownerID == "" {
		writeError(w, apperrors.New(apperrors.ErrUnauthorized, 401, "missing owner identity"))
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, 400, "decoding request: %v", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, apperrors.New(apperrors.ErrInvalidInput, 400, "query is required"))
		return
	}

	start := time.Now()
	hits, stage, cached, err := h.cache.Retrieve(ctx, h.engine, req.Query, ownerID, req.Limit)
	if err != nil {
		writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, 400, "retrieval: %v", err))
		return
	}

	resp := QueryResponse{
		Results: make([]QueryResult, 0, len(hits)),
		Stage:   string(stage),
		Context: AssembleContext(hits, h.topK),
	}
	for _, hit := range hits {
		source := hit.Filename
		if source == "" {
			source = "Unknown"
		}
		resp.Results = append(resp.Results, QueryResult{
			Content:    hit.Content,
			Heading:    hit.Heading,
			Source:     source,
			Similarity: hit.Similarity,
			DocumentID: hit.DocumentID,
			ChunkIndex: hit.ChunkIndex,
		})
	}

	// Grounded answer on request: an empty context still goes to the
	// model, flagged with the no-documents marker.
	if req.Answer && h.llm != nil {
		answer, err := h.llm.Complete(ctx, llm.BuildPrompt(resp.Context, req.Query))
		if err != nil {
			log.Warn("inference failed, returning retrieval only", "error", err)
		} else {
			resp.Answer = answer
		}
	}

	h.publishQueryEvent(ctx, ownerID, stage, len(hits), cached, time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-Owner-ID")
	if ownerID == "" {
		writeError(w, apperrors.New(apperrors.ErrUnauthorized, 401, "missing owner identity"))
		return
	}
	removed, err := h.cache.Invalidate(r.Context(), ownerID)
	if err != nil {
		writeError(w, apperrors.Newf(apperrors.ErrInternal, 500, "cache invalidation: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": removed})
}

func (h *Handler) publishQueryEvent(ctx context.Context, ownerID string, stage Stage, hitCount int, cached bool, elapsed time.Duration) {
	if h.analytics == nil {
		return
	}
	event := events.AnalyticsEvent{
		Type:       events.TypeQueryServed,
		OwnerID:    ownerID,
		Stage:      string(stage),
		CacheHit:   cached,
		ZeroResult: hitCount == 0,
		LatencyMS:  elapsed.Milliseconds(),
		OccurredAt: time.Now().UTC(),
	}
	if err := h.analytics.Publish(ctx, kafka.Event{Key: ownerID, Value: event}); err != nil {
		logger.FromContext(ctx).Warn("failed to publish query analytics", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}
