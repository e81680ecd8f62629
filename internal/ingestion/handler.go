// Package ingestion is the upload API: it validates documents, persists
// them, and enqueues background processing. Uploads return 202 immediately;
// the processor picks the work up from Kafka.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docforge/rag-pipeline/internal/events"
	"github.com/docforge/rag-pipeline/internal/store"
	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/kafka"
	"github.com/docforge/rag-pipeline/pkg/logger"
)

// DocumentStore is the persistence surface the upload API needs.
type DocumentStore interface {
	InsertDocument(ctx context.Context, doc *store.Document) error
	FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*store.Document, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	ListDocuments(ctx context.Context, ownerID string, limit int) ([]*store.Document, error)
}

// Publisher enqueues processing events.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Handler serves the upload API.
type Handler struct {
	store    DocumentStore
	producer Publisher
}

// NewHandler creates a Handler.
func NewHandler(st DocumentStore, producer Publisher) *Handler {
	return &Handler{store: st, producer: producer}
}

// Routes registers the upload API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.upload)
	mux.HandleFunc("GET /api/v1/documents", h.list)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.get)
}

// upload validates and persists a document, then enqueues processing. The
// response is 202: processing happens in the background.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx).With("component", "ingestion")

	ownerID := ownerFrom(r)
	if ownerID == "" {
		writeError(w, apperrors.New(apperrors.ErrUnauthorized, 401, "missing owner identity"))
		return
	}

	var req UploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2*maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, 400, "decoding request: %v", err))
		return
	}

	raw, err := ValidateUpload(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	// Same idempotency key: return the original document instead of
	// storing a duplicate.
	if req.IdempotencyKey != "" {
		if existing, err := h.store.FindByIdempotencyKey(ctx, ownerID, req.IdempotencyKey); err == nil {
			writeJSON(w, http.StatusOK, UploadResponse{
				DocumentID: existing.ID,
				Status:     statusOf(existing),
				Duplicate:  true,
			})
			return
		} else if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			writeError(w, err)
			return
		}
	}

	doc := &store.Document{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		RawContent:  raw,
		ContentSize: len(raw),
	}
	if req.IdempotencyKey != "" {
		doc.IdempotencyKey = &req.IdempotencyKey
	}

	if err := h.store.InsertDocument(ctx, doc); err != nil {
		writeError(w, err)
		return
	}

	event := events.DocumentProcessRequested{
		DocumentID:  doc.ID,
		OwnerID:     ownerID,
		RequestedAt: time.Now().UTC(),
	}
	if err := h.producer.Publish(ctx, kafka.Event{Key: doc.ID, Value: event}); err != nil {
		// The row exists but no processing will start; surface the
		// failure so the client can retry via reprocess.
		log.Error("failed to enqueue processing", "document_id", doc.ID, "error", err)
		writeError(w, apperrors.Newf(apperrors.ErrInternal, 500, "enqueueing processing for %s", doc.ID))
		return
	}

	log.Info("document accepted", "document_id", doc.ID, "size", len(raw), "content_type", req.ContentType)
	writeJSON(w, http.StatusAccepted, UploadResponse{DocumentID: doc.ID, Status: "queued"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFrom(r)
	if ownerID == "" {
		writeError(w, apperrors.New(apperrors.ErrUnauthorized, 401, "missing owner identity"))
		return
	}

	docs, err := h.store.ListDocuments(r.Context(), ownerID, 100)
	if err != nil {
		writeError(w, err)
		return
	}
	summaries := make([]DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, summarize(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": summaries, "count": len(summaries)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFrom(r)
	if ownerID == "" {
		writeError(w, apperrors.New(apperrors.ErrUnauthorized, 401, "missing owner identity"))
		return
	}

	doc, err := h.store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if doc.OwnerID != ownerID {
		// Do not leak the existence of another owner's document.
		writeError(w, apperrors.ErrDocumentNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summarize(doc))
}

func summarize(d *store.Document) DocumentSummary {
	return DocumentSummary{
		ID:              d.ID,
		Filename:        d.Filename,
		ContentType:     d.ContentType,
		ContentSize:     d.ContentSize,
		Processed:       d.Processed,
		ProcessingError: d.ProcessingError,
		Preview:         d.Preview,
		ChunkCount:      d.ChunkCount,
		CreatedAt:       d.CreatedAt,
		ProcessedAt:     d.ProcessedAt,
	}
}

func statusOf(d *store.Document) string {
	switch {
	case d.Processed:
		return "processed"
	case d.ProcessingError != nil:
		return "failed"
	default:
		return "queued"
	}
}

// ownerFrom reads the authenticated owner set by the gateway.
func ownerFrom(r *http.Request) string {
	return r.Header.Get("X-Owner-ID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}
