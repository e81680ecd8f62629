package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docforge/rag-pipeline/internal/events"
	"github.com/docforge/rag-pipeline/pkg/kafka"
	"github.com/docforge/rag-pipeline/pkg/rpc"
)

// RPCService exposes the processor's admin surface over the internal RPC
// listener: document status lookups and reprocess requests.
type RPCService struct {
	store   DocumentStore
	requeue AnalyticsPublisher // document-process topic producer
}

// NewRPCService creates the admin RPC service. requeue publishes to the
// document-process topic.
func NewRPCService(st DocumentStore, requeue AnalyticsPublisher) *RPCService {
	return &RPCService{store: st, requeue: requeue}
}

// Register binds the service methods on the RPC server.
func (s *RPCService) Register(server *rpc.Server) {
	server.Register("Pipeline.Status", s.status)
	server.Register("Pipeline.Reprocess", s.reprocess)
}

func (s *RPCService) status(ctx context.Context, params json.RawMessage) (any, error) {
	var req rpc.StatusRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("decoding status request: %w", err)
	}
	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	status := "pending"
	switch {
	case doc.Processed:
		status = "processed"
	case doc.ProcessingError != nil:
		status = "failed"
	}
	resp := rpc.StatusResponse{
		DocumentID: doc.ID,
		Status:     status,
		ChunkCount: doc.ChunkCount,
		UpdatedAt:  doc.CreatedAt,
	}
	if doc.ProcessedAt != nil {
		resp.UpdatedAt = *doc.ProcessedAt
	}
	return &resp, nil
}

// reprocess resets the document's processing state and re-enqueues it. The
// reset clears processed so the orchestrator's skip guard does not fire.
func (s *RPCService) reprocess(ctx context.Context, params json.RawMessage) (any, error) {
	var req rpc.ReprocessRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("decoding reprocess request: %w", err)
	}
	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ResetDocument(ctx, req.DocumentID); err != nil {
		return nil, err
	}
	if s.requeue != nil {
		event := events.DocumentProcessRequested{
			DocumentID:  doc.ID,
			OwnerID:     doc.OwnerID,
			Reprocess:   true,
			RequestedAt: time.Now().UTC(),
		}
		if err := s.requeue.Publish(ctx, kafka.Event{Key: doc.ID, Value: event}); err != nil {
			return nil, fmt.Errorf("re-enqueueing document: %w", err)
		}
	}
	return &rpc.ReprocessResponse{DocumentID: doc.ID, Accepted: true}, nil
}
