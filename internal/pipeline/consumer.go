package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/docforge/rag-pipeline/internal/events"
	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/kafka"
	"github.com/docforge/rag-pipeline/pkg/logger"
)

// AnalyticsPublisher emits processing analytics events. Nil disables
// publishing.
type AnalyticsPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// CacheInvalidator drops an owner's cached query results after their corpus
// changes. Nil disables invalidation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ownerID string) (int64, error)
}

// Consumer wires the orchestrator to the document-process topic.
type Consumer struct {
	orchestrator *Orchestrator
	analytics    AnalyticsPublisher
	cache        CacheInvalidator
}

// NewConsumer creates a Consumer.
func NewConsumer(orchestrator *Orchestrator, analytics AnalyticsPublisher, cache CacheInvalidator) *Consumer {
	return &Consumer{orchestrator: orchestrator, analytics: analytics, cache: cache}
}

// Handle processes one Kafka message. Unsupported content types are not
// retryable, so the message is acknowledged with the failure recorded on the
// document; everything else returns the error so the message is redelivered.
func (c *Consumer) Handle(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[events.DocumentProcessRequested](value)
	if err != nil {
		logger.FromContext(ctx).Error("dropping malformed process event", "error", err)
		return nil
	}

	start := time.Now()
	result, err := c.orchestrator.Process(ctx, event.DocumentID)
	if err != nil {
		c.publishOutcome(ctx, event, events.TypeDocumentFailed, result, time.Since(start))
		if errors.Is(err, apperrors.ErrUnsupportedType) || errors.Is(err, apperrors.ErrDocumentNotFound) {
			logger.FromContext(ctx).Warn("unrecoverable document, acknowledging",
				"document_id", event.DocumentID, "error", err)
			return nil
		}
		return err
	}
	if !result.Skipped {
		c.publishOutcome(ctx, event, events.TypeDocumentProcessed, result, time.Since(start))
		c.invalidateCache(ctx, event.OwnerID)
	}
	return nil
}

func (c *Consumer) invalidateCache(ctx context.Context, ownerID string) {
	if c.cache == nil || ownerID == "" {
		return
	}
	if _, err := c.cache.Invalidate(ctx, ownerID); err != nil {
		logger.FromContext(ctx).Warn("failed to invalidate query cache", "owner_id", ownerID, "error", err)
	}
}

func (c *Consumer) publishOutcome(ctx context.Context, event events.DocumentProcessRequested, eventType string, result Result, elapsed time.Duration) {
	if c.analytics == nil {
		return
	}
	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	if eventType == events.TypeDocumentFailed {
		outcome = "error"
	}
	payload := events.AnalyticsEvent{
		Type:       eventType,
		OwnerID:    event.OwnerID,
		DocumentID: event.DocumentID,
		ChunkCount: result.ChunkCount,
		LatencyMS:  elapsed.Milliseconds(),
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}
	if err := c.analytics.Publish(ctx, kafka.Event{Key: event.OwnerID, Value: payload}); err != nil {
		logger.FromContext(ctx).Warn("failed to publish analytics event", "error", err)
	}
}
