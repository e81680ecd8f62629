// Package pipeline orchestrates document processing: extract, normalize,
// chunk, score, embed, persist. Each document is processed independently;
// the chunk batch is written all-or-nothing so a document is either fully
// embedded or untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/docforge/rag-pipeline/internal/chunker"
	"github.com/docforge/rag-pipeline/internal/extractor"
	"github.com/docforge/rag-pipeline/internal/normalizer"
	"github.com/docforge/rag-pipeline/internal/quality"
	"github.com/docforge/rag-pipeline/internal/store"
	"github.com/docforge/rag-pipeline/pkg/config"
	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/metrics"
	"github.com/docforge/rag-pipeline/pkg/tracing"
)

const previewMaxChars = 10000

// DocumentStore is the persistence surface the orchestrator needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	GetDocumentWithContent(ctx context.Context, id string) (*store.Document, error)
	PersistChunks(ctx context.Context, doc *store.Document, preview string, chunks []store.ChunkRecord) error
	MarkFailed(ctx context.Context, id, message string) error
	ResetDocument(ctx context.Context, id string) error
}

// BatchEmbedder embeds a batch of chunk texts.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Orchestrator sequences the ingestion pipeline for one document at a time.
type Orchestrator struct {
	extractor *extractor.Extractor
	embedder  BatchEmbedder
	store     DocumentStore
	cfg       config.PipelineConfig
	metrics   *metrics.Metrics
}

// NewOrchestrator creates an Orchestrator. m may be nil in tests.
func NewOrchestrator(ex *extractor.Extractor, embedder BatchEmbedder, st DocumentStore, cfg config.PipelineConfig, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{extractor: ex, embedder: embedder, store: st, cfg: cfg, metrics: m}
}

// Result summarizes one processing run.
type Result struct {
	DocumentID   string
	ChunkCount   int
	QualityScore float64
	Degraded     bool
	Skipped      bool
}

// Process runs the full pipeline for a stored document. Already-processed
// documents are skipped; they are only re-run after an explicit reset.
func (o *Orchestrator) Process(ctx context.Context, documentID string) (Result, error) {
	log := logger.FromContext(ctx).With("component", "pipeline", "document_id", documentID)
	ctx, span := tracing.StartSpan(ctx, "pipeline.process", documentID)
	defer func() {
		span.End()
		span.Log()
	}()

	doc, err := o.store.GetDocumentWithContent(ctx, documentID)
	if err != nil {
		return Result{DocumentID: documentID}, fmt.Errorf("loading document: %w", err)
	}
	if doc.Processed {
		log.Info("document already processed, skipping")
		return Result{DocumentID: documentID, ChunkCount: doc.ChunkCount, Skipped: true}, nil
	}

	res, err := o.run(ctx, doc)
	if err != nil {
		if markErr := o.store.MarkFailed(ctx, documentID, err.Error()); markErr != nil {
			log.Error("failed to record processing error", "error", markErr)
		}
		o.countOutcome("error")
		return res, err
	}

	outcome := "ok"
	if res.Degraded {
		outcome = "degraded"
	}
	o.countOutcome(outcome)
	log.Info("document processed",
		"chunks", res.ChunkCount,
		"quality_score", res.QualityScore,
		"degraded", res.Degraded,
	)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, doc *store.Document) (Result, error) {
	log := logger.FromContext(ctx).With("component", "pipeline", "document_id", doc.ID)
	res := Result{DocumentID: doc.ID}

	// Extract.
	extracted, err := o.stageExtract(ctx, doc)
	if err != nil {
		return res, err
	}
	res.Degraded = extracted.Degraded
	o.countExtraction(extracted.Strategy)

	// Normalize.
	text := o.timedStage(ctx, "normalize", func() string {
		return normalizer.Normalize(extracted.Text)
	})

	// Chunk.
	var sections []chunker.Section
	o.timedStage(ctx, "chunk", func() string {
		sections = chunker.Chunk(text, o.cfg.MaxChunkSize, o.cfg.ChunkOverlap)
		return ""
	})

	// Heading-only sections are kept by the chunker for accounting but
	// carry nothing worth indexing; drop them before embedding.
	contents := make([]string, 0, len(sections))
	kept := make([]chunker.Section, 0, len(sections))
	for _, s := range sections {
		if s.Content == "" {
			continue
		}
		kept = append(kept, s)
		contents = append(contents, s.Content)
	}

	// Quality diagnostics: logged, never blocking.
	report := quality.AnalyzeDocument(contents)
	res.QualityScore = report.QualityScore

	// Embed.
	start := time.Now()
	vectors, err := o.embedder.EmbedBatch(ctx, contents)
	o.observeStage("embed", time.Since(start))
	if err != nil {
		return res, fmt.Errorf("%w: embedding batch: %v", apperrors.ErrEmbedding, err)
	}
	log.Info("quality report", "report", quality.FormatReport(report, quality.AnalyzeEmbeddings(vectors)))

	// Persist all chunks in one transaction.
	records := make([]store.ChunkRecord, len(kept))
	for i, s := range kept {
		records[i] = store.ChunkRecord{
			Index:         i,
			Content:       s.Content,
			Heading:       s.Heading,
			TokenEstimate: chunker.TokenEstimate(s.Content),
			Embedding:     vectors[i],
		}
	}
	preview := text
	if len(preview) > previewMaxChars {
		cut := previewMaxChars
		// Back up to a rune boundary so the preview stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}

	start = time.Now()
	if err := o.store.PersistChunks(ctx, doc, preview, records); err != nil {
		o.observeStage("persist", time.Since(start))
		return res, err
	}
	o.observeStage("persist", time.Since(start))
	if o.metrics != nil {
		o.metrics.ChunksPersistedTotal.Add(float64(len(records)))
	}

	res.ChunkCount = len(records)
	return res, nil
}

func (o *Orchestrator) stageExtract(ctx context.Context, doc *store.Document) (extractor.Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "pipeline.extract")
	defer span.End()

	start := time.Now()
	extracted, err := o.extractor.Extract(ctx, doc.RawContent, doc.ContentType)
	o.observeStage("extract", time.Since(start))
	if err != nil {
		if errors.Is(err, apperrors.ErrUnsupportedType) {
			return extractor.Result{}, err
		}
		return extractor.Result{}, fmt.Errorf("%w: %v", apperrors.ErrExtraction, err)
	}
	span.SetAttr("strategy", extracted.Strategy)
	return extracted, nil
}

func (o *Orchestrator) timedStage(ctx context.Context, name string, fn func() string) string {
	_, span := tracing.StartChildSpan(ctx, "pipeline."+name)
	defer span.End()
	start := time.Now()
	out := fn()
	o.observeStage(name, time.Since(start))
	return out
}

func (o *Orchestrator) observeStage(stage string, elapsed time.Duration) {
	if o.metrics != nil {
		o.metrics.ProcessingDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}

func (o *Orchestrator) countOutcome(outcome string) {
	if o.metrics != nil {
		o.metrics.DocsProcessedTotal.WithLabelValues(outcome).Inc()
	}
}

func (o *Orchestrator) countExtraction(strategy string) {
	if o.metrics != nil {
		o.metrics.ExtractionWinsTotal.WithLabelValues(strategy).Inc()
	}
}
