package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docforge/rag-pipeline/internal/embedding"
	"github.com/docforge/rag-pipeline/internal/extractor"
	"github.com/docforge/rag-pipeline/internal/store"
	"github.com/docforge/rag-pipeline/pkg/config"
	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
)

// memStore is an in-memory DocumentStore.
type memStore struct {
	mu     sync.Mutex
	docs   map[string]*store.Document
	chunks map[string][]store.ChunkRecord
}

func newMemStore() *memStore {
	return &memStore{
		docs:   make(map[string]*store.Document),
		chunks: make(map[string][]store.ChunkRecord),
	}
}

func (m *memStore) add(doc *store.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
}

func (m *memStore) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	return m.GetDocumentWithContent(ctx, id)
}

func (m *memStore) GetDocumentWithContent(ctx context.Context, id string) (*store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *memStore) PersistChunks(ctx context.Context, doc *store.Document, preview string, chunks []store.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.docs[doc.ID]
	stored.Processed = true
	stored.ProcessingError = nil
	stored.Preview = preview
	stored.ChunkCount = len(chunks)
	now := time.Now()
	stored.ProcessedAt = &now
	m.chunks[doc.ID] = chunks
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[id]; ok {
		doc.Processed = false
		doc.ProcessingError = &message
	}
	return nil
}

func (m *memStore) ResetDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return apperrors.ErrDocumentNotFound
	}
	doc.Processed = false
	doc.ProcessingError = nil
	doc.ChunkCount = 0
	doc.ProcessedAt = nil
	delete(m.chunks, id)
	return nil
}

func newTestOrchestrator(st DocumentStore) *Orchestrator {
	gen := embedding.NewGenerator(nil, nil, 2)
	return NewOrchestrator(extractor.New(), gen, st,
		config.PipelineConfig{MaxChunkSize: 1000, ChunkOverlap: 200}, nil)
}

func plainTextDocument(id, ownerID, text string) *store.Document {
	return &store.Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    "doc.txt",
		ContentType: "text/plain",
		RawContent:  []byte(text),
		ContentSize: len(text),
		CreatedAt:   time.Now(),
	}
}

func TestProcessEndToEnd(t *testing.T) {
	// 3000-character plain-text document with two headings at
	// maxChunkSize 1000 must yield at least 2 persisted chunks, every
	// embedding exactly 384 long, and the summary count matching the
	// persisted rows.
	var body strings.Builder
	body.WriteString("First Heading:\n")
	for body.Len() < 1500 {
		body.WriteString("This section describes the replication design in detail across nodes. ")
	}
	body.WriteString("\nSecond Heading:\n")
	for body.Len() < 3000 {
		body.WriteString("This section covers operational runbooks and failure recovery steps. ")
	}

	st := newMemStore()
	st.add(plainTextDocument("doc-1", "owner-1", body.String()))

	result, err := newTestOrchestrator(st).Process(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.GreaterOrEqual(t, result.ChunkCount, 2)

	stored, err := st.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.Nil(t, stored.ProcessingError)
	assert.Equal(t, result.ChunkCount, stored.ChunkCount)
	assert.Equal(t, result.ChunkCount, len(st.chunks["doc-1"]))

	for i, c := range st.chunks["doc-1"] {
		assert.Len(t, c.Embedding, 384, "chunk %d embedding length", i)
		assert.Equal(t, i, c.Index, "chunk indices must be contiguous and 0-based")
		assert.NotEmpty(t, c.Content)
	}
}

func TestProcessPreviewTruncatesOnRuneBoundary(t *testing.T) {
	// 4000 three-byte runes put the preview cut mid-rune unless the
	// truncation backs up to a boundary.
	st := newMemStore()
	st.add(plainTextDocument("doc-cjk", "owner-1", strings.Repeat("文", 4000)))

	result, err := newTestOrchestrator(st).Process(context.Background(), "doc-cjk")
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	stored, err := st.GetDocument(context.Background(), "doc-cjk")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(stored.Preview), previewMaxChars)
	assert.True(t, utf8.ValidString(stored.Preview), "preview must stay valid UTF-8 after truncation")

	for i, c := range st.chunks["doc-cjk"] {
		assert.True(t, utf8.ValidString(c.Content), "chunk %d contains invalid UTF-8", i)
	}
}

func TestProcessSkipsAlreadyProcessed(t *testing.T) {
	st := newMemStore()
	doc := plainTextDocument("doc-2", "owner-1", "some text")
	doc.Processed = true
	doc.ChunkCount = 3
	st.add(doc)

	result, err := newTestOrchestrator(st).Process(context.Background(), "doc-2")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 3, result.ChunkCount)
}

func TestProcessUnsupportedTypeMarksFailed(t *testing.T) {
	st := newMemStore()
	doc := plainTextDocument("doc-3", "owner-1", "binary")
	doc.ContentType = "image/png"
	doc.RawContent = []byte{0x89, 0x50, 0x4e, 0x47}
	st.add(doc)

	_, err := newTestOrchestrator(st).Process(context.Background(), "doc-3")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)

	stored, _ := st.GetDocument(context.Background(), "doc-3")
	assert.False(t, stored.Processed)
	require.NotNil(t, stored.ProcessingError)
}

func TestProcessCorruptPDFIsDegradedNotFailed(t *testing.T) {
	st := newMemStore()
	doc := plainTextDocument("doc-4", "owner-1", "")
	doc.ContentType = "application/pdf"
	doc.RawContent = []byte("%PDF-1.5\nnot really a pdf")
	st.add(doc)

	result, err := newTestOrchestrator(st).Process(context.Background(), "doc-4")
	require.NoError(t, err, "degraded extraction must not fail the document")
	assert.True(t, result.Degraded)

	stored, _ := st.GetDocument(context.Background(), "doc-4")
	assert.True(t, stored.Processed)
	assert.Nil(t, stored.ProcessingError)
}

func TestProcessMissingDocument(t *testing.T) {
	_, err := newTestOrchestrator(newMemStore()).Process(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestProcessReprocessAfterReset(t *testing.T) {
	st := newMemStore()
	st.add(plainTextDocument("doc-5", "owner-1",
		strings.Repeat("A reasonable sentence with several words goes here. ", 40)))
	o := newTestOrchestrator(st)

	first, err := o.Process(context.Background(), "doc-5")
	require.NoError(t, err)
	require.Greater(t, first.ChunkCount, 0)

	// Without a reset the second run is a no-op.
	again, err := o.Process(context.Background(), "doc-5")
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	require.NoError(t, st.ResetDocument(context.Background(), "doc-5"))
	third, err := o.Process(context.Background(), "doc-5")
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Equal(t, first.ChunkCount, third.ChunkCount)
}
