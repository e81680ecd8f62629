package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docforge/rag-pipeline/internal/store"
	"github.com/docforge/rag-pipeline/pkg/config"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) []float32 {
	return make([]float32, 384)
}

// fakeSearcher records the order in which stages are invoked.
type fakeSearcher struct {
	calls       []string
	vectorHits  []store.ChunkHit
	vectorErr   error
	keywordHits []store.ChunkHit
	keywordErr  error
	recentHits  []store.ChunkHit
	recentErr   error
}

func (f *fakeSearcher) VectorSearch(ctx context.Context, embedding []float32, ownerID string, threshold float64, count int) ([]store.ChunkHit, error) {
	f.calls = append(f.calls, "vector")
	return f.vectorHits, f.vectorErr
}

func (f *fakeSearcher) KeywordSearch(ctx context.Context, keywords []string, ownerID string, limit int) ([]store.ChunkHit, error) {
	f.calls = append(f.calls, "keyword")
	return f.keywordHits, f.keywordErr
}

func (f *fakeSearcher) RecentChunks(ctx context.Context, ownerID string, limit int) ([]store.ChunkHit, error) {
	f.calls = append(f.calls, "recent")
	return f.recentHits, f.recentErr
}

func testConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		MatchThreshold: 0.3,
		MatchCount:     10,
		KeywordLimit:   10,
		RecencyLimit:   5,
		ContextTopK:    10,
		DefaultLimit:   10,
		MaxResults:     50,
	}
}

func hit(docID string, index int, content string, similarity float64) store.ChunkHit {
	return store.ChunkHit{
		DocumentID: docID,
		ChunkIndex: index,
		Content:    content,
		Similarity: &similarity,
	}
}

func TestRetrieveVectorStageWins(t *testing.T) {
	s := &fakeSearcher{vectorHits: []store.ChunkHit{hit("d1", 0, "vector result", 0.9)}}
	e := NewEngine(s, fakeEmbedder{}, testConfig(), nil)

	hits, stage, err := e.Retrieve(context.Background(), "test query", "owner1", 10)
	require.NoError(t, err)
	assert.Equal(t, StageVector, stage)
	require.Len(t, hits, 1)
	assert.Equal(t, []string{"vector"}, s.calls, "later stages must not run when vector search hits")
}

func TestRetrieveCascadesToKeyword(t *testing.T) {
	s := &fakeSearcher{
		keywordHits: []store.ChunkHit{{DocumentID: "d1", ChunkIndex: 2, Content: "keyword result"}},
	}
	e := NewEngine(s, fakeEmbedder{}, testConfig(), nil)

	hits, stage, err := e.Retrieve(context.Background(), "database replication", "owner1", 10)
	require.NoError(t, err)
	assert.Equal(t, StageKeyword, stage)
	require.Len(t, hits, 1)
	assert.Equal(t, []string{"vector", "keyword"}, s.calls, "vector must be attempted before keyword")
}

func TestRetrieveCascadesToRecency(t *testing.T) {
	s := &fakeSearcher{
		recentHits: []store.ChunkHit{{DocumentID: "d1", ChunkIndex: 0, Content: "recent chunk"}},
	}
	e := NewEngine(s, fakeEmbedder{}, testConfig(), nil)

	_, stage, err := e.Retrieve(context.Background(), "unmatchable query words", "owner1", 10)
	require.NoError(t, err)
	assert.Equal(t, StageRecency, stage)
	assert.Equal(t, []string{"vector", "keyword", "recent"}, s.calls)
}

func TestRetrieveAllStagesEmptyIsNotAnError(t *testing.T) {
	s := &fakeSearcher{}
	e := NewEngine(s, fakeEmbedder{}, testConfig(), nil)

	hits, stage, err := e.Retrieve(context.Background(), "anything here", "owner1", 10)
	require.NoError(t, err)
	assert.Equal(t, StageEmpty, stage)
	assert.Empty(t, hits)
}

func TestRetrieveStageErrorFallsThrough(t *testing.T) {
	s := &fakeSearcher{
		vectorErr:   errors.New("index unavailable"),
		keywordHits: []store.ChunkHit{{DocumentID: "d1", ChunkIndex: 0, Content: "still found"}},
	}
	e := NewEngine(s, fakeEmbedder{}, testConfig(), nil)

	hits, stage, err := e.Retrieve(context.Background(), "resilient query", "owner1", 10)
	require.NoError(t, err, "a stage error must not surface to the caller")
	assert.Equal(t, StageKeyword, stage)
	require.Len(t, hits, 1)
}

func TestRetrieveEmptyQueryRejected(t *testing.T) {
	e := NewEngine(&fakeSearcher{}, fakeEmbedder{}, testConfig(), nil)
	_, _, err := e.Retrieve(context.Background(), "   ", "owner1", 10)
	assert.Error(t, err)
}

func TestRetrieveOrdersBySimilarityThenChunkIndex(t *testing.T) {
	s := &fakeSearcher{vectorHits: []store.ChunkHit{
		hit("d1", 5, "third", 0.4),
		hit("d1", 2, "tied-later", 0.7),
		hit("d1", 1, "tied-earlier", 0.7),
		hit("d2", 0, "best", 0.9),
	}}
	e := NewEngine(s, fakeEmbedder{}, testConfig(), nil)

	hits, _, err := e.Retrieve(context.Background(), "ordering query", "owner1", 10)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, "best", hits[0].Content)
	assert.Equal(t, "tied-earlier", hits[1].Content, "equal similarity: earlier chunk_index wins")
	assert.Equal(t, "tied-later", hits[2].Content)
	assert.Equal(t, "third", hits[3].Content)
}

func TestRetrieveRespectsLimit(t *testing.T) {
	var many []store.ChunkHit
	for i := 0; i < 20; i++ {
		many = append(many, hit("d1", i, "content", 0.8))
	}
	s := &fakeSearcher{vectorHits: many}
	e := NewEngine(s, fakeEmbedder{}, testConfig(), nil)

	hits, _, err := e.Retrieve(context.Background(), "limited query", "owner1", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"database", "replication", "lag"},
		Tokenize("Database replication lag?"))
	assert.Equal(t, []string{"kubernetes"}, Tokenize("a is of Kubernetes"))
	assert.Nil(t, Tokenize("a b c"))
}

func TestAssembleContext(t *testing.T) {
	heading := "Setup:"
	hits := []store.ChunkHit{
		{Content: "first chunk", Filename: "guide.pdf", Heading: &heading},
		{Content: "second chunk"},
	}
	out := AssembleContext(hits, 10)
	assert.Contains(t, out, "[Source: guide.pdf]")
	assert.Contains(t, out, "Setup:")
	assert.Contains(t, out, "[Source: Unknown]")
	assert.Contains(t, out, "second chunk")
}

func TestAssembleContextCapsAtTopK(t *testing.T) {
	var hits []store.ChunkHit
	for i := 0; i < 15; i++ {
		hits = append(hits, store.ChunkHit{Content: "chunk", Filename: "f.txt"})
	}
	out := AssembleContext(hits, 25) // requested K above the hard cap
	// The hard cap of 10 applies regardless of the requested K.
	assert.Equal(t, 10, strings.Count(out, "[Source: f.txt]"))
}

func TestAssembleContextEmpty(t *testing.T) {
	assert.Empty(t, AssembleContext(nil, 5))
}
