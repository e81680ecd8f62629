package quality

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeChunkEmpty(t *testing.T) {
	m := AnalyzeChunk("")
	assert.Zero(t, m.WordCount)
	assert.Zero(t, m.VocabRichness)
	assert.Zero(t, m.InfoDensity)
}

func TestAnalyzeChunkBasicText(t *testing.T) {
	m := AnalyzeChunk("The replication protocol guarantees durability. Quorum writes survive single node failures.")
	assert.Equal(t, 11, m.WordCount)
	assert.Equal(t, 2, m.SentenceCount)
	assert.Greater(t, m.VocabRichness, 0.8)
	assert.Greater(t, m.InfoDensity, 0.5)
	assert.GreaterOrEqual(t, m.StructuralScore, 0.5)
	assert.LessOrEqual(t, m.StructuralScore, 1.0)
}

func TestStructuralScoreCapped(t *testing.T) {
	// Long multi-sentence alphabetic text hits every bonus.
	text := strings.Repeat("A well formed sentence sits right here in the middle range. ", 10)
	m := AnalyzeChunk(text)
	assert.LessOrEqual(t, m.StructuralScore, 1.0)
	assert.GreaterOrEqual(t, m.StructuralScore, 0.9)
}

func TestQualityScoreMonotonicInVocabRichness(t *testing.T) {
	// Increasing the share of distinct words must never lower the score.
	makeChunk := func(distinct int) string {
		words := make([]string, 40)
		for i := range words {
			words[i] = fmt.Sprintf("word%d", i%distinct)
		}
		return strings.Join(words, " ") + "."
	}

	var prev float64
	for _, distinct := range []int{1, 2, 5, 10, 20, 40} {
		r := AnalyzeDocument([]string{makeChunk(distinct), makeChunk(distinct)})
		assert.GreaterOrEqual(t, r.QualityScore, prev,
			"score decreased when vocabulary got richer (distinct=%d)", distinct)
		prev = r.QualityScore
	}
}

func TestQualityScoreMonotonicInInfoDensity(t *testing.T) {
	// Replacing stop words with content words must never lower the score.
	makeChunk := func(contentWords int) string {
		words := make([]string, 40)
		for i := range words {
			if i < contentWords {
				words[i] = fmt.Sprintf("protocol%d", i)
			} else {
				words[i] = "the"
			}
		}
		return strings.Join(words, " ") + "."
	}

	var prev float64
	for _, n := range []int{0, 10, 20, 30, 40} {
		r := AnalyzeDocument([]string{makeChunk(n), makeChunk(n)})
		assert.GreaterOrEqual(t, r.QualityScore, prev,
			"score decreased when density rose (content_words=%d)", n)
		prev = r.QualityScore
	}
}

func TestAnalyzeDocumentChunkCountAdjustment(t *testing.T) {
	chunk := strings.Repeat("Distinct meaningful words populate this sentence nicely. ", 5)

	single := AnalyzeDocument([]string{chunk})
	healthy := AnalyzeDocument([]string{chunk, chunk, chunk})

	// 2-50 chunks gets +0.1, exactly one gets -0.2.
	assert.Greater(t, healthy.QualityScore, single.QualityScore)
	assert.GreaterOrEqual(t, single.QualityScore, 0.1)
	assert.LessOrEqual(t, healthy.QualityScore, 1.0)
}

func TestAnalyzeDocumentEmpty(t *testing.T) {
	r := AnalyzeDocument(nil)
	assert.Equal(t, 0, r.ChunkCount)
	assert.Equal(t, 0.1, r.QualityScore)
}

func TestAnalyzeEmbeddings(t *testing.T) {
	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0.8, 0.2, 0},
		{0.7, 0.3, 0},
	}
	s := AnalyzeEmbeddings(vecs)
	assert.Equal(t, 4, s.Count)
	assert.Greater(t, s.MeanMagnitude, 0.0)
	assert.Greater(t, s.Coherence, 0.8, "nearly parallel vectors are coherent")
}

func TestAnalyzeEmbeddingsCoherenceBounded(t *testing.T) {
	// 100 vectors: the neighborhood comparison is capped at 4 per vector.
	vecs := make([][]float32, 100)
	for i := range vecs {
		vecs[i] = []float32{float32(i%7) - 3, float32(i%5) - 2, 1}
	}
	s := AnalyzeEmbeddings(vecs)
	assert.GreaterOrEqual(t, s.Coherence, -1.0)
	assert.LessOrEqual(t, s.Coherence, 1.0)
}

func TestAnalyzeEmbeddingsEmpty(t *testing.T) {
	s := AnalyzeEmbeddings(nil)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.Coherence)
}

func TestFormatReportFlags(t *testing.T) {
	report := FormatReport(
		DocumentReport{ChunkCount: 3, AvgChunkLength: 50, QualityScore: 0.2},
		EmbeddingStats{Count: 10, OutlierCount: 5, Coherence: 0.05},
	)
	assert.Contains(t, report, "LOW_QUALITY")
	assert.Contains(t, report, "CHUNK_LENGTH_EXTREME")
	assert.Contains(t, report, "EXCESSIVE_OUTLIERS")
	assert.Contains(t, report, "LOW_COHERENCE")
}

func TestFormatReportNoFlagsForHealthyDocument(t *testing.T) {
	report := FormatReport(
		DocumentReport{ChunkCount: 5, AvgChunkLength: 800, QualityScore: 0.7},
		EmbeddingStats{Count: 5, OutlierCount: 0, Coherence: 0.5},
	)
	assert.NotContains(t, report, "flags=")
}
