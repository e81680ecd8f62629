// Package quality computes read-only diagnostics for chunked documents and
// their embeddings. Reports are logged, never acted on; a low score flags a
// document for inspection but does not block the pipeline.
package quality

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "will": {}, "been": {},
	"were": {}, "their": {}, "there": {}, "which": {}, "would": {},
	"about": {}, "into": {}, "than": {}, "them": {}, "then": {},
	"these": {}, "some": {}, "what": {}, "when": {}, "your": {},
}

// ChunkMetrics holds per-chunk text statistics.
type ChunkMetrics struct {
	WordCount       int
	SentenceCount   int
	VocabRichness   float64
	InfoDensity     float64
	StructuralScore float64
	Length          int
}

// DocumentReport aggregates chunk metrics for one document.
type DocumentReport struct {
	ChunkCount           int
	AvgChunkLength       float64
	VocabRichness        float64
	InfoDensity          float64
	StructuralScore      float64
	QualityScore         float64
	ExtractionConfidence float64
}

// EmbeddingStats summarizes a document's embedding vectors.
type EmbeddingStats struct {
	Count         int
	MeanMagnitude float64
	StdDev        float64
	OutlierCount  int
	Coherence     float64
}

// AnalyzeChunk computes text statistics for one chunk.
func AnalyzeChunk(content string) ChunkMetrics {
	words := strings.Fields(content)
	m := ChunkMetrics{
		WordCount:     len(words),
		SentenceCount: countSentences(content),
		Length:        len(content),
	}
	if len(words) == 0 {
		return m
	}

	unique := make(map[string]struct{}, len(words))
	contentWords := 0
	for _, w := range words {
		lw := strings.ToLower(strings.TrimFunc(w, unicode.IsPunct))
		unique[lw] = struct{}{}
		if len(lw) > 2 {
			if _, stop := stopWords[lw]; !stop {
				contentWords++
			}
		}
	}
	m.VocabRichness = float64(len(unique)) / float64(len(words))
	m.InfoDensity = float64(contentWords) / float64(len(words))
	m.StructuralScore = structuralScore(content, m)
	return m
}

// structuralScore starts from 0.5 and rewards sentence shape, punctuation,
// paragraph structure, and a healthy alphabetic ratio, capped at 1.0.
func structuralScore(content string, m ChunkMetrics) float64 {
	score := 0.5
	if m.SentenceCount > 0 {
		mean := float64(m.WordCount) / float64(m.SentenceCount)
		if mean >= 8 && mean <= 20 {
			score += 0.2
		}
	}
	if strings.ContainsAny(content, ".!?,;:") {
		score += 0.1
	}
	if strings.Contains(content, "\n\n") || len(content) > 200 {
		score += 0.1
	}
	if alphaRatio(content) > 0.6 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func alphaRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	alpha := 0
	total := 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	return float64(alpha) / float64(total)
}

func countSentences(s string) int {
	n := 0
	for _, r := range s {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	return n
}

// AnalyzeDocument aggregates chunk metrics into a document-level report.
// The overall score weights information density highest, then vocabulary
// richness and structure equally; extraction confidence adjusts for chunk
// count extremes and the result is clamped to [0.1, 1.0].
func AnalyzeDocument(chunks []string) DocumentReport {
	r := DocumentReport{ChunkCount: len(chunks)}
	if len(chunks) == 0 {
		r.QualityScore = 0.1
		r.ExtractionConfidence = 0.1
		return r
	}

	var totalLen int
	for _, c := range chunks {
		m := AnalyzeChunk(c)
		r.VocabRichness += m.VocabRichness
		r.InfoDensity += m.InfoDensity
		r.StructuralScore += m.StructuralScore
		totalLen += m.Length
	}
	n := float64(len(chunks))
	r.VocabRichness /= n
	r.InfoDensity /= n
	r.StructuralScore /= n
	r.AvgChunkLength = float64(totalLen) / n

	score := 0.3*r.VocabRichness + 0.4*r.InfoDensity + 0.3*r.StructuralScore
	switch {
	case len(chunks) >= 2 && len(chunks) <= 50:
		score += 0.1
	case len(chunks) == 1:
		score -= 0.2
	}
	if score < 0.1 {
		score = 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	r.QualityScore = score
	r.ExtractionConfidence = score
	return r
}

// AnalyzeEmbeddings computes magnitude statistics and an O(n) coherence
// approximation: each vector is compared only to the next four in sequence
// rather than to all pairs.
func AnalyzeEmbeddings(vectors [][]float32) EmbeddingStats {
	s := EmbeddingStats{Count: len(vectors)}
	if len(vectors) == 0 {
		return s
	}

	magnitudes := make([]float64, len(vectors))
	var sum float64
	for i, v := range vectors {
		magnitudes[i] = magnitude(v)
		sum += magnitudes[i]
	}
	s.MeanMagnitude = sum / float64(len(vectors))

	var variance float64
	for _, m := range magnitudes {
		d := m - s.MeanMagnitude
		variance += d * d
	}
	s.StdDev = math.Sqrt(variance / float64(len(vectors)))

	for _, m := range magnitudes {
		if math.Abs(m-s.MeanMagnitude) > 2*s.StdDev && s.StdDev > 0 {
			s.OutlierCount++
		}
	}

	var simSum float64
	pairs := 0
	for i := range vectors {
		for j := i + 1; j <= i+4 && j < len(vectors); j++ {
			simSum += cosineSimilarity(vectors[i], vectors[j])
			pairs++
		}
	}
	if pairs > 0 {
		s.Coherence = simSum / float64(pairs)
	}
	return s
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// FormatReport renders a human-readable diagnostic summary, flagging the
// conditions operators care about.
func FormatReport(doc DocumentReport, emb EmbeddingStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "chunks=%d avg_len=%.0f quality=%.2f vocab=%.2f density=%.2f structure=%.2f",
		doc.ChunkCount, doc.AvgChunkLength, doc.QualityScore,
		doc.VocabRichness, doc.InfoDensity, doc.StructuralScore)
	if emb.Count > 0 {
		fmt.Fprintf(&sb, " emb_mean_mag=%.3f emb_stddev=%.3f outliers=%d coherence=%.3f",
			emb.MeanMagnitude, emb.StdDev, emb.OutlierCount, emb.Coherence)
	}

	var flags []string
	if doc.QualityScore < 0.3 {
		flags = append(flags, "LOW_QUALITY")
	}
	if doc.ChunkCount > 0 && (doc.AvgChunkLength < 100 || doc.AvgChunkLength > 2000) {
		flags = append(flags, "CHUNK_LENGTH_EXTREME")
	}
	if emb.Count > 0 && float64(emb.OutlierCount) > 0.2*float64(emb.Count) {
		flags = append(flags, "EXCESSIVE_OUTLIERS")
	}
	if emb.Count > 1 && emb.Coherence < 0.1 {
		flags = append(flags, "LOW_COHERENCE")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&sb, " flags=%s", strings.Join(flags, ","))
	}
	return sb.String()
}
