package extractor

import (
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

// calculateExtractionQuality scores extracted text in [0,1]. The score
// combines how much text came out relative to the file size, how
// sentence-like it reads, vocabulary richness, and content density, plus a
// small method-specific structural bonus.
func calculateExtractionQuality(text string, fileSize int, method string) float64 {
	if len(text) < 100 {
		score := baseQualityScore(text, fileSize, method)
		if score > 0.2 {
			score = 0.2
		}
		return clamp01(score)
	}
	return clamp01(baseQualityScore(text, fileSize, method))
}

func baseQualityScore(text string, fileSize int, method string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	lengthRatio := lengthRatioNorm(len(text), fileSize)
	sentenceScore := sentenceStructureScore(text, len(words))
	vocabRichness := vocabularyRichness(words)
	density := contentDensity(words)

	score := 0.30*lengthRatio + 0.25*sentenceScore + 0.20*vocabRichness + 0.15*density
	score += methodBonus(text, method)
	return score
}

// lengthRatioNorm normalizes extracted characters per kilobyte of source,
// saturating at 50 chars/KB.
func lengthRatioNorm(chars, fileSize int) float64 {
	if fileSize <= 0 {
		return 0
	}
	kb := float64(fileSize) / 1000.0
	ratio := (float64(chars) / kb) / 50.0
	if ratio > 1 {
		return 1
	}
	return ratio
}

func sentenceStructureScore(text string, wordCount int) float64 {
	sentences := countSentences(text)
	if sentences == 0 {
		return 0.3
	}
	mean := float64(wordCount) / float64(sentences)
	switch {
	case mean >= 8 && mean <= 25:
		return 1.0
	case mean >= 4 && mean <= 40:
		return 0.7
	default:
		return 0.3
	}
}

func countSentences(text string) int {
	n := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	return n
}

func vocabularyRichness(words []string) float64 {
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(w)] = struct{}{}
	}
	return float64(len(unique)) / float64(len(words))
}

// contentDensity is the fraction of words that carry content: longer than
// two characters and not in the stop-word set.
func contentDensity(words []string) float64 {
	content := 0
	for _, w := range words {
		lw := strings.ToLower(strings.TrimFunc(w, unicode.IsPunct))
		if len(lw) <= 2 {
			continue
		}
		if _, stop := stopWords[lw]; stop {
			continue
		}
		content++
	}
	return float64(content) / float64(len(words))
}

func methodBonus(text string, method string) float64 {
	bonus := 0.0
	switch method {
	case "layout":
		// Tabular structure survives the layout parser; reward it.
		if strings.Contains(text, "|") || strings.Contains(text, "\t") {
			bonus += 0.05
		}
	case "tokenstream":
		// Regular, sparse line breaks indicate the row walk kept its shape.
		lines := strings.Count(text, "\n")
		if lines > 0 {
			avgLineLen := float64(len(text)) / float64(lines)
			if avgLineLen >= 40 && avgLineLen <= 200 {
				bonus += 0.05
			}
		}
	}
	if len(text) < 500 {
		bonus -= 0.1
	}
	return bonus
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
