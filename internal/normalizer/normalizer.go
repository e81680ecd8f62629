// Package normalizer cleans extracted text before chunking: horizontal
// whitespace collapse, punctuation spacing, and a de-hyphenation heuristic
// for OCR output that emits letters one at a time. Line structure is
// preserved because the chunker detects headings per line.
package normalizer

import (
	"regexp"
	"strings"
)

var (
	horizontalRun    = regexp.MustCompile(`[ \t\r\f]+`)
	spaceAroundNL    = regexp.MustCompile(` ?\n ?`)
	blankLineRun     = regexp.MustCompile(`\n{3,}`)
	spaceBeforePunct = regexp.MustCompile(` +([.,;:!])`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// Normalize is a pure function; it never fails.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	out := horizontalRun.ReplaceAllString(text, " ")
	out = spaceAroundNL.ReplaceAllString(out, "\n")
	out = blankLineRun.ReplaceAllString(out, "\n\n")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = deHyphenate(out)
	return strings.TrimSpace(out)
}

// deHyphenate joins adjacent single-character tokens when more than half of
// all tokens are single characters, the signature of an OCR pass that spaced
// out every letter.
func deHyphenate(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}

	single := 0
	for _, tok := range tokens {
		if len([]rune(tok)) == 1 {
			single++
		}
	}
	if float64(single)/float64(len(tokens)) <= 0.5 {
		return text
	}

	var sb strings.Builder
	for i, tok := range tokens {
		sb.WriteString(tok)
		if i == len(tokens)-1 {
			break
		}
		// Keep the space only when either neighbor is a full word.
		if len([]rune(tok)) > 1 || len([]rune(tokens[i+1])) > 1 {
			sb.WriteByte(' ')
		}
	}
	return whitespaceRun.ReplaceAllString(sb.String(), " ")
}
