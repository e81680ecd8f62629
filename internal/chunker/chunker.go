// Package chunker splits normalized text into bounded, semantically coherent
// sections. Strategy order: heading-based when any heading line is present,
// unit-based (bullets, then sentences) with overlap otherwise, and a
// fixed-window character fallback when the text has no usable structure.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Section is one chunk of text paired with the heading it falls under, if
// any. Heading-only sections carry empty Content on purpose so callers can
// account for them.
type Section struct {
	Heading *string
	Content string
}

var (
	numberedLine     = regexp.MustCompile(`^\d+\.\s`)
	sentenceBoundary = regexp.MustCompile(`([.!?])\s+([A-Z])`)
	bulletLine       = regexp.MustCompile(`^[\-\*\x{2022}]\s*`)
)

// Chunk splits text into ordered sections no longer than maxSize characters,
// except when a single atomic unit (bullet or sentence) is itself longer.
// overlap seeds each unit-based or character-fallback chunk with trailing
// content from the previous one. Empty input yields nil.
func Chunk(text string, maxSize, overlap int) []Section {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}

	if sections := chunkByHeadings(text, maxSize); sections != nil {
		return sections
	}
	if sections := chunkByUnits(text, maxSize, overlap); sections != nil {
		return sections
	}
	return chunkByCharacters(text, maxSize, overlap)
}

// TokenEstimate approximates the token count of a chunk for budget
// accounting: roughly one token per four characters.
func TokenEstimate(s string) int {
	return (len(s) + 3) / 4
}

// isHeading reports whether a trimmed line looks like a section heading:
// it ends with a colon, is an all-caps line of 3 to 40 characters, or starts
// a numbered list item.
func isHeading(line string) bool {
	if line == "" {
		return false
	}
	if strings.HasSuffix(line, ":") {
		return true
	}
	if numberedLine.MatchString(line) {
		return true
	}
	n := len([]rune(line))
	if n >= 3 && n <= 40 && line == strings.ToUpper(line) && line != strings.ToLower(line) {
		return true
	}
	return false
}

// chunkByHeadings splits text into sections bounded by heading lines.
// Returns nil when no heading is found so the caller can fall through.
func chunkByHeadings(text string, maxSize int) []Section {
	lines := strings.Split(text, "\n")

	type headingPos struct {
		index   int
		heading string
	}
	var headings []headingPos
	for i, line := range lines {
		if isHeading(strings.TrimSpace(line)) {
			headings = append(headings, headingPos{index: i, heading: strings.TrimSpace(line)})
		}
	}
	if len(headings) == 0 {
		return nil
	}

	var sections []Section

	// Preamble before the first heading belongs to no heading.
	if headings[0].index > 0 {
		pre := strings.Join(lines[:headings[0].index], "\n")
		pre = strings.Trim(pre, "\n")
		if strings.TrimSpace(pre) != "" {
			sections = append(sections, sliceSection(nil, pre, maxSize)...)
		}
	}

	for i, h := range headings {
		end := len(lines)
		if i+1 < len(headings) {
			end = headings[i+1].index
		}
		body := strings.Join(lines[h.index+1:end], "\n")
		body = strings.Trim(body, "\n")
		heading := h.heading
		// Heading-only sections are kept as zero-length chunks.
		sections = append(sections, sliceSection(&heading, body, maxSize)...)
	}
	return sections
}

// sliceSection splits an oversize section body into consecutive slices of
// exactly maxSize characters (final slice shorter); every slice keeps the
// section heading. Slicing is rune-based so a multibyte character is never
// cut in half.
func sliceSection(heading *string, body string, maxSize int) []Section {
	runes := []rune(body)
	if len(runes) <= maxSize {
		return []Section{{Heading: heading, Content: body}}
	}
	var out []Section
	for start := 0; start < len(runes); start += maxSize {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, Section{Heading: heading, Content: string(runes[start:end])})
	}
	return out
}

// chunkByUnits accumulates atomic units (bullets or sentences) into chunks,
// seeding each new chunk with an overlap fragment from the previous one.
// Returns nil when the text has neither bullets nor multi-sentence
// structure.
func chunkByUnits(text string, maxSize, overlap int) []Section {
	units := splitBullets(text)
	if units == nil {
		units = splitSentences(text)
	}
	if units == nil {
		return nil
	}

	var sections []Section
	var current strings.Builder

	flush := func() string {
		content := strings.TrimSpace(current.String())
		current.Reset()
		if content == "" {
			return ""
		}
		sections = append(sections, Section{Content: content})
		return content
	}

	for _, unit := range units {
		if len(unit) > maxSize {
			// Atomic units are never split mid-unit.
			flush()
			sections = append(sections, Section{Content: unit})
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(unit) > maxSize {
			flushed := flush()
			if overlap > 0 && flushed != "" {
				fragment := overlapFragment(flushed, overlap)
				// An overlap that would push the next unit past
				// maxSize is discarded entirely.
				if fragment != "" && len(fragment)+1+len(unit) <= maxSize {
					current.WriteString(fragment)
				}
			}
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(unit)
	}
	flush()
	return sections
}

// overlapFragment extracts the trailing sentence (or line, when the chunk
// has no sentence boundary) of a flushed chunk, capped at `overlap`
// characters from the end.
func overlapFragment(chunk string, overlap int) string {
	fragment := chunk
	if locs := sentenceBoundary.FindAllStringIndex(chunk, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		fragment = chunk[last[0]+1:] // keep the capital that starts the sentence
		fragment = strings.TrimSpace(fragment)
	} else if idx := strings.LastIndexByte(chunk, '\n'); idx >= 0 {
		fragment = strings.TrimSpace(chunk[idx+1:])
	}
	if runes := []rune(fragment); len(runes) > overlap {
		fragment = strings.TrimSpace(string(runes[len(runes)-overlap:]))
	}
	return fragment
}

// splitBullets returns bullet items as atomic units, or nil when the text
// has no bullet lines.
func splitBullets(text string) []string {
	lines := strings.Split(text, "\n")
	hasBullet := false
	for _, line := range lines {
		if bulletLine.MatchString(strings.TrimSpace(line)) {
			hasBullet = true
			break
		}
	}
	if !hasBullet {
		return nil
	}

	var units []string
	var current strings.Builder
	push := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			units = append(units, s)
		}
		current.Reset()
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if bulletLine.MatchString(trimmed) {
			push()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(trimmed)
	}
	push()
	return units
}

// splitSentences returns sentences as atomic units, or nil when fewer than
// two sentences are detected.
func splitSentences(text string) []string {
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	var units []string
	start := 0
	for _, loc := range locs {
		// loc[0] is the terminator; the next sentence starts at the
		// capital letter, which is the last byte of the match.
		end := loc[0] + 1
		units = append(units, strings.TrimSpace(text[start:end]))
		start = loc[1] - 1
	}
	units = append(units, strings.TrimSpace(text[start:]))
	if len(units) < 2 {
		return nil
	}
	return units
}

// chunkByCharacters slices text into fixed maxSize rune windows stepping by
// maxSize-overlap, dropping slices whose trimmed content is 50 characters
// or fewer.
func chunkByCharacters(text string, maxSize, overlap int) []Section {
	step := maxSize - overlap
	if step <= 0 {
		step = maxSize
	}
	runes := []rune(text)
	var sections []Section
	for start := 0; start < len(runes); start += step {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		slice := strings.TrimSpace(string(runes[start:end]))
		if utf8.RuneCountInString(slice) > 50 {
			sections = append(sections, Section{Content: slice})
		}
		if end == len(runes) {
			break
		}
	}
	return sections
}
