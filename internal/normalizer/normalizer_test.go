package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses horizontal whitespace", "a  b\t\tc", "a b c"},
		{"keeps line structure", "Heading:\n  body  text", "Heading:\nbody text"},
		{"collapses blank line runs", "para one\n\n\n\npara two", "para one\n\npara two"},
		{"strips space before punctuation", "hello , world . done !", "hello, world. done!"},
		{"strips space before colon and semicolon", "a ; b : c", "a; b: c"},
		{"trims", "  padded  ", "padded"},
		{"normal text untouched", "The quick brown fox.", "The quick brown fox."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeDeHyphenatesOCRSpacing(t *testing.T) {
	// Every letter spaced out: well over 50% single-char tokens.
	in := "h e l l o w o r l d"
	assert.Equal(t, "helloworld", Normalize(in))
}

func TestNormalizeMixedOCRSpacing(t *testing.T) {
	// Single-char majority with a real word embedded; the word keeps its
	// surrounding spaces.
	in := "t h e quick f o x"
	assert.Equal(t, "the quick fox", Normalize(in))
}

func TestNormalizeDoesNotJoinNormalText(t *testing.T) {
	// Mostly multi-char tokens: the heuristic must not fire even though a
	// few single-char tokens exist.
	in := "I saw a fox and a dog running through the field"
	assert.Equal(t, in, Normalize(in))
}
