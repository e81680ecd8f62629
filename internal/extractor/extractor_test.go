package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
)

func TestExtractPlainText(t *testing.T) {
	e := New()
	res, err := e.Extract(context.Background(), []byte("hello world"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, "plain", res.Strategy)
	assert.False(t, res.Degraded)
}

func TestExtractMarkdown(t *testing.T) {
	e := New()
	res, err := e.Extract(context.Background(), []byte("# Title\n\nbody"), "text/markdown")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nbody", res.Text)
}

func TestExtractUnsupportedType(t *testing.T) {
	e := New()
	_, err := e.Extract(context.Background(), []byte{0x00, 0x01}, "image/png")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)
}

func TestExtractCorruptPDFReturnsSentinel(t *testing.T) {
	// Valid PDF magic, garbage body: both strategies must fail and the
	// extractor must degrade rather than error.
	buf := []byte("%PDF-1.7\nthis is not a real pdf body")
	e := New()
	res, err := e.Extract(context.Background(), buf, "application/pdf")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "sentinel", res.Strategy)
	assert.Equal(t, DegradedPDFText, res.Text)
}

func TestSniffOverridesDeclaredType(t *testing.T) {
	buf := []byte("%PDF-1.4\ngarbage")
	// Declared as plain text but sniffed as PDF; corrupt body degrades.
	e := New()
	res, err := e.Extract(context.Background(), buf, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "sentinel", res.Strategy)
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	doc := buildDOCX(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	e := New()
	res, err := e.Extract(context.Background(), doc,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "First paragraph.")
	assert.Contains(t, res.Text, "Second paragraph.")
	assert.Equal(t, "docx", res.Strategy)
}

func TestExtractDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e := New()
	_, err = e.Extract(context.Background(), buf.Bytes(),
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExtraction)
}

func TestExtractPPTX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, slide := range []struct{ name, body string }{
		{"ppt/slides/slide1.xml", `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="x"><a:t>Slide one text</a:t></p:sld>`},
		{"ppt/slides/slide2.xml", `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="x"><a:t>Slide two text</a:t></p:sld>`},
	} {
		w, err := zw.Create(slide.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(slide.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	e := New()
	res, err := e.Extract(context.Background(), buf.Bytes(),
		"application/vnd.openxmlformats-officedocument.presentationml.presentation")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Slide one text")
	assert.Contains(t, res.Text, "Slide two text")
}

func TestQualityScoreShortTextCapped(t *testing.T) {
	score := calculateExtractionQuality("short text only.", 10_000, "layout")
	assert.LessOrEqual(t, score, 0.2)
}

func TestQualityScoreInRange(t *testing.T) {
	texts := []string{
		"",
		strings.Repeat("word ", 500),
		"The quick brown fox jumps over the lazy dog. " + strings.Repeat("Another reasonable sentence follows here with normal words. ", 30),
	}
	for _, text := range texts {
		score := calculateExtractionQuality(text, 5000, "layout")
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestQualityScorePrefersRicherText(t *testing.T) {
	repetitive := strings.Repeat("same same same same same same same same same. ", 40)
	varied := "Modern distributed systems require careful attention to consistency guarantees. " +
		"Replication strategies differ widely between consensus protocols and gossip approaches. " +
		"Operators balance durability against latency when choosing quorum sizes. " +
		strings.Repeat("Each additional replica changes the failure and recovery characteristics observed in production clusters. ", 15)

	repScore := calculateExtractionQuality(repetitive, 5000, "layout")
	varScore := calculateExtractionQuality(varied, 5000, "layout")
	assert.Greater(t, varScore, repScore)
}

func TestMethodBonusPenalizesShortOutput(t *testing.T) {
	assert.InDelta(t, -0.1, methodBonus("tiny", "layout"), 1e-9)
}

func TestMethodBonusRewardsTabularLayout(t *testing.T) {
	long := strings.Repeat("col1 | col2 | col3\n", 40)
	assert.InDelta(t, 0.05, methodBonus(long, "layout"), 1e-9)
}
