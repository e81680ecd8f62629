// Package extractor converts raw document buffers into plain text. PDFs are
// handled with two competing strategies whose outputs are scored and the
// better one kept; Office formats use a single deterministic ZIP/XML walk;
// plain text passes through.
package extractor

import (
	"bytes"
	"context"
	"strings"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/logger"
)

// DegradedPDFText is stored as the document body when every PDF extraction
// strategy fails. The document is still marked processed so it does not
// block the queue; retrieval simply has nothing useful to index.
const DegradedPDFText = "[PDF text extraction failed - document stored without text]"

// Result carries the extracted text together with the strategy that
// produced it and its quality score.
type Result struct {
	Text     string
	Strategy string
	Quality  float64
	Degraded bool
}

// Extractor dispatches a raw buffer to the right format handler.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract converts buf into plain text. contentType may be refined by magic
// byte sniffing before dispatch. Unknown types return ErrUnsupportedType.
func (e *Extractor) Extract(ctx context.Context, buf []byte, contentType string) (Result, error) {
	ct := sniffContentType(buf, contentType)

	switch {
	case ct == "application/pdf":
		return e.extractPDF(ctx, buf)
	case ct == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		text, err := extractDOCX(buf)
		if err != nil {
			return Result{}, apperrors.Newf(apperrors.ErrExtraction, 422, "docx extraction: %v", err)
		}
		return Result{Text: text, Strategy: "docx", Quality: 1.0}, nil
	case ct == "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		text, err := extractPPTX(buf)
		if err != nil {
			return Result{}, apperrors.Newf(apperrors.ErrExtraction, 422, "pptx extraction: %v", err)
		}
		return Result{Text: text, Strategy: "pptx", Quality: 1.0}, nil
	case strings.HasPrefix(ct, "text/"):
		return Result{Text: string(buf), Strategy: "plain", Quality: 1.0}, nil
	default:
		return Result{}, apperrors.Newf(apperrors.ErrUnsupportedType, 400, "content type %q", contentType)
	}
}

// sniffContentType checks magic bytes before trusting the declared type.
// An uploaded "text/plain" that starts with %PDF- is in fact a PDF.
func sniffContentType(buf []byte, declared string) string {
	if bytes.HasPrefix(buf, []byte("%PDF-")) {
		return "application/pdf"
	}
	if bytes.HasPrefix(buf, []byte("PK\x03\x04")) {
		// OOXML containers share the ZIP magic; the declared type
		// distinguishes DOCX from PPTX. Default to DOCX when the
		// declared type is not an OOXML type at all.
		switch declared {
		case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation":
			return declared
		default:
			return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		}
	}
	return declared
}

func (e *Extractor) extractPDF(ctx context.Context, buf []byte) (Result, error) {
	log := logger.FromContext(ctx).With("component", "extractor")

	layout, tokenStream := runPDFStrategies(ctx, buf)

	switch {
	case layout.err == nil && tokenStream.err == nil:
		layoutScore := calculateExtractionQuality(layout.text, len(buf), "layout")
		tokenScore := calculateExtractionQuality(tokenStream.text, len(buf), "tokenstream")
		log.Debug("pdf strategies compared",
			"layout_score", layoutScore,
			"tokenstream_score", tokenScore,
		)
		if tokenScore > layoutScore {
			return Result{Text: tokenStream.text, Strategy: "tokenstream", Quality: tokenScore}, nil
		}
		return Result{Text: layout.text, Strategy: "layout", Quality: layoutScore}, nil
	case layout.err == nil:
		return Result{
			Text:     layout.text,
			Strategy: "layout",
			Quality:  calculateExtractionQuality(layout.text, len(buf), "layout"),
		}, nil
	case tokenStream.err == nil:
		return Result{
			Text:     tokenStream.text,
			Strategy: "tokenstream",
			Quality:  calculateExtractionQuality(tokenStream.text, len(buf), "tokenstream"),
		}, nil
	default:
		log.Warn("all pdf extraction strategies failed",
			"layout_error", layout.err,
			"tokenstream_error", tokenStream.err,
		)
		return Result{Text: DegradedPDFText, Strategy: "sentinel", Quality: 0, Degraded: true}, nil
	}
}
