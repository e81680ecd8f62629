package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

type pdfStrategyResult struct {
	text string
	err  error
}

// runPDFStrategies executes the layout-aware and token-stream parsers
// concurrently and waits for both. Each writes only to its own result, so
// the join needs no synchronization beyond the WaitGroup.
func runPDFStrategies(ctx context.Context, buf []byte) (layout, tokenStream pdfStrategyResult) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		layout.text, layout.err = extractPDFLayout(buf)
	}()
	go func() {
		defer wg.Done()
		tokenStream.text, tokenStream.err = extractPDFTokenStream(buf)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		layout.err = err
		tokenStream.err = err
	}
	return layout, tokenStream
}

// extractPDFLayout reads the whole document through the parser's plain-text
// stream, which preserves reading order and table layout reasonably well.
func extractPDFLayout(buf []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf layout parser panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	stream, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading plain text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, stream); err != nil {
		return "", fmt.Errorf("copying text stream: %w", err)
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("layout strategy produced no text")
	}
	return out, nil
}

// extractPDFTokenStream walks each page's positioned text rows directly,
// which recovers text from documents where the plain-text stream comes back
// scrambled or empty.
func extractPDFTokenStream(buf []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf token parser panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue // skip unreadable pages, keep the rest
		}
		for _, row := range rows {
			for _, word := range row.Content {
				sb.WriteString(word.S)
				sb.WriteByte(' ')
			}
			sb.WriteByte('\n')
		}
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("token strategy produced no text")
	}
	return out, nil
}
