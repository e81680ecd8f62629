package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// extractDOCX pulls visible text out of word/document.xml by walking the XML
// token stream and collecting character data inside <w:t> elements.
func extractDOCX(buf []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return "", fmt.Errorf("opening docx container: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer rc.Close()
		text, err := collectXMLText(rc, "t")
		if err != nil {
			return "", fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		return text, nil
	}
	return "", fmt.Errorf("docx container has no word/document.xml")
}

// extractPPTX walks every slide XML in order and collects text from <a:t>
// elements, one paragraph per slide.
func extractPPTX(buf []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return "", fmt.Errorf("opening pptx container: %w", err)
	}

	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("pptx container has no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].Name < slides[j].Name })

	var sb strings.Builder
	for _, f := range slides {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", f.Name, err)
		}
		text, err := collectXMLText(rc, "t")
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// collectXMLText streams XML tokens and joins character data found inside
// elements whose local name matches localName. Paragraph and break elements
// become whitespace so words do not run together.
func collectXMLText(r io.Reader, localName string) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case localName:
				inText = true
			case "p", "br":
				sb.WriteByte('\n')
			case "tab":
				sb.WriteByte('\t')
			}
		case xml.EndElement:
			if t.Name.Local == localName {
				inText = false
				sb.WriteByte(' ')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
