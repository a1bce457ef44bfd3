package autoquiz

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// DocumentExtractor handles pre-formatted text documents: plain text,
// markdown, and DOCX. Extraction is near-deterministic, so confidence
// defaults high since no recognition uncertainty is involved.
type DocumentExtractor struct{}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

const structuredConfidence = 0.95

func (d *DocumentExtractor) Extract(ctx context.Context, src ContentSource) ExtractionResult {
	start := time.Now()

	var (
		text   string
		method string
		err    error
	)

	ext := strings.ToLower(filepath.Ext(src.Name))
	switch ext {
	case ".docx":
		method = "docx"
		text, err = extractDOCX(src.Data)
	default:
		method = "text"
		text, err = extractPlainText(src.Data)
	}
	if err != nil {
		return failedResult(src, method, start, err)
	}

	return ExtractionResult{
		SourceRef:        src.Name,
		Kind:             SourceFile,
		Text:             text,
		Confidence:       structuredConfidence,
		Method:           method,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Success:          true,
	}
}

// extractPlainText normalises whitespace in a UTF-8 text payload.
func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("not valid UTF-8 text")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// wtTag matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t>
// (and any other attributes).
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDOCX extracts text from .docx bytes. DOCX is a ZIP containing
// word/document.xml (OOXML); all <w:t>...</w:t> text nodes are collected so
// content survives regardless of paragraph/run attributes.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a docx archive: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("word/document.xml not found")
	}

	parts := wtTag.FindAllSubmatch(docXML, -1)
	if len(parts) == 0 {
		return "", fmt.Errorf("no text nodes in document")
	}
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(string(p[1])))
	}
	return strings.TrimSpace(unescapeXML(b.String())), nil
}

var xmlEntities = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'",
)

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}
