package autoquiz

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor attempts page-by-page text-layer extraction first and falls
// back to a raw-scan salvage pass over the binary stream when the text
// layer is empty or unreadable. A source never fails solely because the
// primary method yields nothing; a low-confidence partial result is
// reported instead.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

const (
	pdfTextLayerConfidence = 0.9
	pdfSalvageConfidence   = 0.3
)

func (p *PDFExtractor) Extract(ctx context.Context, src ContentSource) ExtractionResult {
	start := time.Now()

	text, err := extractPDFTextLayer(src.Data)
	if err == nil && strings.TrimSpace(text) != "" {
		return ExtractionResult{
			SourceRef:        src.Name,
			Kind:             SourceFile,
			Text:             text,
			Confidence:       pdfTextLayerConfidence,
			Method:           "pdf-text-layer",
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Success:          true,
		}
	}
	if err != nil {
		VerboseLog("PDF: text layer failed for %s, trying salvage: %v", src.Name, err)
	}

	salvaged := salvagePDFText(src.Data)
	if strings.TrimSpace(salvaged) == "" {
		return failedResult(src, "pdf-salvage", start, fmt.Errorf("no readable text in PDF"))
	}

	return ExtractionResult{
		SourceRef:        src.Name,
		Kind:             SourceFile,
		Text:             salvaged,
		Confidence:       pdfSalvageConfidence,
		Method:           "pdf-salvage",
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Success:          true,
	}
}

// extractPDFTextLayer walks the document page by page and concatenates the
// plain-text layer. The reader panics on some malformed files; recovered
// into an ordinary error so the adapter contract holds.
func extractPDFTextLayer(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue // salvage the remaining pages
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(pageText)
	}
	return buf.String(), nil
}

// pdfLiteralRe matches parenthesised string literals in PDF content
// streams: (text here). Four characters minimum to skip kerning fragments.
var pdfLiteralRe = regexp.MustCompile(`\(([^()\\]{4,})\)`)

// structural/technical tokens that appear inside literals of broken PDFs.
var pdfStructuralTokens = []string{
	"obj", "endobj", "stream", "endstream", "xref", "trailer", "startxref",
	"FontFile", "ToUnicode", "FlateDecode", "Identity-H", "CIDFont",
}

// salvagePDFText is the last-resort heuristic: it scans the raw binary for
// readable parenthesised literals, filters structural tokens, and
// re-assembles what remains. Its heuristics stay behind the adapter
// interface and never leak into the text-layer path.
func salvagePDFText(data []byte) string {
	matches := pdfLiteralRe.FindAllSubmatch(data, -1)
	var sb strings.Builder
	for _, m := range matches {
		candidate := strings.TrimSpace(string(m[1]))
		if !salvageable(candidate) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(candidate)
	}
	return sb.String()
}

// salvageable keeps literals that look like prose rather than structure.
func salvageable(s string) bool {
	if len(s) < 4 {
		return false
	}
	for _, tok := range pdfStructuralTokens {
		if strings.Contains(s, tok) {
			return false
		}
	}
	letters := 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == ' ' {
			letters++
		}
	}
	return float64(letters)/float64(len(s)) >= 0.6
}
