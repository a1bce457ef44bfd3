package autoquiz

import (
	"context"
	"strings"
	"testing"
	"time"
)

func testExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		MaxFileSize:    1024,
		MinFileSize:    4,
		MaxSources:     10,
		Workers:        4,
		Timeout:        5 * time.Second,
		FetchUserAgent: "test",
	}
}

func testCoordinator() *Coordinator {
	return NewCoordinator(testExtractionConfig(), OpenAIConfig{})
}

func TestExtractAllPreservesSubmissionOrder(t *testing.T) {
	sources := []ContentSource{
		{Kind: SourceTopic, Text: "First topic"},
		{Kind: SourceFile, Name: "notes.txt", Data: []byte("Some notes about the subject matter.")},
		{Kind: SourceTopic, Text: "Third topic"},
	}

	results := testCoordinator().ExtractAll(context.Background(), sources)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Text != "First topic" {
		t.Errorf("result 0 = %q, want first topic", results[0].Text)
	}
	if results[1].SourceRef != "notes.txt" {
		t.Errorf("result 1 ref = %q, want notes.txt", results[1].SourceRef)
	}
	if results[2].Text != "Third topic" {
		t.Errorf("result 2 = %q, want third topic", results[2].Text)
	}
}

func TestExtractAllPartialFailure(t *testing.T) {
	oversized := make([]byte, 2048)
	sources := []ContentSource{
		{Kind: SourceFile, Name: "big.txt", Data: oversized},
		{Kind: SourceTopic, Text: "Photosynthesis in desert plants"},
		{Kind: SourceFile, Name: "data.xlsx", Data: []byte("not supported anyway")},
	}

	results := testCoordinator().ExtractAll(context.Background(), sources)

	if results[0].Success {
		t.Error("oversized file should fail")
	}
	if !strings.Contains(results[0].Error, "too large") {
		t.Errorf("oversized error = %q", results[0].Error)
	}
	if !results[1].Success {
		t.Errorf("topic should succeed: %s", results[1].Error)
	}
	if results[2].Success {
		t.Error("unsupported extension should fail")
	}

	content, err := Merge(results)
	if err != nil {
		t.Fatalf("merge with one success should not error: %v", err)
	}
	if content.SourceCount != 1 {
		t.Errorf("SourceCount = %d, want 1", content.SourceCount)
	}
	// With a single surviving source the overall quality is that source's.
	if content.OverallQuality != results[1].Quality {
		t.Errorf("OverallQuality = %v, want %v", content.OverallQuality, results[1].Quality)
	}
}

func TestExtractAllScoresSuccesses(t *testing.T) {
	sources := []ContentSource{{Kind: SourceTopic, Text: "The French Revolution"}}
	results := testCoordinator().ExtractAll(context.Background(), sources)
	if results[0].Quality < 1 || results[0].Quality > 10 {
		t.Errorf("quality %v out of [1,10]", results[0].Quality)
	}
}

func TestRouteRejections(t *testing.T) {
	c := testCoordinator()
	tests := []struct {
		name string
		src  ContentSource
	}{
		{"tiny file", ContentSource{Kind: SourceFile, Name: "x.txt", Data: []byte("ab")}},
		{"unsupported extension", ContentSource{Kind: SourceFile, Name: "sheet.xlsx", Data: []byte("0123456789")}},
		{"bad URL scheme", ContentSource{Kind: SourceLink, URL: "ftp://example.com/doc"}},
		{"not a URL", ContentSource{Kind: SourceLink, URL: "not a url at all"}},
		{"empty topic", ContentSource{Kind: SourceTopic, Text: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.route(tt.src); err == nil {
				t.Error("expected routing error")
			}
		})
	}
}

func TestRouteDispatch(t *testing.T) {
	c := testCoordinator()

	adapter, err := c.route(ContentSource{Kind: SourceFile, Name: "scan.png", Data: []byte("0123456789")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := adapter.(*OCRExtractor); !ok {
		t.Errorf("png routed to %T, want OCRExtractor", adapter)
	}

	adapter, err = c.route(ContentSource{Kind: SourceFile, Name: "paper.pdf", Data: []byte("0123456789")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := adapter.(*PDFExtractor); !ok {
		t.Errorf("pdf routed to %T, want PDFExtractor", adapter)
	}

	adapter, err = c.route(ContentSource{Kind: SourceLink, URL: "https://youtu.be/dQw4w9WgXcQ"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := adapter.(*VideoExtractor); !ok {
		t.Errorf("video URL routed to %T, want VideoExtractor", adapter)
	}

	adapter, err = c.route(ContentSource{Kind: SourceLink, URL: "https://example.com/article"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := adapter.(*WebPageExtractor); !ok {
		t.Errorf("web URL routed to %T, want WebPageExtractor", adapter)
	}

	// MIME hint routes when the extension is unknown.
	adapter, err = c.route(ContentSource{Kind: SourceFile, Name: "upload.bin", MimeHint: "image/png", Data: []byte("0123456789")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := adapter.(*OCRExtractor); !ok {
		t.Errorf("image MIME routed to %T, want OCRExtractor", adapter)
	}
}

func TestMergeAllFailed(t *testing.T) {
	results := []ExtractionResult{
		{SourceRef: "a.txt", Success: false, Error: "too large"},
		{SourceRef: "b.txt", Success: false, Error: "unsupported"},
	}
	if _, err := Merge(results); err == nil {
		t.Fatal("expected error when every source failed")
	} else if KindOf(err) != ErrExtraction {
		t.Errorf("error kind = %q, want %q", KindOf(err), ErrExtraction)
	}
}

func TestMergeLabelsAndContentType(t *testing.T) {
	results := []ExtractionResult{
		{SourceRef: "notes.txt", Kind: SourceFile, Text: "File text.", Quality: 6, Success: true},
		{SourceRef: "https://example.com", Kind: SourceLink, Text: "Page text.", Quality: 8, Success: true},
	}
	content, err := Merge(results)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content.Text, "--- notes.txt") || !strings.Contains(content.Text, "--- https://example.com") {
		t.Errorf("merged text missing source labels:\n%s", content.Text)
	}
	if content.ContentType != ContentMixed {
		t.Errorf("ContentType = %q, want mixed", content.ContentType)
	}
	if content.OverallQuality != 7 {
		t.Errorf("OverallQuality = %v, want 7", content.OverallQuality)
	}
}

func TestDeriveContentType(t *testing.T) {
	tests := []struct {
		name  string
		kinds map[SourceKind]bool
		want  ContentType
	}{
		{"files only", map[SourceKind]bool{SourceFile: true}, ContentDocument},
		{"links only", map[SourceKind]bool{SourceLink: true}, ContentLink},
		{"topic only", map[SourceKind]bool{SourceTopic: true}, ContentTopic},
		{"mixed", map[SourceKind]bool{SourceFile: true, SourceTopic: true}, ContentMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveContentType(tt.kinds); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
