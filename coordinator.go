package autoquiz

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Extractor converts one content source into an ExtractionResult. Adapters
// must return structured failures (Success=false, Error set) rather than
// panic or leak errors past their boundary, so fan-out needs no
// adapter-specific handling.
type Extractor interface {
	Extract(ctx context.Context, source ContentSource) ExtractionResult
}

// Coordinator routes each source to the adapter matching its kind and runs
// file extractions with bounded concurrency. Per-source failures never
// abort sibling extractions; partial success is the normal case.
type Coordinator struct {
	cfg   ExtractionConfig
	ocr   Extractor
	pdf   Extractor
	doc   Extractor
	web   Extractor
	video Extractor
}

// NewCoordinator wires the default adapter set. The OCR adapter needs the
// OpenAI config for its vision calls.
func NewCoordinator(cfg ExtractionConfig, openAICfg OpenAIConfig) *Coordinator {
	return &Coordinator{
		cfg:   cfg,
		ocr:   NewOCRExtractor(openAICfg),
		pdf:   NewPDFExtractor(),
		doc:   NewDocumentExtractor(),
		web:   NewWebPageExtractor(cfg.FetchUserAgent),
		video: NewVideoExtractor(cfg.FetchUserAgent),
	}
}

// imageExtensions and documentExtensions form the file allow-list.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

var documentExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".docx": true,
}

// ExtractAll dispatches every source to its adapter and returns results in
// submission order regardless of completion order. File sources run under
// a fixed worker limit; link and topic sources are cheap and run without it.
func (c *Coordinator) ExtractAll(ctx context.Context, sources []ContentSource) []ExtractionResult {
	results := make([]ExtractionResult, len(sources))

	sem := make(chan struct{}, c.cfg.Workers)
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src ContentSource) {
			defer wg.Done()
			if src.Kind == SourceFile {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = c.extractOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	for i := range results {
		if results[i].Success {
			results[i].Quality = ScoreText(results[i].Text, results[i].Confidence)
		}
	}
	return results
}

// extractOne validates a single source and runs the matching adapter under
// the per-source deadline.
func (c *Coordinator) extractOne(ctx context.Context, src ContentSource) ExtractionResult {
	start := time.Now()

	adapter, err := c.route(src)
	if err != nil {
		return failedResult(src, "dispatch", start, err)
	}

	extractCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	res := adapter.Extract(extractCtx, src)
	if res.ProcessingTimeMs == 0 {
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
	}
	return res
}

// route picks an adapter for the source, enforcing the input constraints
// (size ceiling, allow-list, minimum size) before dispatch. An oversized or
// unsupported file is a per-file error, not a fatal pipeline error.
func (c *Coordinator) route(src ContentSource) (Extractor, error) {
	switch src.Kind {
	case SourceFile:
		if int64(len(src.Data)) > c.cfg.MaxFileSize {
			return nil, fmt.Errorf("file too large: %d bytes (max %d)", len(src.Data), c.cfg.MaxFileSize)
		}
		if int64(len(src.Data)) < c.cfg.MinFileSize {
			return nil, fmt.Errorf("file too small: %d bytes", len(src.Data))
		}
		ext := strings.ToLower(filepath.Ext(src.Name))
		switch {
		case imageExtensions[ext] || strings.HasPrefix(src.MimeHint, "image/"):
			return c.ocr, nil
		case ext == ".pdf" || src.MimeHint == "application/pdf":
			return c.pdf, nil
		case documentExtensions[ext] || strings.HasPrefix(src.MimeHint, "text/"):
			return c.doc, nil
		default:
			return nil, fmt.Errorf("unsupported file type: %q", src.Name)
		}
	case SourceLink:
		u, err := url.Parse(src.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid URL: %q", src.URL)
		}
		if IsVideoURL(src.URL) {
			return c.video, nil
		}
		return c.web, nil
	case SourceTopic:
		if strings.TrimSpace(src.Text) == "" {
			return nil, fmt.Errorf("empty topic")
		}
		return topicExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown source kind: %q", src.Kind)
	}
}

// topicExtractor passes free text through untouched at full confidence.
type topicExtractor struct{}

func (topicExtractor) Extract(_ context.Context, src ContentSource) ExtractionResult {
	return ExtractionResult{
		SourceRef:  "topic",
		Kind:       SourceTopic,
		Text:       strings.TrimSpace(src.Text),
		Confidence: 1.0,
		Method:     "topic",
		Success:    true,
	}
}

// failedResult builds the structured failure shape shared by all adapters.
func failedResult(src ContentSource, method string, start time.Time, err error) ExtractionResult {
	return ExtractionResult{
		SourceRef:        sourceRef(src),
		Kind:             src.Kind,
		Method:           method,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Success:          false,
		Error:            err.Error(),
	}
}

// sourceRef labels a source for results and metadata.
func sourceRef(src ContentSource) string {
	switch src.Kind {
	case SourceFile:
		return src.Name
	case SourceLink:
		return src.URL
	default:
		return "topic"
	}
}

// Merge concatenates all successful extraction texts in submission order,
// each block prefixed by a fenced label of its origin, and derives the
// overall quality and content type. Returns an extraction error when every
// source failed: overallQuality is undefined in that case and the pipeline
// must short-circuit.
func Merge(results []ExtractionResult) (*NormalizedContent, error) {
	var sb strings.Builder
	var qualitySum float64
	succeeded := 0
	kinds := map[SourceKind]bool{}

	for _, r := range results {
		if !r.Success || strings.TrimSpace(r.Text) == "" {
			continue
		}
		if succeeded > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- %s (%s) ---\n", r.SourceRef, r.Method)
		sb.WriteString(strings.TrimSpace(r.Text))
		qualitySum += r.Quality
		succeeded++
		kinds[r.Kind] = true
	}

	if succeeded == 0 {
		return nil, extractionError("no usable text could be extracted from any source")
	}

	return &NormalizedContent{
		Text:           sb.String(),
		OverallQuality: qualitySum / float64(succeeded),
		ContentType:    deriveContentType(kinds),
		SourceCount:    succeeded,
	}, nil
}

func deriveContentType(kinds map[SourceKind]bool) ContentType {
	if len(kinds) > 1 {
		return ContentMixed
	}
	switch {
	case kinds[SourceFile]:
		return ContentDocument
	case kinds[SourceLink]:
		return ContentLink
	default:
		return ContentTopic
	}
}
