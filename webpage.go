package autoquiz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// WebPageExtractor fetches a URL and extracts its visible text, stripping
// markup, scripts, and boilerplate. Confidence comes from a heuristic over
// text density and sentence structure.
type WebPageExtractor struct {
	client    *http.Client
	userAgent string
}

func NewWebPageExtractor(userAgent string) *WebPageExtractor {
	return &WebPageExtractor{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
	}
}

// maxFetchBytes caps how much of a page body is read.
const maxFetchBytes = 4 * 1024 * 1024

func (w *WebPageExtractor) Extract(ctx context.Context, src ContentSource) ExtractionResult {
	start := time.Now()

	body, err := w.fetch(ctx, src.URL)
	if err != nil {
		return failedResult(src, "webpage", start, err)
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return failedResult(src, "webpage", start, fmt.Errorf("parse HTML: %w", err))
	}

	text := collectVisibleText(doc)
	if strings.TrimSpace(text) == "" {
		return failedResult(src, "webpage", start, fmt.Errorf("no visible text on page"))
	}

	return ExtractionResult{
		SourceRef:        src.URL,
		Kind:             SourceLink,
		Text:             text,
		Confidence:       webConfidence(text, len(body)),
		Method:           "webpage",
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Success:          true,
	}
}

func (w *WebPageExtractor) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

// collectVisibleText walks the DOM and gathers text nodes, skipping
// script/style blocks and structural boilerplate.
func collectVisibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer, atom.Header, atom.Iframe, atom.Form:
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		// Block elements end a line so sentences don't run together.
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.P, atom.Div, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Br, atom.Tr:
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
			}
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// webConfidence estimates extraction reliability from text density (visible
// text vs raw page size) and the presence of sentence-like structure.
func webConfidence(text string, rawLen int) float64 {
	confidence := 0.5

	if rawLen > 0 {
		density := float64(len(text)) / float64(rawLen)
		if density > 0.1 {
			confidence += 0.2
		} else if density < 0.01 {
			confidence -= 0.2
		}
	}

	sentences := strings.Count(text, ". ") + strings.Count(text, "! ") + strings.Count(text, "? ")
	if sentences >= 5 {
		confidence += 0.2
	} else if sentences == 0 {
		confidence -= 0.2
	}

	if confidence < 0.1 {
		confidence = 0.1
	}
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}
