package autoquiz

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// VideoExtractor resolves a YouTube link to caption text. When no caption
// track exists it falls back to oEmbed metadata (title and channel) at
// reduced confidence.
type VideoExtractor struct {
	client    *http.Client
	userAgent string
}

func NewVideoExtractor(userAgent string) *VideoExtractor {
	return &VideoExtractor{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
	}
}

const (
	captionConfidence  = 0.8
	metadataConfidence = 0.35
)

// videoHosts recognized by IsVideoURL.
var videoHosts = map[string]bool{
	"youtube.com": true, "www.youtube.com": true, "m.youtube.com": true,
	"youtu.be": true, "youtube-nocookie.com": true, "www.youtube-nocookie.com": true,
}

// IsVideoURL reports whether rawURL points at a supported video platform.
func IsVideoURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return videoHosts[strings.ToLower(u.Host)]
}

// VideoID normalizes the platform's canonical, short-link, embed, and
// shorts URL forms to one video ID.
func VideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse video URL: %w", err)
	}
	host := strings.ToLower(u.Host)
	if !videoHosts[host] {
		return "", fmt.Errorf("unsupported video host: %q", u.Host)
	}

	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case strings.HasPrefix(u.Path, "/embed/"):
		id = strings.TrimPrefix(u.Path, "/embed/")
	case strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.TrimPrefix(u.Path, "/shorts/")
	case strings.HasPrefix(u.Path, "/live/"):
		id = strings.TrimPrefix(u.Path, "/live/")
	default:
		id = u.Query().Get("v")
	}
	id = strings.Trim(id, "/")
	if idx := strings.IndexAny(id, "/?&"); idx >= 0 {
		id = id[:idx]
	}
	if id == "" {
		return "", fmt.Errorf("no video ID in URL: %q", rawURL)
	}
	return id, nil
}

func (v *VideoExtractor) Extract(ctx context.Context, src ContentSource) ExtractionResult {
	start := time.Now()

	id, err := VideoID(src.URL)
	if err != nil {
		return failedResult(src, "video", start, err)
	}

	if transcript, err := v.fetchCaptions(ctx, id); err == nil && transcript != "" {
		return ExtractionResult{
			SourceRef:        src.URL,
			Kind:             SourceLink,
			Text:             transcript,
			Confidence:       captionConfidence,
			Method:           "video-captions",
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Success:          true,
		}
	}

	meta, err := v.fetchOEmbed(ctx, id)
	if err != nil {
		return failedResult(src, "video-metadata", start, fmt.Errorf("no captions and metadata lookup failed: %w", err))
	}

	return ExtractionResult{
		SourceRef:        src.URL,
		Kind:             SourceLink,
		Text:             meta,
		Confidence:       metadataConfidence,
		Method:           "video-metadata",
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Success:          true,
	}
}

// timedtextBase is overridable in tests.
var timedtextBase = "https://video.google.com/timedtext"

// oembedBase is overridable in tests.
var oembedBase = "https://www.youtube.com/oembed"

type timedtextDoc struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// fetchCaptions pulls the default caption track via the timedtext endpoint.
// Videos without captions return an empty body.
func (v *VideoExtractor) fetchCaptions(ctx context.Context, videoID string) (string, error) {
	u := fmt.Sprintf("%s?lang=en&v=%s", timedtextBase, url.QueryEscape(videoID))
	body, err := v.get(ctx, u)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", fmt.Errorf("no caption track")
	}

	var doc timedtextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse captions: %w", err)
	}

	var sb strings.Builder
	for _, t := range doc.Texts {
		line := strings.TrimSpace(t.Value)
		if line == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(line)
	}
	return sb.String(), nil
}

// fetchOEmbed returns title-and-channel textual metadata for the video.
func (v *VideoExtractor) fetchOEmbed(ctx context.Context, videoID string) (string, error) {
	watchURL := "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
	u := fmt.Sprintf("%s?url=%s&format=json", oembedBase, url.QueryEscape(watchURL))
	body, err := v.get(ctx, u)
	if err != nil {
		return "", err
	}

	var meta struct {
		Title      string `json:"title"`
		AuthorName string `json:"author_name"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("parse oEmbed: %w", err)
	}
	if meta.Title == "" {
		return "", fmt.Errorf("empty oEmbed title")
	}
	if meta.AuthorName != "" {
		return fmt.Sprintf("%s (video by %s)", meta.Title, meta.AuthorName), nil
	}
	return meta.Title, nil
}

func (v *VideoExtractor) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
}
