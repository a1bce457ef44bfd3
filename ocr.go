package autoquiz

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// noTextMarker is what the vision model is told to answer when an image
// contains no readable text. Treated as a successful zero-confidence result,
// never as an error.
const noTextMarker = "NO_TEXT_FOUND"

// OCRExtractor recognizes text in images through the OpenAI vision chat
// endpoint. Per-image confidence is taken from the model's own estimate and
// translated to the 0..1 scale.
type OCRExtractor struct {
	client *openai.Client
	model  string
}

// NewOCRExtractor creates an OCR adapter backed by the configured vision model.
func NewOCRExtractor(cfg OpenAIConfig) *OCRExtractor {
	return &OCRExtractor{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.VisionModel,
	}
}

func (o *OCRExtractor) Extract(ctx context.Context, src ContentSource) ExtractionResult {
	start := time.Now()
	VerboseLog("OCR: recognizing %s (%d bytes)", src.Name, len(src.Data))

	dataURL := fmt.Sprintf("data:%s;base64,%s", imageMime(src), base64.StdEncoding.EncodeToString(src.Data))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Transcribe all readable text in this image, preserving reading order. " +
							"On the first line output only CONFIDENCE: followed by a number 0-100 estimating how reliably the text was read. " +
							"Then output the transcription. If the image contains no readable text, output only " + noTextMarker + ".",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return failedResult(src, "ocr", start, fmt.Errorf("vision request failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return failedResult(src, "ocr", start, fmt.Errorf("no response from vision model"))
	}

	text, confidence := parseOCRResponse(resp.Choices[0].Message.Content)

	return ExtractionResult{
		SourceRef:        src.Name,
		Kind:             SourceFile,
		Text:             text,
		Confidence:       confidence,
		Method:           "ocr",
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Success:          true,
	}
}

// parseOCRResponse splits the model output into a confidence value and the
// transcription. A NO_TEXT_FOUND answer degrades to an empty successful
// result rather than an error.
func parseOCRResponse(raw string) (string, float64) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, noTextMarker) {
		return "", 0
	}

	confidence := 0.5 // model ignored the confidence instruction
	if rest, ok := strings.CutPrefix(raw, "CONFIDENCE:"); ok {
		line, body, _ := strings.Cut(rest, "\n")
		var pct float64
		if _, err := fmt.Sscanf(strings.TrimSpace(line), "%f", &pct); err == nil {
			if pct < 0 {
				pct = 0
			}
			if pct > 100 {
				pct = 100
			}
			confidence = pct / 100
		}
		raw = strings.TrimSpace(body)
	}
	return raw, confidence
}

// imageMime picks the data-URL media type from the client hint or filename.
func imageMime(src ContentSource) string {
	if strings.HasPrefix(src.MimeHint, "image/") {
		return src.MimeHint
	}
	switch strings.ToLower(filepath.Ext(src.Name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/png"
	}
}
