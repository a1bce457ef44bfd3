package autoquiz

import "time"

// SourceKind identifies what a ContentSource carries.
type SourceKind string

const (
	SourceFile  SourceKind = "file"
	SourceLink  SourceKind = "link"
	SourceTopic SourceKind = "topic"
)

// ContentSource is one discrete piece of user-submitted input. Exactly one
// of Data, URL, or Text is meaningful depending on Kind. Sources are
// created once per submission item and never mutated.
type ContentSource struct {
	Kind     SourceKind `json:"kind"`
	Name     string     `json:"name,omitempty"`      // original filename for file sources
	MimeHint string     `json:"mime_hint,omitempty"` // client-declared content type
	Data     []byte     `json:"-"`
	URL      string     `json:"url,omitempty"`
	Text     string     `json:"text,omitempty"`
}

// ExtractionResult is the outcome of running exactly one adapter on one
// source. A failed extraction keeps Success=false and Error set; it never
// aborts sibling extractions.
type ExtractionResult struct {
	SourceRef        string     `json:"source_ref"` // filename, URL, or "topic"
	Kind             SourceKind `json:"kind"`
	Text             string     `json:"text"`
	Confidence       float64    `json:"confidence"` // 0..1 recognition confidence
	Quality          float64    `json:"quality"`    // 1..10, from the quality assessor
	Method           string     `json:"method"`     // which extraction path produced the text
	ProcessingTimeMs int64      `json:"processing_time_ms"`
	Success          bool       `json:"success"`
	Error            string     `json:"error,omitempty"`
}

// ContentType describes which source kinds contributed to the merged text.
type ContentType string

const (
	ContentDocument ContentType = "document"
	ContentTopic    ContentType = "topic"
	ContentLink     ContentType = "link"
	ContentMixed    ContentType = "mixed"
)

// NormalizedContent is the merged text of all successful extractions, each
// block prefixed by a fenced label of its origin, in submission order.
type NormalizedContent struct {
	Text           string      `json:"text"`
	OverallQuality float64     `json:"overall_quality"` // mean quality of successful results
	ContentType    ContentType `json:"content_type"`
	SourceCount    int         `json:"source_count"` // successful sources merged
}

// Difficulty levels accepted by the pipeline.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Question count bounds enforced on every request.
const (
	MinQuestions = 5
	MaxQuestions = 50
)

// GenerationRequest is the read-only input to the generation orchestrator.
type GenerationRequest struct {
	Content      string `json:"content"` // normalized content or bare topic
	NumQuestions int    `json:"num_questions"`
	Difficulty   string `json:"difficulty"`
	Language     string `json:"language"`
}

// Question is a single validated multiple-choice question. Invariants:
// exactly 4 distinct non-empty options, CorrectAnswer in [0,3].
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"` // 0-based index
	Explanation   string   `json:"explanation,omitempty"`
}

// SourceOutcome is the per-source slice of pipeline metadata.
type SourceOutcome struct {
	SourceRef        string  `json:"source_ref"`
	Method           string  `json:"method"`
	Success          bool    `json:"success"`
	Quality          float64 `json:"quality,omitempty"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	Error            string  `json:"error,omitempty"`
}

// Metadata describes how a pipeline run went. It accompanies every
// successful response.
type Metadata struct {
	RunID            string          `json:"run_id"`
	Language         string          `json:"language"`
	Difficulty       string          `json:"difficulty"`
	ContentType      ContentType     `json:"content_type"`
	OverallQuality   float64         `json:"overall_quality"`
	Sources          []SourceOutcome `json:"sources"`
	ProviderUsed     string          `json:"provider_used"`
	FallbackUsed     bool            `json:"fallback_used"`
	RequestedCount   int             `json:"requested_count"`
	ReturnedCount    int             `json:"returned_count"`
	DroppedCount     int             `json:"dropped_count,omitempty"`
	RejectedCount    int             `json:"rejected_count,omitempty"` // LLM verification rejects
	QuotaRemaining   int             `json:"quota_remaining"`
	QuotaNonDurable  bool            `json:"quota_non_durable,omitempty"` // in-memory fallback counter in effect
	Degraded         bool            `json:"degraded,omitempty"`          // at least one source failed
	Warnings         []string        `json:"warnings,omitempty"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PipelineResult is the terminal output of one pipeline invocation.
type PipelineResult struct {
	Questions []Question `json:"questions"`
	Metadata  Metadata   `json:"metadata"`
}

// SupportedLanguages is the fixed language set the boundary accepts.
var SupportedLanguages = []string{"English", "German", "French", "Spanish", "Italian", "Portuguese", "Dutch", "Turkish"}

// IsSupportedLanguage reports whether lang is in the supported set.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// IsValidDifficulty reports whether d is one of Easy, Medium, Hard.
func IsValidDifficulty(d string) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}
