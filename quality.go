package autoquiz

import (
	"regexp"
	"strings"
	"unicode"
)

// ScoreText rates extracted text 1..10 for question-generation usefulness.
// Pure function: identical (text, confidence) inputs always yield the
// identical score. The base is seeded from extraction confidence; penalties
// follow for short text, malformed tokens, missing sentence structure, and
// recognizable corruption patterns.
func ScoreText(text string, confidence float64) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 1
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	score := 1 + confidence*9

	runes := len([]rune(text))
	switch {
	case runes < 50:
		score -= 4
	case runes < 200:
		score -= 2
	case runes < 400:
		score -= 1
	}

	// Fraction of tokens that do not look like words at all.
	malformed := malformedTokenRatio(text)
	score -= malformed * 5

	if !hasSentenceStructure(text) {
		score -= 1.5
	}

	score -= corruptionPenalty(text)

	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// malformedTokenRatio returns the fraction of whitespace-separated tokens
// failing a basic alphanumeric/punctuation shape check. OCR artifacts tend
// to produce tokens dominated by symbols.
func malformedTokenRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 1
	}
	malformed := 0
	for _, f := range fields {
		if !wordShaped(f) {
			malformed++
		}
	}
	return float64(malformed) / float64(len(fields))
}

// wordShaped reports whether a token is mostly letters, digits, and common
// punctuation.
func wordShaped(token string) bool {
	total := 0
	sane := 0
	for _, r := range token {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".,;:!?'\"()-–%€$&/", r) {
			sane++
		}
	}
	if total == 0 {
		return false
	}
	return float64(sane)/float64(total) >= 0.7
}

// hasSentenceStructure checks for terminal punctuation anywhere in the text.
func hasSentenceStructure(text string) bool {
	return strings.ContainsAny(text, ".!?")
}

var (
	pipeRunRe      = regexp.MustCompile(`[|_]{3,}`)
	digitRunRe     = regexp.MustCompile(`\d{12,}`)
	singleLetterRe = regexp.MustCompile(`(?:^|\s)[b-hj-z](?:\s[b-hj-z]){3,}(?:\s|$)`)
)

// corruptionPenalty applies fixed deductions for recognizable OCR and PDF
// extraction corruption patterns: pipe/underscore runs, abnormally long
// digit runs, and stretches of isolated single-letter tokens.
func corruptionPenalty(text string) float64 {
	penalty := 0.0
	if pipeRunRe.MatchString(text) {
		penalty += 1
	}
	if digitRunRe.MatchString(text) {
		penalty += 1
	}
	if singleLetterRe.MatchString(text) {
		penalty += 1.5
	}
	return penalty
}
