package autoquiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
)

// Generator orchestrates question generation across an ordered provider
// chain. Each provider call gets a bounded timeout; a content-related
// failure (unparseable output) earns one retry against the same provider
// with a shorter prompt before the chain falls through to the next one.
type Generator struct {
	providers []Provider
	timeout   time.Duration
	runlog    *RunLog
}

// NewGenerator builds the fixed-order chain from config: OpenAI primary,
// Deepseek secondary. Providers without an API key are skipped.
func NewGenerator(cfg ProvidersConfig, timeout time.Duration) *Generator {
	var chain []Provider
	if cfg.OpenAI.APIKey != "" {
		chain = append(chain, NewOpenAIProvider(cfg.OpenAI))
	}
	if cfg.Deepseek.APIKey != "" {
		chain = append(chain, NewDeepseekProvider(cfg.Deepseek))
	}
	return &Generator{providers: chain, timeout: timeout}
}

// NewGeneratorWithProviders builds a generator over an explicit chain.
func NewGeneratorWithProviders(timeout time.Duration, providers ...Provider) *Generator {
	return &Generator{providers: providers, timeout: timeout}
}

// WithRunLog returns a copy of the generator with a per-run transcript
// logger attached, so concurrent runs never share the field.
func (g *Generator) WithRunLog(rl *RunLog) *Generator {
	c := *g
	c.runlog = rl
	return &c
}

// GenerationOutcome reports how a batch was produced.
type GenerationOutcome struct {
	ProviderUsed string
	FallbackUsed bool
	Dropped      int // malformed entries removed during validation
	Warnings     []string
}

// shortPromptContentLimit bounds the content embedded in the retry prompt
// when the first attempt produced unparseable output.
const shortPromptContentLimit = 4000

// Generate runs the provider chain and returns a validated batch. Failing
// with a typed generation error only on total exhaustion of providers. A
// batch smaller than requested is reported in the outcome, not an error.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) ([]Question, *GenerationOutcome, error) {
	if len(g.providers) == 0 {
		return nil, nil, generationError(nil, "no generation providers configured")
	}

	outcome := &GenerationOutcome{}
	var lastErr error

	for i, provider := range g.providers {
		outcome.FallbackUsed = i > 0

		questions, dropped, warnings, err := g.attempt(ctx, provider, req, false)
		if err != nil && isContentFailure(err) {
			// Same provider, one retry with a shorter prompt: long content is
			// the usual reason models drift out of the JSON contract.
			log.Printf("Provider %s returned unparseable output, retrying with short prompt", provider.Name())
			questions, dropped, warnings, err = g.attempt(ctx, provider, req, true)
		}
		if err != nil {
			lastErr = fmt.Errorf("provider %s: %w", provider.Name(), err)
			log.Printf("Provider %s failed: %v", provider.Name(), err)
			continue
		}

		outcome.ProviderUsed = provider.Name()
		outcome.Dropped = dropped
		outcome.Warnings = warnings
		EnsureAnswerVariety(questions)
		return questions, outcome, nil
	}

	return nil, nil, generationError(lastErr, "all generation providers failed")
}

// contentFailure marks failures caused by the model's output rather than
// transport: these earn the short-prompt retry.
type contentFailure struct {
	err error
}

func (c *contentFailure) Error() string { return c.err.Error() }
func (c *contentFailure) Unwrap() error { return c.err }

func isContentFailure(err error) bool {
	_, ok := err.(*contentFailure)
	return ok
}

// attempt runs one prompt-call-parse-validate pass against a single
// provider.
func (g *Generator) attempt(ctx context.Context, provider Provider, req GenerationRequest, short bool) ([]Question, int, []string, error) {
	prompt := buildPrompt(req, short)
	if g.runlog != nil {
		g.runlog.LogProviderRequest(provider.Name(), prompt)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := provider.Generate(callCtx, prompt)
	if err != nil {
		return nil, 0, nil, err
	}
	if g.runlog != nil {
		g.runlog.LogProviderResponse(provider.Name(), raw)
	}

	parsed, err := parseProviderOutput(raw)
	if err != nil {
		return nil, 0, nil, &contentFailure{err: err}
	}

	questions, dropped, warnings := validateBatch(parsed)
	if len(questions) == 0 {
		return nil, 0, nil, &contentFailure{err: fmt.Errorf("no valid questions in output (%d entries dropped)", dropped)}
	}
	if len(questions) > req.NumQuestions {
		questions = questions[:req.NumQuestions]
	}
	return questions, dropped, warnings, nil
}

// buildPrompt embeds the content, count, difficulty, and language, plus the
// JSON output contract and the answer-variety instruction.
func buildPrompt(req GenerationRequest, short bool) string {
	content := req.Content
	if short && len(content) > shortPromptContentLimit {
		content = content[:shortPromptContentLimit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate exactly %d multiple choice questions in %s.\n\n", req.NumQuestions, req.Language))
	sb.WriteString("Base the questions on the following material:\n")
	sb.WriteString(content)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Difficulty level: %s\n\n", req.Difficulty))

	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question must have exactly 4 multiple choice options\n")
	sb.WriteString("- Incorrect options should be plausible but clearly wrong\n")
	sb.WriteString("- Vary the position of the correct answer across the questions; do not cluster correct answers on one letter\n")
	sb.WriteString("- Provide a brief explanation for why the correct answer is right\n\n")

	sb.WriteString("Output format: a JSON array of objects, nothing else. Each object has the fields ")
	sb.WriteString(`"question" (string), "options" (array of exactly 4 strings), "correctAnswer" (letter A-D), "explanation" (string).`)
	sb.WriteString("\n")
	return sb.String()
}

// rawQuestion is the untrusted provider-output shape.
type rawQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// parseProviderOutput defensively parses raw model text: code-fence markers
// are stripped, the first well-formed JSON array substring is located, and
// only that substring is parsed. Providers are never assumed to return bare
// JSON.
func parseProviderOutput(raw string) ([]rawQuestion, error) {
	cleaned := stripCodeFences(raw)

	arr, err := findJSONArray(cleaned)
	if err != nil {
		return nil, err
	}

	var parsed []rawQuestion
	if err := json.Unmarshal([]byte(arr), &parsed); err != nil {
		return nil, fmt.Errorf("parse question array: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("empty question array")
	}
	return parsed, nil
}

// stripCodeFences removes markdown fence lines (``` and ```json) wherever
// they appear.
func stripCodeFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// findJSONArray locates the first balanced top-level JSON array in s,
// tracking string literals and escapes so brackets inside values don't
// terminate the scan.
func findJSONArray(s string) (string, error) {
	for start := strings.IndexByte(s, '['); start >= 0; {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				if inString {
					escaped = true
				}
			case '"':
				inString = !inString
			case '[':
				if !inString {
					depth++
				}
			case ']':
				if !inString {
					depth--
					if depth == 0 {
						candidate := s[start : i+1]
						if json.Valid([]byte(candidate)) {
							return candidate, nil
						}
						i = len(s) // malformed; try the next opening bracket
					}
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '[')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}
	return "", fmt.Errorf("no JSON array found in provider output")
}

// validateBatch checks every parsed question: non-empty text, exactly 4
// distinct non-empty options, resolvable answer letter. Unrecoverable
// entries are dropped and counted; a missing or out-of-range letter falls
// back to option 0 with a data-quality warning instead of failing the batch.
func validateBatch(parsed []rawQuestion) ([]Question, int, []string) {
	var questions []Question
	var warnings []string
	dropped := 0

	for i, rq := range parsed {
		text := strings.TrimSpace(rq.Question)
		if text == "" || len(rq.Options) != 4 {
			dropped++
			continue
		}
		options := make([]string, 4)
		seen := map[string]bool{}
		valid := true
		for j, opt := range rq.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" || seen[opt] {
				valid = false
				break
			}
			seen[opt] = true
			options[j] = opt
		}
		if !valid {
			dropped++
			continue
		}

		idx, ok := letterToIndex(rq.CorrectAnswer)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("question %d: unresolvable answer %q, defaulting to option A", i+1, rq.CorrectAnswer))
			idx = 0
		}

		questions = append(questions, Question{
			ID:            generateQuestionID(),
			Text:          text,
			Options:       options,
			CorrectAnswer: idx,
			Explanation:   strings.TrimSpace(rq.Explanation),
		})
	}
	return questions, dropped, warnings
}

// letterToIndex maps a correct-answer letter A-D (any case, with optional
// punctuation like "C)" ) to a 0-based option index.
func letterToIndex(letter string) (int, bool) {
	letter = strings.TrimSpace(letter)
	if letter == "" {
		return 0, false
	}
	c := letter[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'D' {
		return 0, false
	}
	return int(c - 'A'), true
}

// EnsureAnswerVariety enforces the answer-distribution policy in place: no
// single correct-option index may hold more than 60% of the batch, and at
// least 3 of the 4 indices appear when the batch size allows it. Violations
// are fixed by swapping the correct option's text with another position, so
// the correct text always stays marked correct.
func EnsureAnswerVariety(questions []Question) {
	n := len(questions)
	if n < 2 {
		return
	}

	maxAllowed := (n * 3) / 5
	if maxAllowed < 1 {
		maxAllowed = 1
	}

	counts := answerCounts(questions)

	// Cap any overloaded index by moving its excess to the rarest index.
	for idx := 0; idx < 4; idx++ {
		for counts[idx] > maxAllowed {
			target := rarestIndex(counts, idx)
			moveOneAnswer(questions, idx, target)
			counts[idx]--
			counts[target]++
		}
	}

	// Spread across at least 3 indices for batches of 3 or more.
	if n >= 3 {
		for distinctIndices(counts) < 3 {
			donor := mostLoadedIndex(counts)
			target := firstUnusedIndex(counts)
			if counts[donor] <= 1 || target < 0 {
				break
			}
			moveOneAnswer(questions, donor, target)
			counts[donor]--
			counts[target]++
		}
	}
}

func answerCounts(questions []Question) [4]int {
	var counts [4]int
	for _, q := range questions {
		counts[q.CorrectAnswer]++
	}
	return counts
}

func rarestIndex(counts [4]int, exclude int) int {
	best := -1
	for i := 0; i < 4; i++ {
		if i == exclude {
			continue
		}
		if best < 0 || counts[i] < counts[best] {
			best = i
		}
	}
	return best
}

func mostLoadedIndex(counts [4]int) int {
	best := 0
	for i := 1; i < 4; i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	return best
}

func firstUnusedIndex(counts [4]int) int {
	for i := 0; i < 4; i++ {
		if counts[i] == 0 {
			return i
		}
	}
	return -1
}

func distinctIndices(counts [4]int) int {
	distinct := 0
	for _, c := range counts {
		if c > 0 {
			distinct++
		}
	}
	return distinct
}

// moveOneAnswer rewrites the first question whose correct index is from:
// the correct option text swaps places with the text at the target index,
// and the correct index follows it.
func moveOneAnswer(questions []Question, from, to int) {
	for i := range questions {
		if questions[i].CorrectAnswer != from {
			continue
		}
		questions[i].Options[from], questions[i].Options[to] = questions[i].Options[to], questions[i].Options[from]
		questions[i].CorrectAnswer = to
		return
	}
}

func generateQuestionID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
