package autoquiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeProvider replays scripted responses and records the prompts it saw.
type fakeProvider struct {
	name    string
	outputs []string
	errs    []error
	calls   int
	prompts []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(_ context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out string
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	return out, err
}

// questionJSON builds a valid provider payload of n questions with the given
// answer letters.
func questionJSON(letters ...string) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, letter := range letters {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"question":"What is item %d?","options":["Alpha %d","Beta %d","Gamma %d","Delta %d"],"correctAnswer":"%s","explanation":"Because."}`,
			i+1, i, i, i, i, letter)
	}
	sb.WriteString("]")
	return sb.String()
}

func TestParseProviderOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"bare array", questionJSON("A", "B"), 2, false},
		{"fenced", "```json\n" + questionJSON("A") + "\n```", 1, false},
		{"prose around array", "Here are your questions:\n" + questionJSON("C") + "\nEnjoy!", 1, false},
		{"brackets inside strings", `[{"question":"Which set is [1, 2]?","options":["[1]","[2]","[1, 2]","[]"],"correctAnswer":"C","explanation":"x"}]`, 1, false},
		{"no array", "Sorry, I cannot help with that.", 0, true},
		{"empty array", "[]", 0, true},
		{"truncated array", `[{"question":"Incomplete`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parseProviderOutput(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(parsed) != tt.want {
				t.Errorf("got %d questions, want %d", len(parsed), tt.want)
			}
		})
	}
}

func TestLetterToIndex(t *testing.T) {
	tests := []struct {
		in   string
		idx  int
		ok   bool
	}{
		{"A", 0, true},
		{"b", 1, true},
		{"C", 2, true},
		{"C)", 2, true},
		{" d ", 3, true},
		{"E", 0, false},
		{"", 0, false},
		{"2", 0, false},
	}
	for _, tt := range tests {
		idx, ok := letterToIndex(tt.in)
		if idx != tt.idx || ok != tt.ok {
			t.Errorf("letterToIndex(%q) = (%d, %v), want (%d, %v)", tt.in, idx, ok, tt.idx, tt.ok)
		}
	}
}

func TestValidateBatch(t *testing.T) {
	parsed := []rawQuestion{
		{Question: "Good?", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "B"},
		{Question: "", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "A"},
		{Question: "Three options?", Options: []string{"a", "b", "c"}, CorrectAnswer: "A"},
		{Question: "Duplicates?", Options: []string{"a", "a", "c", "d"}, CorrectAnswer: "A"},
		{Question: "Bad letter?", Options: []string{"w", "x", "y", "z"}, CorrectAnswer: "E"},
	}

	questions, dropped, warnings := validateBatch(parsed)
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if dropped != 3 {
		t.Errorf("got %d dropped, want 3", dropped)
	}
	if questions[0].CorrectAnswer != 1 {
		t.Errorf("first question answer = %d, want 1", questions[0].CorrectAnswer)
	}
	// Unresolvable letter falls back to option 0 with a warning, never an error.
	if questions[1].CorrectAnswer != 0 {
		t.Errorf("bad letter answer = %d, want fallback 0", questions[1].CorrectAnswer)
	}
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(warnings))
	}
	if questions[0].ID == "" || questions[0].ID == questions[1].ID {
		t.Error("questions should get distinct non-empty IDs")
	}
}

func TestEnsureAnswerVariety(t *testing.T) {
	// Ten questions all marked A: well over the 60% ceiling on one index.
	letters := make([]string, 10)
	for i := range letters {
		letters[i] = "A"
	}
	parsed, err := parseProviderOutput(questionJSON(letters...))
	if err != nil {
		t.Fatal(err)
	}
	questions, _, _ := validateBatch(parsed)

	correctTexts := make([]string, len(questions))
	for i, q := range questions {
		correctTexts[i] = q.Options[q.CorrectAnswer]
	}

	EnsureAnswerVariety(questions)

	counts := answerCounts(questions)
	maxAllowed := (len(questions) * 3) / 5
	for idx, c := range counts {
		if c > maxAllowed {
			t.Errorf("index %d holds %d answers, ceiling is %d", idx, c, maxAllowed)
		}
	}
	if distinctIndices(counts) < 3 {
		t.Errorf("only %d distinct answer positions, want at least 3", distinctIndices(counts))
	}
	// The rebalancing must preserve which text is correct.
	for i, q := range questions {
		if q.Options[q.CorrectAnswer] != correctTexts[i] {
			t.Errorf("question %d: correct text changed from %q to %q", i, correctTexts[i], q.Options[q.CorrectAnswer])
		}
	}
}

func TestEnsureAnswerVarietySmallBatches(t *testing.T) {
	// One question: nothing to balance, must not panic or mutate.
	single := []Question{{Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 2}}
	EnsureAnswerVariety(single)
	if single[0].CorrectAnswer != 2 {
		t.Errorf("single question mutated: answer %d", single[0].CorrectAnswer)
	}

	EnsureAnswerVariety(nil)
}

func TestGenerateFallbackChain(t *testing.T) {
	primary := &fakeProvider{name: "primary", errs: []error{errors.New("timeout"), errors.New("timeout")}}
	secondary := &fakeProvider{name: "secondary", outputs: []string{questionJSON("A", "B", "C", "D", "A")}}
	gen := NewGeneratorWithProviders(time.Second, primary, secondary)

	questions, outcome, err := gen.Generate(context.Background(), GenerationRequest{
		Content: "Some material.", NumQuestions: 5, Difficulty: DifficultyEasy, Language: "English",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 5 {
		t.Errorf("got %d questions, want 5", len(questions))
	}
	if !outcome.FallbackUsed {
		t.Error("FallbackUsed should be true")
	}
	if outcome.ProviderUsed != "secondary" {
		t.Errorf("ProviderUsed = %q, want secondary", outcome.ProviderUsed)
	}
}

func TestGenerateShortPromptRetry(t *testing.T) {
	longContent := strings.Repeat("Relevant material sentence. ", 400)
	provider := &fakeProvider{
		name:    "primary",
		outputs: []string{"I'm sorry, no JSON today.", questionJSON("A", "B", "C", "D", "B")},
	}
	gen := NewGeneratorWithProviders(time.Second, provider)

	questions, outcome, err := gen.Generate(context.Background(), GenerationRequest{
		Content: longContent, NumQuestions: 5, Difficulty: DifficultyMedium, Language: "English",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
	if len(provider.prompts[1]) >= len(provider.prompts[0]) {
		t.Error("retry prompt should be shorter than the original")
	}
	if outcome.FallbackUsed {
		t.Error("retry on the same provider is not a fallback")
	}
	if len(questions) != 5 {
		t.Errorf("got %d questions, want 5", len(questions))
	}
}

func TestGenerateAllProvidersFail(t *testing.T) {
	primary := &fakeProvider{name: "primary", errs: []error{errors.New("boom"), errors.New("boom")}}
	gen := NewGeneratorWithProviders(time.Second, primary)

	_, _, err := gen.Generate(context.Background(), GenerationRequest{
		Content: "x", NumQuestions: 5, Difficulty: DifficultyEasy, Language: "English",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != ErrGeneration {
		t.Errorf("error kind = %q, want %q", KindOf(err), ErrGeneration)
	}
}

func TestGenerateTruncatesOversizedBatch(t *testing.T) {
	provider := &fakeProvider{name: "primary", outputs: []string{questionJSON("A", "B", "C", "D", "A", "B", "C", "D")}}
	gen := NewGeneratorWithProviders(time.Second, provider)

	questions, _, err := gen.Generate(context.Background(), GenerationRequest{
		Content: "x", NumQuestions: 5, Difficulty: DifficultyEasy, Language: "English",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 5 {
		t.Errorf("got %d questions, want 5", len(questions))
	}
}
