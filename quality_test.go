package autoquiz

import (
	"strings"
	"testing"
)

const cleanParagraph = `The water cycle describes how water moves between the oceans, the
atmosphere, and the land. Water evaporates from the surface, condenses into
clouds, and falls back as precipitation. Some of it soaks into the ground and
recharges aquifers, while the rest runs off into rivers and eventually
returns to the sea. This continuous movement redistributes both heat and
fresh water around the planet.`

func TestScoreTextDeterministic(t *testing.T) {
	first := ScoreText(cleanParagraph, 0.9)
	second := ScoreText(cleanParagraph, 0.9)
	if first != second {
		t.Errorf("same input scored differently: %v vs %v", first, second)
	}
}

func TestScoreTextBounds(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		confidence float64
	}{
		{"empty", "", 1.0},
		{"whitespace only", "   \n\t  ", 0.5},
		{"clean high confidence", cleanParagraph, 1.0},
		{"garbage low confidence", "@#$ @#$ @#$ @#$ @#$", 0.0},
		{"out of range confidence", cleanParagraph, 3.0},
		{"negative confidence", cleanParagraph, -1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ScoreText(tt.text, tt.confidence)
			if score < 1 || score > 10 {
				t.Errorf("score %v out of [1,10]", score)
			}
		})
	}
}

func TestScoreTextEmptyIsFloor(t *testing.T) {
	if got := ScoreText("", 1.0); got != 1 {
		t.Errorf("empty text: got %v, want 1", got)
	}
}

func TestScoreTextShortTextPenalized(t *testing.T) {
	long := ScoreText(cleanParagraph, 0.9)
	short := ScoreText("Water evaporates.", 0.9)
	if short >= long {
		t.Errorf("short text (%v) should score below long text (%v)", short, long)
	}
}

func TestScoreTextCorruptionPenalized(t *testing.T) {
	corrupted := cleanParagraph + "\n|||||||| 1234567890123456"
	clean := ScoreText(cleanParagraph, 0.9)
	bad := ScoreText(corrupted, 0.9)
	if bad >= clean {
		t.Errorf("corrupted text (%v) should score below clean text (%v)", bad, clean)
	}
}

func TestScoreTextConfidenceSeedsBase(t *testing.T) {
	high := ScoreText(cleanParagraph, 0.95)
	low := ScoreText(cleanParagraph, 0.2)
	if low >= high {
		t.Errorf("low confidence (%v) should score below high confidence (%v)", low, high)
	}
}

func TestMalformedTokenRatio(t *testing.T) {
	if r := malformedTokenRatio("hello world again"); r != 0 {
		t.Errorf("clean tokens: got ratio %v, want 0", r)
	}
	if r := malformedTokenRatio("@@@@ #### ^^^^"); r != 1 {
		t.Errorf("garbage tokens: got ratio %v, want 1", r)
	}
}

func TestCorruptionPenaltySingleLetterRuns(t *testing.T) {
	// OCR output degraded into isolated letters.
	text := "The report states b c d f g that revenue grew."
	if corruptionPenalty(text) == 0 {
		t.Error("single-letter run not detected")
	}
	if p := corruptionPenalty(strings.ReplaceAll(cleanParagraph, "\n", " ")); p != 0 {
		t.Errorf("clean text penalized: %v", p)
	}
}
