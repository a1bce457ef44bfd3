package autoquiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// QuestionChecker is the optional LLM verification pass: each structurally
// valid question is judged for quality and fairness by the primary model.
// It runs only when generation.verify is enabled; structural validation
// never depends on it.
type QuestionChecker struct {
	client *openai.Client
	model  string
}

// NewQuestionChecker creates a checker backed by the primary model.
func NewQuestionChecker(cfg OpenAIConfig) *QuestionChecker {
	return &QuestionChecker{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}
}

// CheckResult is the checker's verdict on one question.
type CheckResult struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

// CheckQuestion asks the model whether the question is acceptable. Errors
// are returned to the caller, which treats them as accept: verification
// is best-effort and must not turn an otherwise good batch into a failure.
func (qc *QuestionChecker) CheckQuestion(ctx context.Context, question Question) (*CheckResult, error) {
	VerboseLog("Checking question %s", question.ID)

	prompt := qc.buildPrompt(question)

	resp, err := qc.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: qc.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert quiz question validator. Evaluate questions for quality, clarity, and fairness.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        "evaluate_question",
					Description: "Evaluate a quiz question and decide whether to accept or reject it",
					Parameters: map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"reason": map[string]interface{}{
								"type":        "string",
								"description": "Explanation for the decision",
							},
							"accept": map[string]interface{}{
								"type":        "boolean",
								"description": "Whether the question is acceptable as-is",
							},
						},
						"required": []string{"reason", "accept"},
					},
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type: openai.ToolTypeFunction,
			Function: openai.ToolFunction{
				Name: "evaluate_question",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check question: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from checker model")
	}
	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("no tool calls in response")
	}
	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != "evaluate_question" {
		return nil, fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}

	var result CheckResult
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &result); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	VerboseLog("Question %s: accept=%v - %s", question.ID, result.Accept, result.Reason)
	return &result, nil
}

func (qc *QuestionChecker) buildPrompt(question Question) string {
	var sb strings.Builder

	sb.WriteString("Evaluate the following quiz question:\n\n")
	sb.WriteString(fmt.Sprintf("Question: %s\n\n", question.Text))

	sb.WriteString("Options:\n")
	for i, option := range question.Options {
		marker := " "
		if i == question.CorrectAnswer {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("%s%d. %s\n", marker, i+1, option))
	}

	sb.WriteString(fmt.Sprintf("\nCorrect Answer: %d\n", question.CorrectAnswer+1))
	sb.WriteString(fmt.Sprintf("Explanation: %s\n\n", question.Explanation))

	sb.WriteString("Reject only for fundamental problems: the correct answer appears in the question text, ")
	sb.WriteString("the question gives away obvious clues, the marked answer is factually wrong, ")
	sb.WriteString("or the incorrect options are not plausible. Otherwise accept.\n")

	return sb.String()
}
