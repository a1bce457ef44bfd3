package autoquiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DeepseekProvider is the secondary generation provider, called through the
// Deepseek chat-completions HTTP API.
type DeepseekProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewDeepseekProvider creates the secondary provider from its config.
func NewDeepseekProvider(cfg DeepseekConfig) *DeepseekProvider {
	return &DeepseekProvider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{},
	}
}

func (p *DeepseekProvider) Name() string {
	return "deepseek"
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekRequest struct {
	Model    string            `json:"model"`
	Messages []deepseekMessage `json:"messages"`
}

type deepseekResponse struct {
	Choices []struct {
		Message deepseekMessage `json:"message"`
	} `json:"choices"`
}

func (p *DeepseekProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := deepseekRequest{
		Model: p.model,
		Messages: []deepseekMessage{
			{
				Role:    "system",
				Content: "You are an expert quiz question generator. Respond with JSON only.",
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(reqJSON))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepseek request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepseek status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var dsResp deepseekResponse
	if err := json.Unmarshal(body, &dsResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(dsResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return dsResp.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
