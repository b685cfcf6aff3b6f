// Package ai generates homework answers through an OpenAI-compatible chat
// completions endpoint. Any failure to produce an answer is returned to
// the caller; there is no canned fallback, a paid question either gets a
// real answer or is marked failed for follow-up.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/somasaidi/somasaidi/internal/config"
)

// Answer is the structured solution the model is asked to produce.
type Answer struct {
	Explanation     string   `json:"explanation"`
	Steps           []string `json:"steps"`
	AdditionalNotes string   `json:"additionalNotes"`
}

type Client struct {
	httpc   *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		httpc:   &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateAnswer asks the model for a structured answer to one question.
// When the model replies with plain text instead of the requested JSON,
// the text is kept as the explanation with generic steps around it.
func (c *Client) GenerateAnswer(ctx context.Context, questionText, gradeLevel, subject string) (Answer, error) {
	payload := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(gradeLevel, subject)},
			{Role: "user", Content: "Please help me understand this homework question: " + questionText},
		},
		Model:       c.model,
		Temperature: 0.7,
		MaxTokens:   1000,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Answer{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Answer{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("chat completions request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Answer{}, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Answer{}, fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Answer{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Answer{}, fmt.Errorf("chat completions returned no choices")
	}

	return parseAnswer(out.Choices[0].Message.Content), nil
}

// parseAnswer decodes the model's content as the requested JSON shape,
// keeping plain-text replies usable instead of dropping them.
func parseAnswer(content string) Answer {
	var ans Answer
	if err := json.Unmarshal([]byte(content), &ans); err == nil && ans.Explanation != "" {
		if len(ans.Steps) == 0 {
			ans.Steps = defaultSteps()
		}
		return ans
	}
	return Answer{
		Explanation:     content,
		Steps:           defaultSteps(),
		AdditionalNotes: "Remember to take your time and ask for help if you need it!",
	}
}

func defaultSteps() []string {
	return []string{"Review the question carefully", "Apply the relevant concepts", "Check your answer"}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
