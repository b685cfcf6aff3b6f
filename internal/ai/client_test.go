package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/somasaidi/somasaidi/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.AIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "grok-beta",
		Timeout: 5 * time.Second,
	})
}

func chatContent(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestGenerateAnswer_StructuredJSON(t *testing.T) {
	content := `{"explanation":"Divide both sides by 2.","steps":["2x = 6","x = 3"],"additionalNotes":"Check by substituting back."}`
	c := newTestClient(t, chatContent(t, content))

	ans, err := c.GenerateAnswer(context.Background(), "Solve 2x = 6", "form-1", "math")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ans.Explanation != "Divide both sides by 2." || len(ans.Steps) != 2 {
		t.Fatalf("unexpected answer: %+v", ans)
	}
}

func TestGenerateAnswer_PlainTextIsWrapped(t *testing.T) {
	c := newTestClient(t, chatContent(t, "Just add the numbers together."))

	ans, err := c.GenerateAnswer(context.Background(), "What is 2 + 2?", "grade-1", "math")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ans.Explanation != "Just add the numbers together." {
		t.Fatalf("plain text not kept as explanation: %+v", ans)
	}
	if len(ans.Steps) == 0 {
		t.Fatalf("wrapped answer should carry default steps")
	}
}

func TestGenerateAnswer_RequestShape(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		chatContent(t, "{}")(w, r)
	})

	_, err := c.GenerateAnswer(context.Background(), "What is photosynthesis?", "grade-5", "science")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Model != "grok-beta" || got.Temperature != 0.7 || got.MaxTokens != 1000 {
		t.Fatalf("unexpected request params: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestGenerateAnswer_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	})

	if _, err := c.GenerateAnswer(context.Background(), "Solve x", "grade-5", "math"); err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}

func TestSystemPrompt_Fallbacks(t *testing.T) {
	got := systemPrompt("grade-99", "astrology")
	if got == "" {
		t.Fatalf("empty prompt")
	}
	if !strings.Contains(got, gradePrompts["grade-5"]) {
		t.Fatalf("unknown grade should fall back to grade-5")
	}
	if !strings.Contains(got, subjectPrompts["other"]) {
		t.Fatalf("unknown subject should fall back to other")
	}
}
