package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/assessor/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestParseMarkResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"plain", `{"mark": 4, "rationale": "ok"}`, 4, false},
		{"fenced", "```json\n{\"mark\": 2.5, \"rationale\": \"ok\"}\n```", 2.5, false},
		{"garbage", "four points", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMarkResponse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMarkResponse: %v", err)
			}
			if got.Mark != tt.want {
				t.Errorf("mark = %v, want %v", got.Mark, tt.want)
			}
		})
	}
}

func TestNewRejectsUnknownVariant(t *testing.T) {
	if _, err := New("", "key", "gpt-4o-mini", "harsh"); err == nil {
		t.Error("expected error for unknown variant")
	}
	if _, err := New("", "key", "gpt-4o-mini", ""); err != nil {
		t.Errorf("empty variant: %v", err)
	}
}

// fakeChatServer answers chat completions with content and records the system prompt.
func fakeChatServer(t *testing.T, content string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Messages) > 0 {
			*gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSuggestEssayMark(t *testing.T) {
	essay := model.Essay{ID: "e1", Points: ptr(5.0), Prompt: "Write about your weekend."}

	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"in range", `{"mark": 3, "rationale": "clear but short"}`, 3},
		{"clamped high", `{"mark": 9, "rationale": "excellent"}`, 5},
		{"clamped low", `{"mark": -2, "rationale": "empty"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt string
			srv := fakeChatServer(t, tt.content, &prompt)
			c, err := New(srv.URL+"/v1", "key", "test", "strict")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			got, err := c.SuggestEssayMark(context.Background(), essay, "I went hiking.")
			if err != nil {
				t.Fatalf("SuggestEssayMark: %v", err)
			}
			if got.QuestionID != "e1" || got.Mark != tt.want || got.MaxPoints != 5 {
				t.Errorf("suggestion = %+v, want mark %v", got, tt.want)
			}
			if !strings.Contains(prompt, "I went hiking.") || !strings.Contains(prompt, "strict examiner") {
				t.Errorf("system prompt = %q", prompt)
			}
		})
	}
}
