package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func TestBuildNarrativePrompt(t *testing.T) {
	prompt := buildNarrativePrompt("\n# Digest\n\n| Etch | 80% |\n")
	if !strings.Contains(prompt, "# Digest\n\n| Etch | 80% |") {
		t.Fatalf("prompt should embed the trimmed digest, got %q", prompt)
	}
	if !strings.HasSuffix(prompt, "Write the summary now.") {
		t.Fatalf("unexpected prompt ending: %q", prompt)
	}
}

func TestNewNarratorDefaultsModel(t *testing.T) {
	if n := NewNarrator("key", " "); n.model != defaultAnthropicModel {
		t.Fatalf("expected default model, got %q", n.model)
	}
	if n := NewNarrator("key", "claude-custom"); n.model != "claude-custom" {
		t.Fatalf("expected configured model, got %q", n.model)
	}
}

func TestNarrateAgainstMockAPI(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": "  Etch accuracy held at 80%.  "},
			},
			"usage": map[string]any{"input_tokens": 120, "output_tokens": 12},
		})
	}))
	t.Cleanup(server.Close)

	n := NewNarrator("test-key", "claude-test", option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
	text, usage, err := n.Narrate(context.Background(), "# Digest")
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if text != "Etch accuracy held at 80%." {
		t.Fatalf("unexpected narrative: %q", text)
	}
	if usage.TotalTokens() != 132 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if gotBody["model"] != "claude-test" {
		t.Fatalf("unexpected request model: %v", gotBody["model"])
	}
}
