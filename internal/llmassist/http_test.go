package llmassist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inboxd/triaged/internal/types"
)

func TestHTTPProvider_Triage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %q, want /responses", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", auth)
		}

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if req["model"] != "gpt-5-codex" {
			t.Errorf("model = %v, want gpt-5-codex", req["model"])
		}

		resp := map[string]any{
			"output_text": `{"priority":"high","actionable":true,"reason":"needs reply","summary":"s","reply_text":"r"}`,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewHTTPProvider("gpt-5-codex", "", "test-key", server.URL, 5*time.Second)
	result, err := provider.Triage(context.Background(), Payload{Subject: "hi"}, Baseline{Priority: types.PriorityLow}, "fallback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Priority != types.PriorityHigh {
		t.Errorf("priority = %q, want high", result.Priority)
	}
	if result.ReplyText != "r" {
		t.Errorf("reply text = %q, want r", result.ReplyText)
	}
}

func TestHTTPProvider_Triage_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	provider := NewHTTPProvider("gpt-5-codex", "", "test-key", server.URL, 5*time.Second)
	_, err := provider.Triage(context.Background(), Payload{}, Baseline{}, "fallback")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var llmErr *types.LLMError
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *types.LLMError, got %T", err)
	}
}

func TestHTTPProvider_Triage_EmptyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"output_text": ""})
	}))
	defer server.Close()

	provider := NewHTTPProvider("gpt-5-codex", "", "test-key", server.URL, 5*time.Second)
	_, err := provider.Triage(context.Background(), Payload{}, Baseline{}, "fallback")
	if err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestExtractOutputText_FromOutputArray(t *testing.T) {
	response := map[string]any{
		"output": []any{
			map[string]any{
				"type": "message",
				"content": []any{
					map[string]any{"type": "output_text", "text": "hello"},
				},
			},
		},
	}
	if got := extractOutputText(response); got != "hello" {
		t.Errorf("extractOutputText() = %q, want hello", got)
	}
}
