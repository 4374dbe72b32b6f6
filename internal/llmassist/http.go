package llmassist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inboxd/triaged/internal/types"
)

// HTTPProvider calls the OpenAI-compatible Responses API directly
// using an API key, the auth_mode: api_key path.
type HTTPProvider struct {
	Model           string
	ReasoningEffort string
	APIKey          string
	BaseURL         string
	Timeout         time.Duration

	httpClient *http.Client
}

// NewHTTPProvider builds an HTTPProvider whose HTTP client uses the
// given timeout (60s when timeout is not positive).
func NewHTTPProvider(model, reasoningEffort, apiKey, baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPProvider{
		Model:           model,
		ReasoningEffort: reasoningEffort,
		APIKey:          apiKey,
		BaseURL:         baseURL,
		Timeout:         timeout,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

const httpSystemPrompt = "You are an email triage assistant. " +
	"Return STRICT JSON only, no markdown, no commentary. " +
	"Decide priority and actionability, then draft a short professional reply."

func (p *HTTPProvider) Triage(ctx context.Context, payload Payload, baseline Baseline, fallbackReply string) (*Result, error) {
	userPayload := buildRequestPayload(payload, baseline, fallbackReply)
	userJSON, err := json.Marshal(userPayload)
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-http", Err: err}
	}

	body := map[string]any{
		"model": p.Model,
		"input": fmt.Sprintf("SYSTEM:\n%s\n\nUSER:\n%s", httpSystemPrompt, string(userJSON)),
	}
	if p.ReasoningEffort != "" {
		body["reasoning"] = map[string]string{"effort": p.ReasoningEffort}
	}

	raw, err := p.postJSON(ctx, p.BaseURL+"/responses", body)
	if err != nil {
		return nil, err
	}

	outputText := extractOutputText(raw)
	if outputText == "" {
		return nil, &types.LLMError{Provider: "codex-http", Err: errEmptyOutput{}}
	}

	parsed, err := parseJSONFromText(outputText)
	if err != nil {
		return nil, err
	}
	return normalizeResult(parsed, fallbackReply)
}

func (p *HTTPProvider) postJSON(ctx context.Context, url string, body map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-http", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-http", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-http", Err: fmt.Errorf("network error: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-http", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.LLMError{Provider: "codex-http", Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(raw), 500))}
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &types.LLMError{Provider: "codex-http", Err: fmt.Errorf("invalid JSON response: %s", truncate(string(raw), 500))}
	}
	return parsed, nil
}

// extractOutputText mirrors the Responses API's two shapes: a direct
// output_text convenience field, or an output[] array of message
// items each carrying content parts.
func extractOutputText(response map[string]any) string {
	if direct, ok := response["output_text"].(string); ok && strings.TrimSpace(direct) != "" {
		return strings.TrimSpace(direct)
	}

	var pieces []string
	items, _ := response["output"].([]any)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok || obj["type"] != "message" {
			continue
		}
		contents, _ := obj["content"].([]any)
		for _, c := range contents {
			cobj, ok := c.(map[string]any)
			if !ok {
				continue
			}
			ctype, _ := cobj["type"].(string)
			if ctype != "output_text" && ctype != "text" {
				continue
			}
			if text, ok := cobj["text"].(string); ok && strings.TrimSpace(text) != "" {
				pieces = append(pieces, strings.TrimSpace(text))
			}
		}
	}
	return strings.TrimSpace(strings.Join(pieces, "\n"))
}

type errEmptyOutput struct{}

func (errEmptyOutput) Error() string { return "codex returned no output text" }
