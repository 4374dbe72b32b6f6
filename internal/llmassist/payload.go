package llmassist

import (
	"encoding/json"
	"strings"

	"github.com/inboxd/triaged/internal/types"
)

// requestPayload is the task envelope both providers send, built from
// the rule baseline and the email being triaged.
type requestPayload struct {
	Task          string         `json:"task"`
	RulesBaseline baselineJSON   `json:"rules_baseline"`
	Email         Payload        `json:"email"`
	Requirements  requirements   `json:"requirements"`
	OutputSchema  map[string]any `json:"output_schema"`
	FallbackReply string         `json:"fallback_reply"`
}

type baselineJSON struct {
	Priority   string `json:"priority"`
	Actionable bool   `json:"actionable"`
	Reason     string `json:"reason"`
}

type requirements struct {
	PriorityValues  []string `json:"priority_values"`
	MustReplyText   bool     `json:"must_reply_text"`
	ReplyStyle      string   `json:"reply_style"`
}

func buildRequestPayload(payload Payload, baseline Baseline, fallbackReply string) requestPayload {
	return requestPayload{
		Task: "Classify and draft response",
		RulesBaseline: baselineJSON{
			Priority:   baseline.Priority,
			Actionable: baseline.Actionable,
			Reason:     baseline.Reason,
		},
		Email: payload,
		Requirements: requirements{
			PriorityValues: types.ValidPriorities,
			MustReplyText:  true,
			ReplyStyle:     "concise, professional, no AI-fluff",
		},
		OutputSchema: map[string]any{
			"priority":   "high|medium|low",
			"actionable": "boolean",
			"reason":     "short explanation",
			"summary":    "one-sentence summary",
			"reply_text": "draft reply body text",
		},
		FallbackReply: fallbackReply,
	}
}

// responseSchema is the JSON schema passed to the subprocess provider
// via --output-schema, constraining codex exec's structured output.
var responseSchema = map[string]any{
	"type":     "object",
	"required": []string{"priority", "actionable", "reason", "summary", "reply_text"},
	"properties": map[string]any{
		"priority":   map[string]any{"type": "string", "enum": types.ValidPriorities},
		"actionable": map[string]any{"type": "boolean"},
		"reason":     map[string]any{"type": "string"},
		"summary":    map[string]any{"type": "string"},
		"reply_text": map[string]any{"type": "string"},
	},
	"additionalProperties": false,
}

// parseJSONFromText extracts a JSON object from text that may be
// wrapped in markdown fences or surrounded by commentary: first try a
// direct parse, then fall back to the first "{" through the last "}".
func parseJSONFromText(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	var direct map[string]any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, &types.LLMError{Provider: "codex", Err: errNoJSONObject(text)}
	}

	snippet := text[start : end+1]
	var parsed map[string]any
	if err := json.Unmarshal([]byte(snippet), &parsed); err != nil {
		return nil, &types.LLMError{Provider: "codex", Err: errBadJSON(snippet, err)}
	}
	return parsed, nil
}

func errNoJSONObject(text string) error {
	return jsonExtractErr("could not find JSON object in codex output: " + truncate(text, 300))
}

func errBadJSON(snippet string, cause error) error {
	return jsonExtractErr("failed to parse JSON from codex output: " + truncate(snippet, 300) + ": " + cause.Error())
}

type jsonExtractErr string

func (e jsonExtractErr) Error() string { return string(e) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
