// Package llmassist refines the rule classifier's output with Codex,
// either via the OpenAI-compatible Responses HTTP API or by shelling
// out to a locally authenticated `codex` CLI, falling back to the rule
// result on failure when codex_fallback_to_rules is enabled.
package llmassist

import (
	"context"

	"github.com/inboxd/triaged/internal/types"
)

// Payload is the email summary sent to the model, trimmed to the
// fields worth spending tokens on.
type Payload struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	From       string   `json:"from"`
	FromEmail  string   `json:"from_email"`
	To         []string `json:"to"`
	CC         []string `json:"cc"`
	ReceivedAt string   `json:"received_at"`
	Preview    string   `json:"preview"`
	Body       string   `json:"body"`
}

// Baseline is the rule classifier's verdict, sent to the model as a
// starting point it may confirm or override.
type Baseline struct {
	Priority   string
	Actionable bool
	Reason     string
}

// Result is the model's triage verdict, normalized into the same
// shape the rule classifier produces plus a drafted reply.
type Result struct {
	Priority   string
	Actionable bool
	Reason     string
	Summary    string
	ReplyText  string
}

// Assistant triages one email, returning a *types.LLMError on any
// failure. Apply falls back to the rule baseline on such an error when
// fallback is enabled; otherwise the error aborts the cycle.
type Assistant interface {
	Triage(ctx context.Context, payload Payload, baseline Baseline, fallbackReply string) (*Result, error)
}

func normalizeResult(raw map[string]any, fallbackReply string) (*Result, error) {
	priority, _ := raw["priority"].(string)
	priority = normalizePriorityCase(priority)
	if !types.IsValidPriority(priority) {
		return nil, invalidPriority(priority)
	}

	actionable := false
	switch v := raw["actionable"].(type) {
	case bool:
		actionable = v
	case string:
		actionable = v == "1" || v == "true" || v == "yes" || v == "y"
	}

	reason, _ := raw["reason"].(string)
	if reason == "" {
		reason = "codex triage"
	}
	summary, _ := raw["summary"].(string)
	if summary == "" {
		summary = "Email triaged by codex (" + priority + ")"
	}
	replyText, _ := raw["reply_text"].(string)
	if replyText == "" {
		replyText = fallbackReply
	}

	return &Result{
		Priority:   priority,
		Actionable: actionable,
		Reason:     reason,
		Summary:    summary,
		ReplyText:  replyText,
	}, nil
}

func normalizePriorityCase(p string) string {
	switch p {
	case "High", "HIGH":
		return types.PriorityHigh
	case "Medium", "MEDIUM":
		return types.PriorityMedium
	case "Low", "LOW":
		return types.PriorityLow
	default:
		return p
	}
}

func invalidPriority(p string) error {
	return &types.LLMError{Provider: "codex", Err: invalidPriorityErr(p)}
}

type invalidPriorityErr string

func (e invalidPriorityErr) Error() string { return "invalid priority from codex: " + string(e) }
