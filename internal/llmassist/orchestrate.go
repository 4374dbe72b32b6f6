package llmassist

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/config"
	"github.com/inboxd/triaged/internal/reply"
	"github.com/inboxd/triaged/internal/types"
)

// BuildPayload reduces an email down to the fields worth sending to
// the model, truncating the body to maxBodyChars.
func BuildPayload(e *types.Email, maxBodyChars int) Payload {
	var sender types.Address
	if len(e.From) > 0 {
		sender = e.From[0]
	}

	to := make([]string, 0, len(e.To))
	for _, a := range e.To {
		to = append(to, addrutil.FormatAddress(a))
	}
	cc := make([]string, 0, len(e.CC))
	for _, a := range e.CC {
		cc = append(cc, addrutil.FormatAddress(a))
	}

	body := e.BodyText
	if maxBodyChars > 0 && len(body) > maxBodyChars {
		body = body[:maxBodyChars] + "\n\n[truncated]"
	}

	return Payload{
		ID:         e.ID,
		Subject:    e.Subject,
		From:       addrutil.FormatAddress(sender),
		FromEmail:  sender.Email,
		To:         to,
		CC:         cc,
		ReceivedAt: e.ReceivedAt,
		Preview:    e.Preview,
		Body:       body,
	}
}

// BuildProvider constructs the configured Assistant, choosing the HTTP
// or subprocess provider per auth_mode. It returns (nil, nil) when
// automation.UseCodex is false or initialization fails and
// codex_fallback_to_rules allows silently running rules-only.
func BuildProvider(ctx context.Context, codex config.Codex, automation config.Automation) (Assistant, error) {
	if automation.UseCodex == nil || !*automation.UseCodex {
		return nil, nil
	}

	timeout := time.Duration(automation.CodexTimeoutSeconds) * time.Second

	var provider Assistant
	var err error
	if codex.AuthMode == "api_key" {
		provider = NewHTTPProvider(codex.Model, codex.ReasoningEffort, codex.APIKey, codex.BaseURL, timeout)
	} else {
		provider, err = NewSubprocessProvider(ctx, codex.Model, codex.ReasoningEffort, timeout)
	}

	if err != nil {
		if automation.CodexFallbackToRules == nil || *automation.CodexFallbackToRules {
			return nil, nil
		}
		return nil, fmt.Errorf("codex initialization failed: %w", err)
	}
	return provider, nil
}

// Outcome is the final triage verdict for one message, after any LLM
// refinement has been applied (or skipped/fallen back).
type Outcome struct {
	Priority   string
	Actionable bool
	Reason     string
	Summary    string
	ReplyText  string
	Source     string // "rules", "codex", or "rules_fallback"
}

// Apply refines a rule-classifier result with provider (if non-nil),
// appending the drafting signature to whichever reply text wins. On a
// provider error it falls back to the rule result (prefixed
// "[rules-fallback]") when fallbackToRules is true; otherwise it
// returns the error, which ProcessOneCycle treats as cycle-fatal: the
// cycle is aborted and its writes are rolled back.
func Apply(
	ctx context.Context,
	provider Assistant,
	payload Payload,
	rulePriority string,
	ruleActionable bool,
	ruleReason string,
	ruleSummary string,
	ruleReply string,
	signature string,
	fallbackToRules bool,
) (Outcome, error) {
	if provider == nil {
		return Outcome{
			Priority:   rulePriority,
			Actionable: ruleActionable,
			Reason:     "[rules] " + ruleReason,
			Summary:    ruleSummary,
			ReplyText:  reply.AppendSignature(ruleReply, signature),
			Source:     "rules",
		}, nil
	}

	result, err := provider.Triage(ctx, payload, Baseline{
		Priority:   rulePriority,
		Actionable: ruleActionable,
		Reason:     ruleReason,
	}, ruleReply)

	if err != nil {
		if !fallbackToRules {
			return Outcome{}, err
		}
		return Outcome{
			Priority:   rulePriority,
			Actionable: ruleActionable,
			Reason:     fmt.Sprintf("[rules-fallback] %s; codex_error=%v", ruleReason, err),
			Summary:    ruleSummary,
			ReplyText:  reply.AppendSignature(ruleReply, signature),
			Source:     "rules_fallback",
		}, nil
	}

	return Outcome{
		Priority:   result.Priority,
		Actionable: result.Actionable,
		Reason:     "[codex] " + result.Reason,
		Summary:    result.Summary,
		ReplyText:  reply.AppendSignature(result.ReplyText, signature),
		Source:     "codex",
	}, nil
}
