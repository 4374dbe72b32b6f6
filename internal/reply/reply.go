// Package reply composes the fallback auto-reply text used when no LLM
// refinement is available, and implements the signature append/strip
// heuristic shared by both the rule-only and LLM-assisted paths.
package reply

import (
	"strings"

	"github.com/inboxd/triaged/internal/types"
)

// ComposeAuto builds a short, priority-appropriate acknowledgement
// reply for subject, then appends the configured signature.
func ComposeAuto(subject, priority, signature string) string {
	if subject == "" {
		subject = "your message"
	}
	subject = strings.TrimSpace(subject)

	var first, second string
	switch priority {
	case types.PriorityHigh:
		first = "Thanks for your email about \"" + subject + "\". I received this and I'm prioritizing it now."
		second = "I'll follow up shortly with a full response."
	case types.PriorityMedium:
		first = "Thanks for the note about \"" + subject + "\". I received it and will review it shortly."
		second = "I'll send a full response after I've gone through the details."
	default:
		first = "Thanks for sharing this update about \"" + subject + "\"."
		second = "I've received it and will follow up if anything is needed from my side."
	}

	body := first + "\n\n" + second
	return AppendSignature(body, signature)
}

// AppendSignature appends signature to replyText, stripping any
// trailing signature block first so repeated calls (e.g. rule pass
// then LLM refinement) stay idempotent.
func AppendSignature(replyText, signature string) string {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return replyText
	}

	normalizedReply := strings.TrimRight(replyText, " \t\r\n")
	if normalizedReply == "" {
		return signature
	}

	withoutSignature := StripTrailingSignature(normalizedReply)
	if strings.HasSuffix(withoutSignature, signature) {
		return withoutSignature
	}
	if withoutSignature == "" {
		return signature
	}
	return strings.TrimRight(withoutSignature, " \t\r\n") + "\n\n" + signature
}

var signatureMarkers = []string{
	"regards",
	"best",
	"sincerely",
	"thanks",
	"thank you",
	"cheers",
	"best regards",
	"kind regards",
	"with appreciation",
	"sent from",
	"best,",
	"regards,",
	"sincerely,",
	"thanks,",
	"thank you,",
	"cheers,",
}

// StripTrailingSignature removes a trailing signature block from text.
// If a line is exactly "--" (ignoring surrounding whitespace), the
// bottom-most such line and everything after it are removed.
// Otherwise the bottom-most line that starts, case-insensitively, with
// a recognized closing ("Best", "Thanks", "Sent from", ...) is removed
// together with every line after it and the contiguous non-blank lines
// directly above it. Closings are matched as prefixes, so a line such
// as "Thanks for your email" counts as one. Text with neither is
// returned unchanged.
func StripTrailingSignature(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return text
	}

	for i := len(lines) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(lines[i])
		if candidate == "" {
			continue
		}
		if candidate == "--" {
			return strings.TrimRight(strings.Join(lines[:i], "\n"), " \t\r\n")
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		lower := strings.ToLower(strings.TrimSpace(lines[i]))
		matched := false
		for _, marker := range signatureMarkers {
			if strings.HasPrefix(lower, marker) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for i > 0 && strings.TrimSpace(lines[i-1]) != "" {
			i--
		}
		return strings.TrimRight(strings.Join(lines[:i], "\n"), " \t\r\n")
	}

	return text
}
