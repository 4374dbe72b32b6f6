// Package classifier implements the deterministic, rule-based priority
// classifier that runs before (and as a fallback for) LLM-assisted
// triage refinement.
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/types"
)

// actionPatterns flag a message as requiring a response.
var actionPatterns = compileAll([]string{
	`\bplease\b`,
	`\bcan you\b`,
	`\bcould you\b`,
	`\bwould you\b`,
	`\bneed you\b`,
	`\baction required\b`,
	`\blet me know\b`,
	`\bfollow up\b`,
	`\bdeadline\b`,
	`\basap\b`,
	`\beod\b`,
})

// lowSignalPatterns flag bulk/automated mail. A low-signal message is
// kept out of "medium" even if it reads as actionable; its actionable
// flag is left as is, and VIP, identity and keyword signals still make
// it "high".
var lowSignalPatterns = compileAll([]string{
	`\bnewsletter\b`,
	`\bdigest\b`,
	`\bnotification\b`,
	`\bpromo\b`,
	`\bmarketing\b`,
})

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Result is the outcome of the rule classifier for a single message.
type Result struct {
	Priority   string
	Actionable bool
	Reason     string
	Summary    string
}

// Classify assigns a priority, actionability flag, and human-readable
// reason/summary to e, using urgentKeywords, the VIP set, and the
// configured sender identities. The algorithm: a VIP sender, a keyword
// hit, or a message addressed to one of our own identities is always
// "high". Otherwise an actionable message that isn't low-signal is
// "medium"; everything else is "low".
func Classify(e *types.Email, urgentKeywords []string, vipSenders map[string]bool, senderIdentities map[string]bool) Result {
	senderEmail := addrutil.Normalize(e.SenderEmail())
	var senderDisplay string
	if len(e.From) > 0 {
		senderDisplay = addrutil.FormatAddress(e.From[0])
	}

	combined := strings.ToLower(e.Subject + "\n" + e.BodyText)

	var reasons []string
	seen := make(map[string]bool)
	addReason := func(r string) {
		if !seen[r] {
			seen[r] = true
			reasons = append(reasons, r)
		}
	}

	isVIP := senderEmail != "" && vipSenders[senderEmail]
	if isVIP {
		addReason("VIP sender")
	}

	sentToIdentity := addrutil.TargetsIdentity(e, senderIdentities, true)
	if sentToIdentity {
		addReason("sent to configured sender address")
	}

	var keywordHits []string
	for _, kw := range urgentKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(combined, kw) {
			keywordHits = append(keywordHits, kw)
		}
	}
	if len(keywordHits) > 0 {
		n := keywordHits
		if len(n) > 3 {
			n = n[:3]
		}
		addReason("urgent keywords: " + strings.Join(n, ", "))
	}

	actionable := strings.Contains(combined, "?")
	if !actionable {
		for _, p := range actionPatterns {
			if p.MatchString(combined) {
				actionable = true
				break
			}
		}
	}
	if actionable {
		addReason("contains request/question language")
	}

	lowSignal := senderEmail != "" && (strings.Contains(senderEmail, "noreply") ||
		strings.Contains(senderEmail, "no-reply") ||
		strings.Contains(senderEmail, "notification"))
	if !lowSignal {
		for _, p := range lowSignalPatterns {
			if p.MatchString(combined) {
				lowSignal = true
				break
			}
		}
	}
	if lowSignal {
		addReason("low-signal/newsletter indicators")
	}

	var priority string
	switch {
	case isVIP || len(keywordHits) > 0 || sentToIdentity:
		priority = types.PriorityHigh
	case actionable && !lowSignal:
		priority = types.PriorityMedium
	default:
		priority = types.PriorityLow
	}

	subject := e.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	from := senderDisplay
	if from == "" {
		from = senderEmail
	}
	if from == "" {
		from = "unknown sender"
	}
	summary := fmt.Sprintf("From %s about '%s'", from, subject)

	reason := "default low-priority classification"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return Result{Priority: priority, Actionable: actionable, Reason: reason, Summary: summary}
}
