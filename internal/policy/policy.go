// Package policy decides what a triage cycle does with its
// classification results: whether to archive a message, whether to
// draft a reply, and whether a sender's frequency of high-priority
// mail earns them an automatic VIP promotion.
package policy

import (
	"fmt"
	"strings"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/config"
	"github.com/inboxd/triaged/internal/types"
)

// VIPStore is the slice of state-store behavior MaybeAutoPromoteVIP
// needs: counting a sender's prior high-priority messages, checking
// current VIP membership, and recording a new auto-promotion.
type VIPStore interface {
	CountHighPriorityForSender(senderEmail string) (int, error)
	IsVIP(senderEmail string) (bool, error)
	UpsertVIP(v types.VipSender) error
}

// IdentityResolver supplies the mail store's own account address,
// which IsDraftedToSelf uses as the single identity when config
// provides no sender_emails.
type IdentityResolver interface {
	ResolveAccountIdentity() (string, error)
}

// IsDraftedToSelf reports whether e is addressed (To, not Cc) to one
// of our own identities, matching _is_drafted_to_self's fallback to
// the account's own session email when no sender_emails are
// configured.
func IsDraftedToSelf(e *types.Email, identities map[string]bool, resolver IdentityResolver) bool {
	if len(e.To) == 0 {
		return false
	}

	if len(identities) == 0 {
		if resolver != nil {
			if accountEmail, err := resolver.ResolveAccountIdentity(); err == nil {
				accountEmail = strings.ToLower(strings.TrimSpace(accountEmail))
				if accountEmail != "" && strings.Contains(accountEmail, "@") {
					identities = map[string]bool{accountEmail: true}
				}
			}
		}
	}
	if len(identities) == 0 {
		return false
	}

	return addrutil.TargetsIdentity(e, identities, false)
}

// ShouldCreateDraftInput bundles ShouldCreateDraft's inputs so callers
// don't have to thread a dozen positional arguments through.
type ShouldCreateDraftInput struct {
	ApplyMode          bool
	Automation         config.Automation
	BlockedSenders     map[string]bool
	Priority           string
	Actionable         bool
	HasExistingDraft   bool
	SenderEmail        string
	Email              *types.Email
	Identities         map[string]bool
	IdentityResolver   IdentityResolver
}

// ShouldCreateDraft reports whether a draft reply should be created
// for this message, mirroring should_create_draft's gate order:
// apply mode, auto_draft, not blocked, no existing draft, addressed to
// us, priority at or above the configured floor, and (if configured)
// actionable.
func ShouldCreateDraft(in ShouldCreateDraftInput) bool {
	if !in.ApplyMode {
		return false
	}
	if in.Automation.AutoDraft == nil || !*in.Automation.AutoDraft {
		return false
	}
	if in.SenderEmail != "" && in.BlockedSenders[in.SenderEmail] {
		return false
	}
	if in.HasExistingDraft {
		return false
	}
	if !IsDraftedToSelf(in.Email, in.Identities, in.IdentityResolver) {
		return false
	}

	minPriority := strings.ToLower(strings.TrimSpace(in.Automation.MinPriorityForDraft))
	threshold, ok := types.PriorityRank[minPriority]
	if !ok {
		threshold = types.PriorityRank[types.PriorityHigh]
	}
	current, ok := types.PriorityRank[in.Priority]
	if !ok {
		current = types.PriorityRank[types.PriorityLow]
	}
	if current < threshold {
		return false
	}

	if in.Automation.DraftActionableOnly != nil && *in.Automation.DraftActionableOnly && !in.Actionable {
		return false
	}

	return true
}

// ShouldArchive reports whether a message at priority should be
// auto-archived this cycle.
func ShouldArchive(applyMode bool, automation config.Automation, priority string) bool {
	if !applyMode {
		return false
	}
	priority = strings.ToLower(strings.TrimSpace(priority))
	for _, p := range automation.ResolvedArchivePriorities {
		if p == priority {
			return true
		}
	}
	return false
}

// VIPFrequencyThreshold returns the configured threshold, defaulting
// to 0 (disabled) when unset or negative.
func VIPFrequencyThreshold(triage config.Triage) int {
	if triage.VIPFrequencyThreshold < 0 {
		return 0
	}
	return triage.VIPFrequencyThreshold
}

// MaybeAutoPromoteVIP promotes senderEmail to VIP when this message is
// the one that pushes their high-priority count to the configured
// threshold: current_priority must be "high", previous_priority must
// not already be "high" (otherwise every later message from an
// established VIP would re-trigger this), and they must not already
// be VIP. Returns true if a promotion was recorded.
func MaybeAutoPromoteVIP(store VIPStore, threshold int, senderEmail, previousPriority, currentPriority string) (bool, error) {
	if threshold <= 0 {
		return false, nil
	}

	normalized := addrutil.Normalize(senderEmail)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return false, nil
	}
	if currentPriority != types.PriorityHigh {
		return false, nil
	}
	if strings.ToLower(previousPriority) == types.PriorityHigh {
		return false, nil
	}

	count, err := store.CountHighPriorityForSender(normalized)
	if err != nil {
		return false, err
	}
	if count+1 < threshold {
		return false, nil
	}

	alreadyVIP, err := store.IsVIP(normalized)
	if err != nil {
		return false, err
	}
	if alreadyVIP {
		return false, nil
	}

	note := fmt.Sprintf("auto-promoted after %d high-priority emails", count+1)
	if err := store.UpsertVIP(types.VipSender{
		Email:  normalized,
		Source: types.VIPSourceAuto,
		Note:   note,
	}); err != nil {
		return false, err
	}
	return true, nil
}
