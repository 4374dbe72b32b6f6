// Package triage runs one triage cycle end to end: fetching inbox
// messages, classifying them, optionally refining with an LLM,
// applying the archive/draft policy, and persisting the outcome.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/classifier"
	"github.com/inboxd/triaged/internal/config"
	"github.com/inboxd/triaged/internal/llmassist"
	"github.com/inboxd/triaged/internal/mailstore"
	"github.com/inboxd/triaged/internal/policy"
	"github.com/inboxd/triaged/internal/reply"
	"github.com/inboxd/triaged/internal/store"
	"github.com/inboxd/triaged/internal/types"
)

// stateStore is the slice of *store.Store behavior ProcessOneCycle
// needs, narrowed for testability. VIPSenders/DraftBlockedSenders are
// read once per cycle into in-memory sets before the cycle
// transaction begins; every write from there on goes through the
// store.CycleTx BeginCycle returns, committed or rolled back as a unit.
type stateStore interface {
	VIPSenders() (map[string]bool, error)
	DraftBlockedSenders() (map[string]bool, error)
	BeginCycle() (store.CycleTx, error)
}

var _ stateStore = (*store.Store)(nil)

// Options configures one call to ProcessOneCycle.
type Options struct {
	ApplyMode     bool
	LimitOverride int
	Reprocess     bool
	Config        *config.Config
	Automation    config.Automation
	Provider      llmassist.Assistant
}

type accountIdentity struct {
	mail mailstore.MailStore
}

func (a accountIdentity) ResolveAccountIdentity() (string, error) {
	return a.mail.AccountEmail(context.Background())
}

// ProcessOneCycle fetches up to the configured limit of unread inbox
// messages, classifies and triages each one, and applies the archive
// or draft policy, mirroring process_one_cycle's per-message algorithm:
// skip-if-drafted short circuit, rule classification, optional LLM
// refinement, VIP auto-promotion, then archive-before-draft
// precedence. Archive/draft action failures are isolated: one message
// failing to archive or draft does not stop the rest of the cycle.
// A storage failure or an LLMError with fallback disabled is
// cycle-fatal: it aborts the loop and rolls back every state write
// and VIP promotion this cycle has made, leaving the previous
// committed state untouched.
func ProcessOneCycle(ctx context.Context, log *slog.Logger, mail mailstore.MailStore, st stateStore, opts Options) (types.CycleSummary, error) {
	if log == nil {
		log = slog.Default()
	}

	inboxName := opts.Config.Mail.Mailbox
	inbox, err := mail.FindMailbox(ctx, inboxName, "inbox")
	if err != nil {
		return types.CycleSummary{}, &types.MailStoreError{Op: "find inbox", Err: err}
	}

	limit := opts.LimitOverride
	if limit <= 0 {
		limit = opts.Automation.MaxEmailsPerCycle
	}
	if limit <= 0 {
		limit = 1
	}

	emails, err := mail.QueryMessages(ctx, inbox.ID, limit)
	if err != nil {
		return types.CycleSummary{}, &types.MailStoreError{Op: "query messages", Err: err}
	}

	summary := types.CycleSummary{
		RunAt:      store.Now(),
		ApplyMode:  opts.ApplyMode,
		EmailsSeen: len(emails),
	}

	vipSenders, err := st.VIPSenders()
	if err != nil {
		return types.CycleSummary{}, &types.StorageError{Op: "load vip senders", Err: err}
	}
	blockedSenders, err := st.DraftBlockedSenders()
	if err != nil {
		return types.CycleSummary{}, &types.StorageError{Op: "load blocked senders", Err: err}
	}
	identities := addrutil.ConfiguredIdentities(opts.Config.Mail.SenderEmails)

	log.Info("cycle starting", "emails_seen", len(emails), "apply_mode", opts.ApplyMode)

	tx, err := st.BeginCycle()
	if err != nil {
		return types.CycleSummary{}, &types.StorageError{Op: "begin cycle", Err: err}
	}

	for _, email := range emails {
		emailID := email.ID
		if emailID == "" {
			summary.ErrorCount++
			continue
		}

		outcome, err := processOneEmail(ctx, log, mail, tx, opts, identities, vipSenders, blockedSenders, &email)
		if err != nil {
			// Action failures (archive/draft RPCs) are caught inside
			// processOneEmail and surfaced as a status="error" outcome,
			// not returned here. An error reaching this point is a
			// StorageError or LLMError and is cycle-fatal: abort and
			// roll back every write this cycle has made so far.
			log.Error("cycle aborted", "email_id", emailID, "error", err)
			tx.Rollback()
			return summary, err
		}

		switch outcome.Status {
		case types.StatusSkipped:
			summary.SkippedCount++
		case types.StatusArchived:
			summary.ArchivedCount++
			summary.TriagedCount++
		case types.StatusDrafted:
			summary.DraftedCount++
			summary.TriagedCount++
		case types.StatusError:
			summary.ErrorCount++
		default:
			summary.TriagedCount++
		}
		summary.Emails = append(summary.Emails, outcome)
	}

	if err := tx.RecordRun(summary); err != nil {
		tx.Rollback()
		return summary, &types.StorageError{Op: "record run", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return summary, &types.StorageError{Op: "commit cycle", Err: err}
	}

	log.Info("cycle finished",
		"triaged", summary.TriagedCount, "archived", summary.ArchivedCount,
		"drafted", summary.DraftedCount, "skipped", summary.SkippedCount,
		"errors", summary.ErrorCount)

	return summary, nil
}

func processOneEmail(
	ctx context.Context,
	log *slog.Logger,
	mail mailstore.MailStore,
	st store.CycleTx,
	opts Options,
	identities map[string]bool,
	vipSenders map[string]bool,
	blockedSenders map[string]bool,
	email *types.Email,
) (types.EmailOutcome, error) {
	now := store.Now()
	existing, err := st.GetState(email.ID)
	if err != nil {
		return types.EmailOutcome{}, &types.StorageError{Op: "load state", Err: err}
	}

	existingDraftID := ""
	if existing != nil {
		existingDraftID = existing.DraftID
	}
	hasExistingDraft := existingDraftID != ""

	if hasExistingDraft && !opts.Reprocess {
		state := *existing
		state.LastSeenAt = now
		state.UpdatedAt = now
		if err := st.UpsertState(state); err != nil {
			return types.EmailOutcome{}, &types.StorageError{Op: "touch state", Err: err}
		}
		return types.EmailOutcome{
			EmailID:  email.ID,
			Status:   types.StatusSkipped,
			Reason:   "already has draft",
			DraftID:  existingDraftID,
			Priority: state.Priority,
		}, nil
	}

	rule := classifier.Classify(email, opts.Config.Triage.UrgentKeywords, vipSenders, identities)
	ruleReply := reply.ComposeAuto(email.Subject, rule.Priority, opts.Config.Drafting.Signature)

	payload := llmassist.BuildPayload(email, opts.Automation.CodexMaxBodyChars)
	fallbackToRules := opts.Automation.CodexFallbackToRules == nil || *opts.Automation.CodexFallbackToRules
	result, err := llmassist.Apply(ctx, opts.Provider, payload,
		rule.Priority, rule.Actionable, rule.Reason, rule.Summary, ruleReply,
		opts.Config.Drafting.Signature, fallbackToRules)
	if err != nil {
		return types.EmailOutcome{}, fmt.Errorf("apply llm intelligence: %w", err)
	}

	senderEmail := addrutil.Normalize(email.SenderEmail())

	previousPriority := ""
	if existing != nil {
		previousPriority = existing.Priority
	}
	autoPromoted, err := policy.MaybeAutoPromoteVIP(st, opts.Config.Triage.VIPFrequencyThreshold, senderEmail, previousPriority, result.Priority)
	if err != nil {
		return types.EmailOutcome{}, &types.StorageError{Op: "auto-promote vip", Err: err}
	}

	status := types.StatusTriaged
	draftID := ""
	if existingDraftID != "" && !opts.Reprocess {
		draftID = existingDraftID
	}
	errorText := ""

	switch {
	case policy.ShouldArchive(opts.ApplyMode, opts.Automation, result.Priority):
		if err := mail.MoveToMailbox(ctx, email.ID, opts.Config.Mail.ArchiveMailbox, "archive"); err != nil {
			status = types.StatusError
			errorText = err.Error()
		} else {
			status = types.StatusArchived
		}
	case policy.ShouldCreateDraft(policy.ShouldCreateDraftInput{
		ApplyMode:        opts.ApplyMode,
		Automation:       opts.Automation,
		BlockedSenders:   blockedSenders,
		Priority:         result.Priority,
		Actionable:       result.Actionable,
		HasExistingDraft: existingDraftID != "" && !opts.Reprocess,
		SenderEmail:      senderEmail,
		Email:            email,
		Identities:       identities,
		IdentityResolver: accountIdentity{mail: mail},
	}):
		replyAll := opts.Automation.ReplyAll == nil || *opts.Automation.ReplyAll
		newDraftID, err := mail.CreateReplyDraft(ctx, opts.Config.Mail.DraftsMailbox, email, result.ReplyText, replyAll)
		if err != nil {
			status = types.StatusError
			errorText = err.Error()
			if existingDraftID != "" && draftID == "" {
				draftID = existingDraftID
			}
		} else {
			status = types.StatusDrafted
			draftID = newDraftID
		}
	}

	rawEmail, _ := json.Marshal(email)
	firstSeenAt := now
	if existing != nil {
		firstSeenAt = existing.FirstSeenAt
	}

	state := types.TriageState{
		EmailID:     email.ID,
		Subject:     email.Subject,
		Sender:      formatSender(email),
		SenderEmail: senderEmail,
		ReceivedAt:  email.ReceivedAt,
		Priority:    result.Priority,
		Actionable:  result.Actionable,
		Reason:      result.Reason,
		Summary:     result.Summary,
		ReplyText:   result.ReplyText,
		Drafted:     draftID != "",
		DraftID:     draftID,
		Status:      status,
		Error:       errorText,
		RawEmail:    string(rawEmail),
		FirstSeenAt: firstSeenAt,
		LastSeenAt:  now,
		UpdatedAt:   now,
	}
	if err := st.UpsertState(state); err != nil {
		return types.EmailOutcome{}, &types.StorageError{Op: "persist state", Err: err}
	}

	return types.EmailOutcome{
		EmailID:         email.ID,
		Priority:        result.Priority,
		Actionable:      result.Actionable,
		Status:          status,
		DraftID:         draftID,
		Reason:          state.Reason,
		Source:          result.Source,
		SenderEmail:     senderEmail,
		AutoPromotedVIP: autoPromoted,
	}, nil
}

func formatSender(e *types.Email) string {
	if len(e.From) == 0 {
		return ""
	}
	return addrutil.FormatAddress(e.From[0])
}
