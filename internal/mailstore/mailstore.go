// Package mailstore defines the capability interface the triage
// engine uses to talk to a mailbox, and a JMAP-backed implementation
// of it. Keeping the interface narrow lets the triage cycle orchestrator
// stay transport-agnostic and makes the JMAP wire format testable in
// isolation from classification and policy.
package mailstore

import (
	"context"

	"github.com/inboxd/triaged/internal/types"
)

// Mailbox is a JMAP mailbox summary: enough to find the right box by
// name or role and report counts in admin output.
type Mailbox struct {
	ID            string
	Name          string
	Role          string
	TotalEmails   int
	UnreadEmails  int
}

// DraftInput describes a new draft message to create.
type DraftInput struct {
	To         []types.Address
	CC         []types.Address
	Subject    string
	Body       string
	InReplyTo  []string
	References []string
}

// MailStore is the full set of mailbox operations the triage daemon
// needs: discovering mailboxes, querying and fetching messages,
// composing drafts, and moving messages between mailboxes.
type MailStore interface {
	ListMailboxes(ctx context.Context) ([]Mailbox, error)
	FindMailbox(ctx context.Context, name, roleHint string) (Mailbox, error)

	// QueryMessages returns up to limit messages from mailboxID, newest
	// first, with body text fetched.
	QueryMessages(ctx context.Context, mailboxID string, limit int) ([]types.Email, error)
	GetByID(ctx context.Context, id string) (*types.Email, error)

	CreateDraft(ctx context.Context, draftsMailbox string, draft DraftInput) (string, error)
	CreateReplyDraft(ctx context.Context, draftsMailbox string, original *types.Email, replyText string, replyAll bool) (string, error)

	MoveToMailbox(ctx context.Context, emailID, mailboxName, roleHint string) error

	// AccountEmail returns the mailbox's own address, used as a
	// fallback identity when no sender_emails are configured.
	AccountEmail(ctx context.Context) (string, error)
}
