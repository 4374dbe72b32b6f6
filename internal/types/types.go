// Package types defines the core data structures shared across the
// triage daemon.
package types

// Address is a single mailbox participant (From/To/Cc entry).
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Email is a message fetched from the mail store for one triage cycle.
// It carries only the fields the triage pipeline reads; mailstore
// implementations fill them from the underlying transport. The JMAP
// store leaves ThreadID and InReplyTo empty.
type Email struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id,omitempty"`
	Subject     string    `json:"subject"`
	From        []Address `json:"from"`
	To          []Address `json:"to,omitempty"`
	CC          []Address `json:"cc,omitempty"`
	ReceivedAt  string    `json:"received_at"`
	Preview     string    `json:"preview,omitempty"`
	BodyText    string    `json:"body_text,omitempty"`
	MailboxIDs  []string  `json:"mailbox_ids,omitempty"`
	InReplyTo   []string  `json:"in_reply_to,omitempty"`
	MessageID   []string  `json:"message_id,omitempty"`
	References  []string  `json:"references,omitempty"`
}

// SenderEmail returns the address of the first From entry as stored
// (not normalized), or "" if the message has no sender.
func (e *Email) SenderEmail() string {
	if len(e.From) == 0 {
		return ""
	}
	return e.From[0].Email
}

// Priority levels a message can be classified into. Unlike the
// teacher's four-way bead priority, the triage daemon never assigns
// "spam" automatically — spam-like signals only keep a message out of
// "medium".
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ValidPriorities is the set of priority values the classifier and any
// LLM refinement are allowed to produce.
var ValidPriorities = []string{PriorityHigh, PriorityMedium, PriorityLow}

// IsValidPriority reports whether p is a recognized priority value.
func IsValidPriority(p string) bool {
	for _, v := range ValidPriorities {
		if v == p {
			return true
		}
	}
	return false
}

// PriorityRank orders priorities for threshold comparisons
// (min_priority_for_draft and similar config gates).
var PriorityRank = map[string]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
}

// Outcome status values recorded against a triage_state row.
const (
	StatusTriaged = "triaged"
	StatusDrafted = "drafted"
	StatusArchived = "archived"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// TriageState is the per-message row persisted by the state store. It
// is the durable record of the last triage decision for a message.
type TriageState struct {
	EmailID      string
	Subject      string
	Sender       string
	SenderEmail  string
	ReceivedAt   string
	Priority     string
	Actionable   bool
	Reason       string
	Summary      string
	ReplyText    string
	Drafted      bool
	DraftID      string
	Status       string
	Error        string
	RawEmail     string
	FirstSeenAt  string
	LastSeenAt   string
	UpdatedAt    string
}

// RunLog is one row of the triage_runs history table.
type RunLog struct {
	ID            int64
	RunAt         string
	Mode          string
	EmailsSeen    int
	TriagedCount  int
	ArchivedCount int
	DraftedCount  int
	SkippedCount  int
	ErrorCount    int
	DetailsJSON   string
}

// VIP sender provenance.
const (
	VIPSourceManual = "manual"
	VIPSourceConfig = "config"
	VIPSourceAuto   = "auto_frequency"
)

// VipSender is a row in the vip_senders table.
type VipSender struct {
	Email   string
	AddedAt string
	Source  string
	Note    string
}

// DraftBlockedSender is a row in the draft_blocked_senders table.
type DraftBlockedSender struct {
	Email   string
	AddedAt string
	Source  string
}

// EmailOutcome is the per-message entry in a CycleSummary, mirroring
// what print_summary needs to render both JSON and plain-text output.
type EmailOutcome struct {
	EmailID        string `json:"email_id"`
	Priority       string `json:"priority,omitempty"`
	Actionable     bool   `json:"actionable,omitempty"`
	Status         string `json:"status"`
	DraftID        string `json:"draft_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Source         string `json:"source,omitempty"`
	SenderEmail    string `json:"sender_email,omitempty"`
	AutoPromotedVIP bool  `json:"auto_promoted_vip,omitempty"`
}

// CycleSummary is the result of one triage cycle, printed as the
// user-visible output and persisted as a RunLog.
type CycleSummary struct {
	RunAt         string         `json:"run_at"`
	ApplyMode     bool           `json:"apply_mode"`
	EmailsSeen    int            `json:"emails_seen"`
	TriagedCount  int            `json:"triaged_count"`
	ArchivedCount int            `json:"archived_count"`
	DraftedCount  int            `json:"drafted_count"`
	SkippedCount  int            `json:"skipped_count"`
	ErrorCount    int            `json:"error_count"`
	Emails        []EmailOutcome `json:"emails"`
}
