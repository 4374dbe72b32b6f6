package mailstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/k3a/html2text"
	"github.com/mikluko/jmap"
	"github.com/mikluko/jmap/mail"
	"github.com/mikluko/jmap/mail/email"
	"github.com/mikluko/jmap/mail/mailbox"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/types"
)

// roleHints maps the lowercased mailbox names the config uses to the
// JMAP mailbox role they usually correspond to, for servers that don't
// expose a human-readable mailbox name match.
var roleHints = map[string]string{
	"inbox":         "inbox",
	"sent":          "sent",
	"sent messages": "sent",
	"drafts":        "drafts",
	"trash":         "trash",
	"deleted":       "trash",
	"junk":          "junk",
	"spam":          "junk",
	"archive":       "archive",
}

func roleHint(mailboxName string) string {
	return roleHints[strings.ToLower(strings.TrimSpace(mailboxName))]
}

// JMAPStore is a MailStore backed by a live JMAP session against a
// Fastmail-compatible server.
type JMAPStore struct {
	client       *jmap.Client
	accountID    jmap.ID
	senderEmail  string
	senderName   string
}

// NewJMAPStore authenticates sessionURL with apiToken and resolves the
// primary mail account, the way the teacher's auth layer resolves a
// session once up front and reuses it for every call.
func NewJMAPStore(ctx context.Context, sessionURL, apiToken, senderEmail, senderName string) (*JMAPStore, error) {
	client, err := jmap.NewClient(ctx, sessionURL, jmap.WithBearerToken(apiToken))
	if err != nil {
		return nil, &types.MailStoreError{Op: "connect", Err: err}
	}

	accountID := client.Session.PrimaryAccounts[mail.URI]
	if accountID == "" {
		return nil, &types.MailStoreError{Op: "connect", Err: fmt.Errorf("no primary mail account in session")}
	}

	return &JMAPStore{
		client:      client,
		accountID:   accountID,
		senderEmail: strings.ToLower(strings.TrimSpace(senderEmail)),
		senderName:  senderName,
	}, nil
}

func (s *JMAPStore) ListMailboxes(ctx context.Context) ([]Mailbox, error) {
	req := &jmap.Request{Context: ctx}
	queryID := req.Invoke(&mailbox.Query{
		Account: s.accountID,
		Sort:    []*mailbox.SortComparator{{Property: "name", IsAscending: true}},
	})
	req.Invoke(&mailbox.Get{
		Account: s.accountID,
		ReferenceIDs: &jmap.ResultReference{
			ResultOf: queryID,
			Name:     "Mailbox/query",
			Path:     "/ids",
		},
		Properties: []string{"id", "name", "role", "parentId", "totalEmails", "unreadEmails"},
	})

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &types.MailStoreError{Op: "list_mailboxes", Err: err}
	}
	if len(resp.Responses) < 2 {
		return nil, &types.MailStoreError{Op: "list_mailboxes", Err: fmt.Errorf("incomplete Mailbox/query response")}
	}

	args, ok := resp.Responses[1].Args.(*mailbox.GetResponse)
	if !ok {
		return nil, &types.MailStoreError{Op: "list_mailboxes", Err: methodErrOrUnexpected(resp.Responses[1].Args)}
	}

	out := make([]Mailbox, 0, len(args.List))
	for _, m := range args.List {
		out = append(out, Mailbox{
			ID:           string(m.ID),
			Name:         m.Name,
			Role:         string(m.Role),
			TotalEmails:  int(m.TotalEmails),
			UnreadEmails: int(m.UnreadEmails),
		})
	}
	return out, nil
}

func (s *JMAPStore) FindMailbox(ctx context.Context, name, hint string) (Mailbox, error) {
	mailboxes, err := s.ListMailboxes(ctx)
	if err != nil {
		return Mailbox{}, err
	}

	if hint == "" {
		hint = roleHint(name)
	}
	if hint != "" {
		for _, m := range mailboxes {
			if strings.EqualFold(m.Role, hint) {
				return m, nil
			}
		}
	}

	wanted := strings.ToLower(strings.TrimSpace(name))
	if wanted != "" {
		for _, m := range mailboxes {
			if strings.ToLower(strings.TrimSpace(m.Name)) == wanted {
				return m, nil
			}
		}
	}

	return Mailbox{}, &types.MailStoreError{Op: "find_mailbox", Err: fmt.Errorf("mailbox not found (name=%q, role=%q)", name, hint)}
}

var emailProperties = []string{
	"id", "subject", "from", "to", "cc",
	"receivedAt", "sentAt", "preview",
	"textBody", "htmlBody", "bodyValues",
	"keywords", "messageId", "references", "mailboxIds",
}

const maxBodyValueBytes = 120000

func (s *JMAPStore) QueryMessages(ctx context.Context, mailboxID string, limit int) ([]types.Email, error) {
	if limit <= 0 {
		limit = 1
	}

	req := &jmap.Request{Context: ctx}
	queryID := req.Invoke(&email.Query{
		Account: s.accountID,
		Filter:  &email.FilterCondition{InMailbox: jmap.ID(mailboxID), NotKeyword: "$seen"},
		Sort:    []*email.SortComparator{{Property: "receivedAt", IsAscending: false}},
		Limit:   uint64(limit),
	})
	req.Invoke(&email.Get{
		Account: s.accountID,
		ReferenceIDs: &jmap.ResultReference{
			ResultOf: queryID,
			Name:     "Email/query",
			Path:     "/ids",
		},
		Properties:          emailProperties,
		FetchTextBodyValues: true,
		MaxBodyValueBytes:   maxBodyValueBytes,
	})

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &types.MailStoreError{Op: "query_messages", Err: err}
	}
	if len(resp.Responses) < 2 {
		return nil, &types.MailStoreError{Op: "query_messages", Err: fmt.Errorf("incomplete Email/query response")}
	}

	args, ok := resp.Responses[1].Args.(*email.GetResponse)
	if !ok {
		return nil, &types.MailStoreError{Op: "query_messages", Err: methodErrOrUnexpected(resp.Responses[1].Args)}
	}

	out := make([]types.Email, 0, len(args.List))
	for _, e := range args.List {
		out = append(out, toEmail(e))
	}
	return out, nil
}

func (s *JMAPStore) GetByID(ctx context.Context, id string) (*types.Email, error) {
	req := &jmap.Request{Context: ctx}
	req.Invoke(&email.Get{
		Account:             s.accountID,
		IDs:                 []jmap.ID{jmap.ID(id)},
		Properties:          emailProperties,
		FetchTextBodyValues: true,
		MaxBodyValueBytes:   maxBodyValueBytes,
	})

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &types.MailStoreError{Op: "get_by_id", Err: err}
	}
	if len(resp.Responses) == 0 {
		return nil, &types.MailStoreError{Op: "get_by_id", Err: fmt.Errorf("empty response")}
	}

	args, ok := resp.Responses[0].Args.(*email.GetResponse)
	if !ok {
		return nil, &types.MailStoreError{Op: "get_by_id", Err: methodErrOrUnexpected(resp.Responses[0].Args)}
	}
	if len(args.List) == 0 {
		return nil, &types.MailStoreError{Op: "get_by_id", Err: fmt.Errorf("message not found with id %s", id)}
	}

	out := toEmail(args.List[0])
	return &out, nil
}

func (s *JMAPStore) CreateDraft(ctx context.Context, draftsMailboxName string, draft DraftInput) (string, error) {
	draftsBox, err := s.FindMailbox(ctx, draftsMailboxName, "drafts")
	if err != nil {
		return "", err
	}

	msg := &email.Email{
		MailboxIDs: map[jmap.ID]bool{jmap.ID(draftsBox.ID): true},
		Keywords:   map[string]bool{"$draft": true},
		To:         toJMAPAddresses(draft.To),
		CC:         toJMAPAddresses(draft.CC),
		Subject:    draft.Subject,
		BodyValues: map[string]*email.BodyValue{"1": {Value: draft.Body}},
		TextBody:   []*email.BodyPart{{PartID: "1", Type: "text/plain"}},
	}
	if s.senderEmail != "" {
		from := &mail.Address{Email: s.senderEmail}
		if s.senderName != "" {
			from.Name = s.senderName
		}
		msg.From = []*mail.Address{from}
	}
	if len(draft.InReplyTo) > 0 {
		msg.InReplyTo = draft.InReplyTo
	}
	if len(draft.References) > 0 {
		msg.References = draft.References
	}

	req := &jmap.Request{Context: ctx}
	req.Invoke(&email.Set{
		Account: s.accountID,
		Create:  map[jmap.ID]*email.Email{"draft-1": msg},
	})

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &types.MailStoreError{Op: "create_draft", Err: err}
	}
	if len(resp.Responses) == 0 {
		return "", &types.MailStoreError{Op: "create_draft", Err: fmt.Errorf("empty response")}
	}

	args, ok := resp.Responses[0].Args.(*email.SetResponse)
	if !ok {
		return "", &types.MailStoreError{Op: "create_draft", Err: methodErrOrUnexpected(resp.Responses[0].Args)}
	}
	if failure, failed := args.NotCreated["draft-1"]; failed {
		return "", &types.MailStoreError{Op: "create_draft", Err: fmt.Errorf("draft create failed: %s", failure.Description)}
	}
	created, ok := args.Created["draft-1"]
	if !ok || created.ID == "" {
		return "", &types.MailStoreError{Op: "create_draft", Err: fmt.Errorf("draft created but no id returned")}
	}
	return string(created.ID), nil
}

// CreateReplyDraft composes a quoted reply to original and creates it
// as a draft, threading it via inReplyTo/references and, when
// replyAll is set, Cc-ing every other recipient except the sender and
// our own address.
func (s *JMAPStore) CreateReplyDraft(ctx context.Context, draftsMailbox string, original *types.Email, replyText string, replyAll bool) (string, error) {
	if len(original.From) == 0 {
		return "", &types.MailStoreError{Op: "create_reply_draft", Err: fmt.Errorf("original message has no sender")}
	}

	to := []types.Address{original.From[0]}

	var cc []types.Address
	if replyAll {
		seen := map[string]bool{addrutil.Normalize(original.From[0].Email): true}
		if s.senderEmail != "" {
			seen[addrutil.Normalize(s.senderEmail)] = true
		}
		for _, person := range append(append([]types.Address{}, original.To...), original.CC...) {
			norm := addrutil.Normalize(person.Email)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			cc = append(cc, person)
		}
	}

	subject := EnsureReplySubject(original.Subject)
	senderDisplay := addrutil.FormatAddress(original.From[0])
	originalDate := original.ReceivedAt
	quoteHeader := fmt.Sprintf("On %s, %s wrote:", originalDate, senderDisplay)
	body := fmt.Sprintf("%s\n\n%s\n\n%s", replyText, quoteHeader, QuoteLines(original.BodyText))

	refs := append([]string{}, original.References...)
	inReplyTo := original.MessageID
	for _, msgid := range inReplyTo {
		if !containsString(refs, msgid) {
			refs = append(refs, msgid)
		}
	}

	return s.CreateDraft(ctx, draftsMailbox, DraftInput{
		To:         to,
		CC:         cc,
		Subject:    subject,
		Body:       body,
		InReplyTo:  inReplyTo,
		References: refs,
	})
}

func (s *JMAPStore) MoveToMailbox(ctx context.Context, emailID, mailboxName, hint string) error {
	box, err := s.FindMailbox(ctx, mailboxName, hint)
	if err != nil {
		return err
	}

	req := &jmap.Request{Context: ctx}
	req.Invoke(&email.Set{
		Account: s.accountID,
		Update: map[jmap.ID]*jmap.Patch{
			jmap.ID(emailID): {"mailboxIds": map[jmap.ID]bool{jmap.ID(box.ID): true}},
		},
	})

	resp, err := s.client.Do(req)
	if err != nil {
		return &types.MailStoreError{Op: "move_to_mailbox", Err: err}
	}
	if len(resp.Responses) == 0 {
		return &types.MailStoreError{Op: "move_to_mailbox", Err: fmt.Errorf("empty response")}
	}

	args, ok := resp.Responses[0].Args.(*email.SetResponse)
	if !ok {
		return &types.MailStoreError{Op: "move_to_mailbox", Err: methodErrOrUnexpected(resp.Responses[0].Args)}
	}
	if failure, failed := args.NotUpdated[jmap.ID(emailID)]; failed {
		return &types.MailStoreError{Op: "move_to_mailbox", Err: fmt.Errorf("move failed: %s", failure.Description)}
	}
	return nil
}

func (s *JMAPStore) AccountEmail(ctx context.Context) (string, error) {
	if s.senderEmail != "" {
		return s.senderEmail, nil
	}

	account, ok := s.client.Session.Accounts[s.accountID]
	if !ok || account == nil {
		return "", &types.MailStoreError{Op: "account_email", Err: fmt.Errorf("no account info in session")}
	}
	if account.Name != "" && strings.Contains(account.Name, "@") {
		return strings.ToLower(account.Name), nil
	}
	return "", &types.MailStoreError{Op: "account_email", Err: fmt.Errorf("no email address in account info")}
}

func toEmail(e *email.Email) types.Email {
	out := types.Email{
		ID:         string(e.ID),
		Subject:    e.Subject,
		From:       fromJMAPAddresses(e.From),
		To:         fromJMAPAddresses(e.To),
		CC:         fromJMAPAddresses(e.CC),
		Preview:    e.Preview,
		BodyText:   extractText(e),
		References: e.References,
	}
	if e.ReceivedAt != nil {
		out.ReceivedAt = e.ReceivedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	for id := range e.MailboxIDs {
		out.MailboxIDs = append(out.MailboxIDs, string(id))
	}
	if e.MessageID != nil {
		out.MessageID = e.MessageID
	}
	return out
}

// extractText prefers the plain-text body; when a message only has
// HTML, it converts the whole HTML body to text with html2text (quoted
// blockquotes are not removed). With neither, it returns the preview.
func extractText(e *email.Email) string {
	for _, part := range e.TextBody {
		if bv, ok := e.BodyValues[part.PartID]; ok && bv.Value != "" {
			return bv.Value
		}
	}
	for _, part := range e.HTMLBody {
		if bv, ok := e.BodyValues[part.PartID]; ok && bv.Value != "" {
			return strings.TrimSpace(html2text.HTML2Text(bv.Value))
		}
	}
	return e.Preview
}

func toJMAPAddresses(addrs []types.Address) []*mail.Address {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Email: a.Email, Name: a.Name})
	}
	return out
}

func fromJMAPAddresses(addrs []*mail.Address) []types.Address {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]types.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, types.Address{Email: a.Email, Name: a.Name})
	}
	return out
}

func EnsureReplySubject(subject string) string {
	cleaned := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(cleaned), "re:") {
		return cleaned
	}
	if cleaned == "" {
		return "Re:"
	}
	return "Re: " + cleaned
}

func QuoteLines(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func methodErrOrUnexpected(args any) error {
	if methodErr, ok := args.(*jmap.MethodError); ok {
		return fmt.Errorf("%s: %s", methodErr.Type, methodErr.Description)
	}
	return fmt.Errorf("unexpected response type: %T", args)
}
