package triage

import (
	"context"
	"errors"
	"log/slog"
	"io"
	"testing"

	"github.com/inboxd/triaged/internal/config"
	"github.com/inboxd/triaged/internal/llmassist"
	"github.com/inboxd/triaged/internal/mailstore"
	"github.com/inboxd/triaged/internal/store"
	"github.com/inboxd/triaged/internal/types"
)

func boolPtr(b bool) *bool { return &b }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMail struct {
	inbox       mailstore.Mailbox
	emails      []types.Email
	accountAddr string

	archived []string
	drafted  []string
	failMove bool
	failDraft bool
}

func (f *fakeMail) ListMailboxes(ctx context.Context) ([]mailstore.Mailbox, error) {
	return []mailstore.Mailbox{f.inbox}, nil
}

func (f *fakeMail) FindMailbox(ctx context.Context, name, roleHint string) (mailstore.Mailbox, error) {
	return f.inbox, nil
}

func (f *fakeMail) QueryMessages(ctx context.Context, mailboxID string, limit int) ([]types.Email, error) {
	if limit < len(f.emails) {
		return f.emails[:limit], nil
	}
	return f.emails, nil
}

func (f *fakeMail) GetByID(ctx context.Context, id string) (*types.Email, error) {
	for _, e := range f.emails {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeMail) CreateDraft(ctx context.Context, draftsMailbox string, draft mailstore.DraftInput) (string, error) {
	if f.failDraft {
		return "", errDraftFailed
	}
	id := "draft-" + draft.Subject
	f.drafted = append(f.drafted, id)
	return id, nil
}

func (f *fakeMail) CreateReplyDraft(ctx context.Context, draftsMailbox string, original *types.Email, replyText string, replyAll bool) (string, error) {
	if f.failDraft {
		return "", errDraftFailed
	}
	id := "draft-" + original.ID
	f.drafted = append(f.drafted, id)
	return id, nil
}

func (f *fakeMail) MoveToMailbox(ctx context.Context, emailID, mailboxName, roleHint string) error {
	if f.failMove {
		return errMoveFailed
	}
	f.archived = append(f.archived, emailID)
	return nil
}

func (f *fakeMail) AccountEmail(ctx context.Context) (string, error) {
	return f.accountAddr, nil
}

var errDraftFailed = &types.MailStoreError{Op: "create draft", Err: errSentinel{"draft failed"}}
var errMoveFailed = &types.MailStoreError{Op: "move", Err: errSentinel{"move failed"}}

type errSentinel struct{ s string }

func (e errSentinel) Error() string { return e.s }

// fakeStore doubles as its own store.CycleTx: BeginCycle just hands
// back the same instance, and Commit/Rollback record which happened
// last so tests can assert a cycle rolled back instead of persisting.
type fakeStore struct {
	states     map[string]types.TriageState
	vip        map[string]bool
	blocked    map[string]bool
	runs       []types.CycleSummary
	committed  bool
	rolledBack bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: map[string]types.TriageState{}, vip: map[string]bool{}, blocked: map[string]bool{}}
}

func (f *fakeStore) BeginCycle() (store.CycleTx, error) { return f, nil }

func (f *fakeStore) Commit() error {
	f.committed = true
	return nil
}

func (f *fakeStore) Rollback() error {
	f.rolledBack = true
	return nil
}

func (f *fakeStore) GetState(emailID string) (*types.TriageState, error) {
	s, ok := f.states[emailID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) UpsertState(t types.TriageState) error {
	f.states[t.EmailID] = t
	return nil
}

func (f *fakeStore) RecordRun(summary types.CycleSummary) error {
	f.runs = append(f.runs, summary)
	return nil
}

func (f *fakeStore) VIPSenders() (map[string]bool, error)          { return f.vip, nil }
func (f *fakeStore) DraftBlockedSenders() (map[string]bool, error) { return f.blocked, nil }

func (f *fakeStore) CountHighPriorityForSender(senderEmail string) (int, error) {
	n := 0
	for _, s := range f.states {
		if s.SenderEmail == senderEmail && s.Priority == types.PriorityHigh {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) IsVIP(senderEmail string) (bool, error) { return f.vip[senderEmail], nil }

func (f *fakeStore) UpsertVIP(v types.VipSender) error {
	f.vip[v.Email] = true
	return nil
}

// failingAssistant always returns an LLMError, for exercising the
// fallback-disabled, cycle-aborting path.
type failingAssistant struct{}

func (failingAssistant) Triage(ctx context.Context, payload llmassist.Payload, baseline llmassist.Baseline, fallbackReply string) (*llmassist.Result, error) {
	return nil, &types.LLMError{Provider: "fake", Err: errSentinel{"boom"}}
}

func baseConfig() *config.Config {
	return &config.Config{
		Mail: config.Mail{
			Mailbox:        "INBOX",
			ArchiveMailbox: "Archive",
			DraftsMailbox:  "Drafts",
			SenderEmails:   []string{"me@example.com"},
		},
	}
}

func baseAutomation() config.Automation {
	autoDraft := true
	replyAll := true
	draftActionableOnly := false
	return config.Automation{
		MaxEmailsPerCycle:         20,
		AutoDraft:                 &autoDraft,
		ReplyAll:                  &replyAll,
		DraftActionableOnly:       &draftActionableOnly,
		MinPriorityForDraft:       types.PriorityLow,
		ResolvedArchivePriorities: []string{types.PriorityLow},
		CodexFallbackToRules:      boolPtr(true),
	}
}

func TestProcessOneCycle_ArchivesLowPriority(t *testing.T) {
	mail := &fakeMail{
		inbox: mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"},
		emails: []types.Email{
			{ID: "m1", Subject: "fyi", From: []types.Address{{Email: "newsletter@example.com"}}},
		},
	}
	st := newFakeStore()
	opts := Options{ApplyMode: true, Config: baseConfig(), Automation: baseAutomation()}

	summary, err := ProcessOneCycle(context.Background(), testLogger(), mail, st, opts)
	if err != nil {
		t.Fatalf("ProcessOneCycle: %v", err)
	}
	if summary.ArchivedCount != 1 {
		t.Fatalf("expected 1 archived, got %+v", summary)
	}
	if len(mail.archived) != 1 || mail.archived[0] != "m1" {
		t.Fatalf("expected m1 archived, got %v", mail.archived)
	}
	if st.states["m1"].Status != types.StatusArchived {
		t.Fatalf("expected archived status in state, got %+v", st.states["m1"])
	}
}

func TestProcessOneCycle_DraftsHighPriorityAddressedToSelf(t *testing.T) {
	mail := &fakeMail{
		inbox: mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"},
		emails: []types.Email{
			{
				ID:      "m2",
				Subject: "need your sign-off urgently",
				From:    []types.Address{{Email: "boss@example.com"}},
				To:      []types.Address{{Email: "me@example.com"}},
			},
		},
	}
	st := newFakeStore()
	automation := baseAutomation()
	automation.MinPriorityForDraft = types.PriorityLow
	opts := Options{ApplyMode: true, Config: baseConfig(), Automation: automation}
	opts.Config.Triage.UrgentKeywords = []string{"urgently"}

	summary, err := ProcessOneCycle(context.Background(), testLogger(), mail, st, opts)
	if err != nil {
		t.Fatalf("ProcessOneCycle: %v", err)
	}
	if summary.DraftedCount != 1 {
		t.Fatalf("expected 1 drafted, got %+v", summary)
	}
	if len(mail.drafted) != 1 {
		t.Fatalf("expected one draft created, got %v", mail.drafted)
	}
}

func TestProcessOneCycle_SkipsMessageWithExistingDraft(t *testing.T) {
	mail := &fakeMail{
		inbox:  mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"},
		emails: []types.Email{{ID: "m3", Subject: "already handled", From: []types.Address{{Email: "x@example.com"}}}},
	}
	st := newFakeStore()
	st.states["m3"] = types.TriageState{EmailID: "m3", DraftID: "draft-existing", FirstSeenAt: "t0"}
	opts := Options{ApplyMode: true, Config: baseConfig(), Automation: baseAutomation()}

	summary, err := ProcessOneCycle(context.Background(), testLogger(), mail, st, opts)
	if err != nil {
		t.Fatalf("ProcessOneCycle: %v", err)
	}
	if summary.SkippedCount != 1 {
		t.Fatalf("expected 1 skipped, got %+v", summary)
	}
	if len(mail.drafted) != 0 {
		t.Fatalf("expected no new draft, got %v", mail.drafted)
	}
}

func TestProcessOneCycle_IsolatesPerMessageErrors(t *testing.T) {
	mail := &fakeMail{
		inbox: mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"},
		emails: []types.Email{
			{ID: "m4", Subject: "fyi", From: []types.Address{{Email: "a@example.com"}}},
		},
		failMove: true,
	}
	st := newFakeStore()
	opts := Options{ApplyMode: true, Config: baseConfig(), Automation: baseAutomation()}

	summary, err := ProcessOneCycle(context.Background(), testLogger(), mail, st, opts)
	if err != nil {
		t.Fatalf("ProcessOneCycle: %v", err)
	}
	if summary.ErrorCount != 1 {
		t.Fatalf("expected 1 error, got %+v", summary)
	}
	if st.states["m4"].Status != types.StatusError {
		t.Fatalf("expected error status recorded, got %+v", st.states["m4"])
	}
}

func TestProcessOneCycle_DryRunNeverMutatesMailbox(t *testing.T) {
	mail := &fakeMail{
		inbox:  mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"},
		emails: []types.Email{{ID: "m5", Subject: "fyi", From: []types.Address{{Email: "a@example.com"}}}},
	}
	st := newFakeStore()
	opts := Options{ApplyMode: false, Config: baseConfig(), Automation: baseAutomation()}

	summary, err := ProcessOneCycle(context.Background(), testLogger(), mail, st, opts)
	if err != nil {
		t.Fatalf("ProcessOneCycle: %v", err)
	}
	if len(mail.archived) != 0 || len(mail.drafted) != 0 {
		t.Fatalf("expected no mailbox mutation in dry-run, got archived=%v drafted=%v", mail.archived, mail.drafted)
	}
	if summary.TriagedCount != 1 {
		t.Fatalf("expected message still triaged in dry-run, got %+v", summary)
	}
}

func TestProcessOneCycle_LLMErrorWithoutFallbackAbortsAndRollsBack(t *testing.T) {
	mail := &fakeMail{
		inbox: mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"},
		emails: []types.Email{
			{ID: "m6", Subject: "fyi", From: []types.Address{{Email: "a@example.com"}}},
			{ID: "m7", Subject: "fyi2", From: []types.Address{{Email: "b@example.com"}}},
		},
	}
	st := newFakeStore()
	automation := baseAutomation()
	automation.CodexFallbackToRules = boolPtr(false)
	automation.UseCodex = boolPtr(true)
	opts := Options{ApplyMode: true, Config: baseConfig(), Automation: automation, Provider: failingAssistant{}}

	_, err := ProcessOneCycle(context.Background(), testLogger(), mail, st, opts)
	if err == nil {
		t.Fatal("expected cycle to abort with an error")
	}
	var llmErr *types.LLMError
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *types.LLMError to propagate, got %T: %v", err, err)
	}
	if !st.rolledBack {
		t.Fatal("expected cycle to roll back after LLMError with fallback disabled")
	}
	if st.committed {
		t.Fatal("expected cycle not to commit after an abort")
	}
	if len(st.runs) != 0 {
		t.Fatalf("expected no run recorded after rollback, got %v", st.runs)
	}
}

func TestRunLoop_SingleCycleWhenNoLoopSeconds(t *testing.T) {
	mail := &fakeMail{inbox: mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"}}
	st := newFakeStore()
	opts := LoopOptions{
		Options: Options{ApplyMode: false, Config: baseConfig(), Automation: baseAutomation()},
	}

	newMail := func(ctx context.Context) (mailstore.MailStore, error) { return mail, nil }

	calls := 0
	err := RunLoop(context.Background(), testLogger(), newMail, st, opts, func(cycle int, summary types.CycleSummary, err error) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("RunLoop: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one cycle, got %d", calls)
	}
}

func TestRunLoop_RespectsCyclesLimit(t *testing.T) {
	st := newFakeStore()
	opts := LoopOptions{
		Options:     Options{ApplyMode: false, Config: baseConfig(), Automation: baseAutomation()},
		LoopSeconds: 1,
		Cycles:      2,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builds := 0
	newMail := func(ctx context.Context) (mailstore.MailStore, error) {
		builds++
		return &fakeMail{inbox: mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"}}, nil
	}

	calls := 0
	err := RunLoop(ctx, testLogger(), newMail, st, opts, func(cycle int, summary types.CycleSummary, err error) error {
		calls++
		if calls >= 2 {
			cancel()
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		t.Fatalf("RunLoop: %v", err)
	}
	if calls < 1 {
		t.Fatalf("expected at least one cycle, got %d", calls)
	}
	if builds != calls {
		t.Fatalf("expected a fresh MailStore handle built per cycle, got %d builds for %d cycles", builds, calls)
	}
}

func TestRunLoop_ReconnectsAfterTransientMailStoreFailure(t *testing.T) {
	st := newFakeStore()
	opts := LoopOptions{
		Options:     Options{ApplyMode: false, Config: baseConfig(), Automation: baseAutomation()},
		LoopSeconds: 1,
		Cycles:      2,
	}

	attempt := 0
	newMail := func(ctx context.Context) (mailstore.MailStore, error) {
		attempt++
		if attempt == 1 {
			return nil, &types.MailStoreError{Op: "connect", Err: errSentinel{"session expired"}}
		}
		return &fakeMail{inbox: mailstore.Mailbox{ID: "inbox-1", Name: "INBOX"}}, nil
	}

	var errs []error
	err := RunLoop(context.Background(), testLogger(), newMail, st, opts, func(cycle int, summary types.CycleSummary, cycleErr error) error {
		errs = append(errs, cycleErr)
		return nil
	})
	if err != nil {
		t.Fatalf("RunLoop: %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 cycle results, got %d", len(errs))
	}
	if errs[0] == nil {
		t.Fatal("expected first cycle to report the connect failure")
	}
	if errs[1] != nil {
		t.Fatalf("expected second cycle to succeed after reconnecting, got %v", errs[1])
	}
}
