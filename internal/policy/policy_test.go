package policy

import (
	"errors"
	"testing"

	"github.com/inboxd/triaged/internal/config"
	"github.com/inboxd/triaged/internal/types"
)

func boolPtr(b bool) *bool { return &b }

func baseAutomation() config.Automation {
	return config.Automation{
		AutoDraft:              boolPtr(true),
		DraftActionableOnly:    boolPtr(true),
		MinPriorityForDraft:    types.PriorityHigh,
		ResolvedArchivePriorities: []string{types.PriorityLow, types.PriorityMedium},
	}
}

func TestShouldCreateDraft_HappyPath(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "me@example.com"}}}
	in := ShouldCreateDraftInput{
		ApplyMode:   true,
		Automation:  baseAutomation(),
		Priority:    types.PriorityHigh,
		Actionable:  true,
		SenderEmail: "sender@example.com",
		Email:       email,
		Identities:  map[string]bool{"me@example.com": true},
	}
	if !ShouldCreateDraft(in) {
		t.Fatal("expected draft to be created")
	}
}

func TestShouldCreateDraft_DryRunBlocksDraft(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "me@example.com"}}}
	in := ShouldCreateDraftInput{
		ApplyMode:   false,
		Automation:  baseAutomation(),
		Priority:    types.PriorityHigh,
		Actionable:  true,
		Email:       email,
		Identities:  map[string]bool{"me@example.com": true},
	}
	if ShouldCreateDraft(in) {
		t.Fatal("expected no draft in dry-run mode")
	}
}

func TestShouldCreateDraft_BlockedSenderSkipped(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "me@example.com"}}}
	in := ShouldCreateDraftInput{
		ApplyMode:      true,
		Automation:     baseAutomation(),
		Priority:       types.PriorityHigh,
		Actionable:     true,
		SenderEmail:    "blocked@example.com",
		BlockedSenders: map[string]bool{"blocked@example.com": true},
		Email:          email,
		Identities:     map[string]bool{"me@example.com": true},
	}
	if ShouldCreateDraft(in) {
		t.Fatal("expected blocked sender to skip draft")
	}
}

func TestShouldCreateDraft_ExistingDraftSkipped(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "me@example.com"}}}
	in := ShouldCreateDraftInput{
		ApplyMode:        true,
		Automation:       baseAutomation(),
		Priority:         types.PriorityHigh,
		Actionable:       true,
		HasExistingDraft: true,
		Email:            email,
		Identities:       map[string]bool{"me@example.com": true},
	}
	if ShouldCreateDraft(in) {
		t.Fatal("expected existing draft to skip")
	}
}

func TestShouldCreateDraft_NotAddressedToUsSkipped(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "someone-else@example.com"}}}
	in := ShouldCreateDraftInput{
		ApplyMode:  true,
		Automation: baseAutomation(),
		Priority:   types.PriorityHigh,
		Actionable: true,
		Email:      email,
		Identities: map[string]bool{"me@example.com": true},
	}
	if ShouldCreateDraft(in) {
		t.Fatal("expected message not addressed to us to skip")
	}
}

func TestShouldCreateDraft_BelowMinPrioritySkipped(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "me@example.com"}}}
	in := ShouldCreateDraftInput{
		ApplyMode:  true,
		Automation: baseAutomation(),
		Priority:   types.PriorityMedium,
		Actionable: true,
		Email:      email,
		Identities: map[string]bool{"me@example.com": true},
	}
	if ShouldCreateDraft(in) {
		t.Fatal("expected medium priority below high floor to skip")
	}
}

func TestShouldCreateDraft_ActionableOnlySkipsNonActionable(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "me@example.com"}}}
	in := ShouldCreateDraftInput{
		ApplyMode:  true,
		Automation: baseAutomation(),
		Priority:   types.PriorityHigh,
		Actionable: false,
		Email:      email,
		Identities: map[string]bool{"me@example.com": true},
	}
	if ShouldCreateDraft(in) {
		t.Fatal("expected non-actionable message to skip when draft_actionable_only is set")
	}
}

type stubResolver struct {
	email string
	err   error
}

func (s stubResolver) ResolveAccountIdentity() (string, error) { return s.email, s.err }

func TestIsDraftedToSelf_FallsBackToAccountIdentity(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "me@example.com"}}}
	if !IsDraftedToSelf(email, nil, stubResolver{email: "me@example.com"}) {
		t.Fatal("expected fallback account identity to match")
	}
}

func TestIsDraftedToSelf_NoIdentitiesNoResolverIsFalse(t *testing.T) {
	email := &types.Email{To: []types.Address{{Email: "me@example.com"}}}
	if IsDraftedToSelf(email, nil, nil) {
		t.Fatal("expected false with no identities and no resolver")
	}
}

func TestShouldArchive_MatchesResolvedPriorities(t *testing.T) {
	automation := baseAutomation()
	if !ShouldArchive(true, automation, types.PriorityLow) {
		t.Error("expected low priority to be archived")
	}
	if ShouldArchive(true, automation, types.PriorityHigh) {
		t.Error("expected high priority not to be archived")
	}
	if ShouldArchive(false, automation, types.PriorityLow) {
		t.Error("expected dry-run to never archive")
	}
}

type stubVIPStore struct {
	count    int
	countErr error
	isVIP    bool
	isVIPErr error
	upserted []types.VipSender
}

func (s *stubVIPStore) CountHighPriorityForSender(string) (int, error) { return s.count, s.countErr }
func (s *stubVIPStore) IsVIP(string) (bool, error)                     { return s.isVIP, s.isVIPErr }
func (s *stubVIPStore) UpsertVIP(v types.VipSender) error {
	s.upserted = append(s.upserted, v)
	return nil
}

func TestMaybeAutoPromoteVIP_PromotesOnThresholdCrossing(t *testing.T) {
	store := &stubVIPStore{count: 2}
	promoted, err := MaybeAutoPromoteVIP(store, 3, "frequent@example.com", types.PriorityMedium, types.PriorityHigh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !promoted {
		t.Fatal("expected promotion at threshold crossing")
	}
	if len(store.upserted) != 1 || store.upserted[0].Source != types.VIPSourceAuto {
		t.Fatalf("expected one auto-sourced upsert, got %+v", store.upserted)
	}
}

func TestMaybeAutoPromoteVIP_NotYetAtThreshold(t *testing.T) {
	store := &stubVIPStore{count: 0}
	promoted, err := MaybeAutoPromoteVIP(store, 3, "new@example.com", types.PriorityLow, types.PriorityHigh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if promoted {
		t.Fatal("expected no promotion below threshold")
	}
}

func TestMaybeAutoPromoteVIP_SkipsWhenPreviouslyHigh(t *testing.T) {
	store := &stubVIPStore{count: 5}
	promoted, err := MaybeAutoPromoteVIP(store, 3, "already@example.com", types.PriorityHigh, types.PriorityHigh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if promoted {
		t.Fatal("expected no re-promotion once already high last time")
	}
}

func TestMaybeAutoPromoteVIP_SkipsWhenAlreadyVIP(t *testing.T) {
	store := &stubVIPStore{count: 5, isVIP: true}
	promoted, err := MaybeAutoPromoteVIP(store, 3, "vip@example.com", types.PriorityLow, types.PriorityHigh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if promoted {
		t.Fatal("expected no promotion for existing VIP")
	}
}

func TestMaybeAutoPromoteVIP_DisabledThreshold(t *testing.T) {
	store := &stubVIPStore{count: 10}
	promoted, err := MaybeAutoPromoteVIP(store, 0, "x@example.com", types.PriorityLow, types.PriorityHigh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if promoted {
		t.Fatal("expected disabled threshold to never promote")
	}
}

func TestMaybeAutoPromoteVIP_PropagatesStoreError(t *testing.T) {
	store := &stubVIPStore{countErr: errors.New("db down")}
	_, err := MaybeAutoPromoteVIP(store, 3, "x@example.com", types.PriorityLow, types.PriorityHigh)
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}
