package display

import (
	"testing"

	"github.com/inboxd/triaged/internal/types"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short string = %q", got)
	}
	if got := Truncate("a very long string here", 10); got != "a very ..." {
		t.Errorf("Truncate long string = %q", got)
	}
}

func TestPriorityLabel_KnownAndUnknown(t *testing.T) {
	for _, p := range []string{types.PriorityHigh, types.PriorityMedium, types.PriorityLow, "mystery"} {
		if got := PriorityLabel(p); got == "" {
			t.Errorf("PriorityLabel(%q) returned empty string", p)
		}
	}
}

func TestPrintSummary_DoesNotPanicOnEmptySummary(t *testing.T) {
	PrintSummary(types.CycleSummary{RunAt: "2026-01-01T00:00:00Z", ApplyMode: true})
}

func TestPrintSummary_DoesNotPanicWithAllSections(t *testing.T) {
	PrintSummary(types.CycleSummary{
		RunAt:         "2026-01-01T00:00:00Z",
		ApplyMode:     true,
		EmailsSeen:    3,
		TriagedCount:  3,
		ArchivedCount: 1,
		DraftedCount:  1,
		Emails: []types.EmailOutcome{
			{EmailID: "a", Status: types.StatusArchived},
			{EmailID: "b", Status: types.StatusDrafted, DraftID: "d1", Priority: types.PriorityHigh, Source: "codex"},
			{EmailID: "c", Status: types.StatusTriaged, SenderEmail: "vip@example.com", AutoPromotedVIP: true},
		},
	})
}
