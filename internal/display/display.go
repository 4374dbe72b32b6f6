// Package display renders triage cycle output to the terminal: colored
// priority styling and message helpers, and the cycle-summary report a
// triage run prints after each pass.
package display

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/inboxd/triaged/internal/types"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	HighStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	MediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	LowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// PriorityDot returns a colored dot for a priority level.
func PriorityDot(priority string) string {
	switch priority {
	case types.PriorityHigh:
		return HighStyle.Render("●")
	case types.PriorityMedium:
		return MediumStyle.Render("○")
	case types.PriorityLow:
		return LowStyle.Render("○")
	default:
		return Dim.Render("·")
	}
}

// PriorityLabel returns a styled, fixed-width priority label.
func PriorityLabel(priority string) string {
	label := strings.ToUpper(priority)
	switch priority {
	case types.PriorityHigh:
		return HighStyle.Render(fmt.Sprintf("%-6s", label))
	case types.PriorityMedium:
		return MediumStyle.Render(fmt.Sprintf("%-6s", label))
	case types.PriorityLow:
		return LowStyle.Render(fmt.Sprintf("%-6s", label))
	default:
		return fmt.Sprintf("%-6s", label)
	}
}

// Truncate shortens a string to maxLen, adding an ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// PrintSummary renders a cycle summary to stdout, matching
// print_summary's plain-text layout: a one-line mode/counts header,
// then an "Archived:" list, a "Drafts created/linked:" list, and an
// "Auto-promoted VIP senders:" list, each only printed when non-empty.
func PrintSummary(summary types.CycleSummary) {
	mode := "DRY-RUN"
	modeStyle := Muted
	if summary.ApplyMode {
		mode = "APPLY"
		modeStyle = Bold
	}

	fmt.Printf(
		"[%s] %s | seen=%d triaged=%d archived=%d drafted=%d skipped=%d errors=%d\n",
		modeStyle.Render(mode), summary.RunAt, summary.EmailsSeen, summary.TriagedCount,
		summary.ArchivedCount, summary.DraftedCount, summary.SkippedCount, summary.ErrorCount,
	)

	var archived, drafted, promoted []types.EmailOutcome
	for _, e := range summary.Emails {
		if e.Status == types.StatusArchived {
			archived = append(archived, e)
		}
		if e.DraftID != "" {
			drafted = append(drafted, e)
		}
		if e.AutoPromotedVIP {
			promoted = append(promoted, e)
		}
	}

	if len(archived) > 0 {
		fmt.Println("Archived:")
		for _, e := range archived {
			fmt.Printf("- %s\n", e.EmailID)
		}
	}

	if len(drafted) > 0 {
		fmt.Println("Drafts created/linked:")
		for _, e := range drafted {
			priority := e.Priority
			if priority == "" {
				priority = "unknown"
			}
			source := e.Source
			if source == "" {
				source = "unknown"
			}
			fmt.Printf("- %s %s -> %s (%s, %s)\n", PriorityDot(e.Priority), e.EmailID, e.DraftID, priority, source)
		}
	}

	if len(promoted) > 0 {
		fmt.Println("Auto-promoted VIP senders:")
		for _, e := range promoted {
			fmt.Printf("- %s\n", e.SenderEmail)
		}
	}
}
