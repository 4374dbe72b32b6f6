package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inboxd/triaged/internal/auth"
	"github.com/inboxd/triaged/internal/gmail"
)

// gmail-probe is a debug adjunct, not part of the triage cycle: the
// daemon's mail transport is JMAP, but the oauth2/gmail/v1 dependency
// still needs an exercised caller, so it is kept here as a standalone
// read-only Gmail search for comparing a Fastmail triage run against
// the same mailbox viewed over Gmail.
var (
	gmailProbeCredentials string
	gmailProbeQuery       string
	gmailProbeMax         int64
)

var gmailProbeCmd = &cobra.Command{
	Use:   "gmail-probe",
	Short: "Debug: search a Gmail mailbox directly via the Gmail API",
	Long:  "Authenticates with the same credentials.json/token.json pair used by legacy Gmail tooling and prints matching message summaries. Not part of the triage cycle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if gmailProbeCredentials == "" {
			return fmt.Errorf("--credentials is required")
		}

		ctx := context.Background()
		svc, err := auth.LoadGmailService(ctx, gmailProbeCredentials)
		if err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}

		summaries, err := gmail.Search(svc, gmailProbeQuery, gmailProbeMax)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if len(summaries) == 0 {
			fmt.Println("no matching messages")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%-16s %-40s %s\n", s.ID, s.From, s.Subject)
		}
		return nil
	},
}

func init() {
	gmailProbeCmd.Flags().StringVar(&gmailProbeCredentials, "credentials", "", "Path to Gmail OAuth credentials.json")
	gmailProbeCmd.Flags().StringVar(&gmailProbeQuery, "query", "is:unread", "Gmail search query")
	gmailProbeCmd.Flags().Int64Var(&gmailProbeMax, "max", 10, "Maximum results")
}
