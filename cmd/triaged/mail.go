package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/mailstore"
	"github.com/inboxd/triaged/internal/types"
)

// mailCmd groups the single-message utility subcommands that call the
// same MailStore interface the triage cycle uses, for scripting and
// debugging outside the automated loop.
var mailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Single-message mail utilities",
}

var mailFetchCmd = &cobra.Command{
	Use:   "fetch [mailbox] [limit]",
	Short: "Fetch recent emails from a mailbox",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mail, err := newMailStore(ctx)
		if err != nil {
			return err
		}

		mailboxName := cfg.Mail.Mailbox
		if len(args) > 0 && args[0] != "" {
			mailboxName = args[0]
		}
		limit := 10
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid limit %q: %w", args[1], err)
			}
			limit = n
		}
		if limit < 1 {
			limit = 1
		}

		box, err := mail.FindMailbox(ctx, mailboxName, "")
		if err != nil {
			return fmt.Errorf("find mailbox: %w", err)
		}

		emails, err := mail.QueryMessages(ctx, box.ID, limit)
		if err != nil {
			return fmt.Errorf("query messages: %w", err)
		}

		for _, e := range emails {
			printEmailBlock(&e)
		}
		return nil
	},
}

var mailShowCmd = &cobra.Command{
	Use:   "show MESSAGE_ID",
	Short: "Fetch a single email by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mail, err := newMailStore(ctx)
		if err != nil {
			return err
		}

		email, err := mail.GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("fetch email: %w", err)
		}
		if email == nil {
			return fmt.Errorf("email %q not found", args[0])
		}
		printEmailBlock(email)
		return nil
	},
}

var mailCreateDraftReplyAll bool

var mailCreateDraftCmd = &cobra.Command{
	Use:   "create-draft MESSAGE_ID REPLY_CONTENT",
	Short: "Create a reply draft from an existing email",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mail, err := newMailStore(ctx)
		if err != nil {
			return err
		}

		original, err := mail.GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("fetch email: %w", err)
		}
		if original == nil {
			return fmt.Errorf("email %q not found", args[0])
		}

		replyContent := strings.ReplaceAll(args[1], `\n`, "\n")
		draftID, err := mail.CreateReplyDraft(ctx, cfg.Mail.DraftsMailbox, original, replyContent, mailCreateDraftReplyAll)
		if err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		fmt.Printf("SUCCESS:Draft saved for message ID %s as draft %s\n", args[0], draftID)
		return nil
	},
}

var mailCreateFollowupDraftCmd = &cobra.Command{
	Use:   "create-followup-draft REPLY_CONTENT RECIPIENT_EMAILS SUBJECT ORIGINAL_CONTENT DATE_SENT",
	Short: "Create a follow-up draft addressed to arbitrary recipients",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mail, err := newMailStore(ctx)
		if err != nil {
			return err
		}

		replyContent := strings.ReplaceAll(args[0], `\n`, "\n")
		recipients := addrutil.SplitValues([]string{args[1]})
		if len(recipients) == 0 {
			return fmt.Errorf("no valid recipient addresses were provided")
		}
		to := make([]types.Address, 0, len(recipients))
		for _, r := range recipients {
			to = append(to, types.Address{Email: r})
		}

		subject := mailstore.EnsureReplySubject(args[2])
		originalContent := strings.ReplaceAll(args[3], `\n`, "\n")
		dateSent := args[4]

		quoteHeader := fmt.Sprintf("On %s, you wrote:", dateSent)
		body := fmt.Sprintf("%s\n\n%s\n\n%s", replyContent, quoteHeader, mailstore.QuoteLines(originalContent))

		draftID, err := mail.CreateDraft(ctx, cfg.Mail.DraftsMailbox, mailstore.DraftInput{
			To:      to,
			Subject: subject,
			Body:    body,
		})
		if err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		fmt.Printf("SUCCESS:Follow-up draft saved as %s\n", draftID)
		return nil
	},
}

var mailDeleteCmd = &cobra.Command{
	Use:   "delete MESSAGE_ID",
	Short: "Move an email to trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mail, err := newMailStore(ctx)
		if err != nil {
			return err
		}

		original, err := mail.GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("fetch email: %w", err)
		}
		subject := ""
		if original != nil {
			subject = original.Subject
		}

		if err := mail.MoveToMailbox(ctx, args[0], cfg.Mail.TrashMailbox, "trash"); err != nil {
			return fmt.Errorf("move to trash: %w", err)
		}
		fmt.Printf("SUCCESS:Deleted email with ID %s - %s\n", args[0], subject)
		return nil
	},
}

var mailListMailboxesCmd = &cobra.Command{
	Use:   "list-mailboxes",
	Short: "List mailboxes with unread counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		mail, err := newMailStore(ctx)
		if err != nil {
			return err
		}

		account := cfg.Mail.Account
		if account == "" {
			account = "Fastmail"
		}
		fmt.Printf("ACCOUNT:%s\n", account)

		boxes, err := mail.ListMailboxes(ctx)
		if err != nil {
			return fmt.Errorf("list mailboxes: %w", err)
		}
		for _, b := range boxes {
			fmt.Printf("  MAILBOX:%s|%d\n", b.Name, b.UnreadEmails)
		}
		return nil
	},
}

func printEmailBlock(e *types.Email) {
	fmt.Println("EMAIL_START")
	fmt.Printf("ID:%s\n", escapeField(e.ID))
	fmt.Printf("SUBJECT:%s\n", escapeField(e.Subject))
	fmt.Printf("FROM:%s\n", escapeField(addrutil.FormatAddressList(e.From)))
	fmt.Printf("DATE:%s\n", escapeField(e.ReceivedAt))
	content := e.BodyText
	if content == "" {
		content = e.Preview
	}
	fmt.Printf("CONTENT:%s\n", escapeField(content))
	fmt.Println("EMAIL_END")
}

func escapeField(value string) string {
	value = strings.ReplaceAll(value, "|", `\|`)
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	return strings.ReplaceAll(value, "\n", `\n`)
}

func init() {
	mailCreateDraftCmd.Flags().BoolVar(&mailCreateDraftReplyAll, "reply-all", true, "Include original To/Cc recipients")

	mailCmd.AddCommand(mailFetchCmd)
	mailCmd.AddCommand(mailShowCmd)
	mailCmd.AddCommand(mailCreateDraftCmd)
	mailCmd.AddCommand(mailCreateFollowupDraftCmd)
	mailCmd.AddCommand(mailDeleteCmd)
	mailCmd.AddCommand(mailListMailboxesCmd)
	mailCmd.AddCommand(gmailProbeCmd)
}
