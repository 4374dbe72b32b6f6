package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/types"
)

var (
	draftBlockList   bool
	draftBlockAdd    []string
	draftBlockRemove []string
)

var draftBlockCmd = &cobra.Command{
	Use:   "draft-block",
	Short: "List or edit senders blocked from auto-draft creation",
	RunE: func(cmd *cobra.Command, args []string) error {
		toAdd := addrutil.Dedupe(addrutil.SplitValues(draftBlockAdd))
		toRemove := addrutil.Dedupe(addrutil.SplitValues(draftBlockRemove))

		var added, alreadyPresent, removed, notPresent, invalid []string

		for _, email := range toAdd {
			ok, err := st.AddDraftBlockedSender(email, types.VIPSourceManual)
			if err != nil {
				return fmt.Errorf("add draft-blocked sender %s: %w", email, err)
			}
			switch {
			case ok:
				added = append(added, email)
			default:
				alreadyPresent = append(alreadyPresent, email)
			}
		}

		for _, email := range toRemove {
			ok, err := st.RemoveDraftBlockedSender(email)
			if err != nil {
				return fmt.Errorf("remove draft-blocked sender %s: %w", email, err)
			}
			switch {
			case ok:
				removed = append(removed, email)
			default:
				notPresent = append(notPresent, email)
			}
		}

		current, err := st.ListDraftBlockedSenders()
		if err != nil {
			return fmt.Errorf("list draft-blocked senders: %w", err)
		}

		return printSenderAdminResult(senderAdminResult{
			added:          added,
			alreadyPresent: alreadyPresent,
			removed:        removed,
			notPresent:     notPresent,
			invalid:        invalid,
			current:        current,
			currentKey:     "draft_blocked_senders",
			listLabel:      "draft_blocked_senders",
			showList:       draftBlockList || len(toAdd) > 0 || len(toRemove) > 0,
		})
	},
}

func init() {
	draftBlockCmd.Flags().BoolVar(&draftBlockList, "list", false, "List draft-blocked senders and exit")
	draftBlockCmd.Flags().StringArrayVar(&draftBlockAdd, "add", nil, "Block sender email(s) from auto-draft creation, repeat or comma-separate values")
	draftBlockCmd.Flags().StringArrayVar(&draftBlockRemove, "remove", nil, "Unblock sender email(s), repeat or comma-separate values")
}
