package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/types"
)

var (
	vipList   bool
	vipAdd    []string
	vipRemove []string
)

var vipCmd = &cobra.Command{
	Use:   "vip",
	Short: "List or edit the VIP sender list",
	RunE: func(cmd *cobra.Command, args []string) error {
		toAdd := addrutil.Dedupe(addrutil.SplitValues(vipAdd))
		toRemove := addrutil.Dedupe(addrutil.SplitValues(vipRemove))

		var added, alreadyPresent, removed, notPresent, invalid []string

		for _, email := range toAdd {
			ok, err := st.AddVIPSender(email, types.VIPSourceManual)
			if err != nil {
				return fmt.Errorf("add vip sender %s: %w", email, err)
			}
			switch {
			case ok:
				added = append(added, email)
			default:
				alreadyPresent = append(alreadyPresent, email)
			}
		}

		for _, email := range toRemove {
			ok, err := st.RemoveVIPSender(email)
			if err != nil {
				return fmt.Errorf("remove vip sender %s: %w", email, err)
			}
			switch {
			case ok:
				removed = append(removed, email)
			default:
				notPresent = append(notPresent, email)
			}
		}

		current, err := st.ListVIPSenders()
		if err != nil {
			return fmt.Errorf("list vip senders: %w", err)
		}

		return printSenderAdminResult(senderAdminResult{
			added:          added,
			alreadyPresent: alreadyPresent,
			removed:        removed,
			notPresent:     notPresent,
			invalid:        invalid,
			current:        current,
			currentKey:     "vip_senders",
			listLabel:      "vip_senders",
			showList:       vipList || len(toAdd) > 0 || len(toRemove) > 0,
		})
	},
}

// senderAdminResult carries the category-bucketed outcome of an
// address-list edit (VIP or draft-block), shared between vip and
// draft-block since both mirror handle_vip_commands' exact shape.
type senderAdminResult struct {
	added          []string
	alreadyPresent []string
	removed        []string
	notPresent     []string
	invalid        []string
	current        []string
	currentKey     string
	listLabel      string
	showList       bool
}

func printSenderAdminResult(r senderAdminResult) error {
	if jsonOutput {
		out := map[string]any{
			"added":           emptyIfNil(r.added),
			"already_present": emptyIfNil(r.alreadyPresent),
			"removed":         emptyIfNil(r.removed),
			"not_present":     emptyIfNil(r.notPresent),
			"invalid":         emptyIfNil(r.invalid),
			r.currentKey:      emptyIfNil(r.current),
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(r.added) > 0 {
		fmt.Println("added:", joinComma(r.added))
	}
	if len(r.alreadyPresent) > 0 {
		fmt.Println("already present:", joinComma(r.alreadyPresent))
	}
	if len(r.removed) > 0 {
		fmt.Println("removed:", joinComma(r.removed))
	}
	if len(r.notPresent) > 0 {
		fmt.Println("not present:", joinComma(r.notPresent))
	}
	if len(r.invalid) > 0 {
		fmt.Println("invalid:", joinComma(r.invalid))
	}

	if r.showList {
		fmt.Printf("%s:\n", r.listLabel)
		if len(r.current) == 0 {
			fmt.Println("- none")
		}
		for _, e := range r.current {
			fmt.Printf("- %s\n", e)
		}
	}
	return nil
}

func joinComma(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func init() {
	vipCmd.Flags().BoolVar(&vipList, "list", false, "List VIP senders and exit")
	vipCmd.Flags().StringArrayVar(&vipAdd, "add", nil, "Add VIP sender email(s), repeat or comma-separate values")
	vipCmd.Flags().StringArrayVar(&vipRemove, "remove", nil, "Remove VIP sender email(s), repeat or comma-separate values")
}
