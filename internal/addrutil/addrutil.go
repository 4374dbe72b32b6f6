// Package addrutil normalizes and compares email addresses the way the
// triage engine needs: stripping mailto: prefixes and display-name
// wrappers, splitting comma/semicolon separated lists, and resolving
// which addresses count as "the configured mailbox owner" for
// self-addressed checks.
package addrutil

import (
	"strings"

	"github.com/inboxd/triaged/internal/types"
)

// Normalize lowercases an address, strips a leading "mailto:", and
// unwraps a trailing "Display Name <addr>" form down to the bare
// address inside the angle brackets.
func Normalize(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ""
	}
	normalized = strings.TrimPrefix(normalized, "mailto:")

	lt := strings.LastIndex(normalized, "<")
	gt := strings.LastIndex(normalized, ">")
	if lt != -1 && gt != -1 && gt > lt {
		normalized = strings.TrimSpace(normalized[lt+1 : gt])
	}
	return normalized
}

// SplitValues normalizes and flattens a list of raw address strings,
// each of which may itself be a comma-separated list (as produced by
// repeated/comma-joined CLI flags).
func SplitValues(values []string) []string {
	var out []string
	for _, raw := range values {
		if raw == "" {
			continue
		}
		for _, part := range strings.Split(raw, ",") {
			if n := Normalize(part); n != "" {
				out = append(out, n)
			}
		}
	}
	return out
}

// Dedupe removes duplicate normalized addresses, preserving first-seen
// order. Used by the VIP/draft-block admin commands so repeated flags
// don't produce duplicate add/remove attempts.
func Dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, raw := range values {
		v := Normalize(raw)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// FormatAddress renders an Address as "Name <email>" when a display
// name is present, or bare "email" otherwise.
func FormatAddress(a types.Address) string {
	if a.Name != "" {
		return a.Name + " <" + a.Email + ">"
	}
	return a.Email
}

// FormatAddressList joins a slice of addresses with ", ".
func FormatAddressList(addrs []types.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, FormatAddress(a))
	}
	return strings.Join(parts, ", ")
}

// ConfiguredIdentities normalizes the mail.sender_emails config value
// (a comma/semicolon/newline separated string, or a list of such
// strings) into a set of addresses considered "owned by us".
func ConfiguredIdentities(senderEmails []string) map[string]bool {
	identities := make(map[string]bool)
	for _, raw := range senderEmails {
		for _, part := range splitAny(raw, ",;\n") {
			if n := Normalize(part); n != "" {
				identities[n] = true
			}
		}
	}
	return identities
}

func splitAny(s string, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
}

// TargetsIdentity reports whether any recipient (To, and Cc when
// includeCC is true) of e is one of the configured identities.
func TargetsIdentity(e *types.Email, identities map[string]bool, includeCC bool) bool {
	if len(identities) == 0 {
		return false
	}
	recipients := e.To
	if includeCC {
		recipients = append(append([]types.Address{}, e.To...), e.CC...)
	}
	for _, person := range recipients {
		if n := Normalize(person.Email); n != "" && identities[n] {
			return true
		}
	}
	return false
}
