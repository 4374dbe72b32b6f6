package mailstore

import "testing"

func TestEnsureReplySubject(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello", "Re: Hello"},
		{"Re: Hello", "Re: Hello"},
		{"re: already lower", "re: already lower"},
		{"", "Re:"},
		{"  Trimmed  ", "Re: Trimmed"},
	}
	for _, c := range cases {
		if got := EnsureReplySubject(c.in); got != c.want {
			t.Errorf("EnsureReplySubject(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestQuoteLines(t *testing.T) {
	got := QuoteLines("line one\nline two")
	want := "> line one\n> line two"
	if got != want {
		t.Errorf("QuoteLines() = %q, want %q", got, want)
	}
	if QuoteLines("") != "" {
		t.Error("QuoteLines(\"\") should be empty")
	}
}

func TestRoleHint(t *testing.T) {
	cases := map[string]string{
		"Inbox":    "inbox",
		"ARCHIVE":  "archive",
		"deleted":  "trash",
		"unknown":  "",
		"  Junk  ": "junk",
	}
	for name, want := range cases {
		if got := roleHint(name); got != want {
			t.Errorf("roleHint(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestContainsString(t *testing.T) {
	if !containsString([]string{"a", "b"}, "b") {
		t.Error("expected true for present element")
	}
	if containsString([]string{"a", "b"}, "c") {
		t.Error("expected false for missing element")
	}
}
