package main

import "testing"

func TestEscapeField(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"a|b", `a\|b`},
		{"line1\nline2", `line1\nline2`},
		{"line1\r\nline2", `line1\nline2`},
	}
	for _, c := range cases {
		if got := escapeField(c.in); got != c.want {
			t.Errorf("escapeField(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestJoinComma(t *testing.T) {
	if got := joinComma(nil); got != "" {
		t.Errorf("joinComma(nil) = %q, want empty", got)
	}
	if got := joinComma([]string{"a", "b", "c"}); got != "a, b, c" {
		t.Errorf("joinComma = %q", got)
	}
}

func TestEmptyIfNil(t *testing.T) {
	if got := emptyIfNil(nil); len(got) != 0 {
		t.Errorf("emptyIfNil(nil) = %v, want empty slice", got)
	}
	in := []string{"x"}
	if got := emptyIfNil(in); len(got) != 1 {
		t.Errorf("emptyIfNil(non-nil) = %v", got)
	}
}
