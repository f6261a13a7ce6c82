package normalization

import "testing"

func TestParseInputString(t *testing.T) {
	if got := ParseInputString("  USER@Example.COM "); got != "user@example.com" {
		t.Fatalf("got %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace(" a b \n\t c  "); got != "a b c" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("héllo", 3); got != "hél" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("abc", 10); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("abc", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}
