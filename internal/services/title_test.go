package services

import "testing"

func TestResolveTitlePrecedence(t *testing.T) {
	vision := func() string { return "Vision Title" }

	got := ResolveTitle("Atlas of India", "Native Title", vision, "General Title")
	if got != "Atlas of India" {
		t.Fatalf("exact-from-text should win: got %q", got)
	}

	got = ResolveTitle("", "Native Title", vision, "General Title")
	if got != "Native Title" {
		t.Fatalf("native title should win over vision: got %q", got)
	}

	got = ResolveTitle("", "", vision, "General Title")
	if got != "Vision Title" {
		t.Fatalf("vision title should win over general: got %q", got)
	}

	got = ResolveTitle("", "", nil, "General Title")
	if got != "General Title" {
		t.Fatalf("general title should be used when vision is absent: got %q", got)
	}
}

func TestResolveTitleSkipsInvalidCandidates(t *testing.T) {
	// Too short, too long and whitespace-only candidates all fall through.
	long := make([]byte, 0, 130)
	for i := 0; i < 130; i++ {
		long = append(long, 'x')
	}

	got := ResolveTitle("ab", string(long), func() string { return "   " }, "Linear Algebra Done Right")
	if got != "Linear Algebra Done Right" {
		t.Fatalf("invalid candidates should be skipped: got %q", got)
	}
}

func TestResolveTitleFallback(t *testing.T) {
	got := ResolveTitle("", "", nil, "")
	if got != "Untitled Resource" {
		t.Fatalf("want fallback title, got %q", got)
	}
}

func TestResolveTitleLazyVision(t *testing.T) {
	called := false
	vision := func() string {
		called = true
		return "Vision Title"
	}
	_ = ResolveTitle("The C Programming Language", "", vision, "")
	if called {
		t.Fatal("vision thunk must not run when an earlier candidate is valid")
	}
}

func TestValidTitle(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"abc", true},
		{"  abc  ", true},
		{"ab", false},
		{"", false},
		{"   ", false},
	}
	for _, c := range cases {
		if got := ValidTitle(c.in); got != c.want {
			t.Fatalf("ValidTitle(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
