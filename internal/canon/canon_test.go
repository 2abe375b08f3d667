package canon

import (
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.linkedin.com/jobs/view/123?refId=abc&trackingId=x", "https://www.linkedin.com/jobs/view/123"},
		{"https://www.linkedin.com/jobs/view/123#top", "https://www.linkedin.com/jobs/view/123"},
		{"https://www.linkedin.com/jobs/view/123?a=1#frag", "https://www.linkedin.com/jobs/view/123"},
		{"https://example.com:8443/jobs/view/9?", "https://example.com:8443/jobs/view/9"},
		{"https://example.com/jobs/view/9", "https://example.com/jobs/view/9"},
		{"  https://example.com/jobs/view/9?x=y  ", "https://example.com/jobs/view/9"},
	}
	for _, tt := range tests {
		if got := Canonicalize(tt.in); string(got) != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://www.linkedin.com/jobs/view/senior-go-engineer-42?position=1&pageNum=0",
		"https://example.com/a/b#c",
		"http://example.com",
		"not a url?with=query",
		"%zz?bad",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(string(once))
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
		if strings.ContainsAny(string(once), "?#") {
			t.Errorf("Canonicalize(%q) = %q still has query or fragment", in, once)
		}
	}
}
