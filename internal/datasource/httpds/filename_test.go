package httpds

import (
	"strings"
	"testing"
)

func TestSafeFilenameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "query becomes the filename",
			raw:  "https://example.com/export?report=nabca&month=2024-03",
			want: "report_nabca_month_2024_03",
		},
		{
			name: "runs of separators collapse",
			raw:  "https://example.com/x?a=1&&b=+2",
			want: "a_1_b_2",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SafeFilenameFromURL(tt.raw); got != tt.want {
				t.Fatalf("SafeFilenameFromURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSafeFilenameFromURL_HashFallback(t *testing.T) {
	t.Parallel()

	// No query string: the whole URL is hashed.
	raw := "https://example.com/report.html"
	if got := SafeFilenameFromURL(raw); got != HashString(raw) {
		t.Fatalf("SafeFilenameFromURL(%q) = %q, want hash %q", raw, got, HashString(raw))
	}

	// Unparseable URL: same fallback.
	bad := "://not a url"
	if got := SafeFilenameFromURL(bad); got != HashString(bad) {
		t.Fatalf("SafeFilenameFromURL(%q) = %q, want hash", bad, got)
	}
}

func TestHashString(t *testing.T) {
	t.Parallel()

	a := HashString("https://example.com/a")
	if len(a) != 40 || strings.ToLower(a) != a {
		t.Fatalf("HashString output %q is not lowercase sha1 hex", a)
	}
	if a != HashString("https://example.com/a") {
		t.Fatalf("HashString not stable")
	}
	if a == HashString("https://example.com/b") {
		t.Fatalf("distinct inputs collided")
	}
}
