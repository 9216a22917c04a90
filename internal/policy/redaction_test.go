package policy

import (
	"strings"
	"testing"

	"github.com/Adityashandilya555/personifi-aria-sub001/internal/intent"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIICleanInput(t *testing.T) {
	input := "let's plan the weekend trip"
	out, changed := RedactPII(input)
	if changed {
		t.Fatalf("changed = true for clean input")
	}
	if out != input {
		t.Fatalf("RedactPII(%q) = %q, want unchanged", input, out)
	}
}

func TestSanitizeSnippetMasksAndTruncates(t *testing.T) {
	long := "ping me at sam@example.com about the trip " + strings.Repeat("soon ", 30)
	out := SanitizeSnippet(long)
	if strings.Contains(out, "sam@example.com") {
		t.Fatalf("snippet leaked email: %q", out)
	}
	if !strings.Contains(out, "[REDACTED_EMAIL]") {
		t.Fatalf("snippet missing redaction marker: %q", out)
	}
	if n := len([]rune(out)); n > intent.SnippetMaxChars {
		t.Fatalf("snippet length = %d, want <= %d", n, intent.SnippetMaxChars)
	}
}
