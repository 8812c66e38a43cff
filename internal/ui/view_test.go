package ui

import (
	"strings"
	"testing"
)

func TestWrapTextBreaksLongLines(t *testing.T) {
	wrapped := wrapText("one two three four five six seven", 12)
	for _, line := range strings.Split(wrapped, "\n") {
		if len(strings.TrimSpace(line)) > 12 {
			t.Fatalf("line exceeds width: %q", line)
		}
	}
	if !strings.Contains(wrapped, "one two") {
		t.Fatalf("expected words preserved, got %q", wrapped)
	}
}

func TestWrapTextKeepsParagraphs(t *testing.T) {
	wrapped := wrapText("first\n\nsecond", 40)
	if got := strings.Count(wrapped, "\n"); got != 2 {
		t.Fatalf("expected two breaks, got %d in %q", got, wrapped)
	}
}

func TestCompactSingleLine(t *testing.T) {
	got := compactSingleLine("  a\n  b\tc  ", 0)
	if got != "a b c" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
	got = compactSingleLine("abcdefghij", 6)
	if len(got) > 8 || !strings.HasPrefix(got, "abcde") {
		t.Fatalf("expected truncation, got %q", got)
	}
}

func TestHighlightTermsMatchesCaseInsensitive(t *testing.T) {
	m := Model{theme: newTheme(), terms: map[string]struct{}{"dream": {}}}
	got := m.highlightTerms("Dream Sequence")
	if !strings.Contains(got, "Dream") {
		t.Fatalf("expected term kept in output, got %q", got)
	}
	if m.highlightTerms("No Match Here") != "No Match Here" {
		t.Fatalf("expected untouched name when nothing matches")
	}
}
