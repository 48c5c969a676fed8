package search

import "testing"

func TestHighlightTruncatesLongContent(t *testing.T) {
	content := "this is a fairly long piece of note content that exceeds the limit"
	got := Highlight(content, 10)
	if got != content[:10]+"..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestHighlightLeavesShortContentAlone(t *testing.T) {
	content := "short"
	if got := Highlight(content, 200); got != content {
		t.Fatalf("expected unchanged content, got %q", got)
	}
}
