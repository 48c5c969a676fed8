package streammon

import (
	"fmt"
	"strings"
	"testing"
)

// distinctSentences builds n non-repeating "this is english response number N here" lines so
// tests can exceed the repetition check's 5-sentence threshold without tripping it.
func distinctSentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "this is english response number %d here. ", i)
	}
	return b.String()
}

func TestMonitorContinuesBelowCheckInterval(t *testing.T) {
	m := New(Options{CheckInterval: 300})
	v := m.Feed("short chunk")
	if v.Action != ActionContinue {
		t.Fatalf("expected continue below check interval, got %+v", v)
	}
}

func TestMonitorLanguageMismatchWarns(t *testing.T) {
	m := New(Options{CheckInterval: 10, KoreanRequest: true})
	english := distinctSentences(10)
	v := m.Feed(english)
	if v.Action != ActionWarn || v.IssueType != IssueLanguageMismatch {
		t.Fatalf("expected language mismatch warn, got %+v", v)
	}
}

func TestMonitorLanguageMismatchIgnoredForNonKoreanRequest(t *testing.T) {
	m := New(Options{CheckInterval: 10, KoreanRequest: false})
	english := distinctSentences(10)
	v := m.Feed(english)
	if v.Action == ActionWarn && v.IssueType == IssueLanguageMismatch {
		t.Fatalf("expected no language check when request was not Korean")
	}
}

func TestMonitorRepetitionAborts(t *testing.T) {
	m := New(Options{CheckInterval: 10})
	sentence := "this exact sentence keeps recurring over and over again"
	text := strings.Repeat(sentence+". ", 5)
	v := m.Feed(text)
	if v.Action != ActionAbort || v.IssueType != IssueRepetition {
		t.Fatalf("expected repetition abort, got %+v", v)
	}
}

func TestMonitorFormatWarnsForWritingTask(t *testing.T) {
	m := New(Options{CheckInterval: 10, FormatSensitive: true})
	noHeadings := distinctSentences(15)
	v := m.Feed(noHeadings)
	if v.Action != ActionWarn || v.IssueType != IssueFormat {
		t.Fatalf("expected format warn, got %+v", v)
	}
}

func TestMonitorFormatIgnoredWhenNotFormatSensitive(t *testing.T) {
	m := New(Options{CheckInterval: 10, FormatSensitive: false})
	noHeadings := distinctSentences(15)
	v := m.Feed(noHeadings)
	if v.IssueType == IssueFormat {
		t.Fatalf("expected format check to be skipped when not format-sensitive")
	}
}

func TestMonitorLengthAnomalyAborts(t *testing.T) {
	m := New(Options{CheckInterval: 10})
	// A long tail made of only 2 distinct repeating words has no '.', so it is a single
	// sentence, below the repetition check's 5-sentence minimum, but uniqueness collapses.
	collapsing := strings.Repeat("alpha beta ", 400)
	v := m.Feed(collapsing)
	if v.Action != ActionAbort || v.IssueType != IssueLength {
		t.Fatalf("expected length anomaly abort, got %+v", v)
	}
}

func TestMonitorHealthyKoreanStreamContinues(t *testing.T) {
	m := New(Options{CheckInterval: 10, KoreanRequest: true, FormatSensitive: true})
	healthy := "# 제목\n\n이것은 정상적인 한국어 응답입니다. 문장이 다양하고 반복되지 않습니다. " +
		"각 문장은 서로 다른 내용을 담고 있어 자연스럽게 이어집니다."
	v := m.Feed(healthy)
	if v.Action != ActionContinue {
		t.Fatalf("expected continue for healthy Korean response, got %+v", v)
	}
}
