// Package queryproc normalizes raw search queries, detects their language, extracts
// Korean morphemes, and builds the OR-joined keyword query expression the FTS engine consumes.
package queryproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// normalize NFC-normalizes and trims the raw query, per the preprocessor's first step.
func normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Language is the detected language of a query.
type Language string

const (
	LangKorean  Language = "ko"
	LangEnglish Language = "en"
	LangMixed   Language = "mixed"
)

// Analysis is the structured result of analyzing a raw query string.
type Analysis struct {
	Normalized string
	Language   Language
	Morphemes  []string
	Expression string
	SingleTerm bool
}

// koParticles are common Korean particles (조사) and verb/adjective endings stripped from
// the end of a token to approximate a base form. Longest-first so e.g. "에서는" strips
// before "는" does, instead of leaving a dangling "에서".
var koParticles = []string{
	"으로는", "에서는", "이라는", "이었다", "했다", "한다", "였다", "에서", "에게", "한테",
	"로서", "로써", "이라", "라는", "부터", "까지", "마다", "조차", "밖에", "처럼",
	"은", "는", "이", "가", "을", "를", "의", "에", "로", "와", "과", "도", "만", "다",
}

// stripParticle removes the first koParticles suffix that matches tok and leaves a
// non-empty stem; tok is returned unchanged when none matches. Callers apply it only to
// Hangul runs, so foreign words and digits pass through unstripped.
func stripParticle(tok string) string {
	r := []rune(tok)
	for _, p := range koParticles {
		pr := []rune(p)
		if len(r) > len(pr) && strings.HasSuffix(tok, p) {
			stripped := string(r[:len(r)-len(pr)])
			if stripped != "" {
				return stripped
			}
		}
	}
	return tok
}

func hasHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

func hasLatin(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

func detectLanguage(s string) Language {
	ko := hasHangul(s)
	en := hasLatin(s)
	switch {
	case ko && en:
		return LangMixed
	case ko:
		return LangKorean
	default:
		return LangEnglish
	}
}

// splitHangulRuns splits a token into maximal runs of Hangul vs. non-Hangul, so morpheme
// extraction only touches the Korean portion of a mixed-script token.
func splitHangulRuns(tok string) []string {
	var runs []string
	var cur []rune
	var curIsHangul bool
	for i, r := range tok {
		isHangul := unicode.Is(unicode.Hangul, r)
		if i == 0 {
			curIsHangul = isHangul
		}
		if isHangul != curIsHangul && len(cur) > 0 {
			runs = append(runs, string(cur))
			cur = nil
			curIsHangul = isHangul
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		runs = append(runs, string(cur))
	}
	return runs
}

// extractMorphemes extracts base-form content words from Korean (or mixed) text by
// whitespace-tokenizing, splitting each token into Hangul/non-Hangul runs, and stripping
// a trailing particle/ending from each Hangul run. Order of first appearance is preserved
// and duplicates are dropped, approximating the common-noun/proper-noun/verb-stem/
// adjective-stem/foreign-word tag set without a dictionary-backed morphological analyzer.
func extractMorphemes(normalized string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(normalized) {
		for _, run := range splitHangulRuns(tok) {
			run = strings.Trim(run, ".,!?;:\"'()[]{}|")
			if run == "" {
				continue
			}
			base := run
			if hasHangul(run) {
				base = stripParticle(run)
			}
			base = strings.ToLower(base)
			if base == "" || seen[base] {
				continue
			}
			seen[base] = true
			out = append(out, base)
		}
	}
	return out
}

// buildExpression builds the OR-joined keyword query expression: the deduplicated union
// of morphemes and original whitespace tokens, with single quotes escaped by doubling.
func buildExpression(morphemes []string, normalized string) string {
	seen := make(map[string]bool)
	var terms []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, strings.ReplaceAll(t, "'", "''"))
	}
	for _, m := range morphemes {
		add(m)
	}
	for _, t := range strings.Fields(normalized) {
		add(t)
	}
	return strings.Join(terms, " | ")
}

// Analyze normalizes, language-detects, morpheme-extracts, and builds the keyword
// expression for a raw query. Empty input yields an empty Analysis.
func Analyze(query string) Analysis {
	normalized := normalize(query)
	if normalized == "" {
		return Analysis{}
	}

	lang := detectLanguage(normalized)

	var morphemes []string
	switch lang {
	case LangKorean, LangMixed:
		morphemes = extractMorphemes(normalized)
	default:
		seen := make(map[string]bool)
		for _, tok := range strings.Fields(strings.ToLower(normalized)) {
			if tok == "" || seen[tok] {
				continue
			}
			seen[tok] = true
			morphemes = append(morphemes, tok)
		}
	}

	return Analysis{
		Normalized: normalized,
		Language:   lang,
		Morphemes:  morphemes,
		Expression: buildExpression(morphemes, normalized),
		SingleTerm: len(strings.Fields(normalized)) == 1,
	}
}
