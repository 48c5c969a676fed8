package queryproc

import "testing"

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze("")
	if a.Morphemes != nil || a.Expression != "" {
		t.Fatalf("expected empty analysis, got %+v", a)
	}
}

func TestAnalyzeEnglish(t *testing.T) {
	a := Analyze("PCR Amplification")
	if a.Language != LangEnglish {
		t.Fatalf("expected LangEnglish, got %s", a.Language)
	}
	if a.SingleTerm {
		t.Fatalf("expected multi-term query")
	}
	if a.Expression == "" {
		t.Fatalf("expected non-empty expression")
	}
}

func TestAnalyzeKorean(t *testing.T) {
	a := Analyze("세포분열은 중요하다")
	if a.Language != LangKorean {
		t.Fatalf("expected LangKorean, got %s", a.Language)
	}
	if len(a.Morphemes) == 0 {
		t.Fatalf("expected morphemes to be extracted")
	}
}

func TestAnalyzeMixed(t *testing.T) {
	a := Analyze("PCR 분석")
	if a.Language != LangMixed {
		t.Fatalf("expected LangMixed, got %s", a.Language)
	}
}

func TestAnalyzeSingleTerm(t *testing.T) {
	a := Analyze("amplification")
	if !a.SingleTerm {
		t.Fatalf("expected single term")
	}
}

func TestBuildExpressionEscapesQuotes(t *testing.T) {
	a := Analyze("it's working")
	for _, tok := range []string{"it''s", "working"} {
		found := false
		for _, term := range splitOR(a.Expression) {
			if term == tok {
				found = true
			}
		}
		if !found {
			t.Errorf("expected term %q in expression %q", tok, a.Expression)
		}
	}
}

func splitOR(expr string) []string {
	var out []string
	cur := ""
	for i := 0; i < len(expr); i++ {
		if i+3 <= len(expr) && expr[i:i+3] == " | " {
			out = append(out, cur)
			cur = ""
			i += 2
			continue
		}
		cur += string(expr[i])
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
