package search

import (
	"strings"

	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/queryproc"
)

// JudgeDecision is the adaptive search judge's verdict on whether semantic search must
// also run, along with the inputs that produced it (logged for metrics).
type JudgeDecision struct {
	RunSemantic bool
	Reason      string
	Confidence  float64
	FTSCount    int
	MaxScore    float64
	Coverage    float64
}

// Judge decides, after FTS has run, whether semantic retrieval is also worth its cost.
func Judge(cfg *config.SearchConfig, analysis queryproc.Analysis, ftsResults []*scoredResult) JudgeDecision {
	if !cfg.AdaptiveEnabled {
		return JudgeDecision{RunSemantic: true, Reason: "adaptive mode disabled"}
	}
	if len(ftsResults) == 0 {
		return JudgeDecision{RunSemantic: true, Reason: "fts returned zero results", FTSCount: 0}
	}

	maxScore := 0.0
	for _, r := range ftsResults {
		if r.score > maxScore {
			maxScore = r.score
		}
	}

	coverage := termCoverage(analysis.Morphemes, ftsResults)

	minScoreThreshold := cfg.JudgeMinAvgScore
	if analysis.Language == queryproc.LangKorean || analysis.Language == queryproc.LangMixed {
		minScoreThreshold = cfg.JudgeMinAvgScoreKorean
	}

	quality := 0.4*minOne(maxScore/nonZero(minScoreThreshold))  +
		0.6*minOne(coverage/nonZero(cfg.JudgeMinTermCoverage))

	runSemantic := quality < cfg.JudgeConfidenceThreshold
	reason := "fts results sufficient"
	if runSemantic {
		reason = "fts confidence below threshold"
	}

	return JudgeDecision{
		RunSemantic: runSemantic,
		Reason:      reason,
		Confidence:  quality,
		FTSCount:    len(ftsResults),
		MaxScore:    maxScore,
		Coverage:    coverage,
	}
}

// termCoverage computes the fraction of morphemes that appear in the concatenated
// snippets and titles of the FTS results. With no morphemes, coverage is defined as 1.
func termCoverage(morphemes []string, results []*scoredResult) float64 {
	if len(morphemes) == 0 {
		return 1.0
	}
	var haystack strings.Builder
	for _, r := range results {
		haystack.WriteString(strings.ToLower(r.title))
		haystack.WriteByte(' ')
		haystack.WriteString(strings.ToLower(r.snippet))
		haystack.WriteByte(' ')
	}
	text := haystack.String()
	found := 0
	for _, m := range morphemes {
		if strings.Contains(text, strings.ToLower(m)) {
			found++
		}
	}
	return float64(found) / float64(len(morphemes))
}

func minOne(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
