package quality

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hyperjump/labnoted/internal/ai"
	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/models"
)

const (
	evalTemperature = 0.1
	evalMaxTokens   = 600
)

// ContextNote is one piece of retrieved context supplied to the answer under evaluation.
type ContextNote struct {
	Title string
	Text  string
}

// SourceCoverage reports whether one context note was actually used, and relevantly so.
type SourceCoverage struct {
	Cited          bool `json:"cited"`
	RelevantClaim  bool `json:"relevant_claim"`
}

// Confidence is the evaluator's overall judgment label.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Evaluation is the full Search-QA Evaluator result.
type Evaluation struct {
	Correctness      float64          `json:"correctness"`
	Utility          float64          `json:"utility"`
	SourceCoverage   []SourceCoverage `json:"source_coverage"`
	GroundingIssues  []string         `json:"grounding_issues"`
	Summary          string           `json:"summary"`
	Confidence       Confidence       `json:"confidence"`
}

// Evaluator performs grounded-QA correctness/utility decomposition via a secondary AI call.
type Evaluator struct {
	router *ai.Router
}

// NewEvaluator builds a Search-QA Evaluator backed by router.
func NewEvaluator(router *ai.Router) *Evaluator {
	return &Evaluator{router: router}
}

func buildEvaluatorPrompt(question, answer string, notes []ContextNote) []models.Message {
	var ctxBuilder strings.Builder
	for i, n := range notes {
		fmt.Fprintf(&ctxBuilder, "[%d] %s\n%s\n\n", i+1, n.Title, n.Text)
	}

	system := "당신은 검색 기반 답변의 정확성과 유용성을 평가하는 평가자입니다. " +
		`다음 JSON 스키마로만 응답하세요: {"correctness": 0.0-1.0, "utility": 0.0-1.0, ` +
		`"source_coverage": [{"cited": bool, "relevant_claim": bool}, ...], ` +
		`"grounding_issues": ["..."], "summary": "..."}. ` +
		"source_coverage는 제공된 컨텍스트 노트 순서와 1:1로 대응해야 합니다."

	user := fmt.Sprintf("질문:\n%s\n\n컨텍스트 노트:\n%s\n답변:\n%s", question, ctxBuilder.String(), answer)

	return []models.Message{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: user},
	}
}

// Evaluate scores answer against question and the supplied context notes.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string, notes []ContextNote) (*Evaluation, error) {
	temp := evalTemperature
	maxTokens := evalMaxTokens

	resp, err := e.router.Chat(ctx, models.ChatRequest{
		Feature:  "search_qa_eval",
		Messages: buildEvaluatorPrompt(question, answer, notes),
		Options:  models.ChatOptions{Temperature: &temp, MaxTokens: &maxTokens},
	})
	if err != nil {
		return nil, err
	}

	return parseEvaluation(resp.Content)
}

func clampRound2(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*100) / 100
}

func parseEvaluation(raw string) (*Evaluation, error) {
	cleaned := stripMarkdownFence(raw)
	if !gjson.Valid(cleaned) {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "search-qa evaluator response is not valid JSON", nil)
	}
	parsed := gjson.Parse(cleaned)

	eval := &Evaluation{
		Correctness: clampRound2(parsed.Get("correctness").Float()),
		Utility:     clampRound2(parsed.Get("utility").Float()),
		Summary:     parsed.Get("summary").String(),
	}

	parsed.Get("source_coverage").ForEach(func(_, sc gjson.Result) bool {
		eval.SourceCoverage = append(eval.SourceCoverage, SourceCoverage{
			Cited:         sc.Get("cited").Bool(),
			RelevantClaim: sc.Get("relevant_claim").Bool(),
		})
		return true
	})
	parsed.Get("grounding_issues").ForEach(func(_, issue gjson.Result) bool {
		eval.GroundingIssues = append(eval.GroundingIssues, issue.String())
		return true
	})

	switch {
	case eval.Correctness >= 0.8 && eval.Utility >= 0.7:
		eval.Confidence = ConfidenceHigh
	case eval.Correctness >= 0.5:
		eval.Confidence = ConfidenceMedium
	default:
		eval.Confidence = ConfidenceLow
	}

	return eval, nil
}
