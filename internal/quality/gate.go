// Package quality scores AI responses against task-specific checklists (the Quality
// Gate) and decomposes grounded search answers into correctness/utility metrics (the
// Search-QA Evaluator), both via secondary AI calls.
package quality

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hyperjump/labnoted/internal/ai"
	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/models"
)

// checklistTemperature and checklistMaxTokens bound the secondary evaluation call: low
// temperature for consistent scoring, a small budget since the response is a short JSON object.
const (
	checklistTemperature = 0.1
	checklistMaxTokens   = 500
)

// checklists holds the Korean-language checklist text for every task type the gate
// evaluates. "summarize" deliberately has no entry: it is not gated.
var checklists = map[string][]string{
	"insight": {
		"응답이 주어진 노트 내용에 실제로 근거하고 있는가?",
		"불필요한 반복 없이 핵심 통찰을 전달하는가?",
		"사용자의 질문 의도에 맞는 답변인가?",
	},
	"search_qa": {
		"답변의 모든 주장이 제공된 컨텍스트로 뒷받침되는가?",
		"질문에 대한 실질적인 답이 되는가?",
		"출처가 불분명한 추측을 포함하지 않는가?",
	},
	"writing": {
		"요청된 형식과 분량을 지켰는가?",
		"문체가 요청에 맞게 일관적인가?",
		"사실과 다른 내용을 포함하지 않는가?",
	},
	"spellcheck": {
		"맞춤법과 띄어쓰기 오류가 모두 수정되었는가?",
		"원문의 의미를 변경하지 않았는가?",
	},
	"template": {
		"템플릿의 모든 필수 섹션을 포함하는가?",
		"플레이스홀더가 남아있지 않은가?",
	},
}

// HasChecklist reports whether taskType is gated at all.
func HasChecklist(taskType string) bool {
	_, ok := checklists[taskType]
	return ok
}

// ChecklistItem is one evaluated checklist question.
type ChecklistItem struct {
	Question string `json:"question"`
	Passed   *bool  `json:"passed"` // nil = partial credit
	Note     string `json:"note"`
}

// Result is the outcome of a Gate.Evaluate call.
type Result struct {
	Items   []ChecklistItem
	Summary string
	Score   float64
	Passed  bool
}

// Gate evaluates a candidate response against its task type's checklist via a secondary
// AI call.
type Gate struct {
	router *ai.Router
	cfg    *config.QualityConfig
}

// NewGate builds a Quality Gate backed by router for its internal evaluation calls.
func NewGate(router *ai.Router, cfg *config.QualityConfig) *Gate {
	return &Gate{router: router, cfg: cfg}
}

func buildChecklistSystemPrompt(questions []string) string {
	var b strings.Builder
	b.WriteString("다음 체크리스트 항목들을 평가하여 JSON으로만 응답하세요. ")
	b.WriteString(`형식: {"items": [{"question": "...", "passed": true|false|null, "note": "..."}], "summary": "..."}.`)
	b.WriteString(" 체크리스트:\n")
	for _, q := range questions {
		b.WriteString("- " + q + "\n")
	}
	return b.String()
}

// Evaluate runs the checklist for taskType against request/response. Returns
// (nil, error) if taskType has no checklist, the AI call fails, or the result can't be
// parsed — the caller decides the fallback in every case.
func (g *Gate) Evaluate(ctx context.Context, taskType, request, response string) (*Result, error) {
	questions, ok := checklists[taskType]
	if !ok {
		return nil, apperr.InvalidInput("task type %q has no quality checklist", taskType)
	}

	temp := checklistTemperature
	maxTokens := checklistMaxTokens
	messages := []models.Message{
		{Role: models.RoleSystem, Content: buildChecklistSystemPrompt(questions)},
		{Role: models.RoleUser, Content: "요청:\n" + request + "\n\n응답:\n" + response},
	}

	aiResp, err := g.router.Chat(ctx, models.ChatRequest{
		Feature:  "quality_gate",
		Messages: messages,
		Options:  models.ChatOptions{Temperature: &temp, MaxTokens: &maxTokens},
	})
	if err != nil {
		return nil, err
	}

	result, err := parseChecklistResponse(aiResp.Content)
	if err != nil {
		return nil, err
	}

	threshold := 0.75
	if g.cfg != nil {
		if ratio, ok := g.cfg.MinPassRatio[taskType]; ok {
			threshold = ratio
		}
	}
	result.Passed = result.Score >= threshold
	return result, nil
}

// stripMarkdownFence removes a leading/trailing ```json ... ``` or ``` ... ``` fence,
// the shape model responses commonly wrap JSON in despite being asked for raw JSON.
func stripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseChecklistResponse(raw string) (*Result, error) {
	cleaned := stripMarkdownFence(raw)
	if !gjson.Valid(cleaned) {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "quality gate response is not valid JSON", nil)
	}
	parsed := gjson.Parse(cleaned)

	var items []ChecklistItem
	var total float64
	parsed.Get("items").ForEach(func(_, item gjson.Result) bool {
		ci := ChecklistItem{
			Question: item.Get("question").String(),
			Note:     item.Get("note").String(),
		}
		passedField := item.Get("passed")
		switch {
		case !passedField.Exists() || passedField.Type == gjson.Null:
			ci.Passed = nil
			total += 0.5
		case passedField.Bool():
			v := true
			ci.Passed = &v
			total += 1.0
		default:
			v := false
			ci.Passed = &v
		}
		items = append(items, ci)
		return true
	})

	if len(items) == 0 {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "quality gate response had no checklist items", nil)
	}

	return &Result{
		Items:   items,
		Summary: parsed.Get("summary").String(),
		Score:   total / float64(len(items)),
	}, nil
}
