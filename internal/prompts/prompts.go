// Package prompts builds the per-task-type message lists sent to the AI router: one
// system prompt per task (insight, search-QA, writing, spellcheck, template) describing
// the task's voice and constraints, followed by the grounding context and the user's
// request.
package prompts

import (
	"fmt"
	"strings"

	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/models"
)

// TaskType selects which system prompt and checklist a request is evaluated against.
// It mirrors internal/quality's checklist keys, plus "summarize" which has a prompt
// but (per §4.10) is never quality-gated.
type TaskType string

const (
	TaskInsight   TaskType = "insight"
	TaskSearchQA  TaskType = "search_qa"
	TaskWriting   TaskType = "writing"
	TaskSpellcheck TaskType = "spellcheck"
	TaskTemplate  TaskType = "template"
	TaskSummarize TaskType = "summarize"
)

// ContextNote is one retrieved note handed to a prompt builder as grounding material.
type ContextNote struct {
	Title string
	Text  string
}

var systemPrompts = map[TaskType]string{
	TaskInsight: "당신은 사용자의 연구 노트를 바탕으로 통찰을 제공하는 어시스턴트입니다. " +
		"아래에 제공된 노트 내용에만 근거하여 답변하고, 노트에 없는 내용은 추측하지 마세요. " +
		"핵심을 간결하게 전달하세요.",
	TaskSearchQA: "당신은 사용자의 연구 노트 검색 결과를 바탕으로 질문에 답하는 어시스턴트입니다. " +
		"아래 컨텍스트 노트에서 뒷받침되는 내용만 답변에 포함하고, 각 주장이 어느 노트에 근거하는지 알 수 있게 작성하세요. " +
		"컨텍스트에 없는 내용은 모른다고 답하세요.",
	TaskWriting: "당신은 사용자의 글쓰기 작업을 돕는 어시스턴트입니다. " +
		"요청된 형식, 분량, 문체를 정확히 지키고, 마크다운 제목과 목록을 활용해 구조화된 응답을 작성하세요.",
	TaskSpellcheck: "당신은 한국어 맞춤법과 띄어쓰기를 교정하는 어시스턴트입니다. " +
		"원문의 의미와 어조를 바꾸지 말고, 맞춤법과 띄어쓰기 오류만 수정하세요. " +
		"수정된 전체 텍스트만 출력하세요.",
	TaskTemplate: "당신은 요청된 템플릿 구조에 맞춰 문서를 채우는 어시스턴트입니다. " +
		"템플릿의 모든 필수 섹션을 포함하고, 플레이스홀더를 남기지 마세요.",
	TaskSummarize: "당신은 사용자의 연구 노트를 간결하게 요약하는 어시스턴트입니다. " +
		"핵심 내용만 남기고 군더더기 없이 요약하세요.",
}

// HasTaskType reports whether taskType has a known system prompt.
func HasTaskType(taskType TaskType) bool {
	_, ok := systemPrompts[taskType]
	return ok
}

func formatContextNotes(notes []ContextNote) string {
	if len(notes) == 0 {
		return ""
	}
	var b strings.Builder
	for i, n := range notes {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, n.Title, n.Text)
	}
	return b.String()
}

// Build assembles the system and user messages for taskType given the user's request
// and any retrieved context notes. notes may be nil for task types that need none
// (writing, spellcheck, template typically carry their own subject text as content).
func Build(taskType TaskType, userContent string, notes []ContextNote) ([]models.Message, error) {
	system, ok := systemPrompts[taskType]
	if !ok {
		return nil, apperr.InvalidInput("task type %q has no prompt template", taskType)
	}

	userBody := userContent
	if ctx := formatContextNotes(notes); ctx != "" {
		userBody = fmt.Sprintf("컨텍스트 노트:\n%s요청:\n%s", ctx, userContent)
	}

	return []models.Message{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: userBody},
	}, nil
}
