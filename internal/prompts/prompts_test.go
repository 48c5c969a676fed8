package prompts

import (
	"strings"
	"testing"

	"github.com/hyperjump/labnoted/internal/models"
)

func TestBuildKnownTaskTypes(t *testing.T) {
	for _, tt := range []TaskType{TaskInsight, TaskSearchQA, TaskWriting, TaskSpellcheck, TaskTemplate, TaskSummarize} {
		msgs, err := Build(tt, "질문입니다", nil)
		if err != nil {
			t.Fatalf("Build(%s): unexpected error: %v", tt, err)
		}
		if len(msgs) != 2 {
			t.Fatalf("Build(%s): expected 2 messages, got %d", tt, len(msgs))
		}
		if msgs[0].Role != models.RoleSystem {
			t.Fatalf("Build(%s): expected first message to be system, got %s", tt, msgs[0].Role)
		}
		if msgs[1].Role != models.RoleUser || msgs[1].Content != "질문입니다" {
			t.Fatalf("Build(%s): expected user message to equal input when no context, got %+v", tt, msgs[1])
		}
	}
}

func TestBuildUnknownTaskType(t *testing.T) {
	if _, err := Build("unknown", "x", nil); err == nil {
		t.Fatal("expected error for unknown task type")
	}
}

func TestBuildWithContextNotesFormatsAndOrders(t *testing.T) {
	notes := []ContextNote{
		{Title: "PCR basics", Text: "PCR amplifies DNA."},
		{Title: "Gel electrophoresis", Text: "Separates DNA by size."},
	}
	msgs, err := Build(TaskSearchQA, "What is PCR?", notes)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	user := msgs[1].Content
	if !strings.Contains(user, "[1] PCR basics") {
		t.Errorf("expected first context note labeled [1], got %q", user)
	}
	if !strings.Contains(user, "[2] Gel electrophoresis") {
		t.Errorf("expected second context note labeled [2], got %q", user)
	}
	if strings.Index(user, "[1]") > strings.Index(user, "[2]") {
		t.Errorf("expected context notes in order, got %q", user)
	}
	if !strings.Contains(user, "요청:\nWhat is PCR?") {
		t.Errorf("expected original request to follow context, got %q", user)
	}
}

func TestHasTaskType(t *testing.T) {
	if !HasTaskType(TaskWriting) {
		t.Error("expected writing to be a known task type")
	}
	if HasTaskType(TaskType("nonexistent")) {
		t.Error("expected nonexistent task type to be unknown")
	}
}
