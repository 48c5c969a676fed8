package ai

import (
	"strings"
	"testing"

	"github.com/hyperjump/labnoted/internal/models"
)

func TestFlattenInputLabelsEachRole(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleSystem, Content: "be concise"},
		{Role: models.RoleUser, Content: "what is PCR?"},
	}
	got := flattenInput(messages)
	if !strings.Contains(got, "SYSTEM: be concise") || !strings.Contains(got, "USER: what is PCR?") {
		t.Fatalf("unexpected flattened input: %q", got)
	}
}
