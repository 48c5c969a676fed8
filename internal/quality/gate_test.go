package quality

import (
	"context"
	"testing"

	"github.com/hyperjump/labnoted/internal/ai"
	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/models"
)

type scriptedProvider struct {
	name    string
	content string
}

func (p *scriptedProvider) Name() string { return p.name }
func (p *scriptedProvider) Capabilities() ai.Capability {
	return ai.Capability{Chat: true, Stream: false, ListModels: true}
}
func (p *scriptedProvider) AvailableModels() []ai.ModelInfo {
	return []ai.ModelInfo{{ID: "test-model", Provider: p.name}}
}
func (p *scriptedProvider) Chat(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (*models.AIResponse, error) {
	return &models.AIResponse{Content: p.content, Model: model, Provider: p.name}, nil
}
func (p *scriptedProvider) Stream(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (<-chan ai.StreamEvent, error) {
	panic("not used")
}

func routerWithScriptedResponse(content string) *ai.Router {
	r := ai.NewRouter(nil)
	r.Register("test", &scriptedProvider{name: "test", content: content})
	return r
}

func TestGateEvaluatePassesHighScore(t *testing.T) {
	router := routerWithScriptedResponse(`{"items":[{"question":"q1","passed":true,"note":""},{"question":"q2","passed":true,"note":""}],"summary":"good"}`)
	gate := NewGate(router, &config.QualityConfig{MinPassRatio: map[string]float64{"insight": 0.75}})

	result, err := gate.Evaluate(context.Background(), "insight", "request text", "response text")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected pass for all-true checklist, got %+v", result)
	}
	if result.Score != 1.0 {
		t.Fatalf("expected score 1.0, got %f", result.Score)
	}
}

func TestGateEvaluateStripsMarkdownFence(t *testing.T) {
	router := routerWithScriptedResponse("```json\n{\"items\":[{\"question\":\"q1\",\"passed\":false,\"note\":\"bad\"}],\"summary\":\"fail\"}\n```")
	gate := NewGate(router, &config.QualityConfig{MinPassRatio: map[string]float64{"insight": 0.75}})

	result, err := gate.Evaluate(context.Background(), "insight", "req", "resp")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Passed {
		t.Fatalf("expected failure for all-false checklist")
	}
	if result.Score != 0.0 {
		t.Fatalf("expected score 0.0, got %f", result.Score)
	}
}

func TestGateEvaluatePartialCreditForNullPassed(t *testing.T) {
	router := routerWithScriptedResponse(`{"items":[{"question":"q1","passed":null,"note":"partial"}],"summary":"mixed"}`)
	gate := NewGate(router, &config.QualityConfig{MinPassRatio: map[string]float64{"insight": 0.4}})

	result, err := gate.Evaluate(context.Background(), "insight", "req", "resp")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Score != 0.5 {
		t.Fatalf("expected partial score 0.5, got %f", result.Score)
	}
}

func TestGateEvaluateUnknownTaskType(t *testing.T) {
	router := routerWithScriptedResponse(`{}`)
	gate := NewGate(router, &config.QualityConfig{})
	if _, err := gate.Evaluate(context.Background(), "summarize", "req", "resp"); err == nil {
		t.Fatalf("expected error: summarize has no checklist")
	}
}

func TestGateEvaluateInvalidJSON(t *testing.T) {
	router := routerWithScriptedResponse("not json at all")
	gate := NewGate(router, &config.QualityConfig{})
	if _, err := gate.Evaluate(context.Background(), "insight", "req", "resp"); err == nil {
		t.Fatalf("expected error for unparseable response")
	}
}

func TestHasChecklist(t *testing.T) {
	if !HasChecklist("writing") {
		t.Fatalf("expected writing to have a checklist")
	}
	if HasChecklist("summarize") {
		t.Fatalf("expected summarize to have no checklist")
	}
}
