package quality

import (
	"context"
	"testing"
)

func TestEvaluatorHighConfidence(t *testing.T) {
	router := routerWithScriptedResponse(`{"correctness":0.9,"utility":0.85,"source_coverage":[{"cited":true,"relevant_claim":true}],"grounding_issues":[],"summary":"well grounded"}`)
	eval := NewEvaluator(router)

	result, err := eval.Evaluate(context.Background(), "what is PCR?", "PCR amplifies DNA.", []ContextNote{{Title: "PCR protocol", Text: "..."}})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", result.Confidence)
	}
}

func TestEvaluatorLowConfidenceAndClamping(t *testing.T) {
	router := routerWithScriptedResponse(`{"correctness":-0.5,"utility":1.5,"source_coverage":[],"grounding_issues":["unsupported claim about X"],"summary":"weak"}`)
	eval := NewEvaluator(router)

	result, err := eval.Evaluate(context.Background(), "q", "a", nil)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Correctness != 0 {
		t.Fatalf("expected correctness clamped to 0, got %f", result.Correctness)
	}
	if result.Utility != 1 {
		t.Fatalf("expected utility clamped to 1, got %f", result.Utility)
	}
	if result.Confidence != ConfidenceLow {
		t.Fatalf("expected low confidence, got %s", result.Confidence)
	}
	if len(result.GroundingIssues) != 1 {
		t.Fatalf("expected one grounding issue, got %+v", result.GroundingIssues)
	}
}

func TestEvaluatorMediumConfidence(t *testing.T) {
	router := routerWithScriptedResponse(`{"correctness":0.6,"utility":0.4,"source_coverage":[],"grounding_issues":[],"summary":"ok"}`)
	eval := NewEvaluator(router)

	result, err := eval.Evaluate(context.Background(), "q", "a", nil)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Confidence != ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %s", result.Confidence)
	}
}
