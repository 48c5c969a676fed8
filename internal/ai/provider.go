// Package ai provides a provider-agnostic abstraction over chat-completion backends
// (OpenAI, Anthropic, Google Gemini, OpenAI-Codex OAuth, GLM/Zhipu) and the router that
// resolves a requested model to the provider that serves it.
package ai

import (
	"context"

	"github.com/hyperjump/labnoted/internal/models"
)

// Capability advertises which operations a provider supports, so new provider
// variants never require changes to the router's dispatch logic.
type Capability struct {
	Chat       bool
	Stream     bool
	ListModels bool
}

// ModelInfo describes one model a provider can serve.
type ModelInfo struct {
	ID          string
	DisplayName string
	Provider    string
}

// StreamEventType tags the kind of event delivered over a provider's stream channel.
type StreamEventType string

const (
	StreamEventChunk StreamEventType = "chunk"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one item on a provider's streaming channel.
type StreamEvent struct {
	Type  StreamEventType
	Chunk string
	Err   error
}

// Provider is the interface every concrete chat backend implements. The router never
// talks to a concrete provider type directly; it only ever sees this interface.
type Provider interface {
	Name() string
	Capabilities() Capability
	Chat(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (*models.AIResponse, error)
	Stream(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (<-chan StreamEvent, error)
	AvailableModels() []ModelInfo
}

const defaultAnthropicMaxTokens = 4096

// concatSystemMessages joins every system-role message with a blank line, matching the
// Anthropic-style provider's system-parameter extraction, and returns the remaining
// non-system messages unchanged and in order.
func concatSystemMessages(messages []models.Message) (system string, rest []models.Message) {
	var systemParts []string
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return joinNonEmpty(systemParts, "\n\n"), rest
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		_ = i
		out += p
	}
	return out
}
