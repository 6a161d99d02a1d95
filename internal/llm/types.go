package llm

import (
	"context"
	"strings"
	"time"
)

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind identifies a provider family.
type Kind string

const (
	KindOpenRouter       Kind = "openrouter"
	KindOpenAICompatible Kind = "openai-compatible"
	KindGemini           Kind = "google-gemini"
)

// ParseKind normalizes user-supplied provider names and their short aliases.
// ok is false for unknown names.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openrouter":
		return KindOpenRouter, true
	case "openai-compatible", "openai", "deepseek":
		return KindOpenAICompatible, true
	case "google-gemini", "gemini", "google":
		return KindGemini, true
	default:
		return "", false
	}
}

// ProviderConfig is the fully resolved configuration of one model endpoint.
// It is passed by value and never mutated after resolution.
type ProviderConfig struct {
	Kind        Kind
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Configured reports whether the config has enough data to issue a request.
func (c ProviderConfig) Configured() bool {
	return c.Kind != "" && strings.TrimSpace(c.APIKey) != ""
}

// String renders the config without secrets.
func (c ProviderConfig) String() string {
	return string(c.Kind) + "/" + c.Model
}

// ChatMessage represents a single message exchanged with the model.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}

// ChatRequest is the input for chat providers.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// Usage captures token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the result of a chat completion.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
	ProviderName string
	Model        string
}

// Provider defines the contract for LLM providers. Implementations perform a
// single request and classify failures with the sentinels in errors.go.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
