package llm

import (
	"context"
	"errors"
	"strings"
)

// Invoker performs exactly one model request for a resolved config.
type Invoker interface {
	Invoke(ctx context.Context, cfg ProviderConfig, messages []ChatMessage) (string, error)
}

// RegistryInvoker resolves providers from a Registry and classifies their failures.
type RegistryInvoker struct {
	registry *Registry
}

// NewInvoker creates an invoker backed by reg.
func NewInvoker(reg *Registry) *RegistryInvoker {
	return &RegistryInvoker{registry: reg}
}

// Invoke sends messages to the endpoint described by cfg and returns the generated text.
// The returned error always matches one of ErrTransport, ErrEmptyResponse or ErrQuotaExceeded.
func (i *RegistryInvoker) Invoke(ctx context.Context, cfg ProviderConfig, messages []ChatMessage) (string, error) {
	name := string(cfg.Kind)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return "", NewProviderError(name, cfg.Model, ErrTransport, 0, errors.New("api key is not set"))
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return "", NewProviderError(name, cfg.Model, ErrTransport, 0, errors.New("model is required"))
	}

	provider, err := i.registry.Resolve(cfg)
	if err != nil {
		return "", NewProviderError(name, cfg.Model, ErrTransport, 0, err)
	}

	resp, err := provider.Chat(ctx, ChatRequest{
		Model:       cfg.Model,
		Messages:    messages,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return "", err
		}
		return "", NewProviderError(provider.Name(), cfg.Model, Classify(err), 0, err)
	}

	if strings.TrimSpace(resp.Content) == "" {
		return "", NewProviderError(provider.Name(), cfg.Model, ErrEmptyResponse, 0, nil)
	}
	return resp.Content, nil
}
