package config

import (
	"fmt"
	"strings"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// Pipeline roles.
const (
	RolePlan     = "plan"
	RoleCode     = "code"
	RoleQA       = "qa"
	RoleFallback = "fallback"
)

// Roles lists the pipeline roles in execution order.
var Roles = []string{RolePlan, RoleCode, RoleQA}

func (c *Config) role(name string) RoleConfig {
	switch name {
	case RolePlan:
		return c.Plan
	case RoleCode:
		return c.Code
	case RoleQA:
		return c.QA
	case RoleFallback:
		return c.Fallback
	default:
		return RoleConfig{}
	}
}

// Resolve builds the primary provider config for a role by layering the role
// overrides over the global llm defaults, plus the shared secondary. The
// secondary inherits tuning (tokens, temperature, timeout) from the primary
// but never its credentials.
func (c *Config) Resolve(role string) (llm.ProviderConfig, *llm.ProviderConfig, error) {
	switch role {
	case RolePlan, RoleCode, RoleQA:
	default:
		return llm.ProviderConfig{}, nil, fmt.Errorf("unknown role %q", role)
	}

	base := LLMConfig{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.Timeout,
	}
	primary, err := layer(base, c.role(role), c.Fallback)
	if err != nil {
		return llm.ProviderConfig{}, nil, fmt.Errorf("%s: %w", role, err)
	}

	fb := c.Fallback
	if strings.TrimSpace(fb.Provider) == "" {
		return primary, nil, nil
	}
	secondary, err := layer(LLMConfig{
		MaxTokens:   primary.MaxTokens,
		Temperature: primary.Temperature,
		Timeout:     primary.Timeout,
	}, fb, RoleConfig{})
	if err != nil {
		return llm.ProviderConfig{}, nil, fmt.Errorf("fallback: %w", err)
	}
	return primary, &secondary, nil
}

// layer applies over to base. Switching provider kind drops the inherited
// credentials and base URL; when the new kind matches the fallback's, the
// fallback's are used instead.
func layer(base LLMConfig, over, fb RoleConfig) (llm.ProviderConfig, error) {
	if over.Provider != "" {
		if !sameKind(base.Provider, over.Provider) {
			base.APIKey = ""
			base.BaseURL = ""
			if sameKind(fb.Provider, over.Provider) {
				base.APIKey = fb.APIKey
				base.BaseURL = fb.BaseURL
			}
		}
		base.Provider = over.Provider
	}
	if over.Model != "" {
		base.Model = over.Model
	}
	if over.APIKey != "" {
		base.APIKey = over.APIKey
	}
	if over.BaseURL != "" {
		base.BaseURL = over.BaseURL
	}
	if over.MaxTokens > 0 {
		base.MaxTokens = over.MaxTokens
	}
	if over.Temperature != nil {
		base.Temperature = *over.Temperature
	}
	if over.Timeout > 0 {
		base.Timeout = over.Timeout
	}

	kind, ok := llm.ParseKind(base.Provider)
	if !ok {
		return llm.ProviderConfig{}, fmt.Errorf("unknown provider kind %q", base.Provider)
	}
	return llm.ProviderConfig{
		Kind:        kind,
		Model:       strings.TrimSpace(base.Model),
		APIKey:      strings.TrimSpace(base.APIKey),
		BaseURL:     strings.TrimSpace(base.BaseURL),
		MaxTokens:   base.MaxTokens,
		Temperature: base.Temperature,
		Timeout:     base.Timeout,
	}, nil
}

func sameKind(a, b string) bool {
	ka, okA := llm.ParseKind(a)
	kb, okB := llm.ParseKind(b)
	return okA && okB && ka == kb
}
