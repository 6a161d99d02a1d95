package configbuilder

import (
	"context"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/config"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
	llmgemini "github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm/providers/gemini"
	llmopenai "github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm/providers/openai"
	llmopenrouter "github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm/providers/openrouter"
)

// BuildRegistryFromConfig registers a factory for every supported provider
// kind. Clients are built lazily on first use per endpoint.
func BuildRegistryFromConfig(cfg *config.Config) *llm.Registry {
	reg := llm.NewRegistry()

	opts := llmopenrouter.Options{
		Referer: cfg.OpenRouter.Referer,
		Title:   cfg.OpenRouter.Title,
	}
	reg.RegisterFactory(llm.KindOpenRouter, func(p llm.ProviderConfig) (llm.Provider, error) {
		return llmopenrouter.NewProvider(string(llm.KindOpenRouter), p.BaseURL, p.APIKey, p.Timeout, opts), nil
	})
	reg.RegisterFactory(llm.KindOpenAICompatible, func(p llm.ProviderConfig) (llm.Provider, error) {
		return llmopenai.NewProvider(string(llm.KindOpenAICompatible), p.BaseURL, p.APIKey, p.Timeout, nil), nil
	})
	reg.RegisterFactory(llm.KindGemini, func(p llm.ProviderConfig) (llm.Provider, error) {
		return llmgemini.NewProvider(context.Background(), string(llm.KindGemini), p.BaseURL, p.APIKey, p.Timeout, nil)
	})

	return reg
}
