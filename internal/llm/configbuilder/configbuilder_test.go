package configbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/config"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

func TestBuildRegistryRegistersAllKinds(t *testing.T) {
	reg := BuildRegistryFromConfig(&config.Config{
		OpenRouter: config.OpenRouterConfig{Referer: "http://localhost", Title: "ProtoEase"},
	})

	for _, kind := range []llm.Kind{llm.KindOpenRouter, llm.KindOpenAICompatible, llm.KindGemini} {
		require.True(t, reg.Has(kind), kind)

		p, err := reg.Resolve(llm.ProviderConfig{Kind: kind, Model: "m", APIKey: "k"})
		require.NoError(t, err, kind)
		require.Equal(t, string(kind), p.Name())
	}
}

func TestGeminiFactoryRejectsMissingKey(t *testing.T) {
	reg := BuildRegistryFromConfig(&config.Config{})

	_, err := reg.Resolve(llm.ProviderConfig{Kind: llm.KindGemini, Model: "gemini-2.5-flash"})
	require.Error(t, err)
}
