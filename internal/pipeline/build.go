package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/artifacts"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/config"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm/configbuilder"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/observability"
)

// Build assembles a Sequencer from cfg: provider registry, fallback policy and
// artifact writer. metrics may be nil.
func Build(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*Sequencer, *artifacts.Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := artifacts.NewWriter(cfg.Pipeline.OutputDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact writer: %w", err)
	}
	roles, err := RolesFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve roles: %w", err)
	}

	policy := &llm.Policy{
		Invoker:   llm.NewInvoker(configbuilder.BuildRegistryFromConfig(cfg)),
		Logger:    logger,
		Metrics:   metrics,
		Failures:  store,
		MinTokens: cfg.Pipeline.MinTokens,
	}

	opts := OptionsFromConfig(cfg.Pipeline)
	opts.Logger = logger
	opts.Metrics = metrics
	return New(policy, roles, store, opts), store, nil
}
