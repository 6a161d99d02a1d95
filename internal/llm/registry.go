package llm

import (
	"fmt"
	"sync"
	"time"
)

// Factory builds a provider for a resolved config.
type Factory func(cfg ProviderConfig) (Provider, error)

// Registry maps provider kinds to factories and caches built providers per endpoint.
type Registry struct {
	mu        sync.Mutex
	factories map[Kind]Factory
	providers map[endpointKey]Provider
}

type endpointKey struct {
	kind    Kind
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
		providers: make(map[endpointKey]Provider),
	}
}

// RegisterFactory adds a provider factory for a kind, replacing any previous one.
func (r *Registry) RegisterFactory(kind Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[kind] = f
	for k := range r.providers {
		if k.kind == kind {
			delete(r.providers, k)
		}
	}
}

// RegisterProvider pins a provider instance for every config of the given kind.
func (r *Registry) RegisterProvider(kind Kind, p Provider) {
	r.RegisterFactory(kind, func(ProviderConfig) (Provider, error) { return p, nil })
}

// Has reports whether a factory exists for kind.
func (r *Registry) Has(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.factories[kind]
	return ok
}

// Resolve returns the provider serving cfg, building it on first use.
func (r *Registry) Resolve(cfg ProviderConfig) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := endpointKey{kind: cfg.Kind, baseURL: cfg.BaseURL, apiKey: cfg.APIKey, timeout: cfg.Timeout}
	if p, ok := r.providers[key]; ok {
		return p, nil
	}

	f, ok := r.factories[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("provider kind %q not registered", cfg.Kind)
	}
	p, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s provider: %w", cfg.Kind, err)
	}
	r.providers[key] = p
	return p, nil
}
