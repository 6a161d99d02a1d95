package mock

import (
	"context"
	"sync"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// Reply is one scripted provider outcome.
type Reply struct {
	Content string
	Err     error
}

// Provider is a test double implementing llm.Provider. ChatFn takes precedence;
// otherwise Replies are consumed in order and the last one repeats.
type Provider struct {
	NameValue string
	ChatFn    func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
	Replies   []Reply

	mu    sync.Mutex
	calls []llm.ChatRequest
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.mu.Lock()
	idx := len(p.calls)
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	if len(p.Replies) == 0 {
		return llm.ChatResponse{Content: "mock", ProviderName: p.Name(), Model: req.Model}, nil
	}
	if idx >= len(p.Replies) {
		idx = len(p.Replies) - 1
	}
	r := p.Replies[idx]
	if r.Err != nil {
		return llm.ChatResponse{}, r.Err
	}
	return llm.ChatResponse{Content: r.Content, ProviderName: p.Name(), Model: req.Model}, nil
}

// Calls returns a copy of every request received so far.
func (p *Provider) Calls() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]llm.ChatRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of requests received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.calls)
}

// Invoker is a scripted llm.Invoker keyed by model id, useful when a test
// needs to drive the fallback policy without a registry.
type Invoker struct {
	// Results maps model id to the ordered outcomes for that model.
	Results map[string][]Reply

	mu    sync.Mutex
	seen  map[string]int
	calls []Invocation
}

// Invocation records one Invoke call.
type Invocation struct {
	Config   llm.ProviderConfig
	Messages []llm.ChatMessage
}

func (m *Invoker) Invoke(_ context.Context, cfg llm.ProviderConfig, messages []llm.ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seen == nil {
		m.seen = make(map[string]int)
	}
	m.calls = append(m.calls, Invocation{Config: cfg, Messages: messages})

	replies := m.Results[cfg.Model]
	if len(replies) == 0 {
		return "", llm.NewProviderError(string(cfg.Kind), cfg.Model, llm.ErrTransport, 0, nil)
	}
	idx := m.seen[cfg.Model]
	m.seen[cfg.Model]++
	if idx >= len(replies) {
		idx = len(replies) - 1
	}
	r := replies[idx]
	if r.Err != nil {
		return "", r.Err
	}
	return r.Content, nil
}

// Invocations returns a copy of every call received so far.
func (m *Invoker) Invocations() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Invocation, len(m.calls))
	copy(out, m.calls)
	return out
}
