package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// DefaultModel is used for the fallback role when nothing else is configured.
const DefaultModel = "gemini-2.5-flash"

// Provider calls the Gemini generateContent API through the genai SDK.
type Provider struct {
	name   string
	client *genai.Client
}

// NewProvider builds a genai client for the Gemini API backend. baseURL is
// optional and mostly useful for tests.
func NewProvider(ctx context.Context, name, baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) (*Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Provider{name: name, client: client}, nil
}

// Name returns provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Chat sends the conversation as a single generateContent call. System
// messages become the system instruction.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if req.Model == "" {
		return llm.ChatResponse{}, llm.NewProviderError(p.name, req.Model, llm.ErrTransport, 0, fmt.Errorf("model is required"))
	}

	system, contents := toContents(req.Messages)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if system != nil {
		cfg.SystemInstruction = system
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return llm.ChatResponse{}, p.classify(req.Model, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return llm.ChatResponse{}, llm.NewProviderError(p.name, req.Model, llm.ErrEmptyResponse, 0, nil)
	}

	out := llm.ChatResponse{
		Content:      text,
		ProviderName: p.name,
		Model:        req.Model,
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// classify treats RESOURCE_EXHAUSTED as quota; everything else is transport.
func (p *Provider) classify(model string, err error) error {
	code, status, msg, ok := apiError(err)
	if !ok {
		return llm.NewProviderError(p.name, model, llm.ErrTransport, 0, err)
	}
	kind := llm.ErrTransport
	if status == "RESOURCE_EXHAUSTED" || code == http.StatusTooManyRequests || code == http.StatusPaymentRequired {
		kind = llm.ErrQuotaExceeded
	}
	return llm.NewProviderError(p.name, model, kind, code, errors.New(msg))
}

func apiError(err error) (int, string, string, bool) {
	var val genai.APIError
	if errors.As(err, &val) {
		return val.Code, val.Status, val.Message, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Status, ptr.Message, true
	}
	return 0, "", "", false
}

func toContents(msgs []llm.ChatMessage) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(systemParts) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser), contents
}
