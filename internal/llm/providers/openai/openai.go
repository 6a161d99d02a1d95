package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// DefaultBaseURL is used when no base URL is configured for an
// openai-compatible endpoint.
const DefaultBaseURL = "https://api.deepseek.com"

// Provider talks to any endpoint implementing the OpenAI chat completions API.
type Provider struct {
	name   string
	client openai.Client
}

// NewProvider constructs a Provider. A trailing "/chat/completions" on
// baseURL is stripped since the SDK appends its own path.
func NewProvider(name, baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) *Provider {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(normalizeBaseURL(baseURL)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}

	return &Provider{
		name:   name,
		client: openai.NewClient(opts...),
	}
}

func normalizeBaseURL(baseURL string) string {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/chat/completions")
	return baseURL + "/"
}

// Name returns provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Chat executes a non-streaming chat completion.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if req.Model == "" {
		return llm.ChatResponse{}, llm.NewProviderError(p.name, req.Model, llm.ErrTransport, 0, fmt.Errorf("model is required"))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    toMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.ChatResponse{}, p.classify(req.Model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return llm.ChatResponse{}, llm.NewProviderError(p.name, req.Model, llm.ErrEmptyResponse, 0, nil)
	}

	choice := resp.Choices[0]
	return llm.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		ProviderName: p.name,
		Model:        req.Model,
	}, nil
}

// classify maps SDK errors onto the llm taxonomy. Billing exhaustion shows up
// as 402 or as an insufficient_quota code (OpenAI sends it with 429).
func (p *Provider) classify(model string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind := llm.ErrTransport
		if apiErr.StatusCode == http.StatusPaymentRequired || apiErr.Code == "insufficient_quota" || apiErr.Type == "insufficient_quota" {
			kind = llm.ErrQuotaExceeded
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return llm.NewProviderError(p.name, model, kind, apiErr.StatusCode, errors.New(msg))
	}
	return llm.NewProviderError(p.name, model, llm.ErrTransport, 0, err)
}

func toMessages(msgs []llm.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
