package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// DefaultBaseURL is the OpenRouter chat completions endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// Options carries the attribution headers OpenRouter asks clients to send.
type Options struct {
	Referer string
	Title   string
}

// Provider implements the OpenRouter chat completions API over plain HTTP.
type Provider struct {
	name     string
	client   *http.Client
	endpoint string
	apiKey   string
	opts     Options
}

// NewProvider constructs a Provider. baseURL may be the full completions
// endpoint or the API root; "/chat/completions" is appended when missing.
func NewProvider(name, baseURL, apiKey string, timeout time.Duration, opts Options) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if opts.Referer == "" {
		opts.Referer = "http://localhost"
	}

	endpoint := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}

	return &Provider{
		name:     name,
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
		opts:     opts,
	}
}

// Name returns provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Chat executes a non-streaming chat completion.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		return llm.ChatResponse{}, p.fail(model, llm.ErrTransport, 0, fmt.Errorf("model is required"))
	}

	body := chatRequest{
		Model:       model,
		Messages:    toMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return llm.ChatResponse{}, p.fail(model, llm.ErrTransport, 0, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return llm.ChatResponse{}, p.fail(model, llm.ErrTransport, 0, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("HTTP-Referer", p.opts.Referer)
	if p.opts.Title != "" {
		httpReq.Header.Set("X-Title", p.opts.Title)
	}

	res, err := p.client.Do(httpReq)
	if err != nil {
		return llm.ChatResponse{}, p.fail(model, llm.ErrTransport, 0, fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusPaymentRequired {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return llm.ChatResponse{}, p.fail(model, llm.ErrQuotaExceeded, res.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(b))))
	}
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return llm.ChatResponse{}, p.fail(model, llm.ErrTransport, res.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(b))))
	}

	var resp chatResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return llm.ChatResponse{}, p.fail(model, llm.ErrTransport, res.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if resp.Error != nil {
		kind := llm.ErrTransport
		if resp.Error.Code == http.StatusPaymentRequired {
			kind = llm.ErrQuotaExceeded
		}
		return llm.ChatResponse{}, p.fail(model, kind, resp.Error.Code, fmt.Errorf("%s", resp.Error.Message))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return llm.ChatResponse{}, p.fail(model, llm.ErrEmptyResponse, res.StatusCode, nil)
	}

	choice := resp.Choices[0]
	return llm.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		ProviderName: p.name,
		Model:        model,
	}, nil
}

func (p *Provider) fail(model string, kind error, status int, err error) error {
	return llm.NewProviderError(p.name, model, kind, status, err)
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenRouter may answer 200 with an embedded error object.
type chatResponse struct {
	Choices []struct {
		Index        int     `json:"index"`
		FinishReason string  `json:"finish_reason"`
		Message      message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func toMessages(msgs []llm.ChatMessage) []message {
	out := make([]message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
