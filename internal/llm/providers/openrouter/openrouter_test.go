package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

func TestChatSendsRequestAndParsesResponse(t *testing.T) {
	t.Parallel()

	p := NewProvider("openrouter", "http://mock/api/v1", "key", 5*time.Second, Options{Title: "ProtoEase"})
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v1/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
			require.Equal(t, "http://localhost", r.Header.Get("HTTP-Referer"))
			require.Equal(t, "ProtoEase", r.Header.Get("X-Title"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			var reqBody map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &reqBody))
			require.Equal(t, "openrouter/auto:free", reqBody["model"])
			require.EqualValues(t, 1200, reqBody["max_tokens"])

			return jsonResponse(http.StatusOK, `{
				"choices": [{
					"index": 0,
					"finish_reason": "stop",
					"message": {"role": "assistant", "content": "hello"}
				}],
				"usage": {"prompt_tokens": 1, "completion_tokens": 2, "total_tokens": 3}
			}`), nil
		}),
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:     "openrouter/auto:free",
		MaxTokens: 1200,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestChatFullEndpointIsKept(t *testing.T) {
	t.Parallel()

	p := NewProvider("openrouter", "", "key", 0, Options{})
	require.Equal(t, DefaultBaseURL, p.endpoint)
}

func TestChatMapsPaymentRequiredToQuota(t *testing.T) {
	t.Parallel()

	p := NewProvider("openrouter", "http://mock", "key", 0, Options{})
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusPaymentRequired, `{"error":{"code":402,"message":"more credits required"}}`), nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	require.ErrorIs(t, err, llm.ErrQuotaExceeded)

	var perr *llm.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, http.StatusPaymentRequired, perr.Status)
	require.Contains(t, err.Error(), "more credits required")
}

func TestChatEmbeddedErrorObject(t *testing.T) {
	t.Parallel()

	p := NewProvider("openrouter", "http://mock", "key", 0, Options{})
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"error":{"code":402,"message":"insufficient credits"}}`), nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	require.ErrorIs(t, err, llm.ErrQuotaExceeded)
}

func TestChatServerErrorIsTransport(t *testing.T) {
	t.Parallel()

	p := NewProvider("openrouter", "http://mock", "key", 0, Options{})
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadGateway, `upstream down`), nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	require.ErrorIs(t, err, llm.ErrTransport)
	require.NotErrorIs(t, err, llm.ErrQuotaExceeded)
}

func TestChatNetworkFailureIsTransport(t *testing.T) {
	t.Parallel()

	p := NewProvider("openrouter", "http://mock", "key", 0, Options{})
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	require.ErrorIs(t, err, llm.ErrTransport)
}

func TestChatEmptyChoices(t *testing.T) {
	t.Parallel()

	p := NewProvider("openrouter", "http://mock", "key", 0, Options{})
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"choices": []}`), nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "m"})
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
