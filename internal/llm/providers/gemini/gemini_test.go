package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

func newServer(t *testing.T, status int, body string, inspect func(*http.Request, map[string]any)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var payload map[string]any
			require.NoError(t, json.Unmarshal(raw, &payload))
			inspect(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), "gemini", srv.URL, "gkey", 0, srv.Client())
	require.NoError(t, err)
	return p
}

func TestChatGenerateContent(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"index.html\": \"<html></html>\"}"}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 5, "totalTokenCount": 8}
	}`, func(r *http.Request, payload map[string]any) {
		require.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)
		require.Equal(t, "gkey", r.Header.Get("x-goog-api-key"))

		contents := payload["contents"].([]any)
		require.Len(t, contents, 1)
		require.Equal(t, "user", contents[0].(map[string]any)["role"])
		require.Contains(t, payload, "systemInstruction")

		gen := payload["generationConfig"].(map[string]any)
		require.EqualValues(t, 600, gen["maxOutputTokens"])
	})

	resp, err := newProvider(t, srv).Chat(context.Background(), llm.ChatRequest{
		Model:     DefaultModel,
		MaxTokens: 600,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: "return JSON"},
			{Role: llm.RoleUser, Content: "build a todo app"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, `{"index.html": "<html></html>"}`, resp.Content)
	require.Equal(t, "STOP", resp.FinishReason)
	require.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestChatResourceExhaustedIsQuota(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error": {"code": 429, "message": "Quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`, nil)

	_, err := newProvider(t, srv).Chat(context.Background(), llm.ChatRequest{Model: DefaultModel})
	require.ErrorIs(t, err, llm.ErrQuotaExceeded)
}

func TestChatServerErrorIsTransport(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError, `{"error": {"code": 500, "message": "internal", "status": "INTERNAL"}}`, nil)

	_, err := newProvider(t, srv).Chat(context.Background(), llm.ChatRequest{Model: DefaultModel})
	require.ErrorIs(t, err, llm.ErrTransport)
}

func TestChatNoCandidatesIsEmpty(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"candidates": []}`, nil)

	_, err := newProvider(t, srv).Chat(context.Background(), llm.ChatRequest{Model: DefaultModel})
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(context.Background(), "gemini", "", " ", 0, nil)
	require.Error(t, err)
}
