package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/dreamengine/internal/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := NewClient("key", "", time.Second, 0, zerolog.Nop())
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, ProviderName, client.Name())
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, 0.3, req.Temperature)
		assert.Equal(t, 2000, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"a\":1}"}}],"usage":{"prompt_tokens":10,"completion_tokens":32,"total_tokens":42}}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second, 0, zerolog.Nop())

	resp, err := client.Generate(context.Background(), llm.Request{
		Model:       "gpt-4o",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "dream"}},
		System:      "rubric",
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[],"usage":{"total_tokens":3}}`))
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 5*time.Second, 0, zerolog.Nop())
	resp, err := client.Generate(context.Background(), llm.Request{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
	assert.Equal(t, 3, resp.TokensUsed)
}

func TestGenerate_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 5*time.Second, 0, zerolog.Nop())
	_, err := client.Generate(context.Background(), llm.Request{Model: "gpt-4o"})

	var callErr *llm.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, http.StatusTooManyRequests, callErr.StatusCode)
	assert.Equal(t, ProviderName, callErr.Provider)
	assert.Contains(t, callErr.Error(), "rate limited")
}

func TestGenerate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient("k", server.URL, 5*time.Second, 0, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, llm.Request{Model: "gpt-4o"})

	var callErr *llm.CallError
	require.ErrorAs(t, err, &callErr)
	assert.True(t, callErr.Timeout())
}
