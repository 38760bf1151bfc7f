// Package openai provides a chat-completions adapter for the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/dreamengine/internal/llm"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// ProviderName is the registry key for this adapter
	ProviderName = "openai"

	defaultBaseURL = "https://api.openai.com/v1"
	maxErrorBody   = 4096
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Client is the OpenAI chat-completions adapter
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a new OpenAI adapter.
// requestsPerMinute <= 0 disables client-side pacing.
func NewClient(apiKey, baseURL string, timeout time.Duration, requestsPerMinute int, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: newLimiter(requestsPerMinute),
		log:     log.With().Str("component", "openai").Logger(),
	}
}

func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), requestsPerMinute)
}

// Name returns the provider name
func (c *Client) Name() string {
	return ProviderName
}

// Generate sends a chat completion and returns the first choice's content
// together with the reported total token count.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	messages := req.Messages
	if req.System != "" && !hasSystem(messages) {
		messages = append([]llm.Message{{Role: llm.RoleSystem, Content: req.System}}, messages...)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, llm.NewCallError(ProviderName, req.Model, 0, fmt.Errorf("rate limiter: %w", err))
	}

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug().Str("model", req.Model).Int("messages", len(messages)).Msg("Making OpenAI request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%v: %w", err, ctx.Err())
		}
		return nil, llm.NewCallError(ProviderName, req.Model, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, llm.NewCallError(ProviderName, req.Model, resp.StatusCode, fmt.Errorf("body: %s", string(bodyBytes)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, llm.NewCallError(ProviderName, req.Model, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}

	text := ""
	if len(parsed.Choices) > 0 {
		text = parsed.Choices[0].Message.Content
	}

	return &llm.Response{Text: text, TokensUsed: parsed.Usage.TotalTokens}, nil
}

func hasSystem(messages []llm.Message) bool {
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			return true
		}
	}
	return false
}
