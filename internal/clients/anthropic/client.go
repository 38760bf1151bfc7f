// Package anthropic provides a messages-API adapter for Anthropic models.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/dreamengine/internal/llm"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// ProviderName is the registry key for this adapter
	ProviderName = "anthropic"

	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
	maxErrorBody   = 4096
)

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system,omitempty"`
	Messages    []llm.Message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Client is the Anthropic messages adapter
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a new Anthropic adapter.
// requestsPerMinute <= 0 disables client-side pacing.
func NewClient(apiKey, baseURL string, timeout time.Duration, requestsPerMinute int, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), requestsPerMinute)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		log:        log.With().Str("component", "anthropic").Logger(),
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return ProviderName
}

// Generate sends a messages request. System turns are lifted into the
// top-level system field; input and output token counts are summed.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	system, messages := llm.SplitSystem(req.Messages, req.System)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, llm.NewCallError(ProviderName, req.Model, 0, fmt.Errorf("rate limiter: %w", err))
	}

	body, err := json.Marshal(messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      system,
		Messages:    messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	c.log.Debug().Str("model", req.Model).Int("messages", len(messages)).Msg("Making Anthropic request")

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

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, llm.NewCallError(ProviderName, req.Model, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}

	text := ""
	if len(parsed.Content) > 0 {
		text = parsed.Content[0].Text
	}

	return &llm.Response{
		Text:       text,
		TokensUsed: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}
