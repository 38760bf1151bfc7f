package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	return &Response{Text: s.name}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubProvider{"openai"}, stubProvider{"anthropic"})

	assert.Equal(t, []string{"anthropic", "openai"}, r.Names())
	assert.True(t, r.Has("openai"))
	assert.False(t, r.Has("mistral"))

	p, err := r.Get("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = r.Get("mistral")
	assert.Error(t, err)
}

func TestSplitSystem(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "rubric"},
		{Role: RoleUser, Content: "dream"},
		{Role: RoleSystem, Content: "ignored"},
		{Role: RoleAssistant, Content: "ok"},
	}

	system, rest := SplitSystem(messages, "fallback")
	assert.Equal(t, "rubric", system)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "dream"}, {Role: RoleAssistant, Content: "ok"}}, rest)

	system, rest = SplitSystem([]Message{{Role: RoleUser, Content: "dream"}}, "fallback")
	assert.Equal(t, "fallback", system)
	assert.Len(t, rest, 1)
}

func TestCallError(t *testing.T) {
	err := NewCallError("openai", "gpt-4o", 503, errors.New("unavailable"))
	assert.Equal(t, "openai call for gpt-4o failed with status 503: unavailable", err.Error())
	assert.False(t, err.Timeout())

	timeout := NewCallError("anthropic", "claude", 0, fmt.Errorf("request: %w", context.DeadlineExceeded))
	assert.True(t, timeout.Timeout())
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)

	var target *CallError
	wrapped := fmt.Errorf("evaluate: %w", timeout)
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, "anthropic", target.Provider)
}
