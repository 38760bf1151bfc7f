package evaluation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/dreamengine/internal/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	reply func(ctx context.Context, req llm.Request) (*llm.Response, error)
	calls atomic.Int32

	mu       sync.Mutex
	requests []llm.Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.reply(ctx, req)
}

func replying(name, text string, tokens int) *fakeProvider {
	return &fakeProvider{name: name, reply: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: text, TokensUsed: tokens}, nil
	}}
}

func failing(name string, err error) *fakeProvider {
	return &fakeProvider{name: name, reply: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		return nil, err
	}}
}

func flatCost(model string) float64 {
	switch model {
	case "gpt-4o":
		return 0.15
	case "claude-3-5-sonnet-20241022":
		return 0.12
	}
	return 0.05
}

func newTestService(t *testing.T, providers ...llm.Provider) (*Service, *Repository) {
	t.Helper()
	repo := newTestRepository(t)
	return NewService(repo, llm.NewRegistry(providers...), flatCost, 2*time.Second, zerolog.Nop()), repo
}

func dreamRequest() Request {
	return Request{
		DreamID:          "dream-1",
		UserID:           "user-1",
		Title:            "Cure insomnia",
		Description:      "A wearable that guarantees eight hours of sleep",
		Category:         "health",
		EnableMultiModel: true,
	}
}

func TestEvaluate_AllProvidersSucceed(t *testing.T) {
	openai := replying("openai", validReply, 900)
	anthropic := replying("anthropic", "Sure! "+validReply, 1100)
	svc, repo := newTestService(t, openai, anthropic)

	results, err := svc.Evaluate(context.Background(), dreamRequest())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "gpt-4o", results[0].Metadata.Model)
	assert.Equal(t, "claude-3-5-sonnet-20241022", results[1].Metadata.Model)
	assert.InDelta(t, 65, results[0].OverallScore, 1e-9)
	assert.InDelta(t, 35, results[0].ImpossibilityScore, 1e-9)
	assert.Equal(t, 900, results[0].Metadata.TokensUsed)
	assert.Equal(t, 0.15, results[0].Cost)
	assert.NotEmpty(t, results[0].ID)
	assert.Equal(t, 0.3, results[0].Metadata.Parameters["temperature"])

	require.Len(t, openai.requests, 1)
	req := openai.requests[0]
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 2000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Cure insomnia")

	records, err := repo.List(Filter{DreamID: "dream-1"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Equal(t, "user-1", rec.UserID)
		assert.Equal(t, results[0].Metadata.ContentHash, rec.PromptHash)
	}
}

func TestEvaluate_FailuresAreIsolatedAndPersisted(t *testing.T) {
	openai := failing("openai", llm.NewCallError("openai", "gpt-4o", 503, errors.New("unavailable")))
	anthropic := replying("anthropic", validReply, 1100)
	svc, repo := newTestService(t, openai, anthropic)

	results, err := svc.Evaluate(context.Background(), dreamRequest())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "anthropic", results[0].Metadata.Provider)

	failed, err := repo.List(Filter{DreamID: "dream-1", Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "gpt-4o", failed[0].Model)
	assert.Equal(t, 0.0, failed[0].ImpossibilityScore)
	assert.Equal(t, 0.0, failed[0].Confidence)
	assert.Equal(t, 0.0, failed[0].Cost)
	assert.Contains(t, failed[0].ErrorMessage, "503")
}

func TestEvaluate_ParseAndValidationFailuresKeepRawText(t *testing.T) {
	openai := replying("openai", "I'd rather not score dreams.", 50)
	anthropic := replying("anthropic", `{"comprehensionScore": 180, "qualityScore": 70, "innovationScore": 60, "feasibilityScore": 50, "confidence": 75, "reasoning": "x"}`, 60)
	svc, repo := newTestService(t, openai, anthropic)

	results, err := svc.Evaluate(context.Background(), dreamRequest())
	require.NoError(t, err)
	assert.Empty(t, results)

	failed, err := repo.List(Filter{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 2)
	byModel := map[string]Record{}
	for _, rec := range failed {
		byModel[rec.Model] = rec
	}
	assert.Equal(t, "I'd rather not score dreams.", byModel["gpt-4o"].RawResponse)
	assert.Contains(t, byModel["claude-3-5-sonnet-20241022"].ErrorMessage, "comprehensionScore")
}

func TestEvaluate_TimeoutIsProviderFailure(t *testing.T) {
	slow := &fakeProvider{name: "openai", reply: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	anthropic := replying("anthropic", validReply, 10)

	repo := newTestRepository(t)
	svc := NewService(repo, llm.NewRegistry(slow, anthropic), flatCost, 50*time.Millisecond, zerolog.Nop())

	results, err := svc.Evaluate(context.Background(), dreamRequest())
	require.NoError(t, err)
	require.Len(t, results, 1)

	failed, err := repo.List(Filter{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ErrorMessage, "deadline exceeded")
}

func TestEvaluate_CallsRunConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	gate := func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		inFlight.Add(-1)
		return &llm.Response{Text: validReply}, nil
	}
	svc, _ := newTestService(t, &fakeProvider{name: "openai", reply: gate}, &fakeProvider{name: "anthropic", reply: gate})

	results, err := svc.Evaluate(context.Background(), dreamRequest())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), peak.Load())
}

func TestSelectModels(t *testing.T) {
	svc, _ := newTestService(t, replying("openai", validReply, 1), replying("anthropic", validReply, 1))

	req := dreamRequest()
	req.Providers = []string{"anthropic"}
	assert.Equal(t, []ModelConfig{ModelClaudeSonnet}, svc.SelectModels(req))

	req.Providers = nil
	req.EnableMultiModel = false
	assert.Equal(t, []ModelConfig{ModelGPT4o}, svc.SelectModels(req))

	req.Models = []ModelConfig{ModelGPT4oMini, ModelClaudeHaiku}
	assert.Equal(t, []ModelConfig{ModelGPT4oMini}, svc.SelectModels(req))

	req.EnableMultiModel = true
	assert.Equal(t, []ModelConfig{ModelGPT4oMini, ModelClaudeHaiku}, svc.SelectModels(req))

	onlyOpenAI, _ := newTestService(t, replying("openai", validReply, 1))
	assert.Equal(t, []ModelConfig{ModelGPT4o}, onlyOpenAI.SelectModels(dreamRequest()))
}

func TestEvaluate_RequestErrors(t *testing.T) {
	svc, _ := newTestService(t, replying("openai", validReply, 1))

	_, err := svc.Evaluate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req := dreamRequest()
	req.Providers = []string{"mistral"}
	_, err = svc.Evaluate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoModels)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Evaluate(ctx, dreamRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecay_FromPersistedHistory(t *testing.T) {
	svc, repo := newTestService(t, replying("openai", validReply, 1))
	now := time.Now()

	_, err := svc.Decay("dream-1")
	assert.ErrorIs(t, err, ErrNoHistory)

	require.NoError(t, repo.Create(completed("dream-1", "u", 80, now.Add(-31*24*time.Hour))))
	require.NoError(t, repo.Create(completed("dream-1", "u", 60, now)))

	analysis, err := svc.Decay("dream-1")
	require.NoError(t, err)
	assert.Equal(t, "dream-1", analysis.DreamID)
	assert.InDelta(t, 25, analysis.DecayRate, 1e-9)
	assert.Equal(t, TrendImproving, analysis.TrendDirection)

	history, err := svc.History("dream-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "gpt-4o", history[0].Metadata.Model)
}
