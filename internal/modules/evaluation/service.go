package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/dreamengine/internal/llm"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// decayWindow is how many recent completed evaluations feed a decay analysis
const decayWindow = 10

// RecordStore is the persistence the orchestrator needs
type RecordStore interface {
	Create(rec *Record) error
	History(dreamID string, limit int) ([]Record, error)
}

// CostFunc prices one request to a model
type CostFunc func(model string) float64

// Service orchestrates provider calls for a dream, persisting every attempt
type Service struct {
	store     RecordStore
	providers *llm.Registry
	catalogue []ModelConfig
	costOf    CostFunc
	timeout   time.Duration
	log       zerolog.Logger
}

// NewService creates a new evaluation service.
// timeout bounds each individual provider call.
func NewService(store RecordStore, providers *llm.Registry, costOf CostFunc, timeout time.Duration, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		providers: providers,
		catalogue: DefaultConsensusModels(),
		costOf:    costOf,
		timeout:   timeout,
		log:       log.With().Str("service", "evaluation").Logger(),
	}
}

// SelectModels resolves the (provider, model) pairs a request will run.
// Explicit Models win over Providers. With multi-model disabled only the
// first match runs. Pairs whose provider is not configured are dropped.
func (s *Service) SelectModels(req Request) []ModelConfig {
	var candidates []ModelConfig
	if len(req.Models) > 0 {
		candidates = req.Models
	} else {
		providers := req.Providers
		if len(providers) == 0 {
			providers = DefaultProviders
		}
		wanted := make(map[string]bool, len(providers))
		for _, p := range providers {
			wanted[p] = true
		}
		for _, mc := range s.catalogue {
			if wanted[mc.Provider] {
				candidates = append(candidates, mc)
			}
		}
	}

	selected := make([]ModelConfig, 0, len(candidates))
	for _, mc := range candidates {
		if !s.providers.Has(mc.Provider) {
			s.log.Warn().Str("provider", mc.Provider).Str("model", mc.Model).Msg("Provider not configured, skipping model")
			continue
		}
		selected = append(selected, mc)
		if !req.EnableMultiModel {
			break
		}
	}

	return selected
}

// Evaluate scores a dream with every selected model. Calls run concurrently
// and fail independently: each failure is persisted as a failed record and
// left out of the returned slice. An empty slice with a nil error means every
// provider failed. Results keep model selection order.
func (s *Service) Evaluate(ctx context.Context, req Request) ([]Result, error) {
	if req.DreamID == "" || (req.Title == "" && req.Description == "") {
		return nil, fmt.Errorf("%w: dream id and title or description are required", ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	models := s.SelectModels(req)
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	system := SystemPrompt()
	user := BuildUserPrompt(req)
	hash := PromptHash(system, user)

	outcomes := make([]*Result, len(models))
	var g errgroup.Group
	for i, mc := range models {
		i, mc := i, mc
		g.Go(func() error {
			outcomes[i] = s.evaluateOne(ctx, req, mc, system, user, hash)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, 0, len(models))
	for _, r := range outcomes {
		if r != nil {
			results = append(results, *r)
		}
	}

	s.log.Info().
		Str("dream_id", req.DreamID).
		Int("requested", len(models)).
		Int("succeeded", len(results)).
		Msg("Dream evaluation finished")

	return results, nil
}

// evaluateOne runs a single provider call. Every error is contained here.
func (s *Service) evaluateOne(ctx context.Context, req Request, mc ModelConfig, system, user, hash string) *Result {
	params := map[string]interface{}{
		"temperature":       mc.Temperature,
		"maxTokens":         mc.MaxTokens,
		"evaluationVersion": evaluationVersion,
	}

	start := time.Now()
	resp, err := s.call(ctx, mc, system, user)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		s.recordFailure(req, mc, params, hash, duration, "", err)
		return nil
	}

	parsed, err := ParseResponse(resp.Text)
	if err != nil {
		s.recordFailure(req, mc, params, hash, duration, resp.Text, err)
		return nil
	}

	result := NewResult(req.DreamID, parsed.Scores, parsed.Confidence, parsed.Reasoning, Metadata{
		Provider:    mc.Provider,
		Model:       mc.Model,
		TokensUsed:  resp.TokensUsed,
		DurationMs:  duration,
		Parameters:  params,
		ContentHash: hash,
	})
	result.Cost = s.costOf(mc.Model)

	rec := &Record{
		DreamID:            req.DreamID,
		UserID:             req.UserID,
		Provider:           mc.Provider,
		Model:              mc.Model,
		Status:             StatusCompleted,
		Scores:             result.Scores,
		OverallScore:       result.OverallScore,
		ImpossibilityScore: result.ImpossibilityScore,
		Confidence:         result.Confidence,
		Reasoning:          result.Reasoning,
		TokensUsed:         result.Metadata.TokensUsed,
		DurationMs:         duration,
		Cost:               result.Cost,
		Parameters:         params,
		PromptHash:         hash,
		RawResponse:        resp.Text,
	}
	if err := s.store.Create(rec); err != nil {
		s.log.Error().Err(err).
			Str("dream_id", req.DreamID).
			Str("model", mc.Model).
			Msg("Failed to persist evaluation, discarding result")
		return nil
	}

	result.ID = rec.ID
	result.CreatedAt = rec.CreatedAt
	return &result
}

func (s *Service) call(ctx context.Context, mc ModelConfig, system, user string) (*llm.Response, error) {
	provider, err := s.providers.Get(mc.Provider)
	if err != nil {
		return nil, llm.NewCallError(mc.Provider, mc.Model, 0, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := provider.Generate(callCtx, llm.Request{
		Model: mc.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: mc.Temperature,
		MaxTokens:   mc.MaxTokens,
	})
	if err != nil {
		var callErr *llm.CallError
		if !errors.As(err, &callErr) {
			err = llm.NewCallError(mc.Provider, mc.Model, 0, err)
		}
		return nil, err
	}
	return resp, nil
}

// recordFailure persists a failed attempt with zero scores and zero cost
func (s *Service) recordFailure(req Request, mc ModelConfig, params map[string]interface{}, hash string, duration int64, raw string, cause error) {
	s.log.Error().Err(cause).
		Str("dream_id", req.DreamID).
		Str("provider", mc.Provider).
		Str("model", mc.Model).
		Msg("Evaluation failed")

	var parseErr *ParseError
	if errors.As(cause, &parseErr) {
		raw = parseErr.Raw
	}

	rec := &Record{
		DreamID:      req.DreamID,
		UserID:       req.UserID,
		Provider:     mc.Provider,
		Model:        mc.Model,
		Status:       StatusFailed,
		DurationMs:   duration,
		Parameters:   params,
		PromptHash:   hash,
		ErrorMessage: cause.Error(),
		RawResponse:  raw,
	}
	if err := s.store.Create(rec); err != nil {
		s.log.Error().Err(err).Str("dream_id", req.DreamID).Msg("Failed to persist failed evaluation")
	}
}

// History returns up to limit completed results for a dream, newest first
func (s *Service) History(dreamID string, limit int) ([]Result, error) {
	records, err := s.store.History(dreamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", dreamID, err)
	}
	results := make([]Result, len(records))
	for i, rec := range records {
		results[i] = rec.Result()
	}
	return results, nil
}

// Decay analyses the most recent completed evaluations of a dream
func (s *Service) Decay(dreamID string) (DecayAnalysis, error) {
	records, err := s.store.History(dreamID, decayWindow)
	if err != nil {
		return DecayAnalysis{}, fmt.Errorf("failed to load history for %s: %w", dreamID, err)
	}

	samples := make([]Sample, len(records))
	for i, rec := range records {
		samples[i] = Sample{ImpossibilityScore: rec.ImpossibilityScore, Confidence: rec.Confidence, CreatedAt: rec.CreatedAt}
	}

	analysis, err := AnalyzeDecay(samples)
	if err != nil {
		return DecayAnalysis{}, err
	}
	analysis.DreamID = dreamID
	return analysis, nil
}
