package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	"github.com/rs/zerolog"
)

const (
	skipReasonBudget     = "budget"
	skipReasonModelLimit = "model_limit"
)

// Summary reports one retest pass. TotalCost is today's spend including
// what was spent before the pass started; RunCost is this pass alone.
type Summary struct {
	Processed       int           `json:"processed"`
	Skipped         int           `json:"skipped"`
	Failed          int           `json:"failed"`
	TotalCost       float64       `json:"total_cost"`
	RunCost         float64       `json:"run_cost"`
	Candidates      int           `json:"candidates"`
	BudgetExhausted bool          `json:"budget_exhausted"`
	Rejected        bool          `json:"rejected"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

// RetestStatus is the scheduler state exposed to triggers
type RetestStatus struct {
	Running bool     `json:"running"`
	LastRun *Summary `json:"last_run"`
}

// RetestScheduler re-evaluates stale dreams under a daily cost ceiling.
// At most one pass runs at a time per instance.
type RetestScheduler struct {
	dreams    DreamSource
	history   EvaluationHistory
	evaluator Evaluator
	usage     UsageReader
	bus       *events.Bus
	log       zerolog.Logger

	running atomic.Bool

	mu      sync.RWMutex
	cfg     config.JobConfig
	lastRun *Summary

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetestScheduler creates a new retest scheduler
func NewRetestScheduler(
	dreamSource DreamSource,
	history EvaluationHistory,
	evaluator Evaluator,
	usage UsageReader,
	bus *events.Bus,
	cfg config.JobConfig,
	log zerolog.Logger,
) *RetestScheduler {
	return &RetestScheduler{
		dreams:    dreamSource,
		history:   history,
		evaluator: evaluator,
		usage:     usage,
		bus:       bus,
		cfg:       cfg,
		log:       log.With().Str("service", "retest_scheduler").Logger(),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Name returns the job name
func (s *RetestScheduler) Name() string {
	return "dream_retest"
}

// Run executes one pass for the cron scheduler
func (s *RetestScheduler) Run() error {
	_, err := s.RunOnce(context.Background())
	return err
}

// SetLogger sets the logger for the job
func (s *RetestScheduler) SetLogger(log zerolog.Logger) {
	s.log = log.With().Str("service", "retest_scheduler").Logger()
}

// Config returns the job configuration in effect
func (s *RetestScheduler) Config() config.JobConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig replaces the job configuration used by subsequent passes
func (s *RetestScheduler) UpdateConfig(cfg config.JobConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Status reports whether a pass is running and the last completed summary
func (s *RetestScheduler) Status() RetestStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := RetestStatus{Running: s.running.Load()}
	if s.lastRun != nil {
		last := *s.lastRun
		status.LastRun = &last
	}
	return status
}

// RunOnce executes a single retest pass. A pass requested while another is
// running returns immediately with Rejected set. The error is only non-nil
// when the pass could not start; per-candidate failures are counted instead.
func (s *RetestScheduler) RunOnce(ctx context.Context) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("Retest pass already running, rejecting trigger")
		s.bus.Emit("scheduler", &events.RetestRejectedData{Reason: "already running"})
		return Summary{Rejected: true}, nil
	}
	defer s.running.Store(false)

	cfg := s.Config()
	started := s.now()
	summary := Summary{StartedAt: started}

	usage, err := s.usage.DailyUsage()
	if err != nil {
		return summary, fmt.Errorf("failed to read daily usage: %w", err)
	}
	summary.TotalCost = usage.Cost

	if usage.Cost >= cfg.MaxCostPerDay {
		summary.BudgetExhausted = true
		s.log.Warn().
			Float64("spent", usage.Cost).
			Float64("budget", cfg.MaxCostPerDay).
			Msg("Daily cost limit reached, skipping retest pass")
		s.bus.Emit("scheduler", &events.BudgetExhaustedData{SpentToday: usage.Cost, DailyBudget: cfg.MaxCostPerDay})
		return s.finish(summary, started), nil
	}

	modelRequests, err := s.usage.ModelRequestsToday()
	if err != nil {
		return summary, fmt.Errorf("failed to read model request counts: %w", err)
	}
	if modelRequests == nil {
		modelRequests = make(map[string]int)
	}

	candidates, err := SelectCandidates(s.dreams, s.history, cfg, started)
	if err != nil {
		return summary, err
	}
	summary.Candidates = len(candidates)

	s.log.Info().
		Int("candidates", len(candidates)).
		Float64("spent", usage.Cost).
		Float64("budget", cfg.MaxCostPerDay).
		Msg("Starting retest pass")
	s.bus.Emit("scheduler", &events.RetestStartedData{
		Candidates:  len(candidates),
		SpentToday:  usage.Cost,
		DailyBudget: cfg.MaxCostPerDay,
	})

	for i, c := range candidates {
		if ctx.Err() != nil {
			s.log.Warn().Err(ctx.Err()).Msg("Retest pass cancelled")
			break
		}

		if summary.TotalCost >= cfg.MaxCostPerDay {
			summary.BudgetExhausted = true
			s.log.Info().Float64("total_cost", summary.TotalCost).Msg("Daily cost limit reached, stopping retest pass")
			s.bus.Emit("scheduler", &events.BudgetExhaustedData{SpentToday: summary.TotalCost, DailyBudget: cfg.MaxCostPerDay})
			break
		}

		models := TierModels(c.Priority)
		estimate := EstimateCost(models, cfg)

		if summary.TotalCost+estimate > cfg.MaxCostPerDay {
			summary.Skipped++
			s.skip(c, skipReasonBudget, estimate, "")
			continue
		}
		if model, limited := modelLimitReached(models, modelRequests, cfg); limited {
			summary.Skipped++
			s.skip(c, skipReasonModelLimit, estimate, model)
			continue
		}

		results, err := s.evaluate(ctx, c, models)
		for _, m := range models {
			modelRequests[m.Model]++
		}

		event := &events.EvaluationData{DreamID: c.Dream.ID, Source: "retest", Succeeded: len(results)}
		for _, m := range models {
			event.Models = append(event.Models, m.Key())
		}

		switch {
		case err != nil:
			summary.Failed++
			event.Error = err.Error()
			s.log.Error().Err(err).Str("dream_id", c.Dream.ID).Msg("Failed to evaluate dream")
		case len(results) == 0:
			summary.Failed++
			event.Error = "all evaluations failed"
			s.log.Error().Str("dream_id", c.Dream.ID).Msg("All evaluations failed for dream")
		default:
			var cost float64
			for _, r := range results {
				cost += r.Cost
			}
			summary.Processed++
			summary.RunCost += cost
			summary.TotalCost += cost
			event.Cost = cost
			score := results[0].ImpossibilityScore
			event.ImpossibilityScore = &score

			s.log.Info().
				Str("dream_id", c.Dream.ID).
				Str("priority", string(c.Priority)).
				Int("results", len(results)).
				Float64("cost", cost).
				Msg("Evaluated dream")
		}
		s.bus.Emit("scheduler", event)

		if i < len(candidates)-1 && cfg.InterCallDelay > 0 {
			if err := s.sleep(ctx, cfg.InterCallDelay); err != nil {
				s.log.Warn().Err(err).Msg("Retest pass cancelled during delay")
				break
			}
		}
	}

	return s.finish(summary, started), nil
}

// evaluate runs one candidate, converting a panic into an error so a bad
// dream cannot abort the pass
func (s *RetestScheduler) evaluate(ctx context.Context, c Candidate, models []evaluation.ModelConfig) (results []evaluation.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("panic while evaluating dream %s: %v", c.Dream.ID, r)
		}
	}()

	return s.evaluator.Evaluate(ctx, evaluation.Request{
		DreamID:          c.Dream.ID,
		UserID:           c.Dream.UserID,
		Title:            c.Dream.Title,
		Description:      c.Dream.Description,
		OriginalPrompt:   c.Dream.OriginalPrompt,
		Category:         c.Dream.Category,
		EnableMultiModel: len(models) > 1,
		Models:           models,
	})
}

func (s *RetestScheduler) skip(c Candidate, reason string, estimate float64, model string) {
	s.log.Debug().
		Str("dream_id", c.Dream.ID).
		Str("priority", string(c.Priority)).
		Str("reason", reason).
		Float64("estimated_cost", estimate).
		Msg("Skipping retest candidate")
	s.bus.Emit("scheduler", &events.CandidateSkippedData{
		DreamID:       c.Dream.ID,
		Priority:      string(c.Priority),
		Reason:        reason,
		EstimatedCost: estimate,
		Model:         model,
	})
}

func (s *RetestScheduler) finish(summary Summary, started time.Time) Summary {
	summary.Duration = s.now().Sub(started)

	s.log.Info().
		Str("event", "daily_evaluation_summary").
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Float64("total_cost", summary.TotalCost).
		Float64("run_cost", summary.RunCost).
		Bool("budget_exhausted", summary.BudgetExhausted).
		Dur("duration", summary.Duration).
		Msg("Retest pass completed")

	s.bus.Emit("scheduler", &events.RetestCompletedData{
		Processed:       summary.Processed,
		Skipped:         summary.Skipped,
		Failed:          summary.Failed,
		TotalCost:       summary.TotalCost,
		BudgetExhausted: summary.BudgetExhausted,
		DurationMs:      summary.Duration.Milliseconds(),
	})

	s.mu.Lock()
	last := summary
	s.lastRun = &last
	s.mu.Unlock()

	return summary
}

// modelLimitReached reports the first model whose daily request cap is used up
func modelLimitReached(models []evaluation.ModelConfig, requests map[string]int, cfg config.JobConfig) (string, bool) {
	for _, m := range models {
		limit, ok := cfg.ModelLimits[m.Model]
		if !ok || limit.MaxRequestsPerDay <= 0 {
			continue
		}
		if requests[m.Model] >= limit.MaxRequestsPerDay {
			return m.Model, true
		}
	}
	return "", false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
