package scheduler

import (
	"context"

	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
)

// DreamSource lists dreams eligible for automatic retesting
type DreamSource interface {
	ListActive(limit int) ([]dreams.Dream, error)
}

// EvaluationHistory exposes the most recent completed evaluation per dream
type EvaluationHistory interface {
	LatestCompleted(dreamIDs []string) (map[string]evaluation.Record, error)
}

// Evaluator runs one dream through the provider orchestrator
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) ([]evaluation.Result, error)
}

// UsageReader reports today's spend and per-model request counts
type UsageReader interface {
	DailyUsage() (*costs.Usage, error)
	ModelRequestsToday() (map[string]int, error)
}
