package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
)

// Priority tier of a retest candidate
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

// Classify derives a tier from the most recent impossibility score.
// Dreams never evaluated (nil score) are medium.
func Classify(score *float64, thresholds config.PriorityThresholds) Priority {
	switch {
	case score == nil:
		return PriorityMedium
	case *score >= thresholds.High:
		return PriorityHigh
	case *score >= thresholds.Medium:
		return PriorityMedium
	}
	return PriorityLow
}

// TierModels is the fixed model selection for a tier
func TierModels(p Priority) []evaluation.ModelConfig {
	switch p {
	case PriorityHigh:
		return []evaluation.ModelConfig{evaluation.ModelGPT4o, evaluation.ModelClaudeSonnet}
	case PriorityMedium:
		return []evaluation.ModelConfig{evaluation.ModelClaudeSonnet}
	}
	return []evaluation.ModelConfig{evaluation.ModelGPT4oMini}
}

// EstimateCost sums the per-request price of every model
func EstimateCost(models []evaluation.ModelConfig, cfg config.JobConfig) float64 {
	var total float64
	for _, m := range models {
		total += cfg.CostPerRequest(m.Model)
	}
	return total
}

// Candidate is a dream due for retesting with its last evaluation snapshot
type Candidate struct {
	Dream           dreams.Dream `json:"dream"`
	Priority        Priority     `json:"priority"`
	LastScore       *float64     `json:"last_score"`
	LastConfidence  *float64     `json:"last_confidence"`
	LastEvaluatedAt *time.Time   `json:"last_evaluated_at"`
}

// NeverEvaluated reports whether the dream has no completed evaluation
func (c Candidate) NeverEvaluated() bool {
	return c.LastEvaluatedAt == nil
}

// SelectCandidates returns active dreams with no completed evaluation since
// the retest cutoff, capped at cfg.CandidateLimit and ranked by tier then
// staleness. Never-evaluated dreams are the stalest within their tier.
func SelectCandidates(source DreamSource, history EvaluationHistory, cfg config.JobConfig, now time.Time) ([]Candidate, error) {
	active, err := source.ListActive(0)
	if err != nil {
		return nil, fmt.Errorf("failed to list active dreams: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	ids := make([]string, len(active))
	for i, d := range active {
		ids[i] = d.ID
	}

	latest, err := history.LatestCompleted(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest evaluations: %w", err)
	}

	cutoff := now.AddDate(0, 0, -cfg.RetestIntervalDays)
	candidates := make([]Candidate, 0, cfg.CandidateLimit)

	for _, d := range active {
		if len(candidates) >= cfg.CandidateLimit {
			break
		}

		c := Candidate{Dream: d}
		if rec, ok := latest[d.ID]; ok {
			if !rec.CreatedAt.Before(cutoff) {
				continue
			}
			score, confidence, at := rec.ImpossibilityScore, rec.Confidence, rec.CreatedAt
			c.LastScore = &score
			c.LastConfidence = &confidence
			c.LastEvaluatedAt = &at
		}
		c.Priority = Classify(c.LastScore, cfg.PriorityThresholds)
		candidates = append(candidates, c)
	}

	RankCandidates(candidates)
	return candidates, nil
}

// RankCandidates orders by tier (high first), then oldest evaluation first
func RankCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority.rank() != b.Priority.rank() {
			return a.Priority.rank() > b.Priority.rank()
		}
		return lastEvaluated(a).Before(lastEvaluated(b))
	})
}

func lastEvaluated(c Candidate) time.Time {
	if c.LastEvaluatedAt == nil {
		return time.Time{}
	}
	return *c.LastEvaluatedAt
}
