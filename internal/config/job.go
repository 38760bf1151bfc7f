package config

import (
	"fmt"
	"time"
)

// DefaultCostPerRequest is charged for models missing from ModelLimits
const DefaultCostPerRequest = 0.05

// ModelLimit caps daily usage of a single model and prices one request to it
type ModelLimit struct {
	MaxRequestsPerDay int     `yaml:"max_requests_per_day" json:"max_requests_per_day"`
	CostPerRequest    float64 `yaml:"cost_per_request" json:"cost_per_request"`
}

// PriorityThresholds map an impossibility score to a priority tier
type PriorityThresholds struct {
	High   float64 `json:"high"`   // Impossibility >= High is high priority
	Medium float64 `json:"medium"` // Impossibility >= Medium is medium priority
}

// JobConfig holds the retest scheduler configuration
type JobConfig struct {
	RetestIntervalDays int                   `json:"retest_interval_days"`
	MaxCostPerDay      float64               `json:"max_cost_per_day"`
	PriorityThresholds PriorityThresholds    `json:"priority_thresholds"`
	ModelLimits        map[string]ModelLimit `json:"model_limits"`
	CandidateLimit     int                   `json:"candidate_limit"`  // Upper bound on dreams considered per run
	InterCallDelay     time.Duration         `json:"inter_call_delay"` // Pause between dreams within a run
}

// DefaultJobConfig returns the stock retest configuration: monthly retests on a $10 daily budget
func DefaultJobConfig() JobConfig {
	return JobConfig{
		RetestIntervalDays: 30,
		MaxCostPerDay:      10.00,
		PriorityThresholds: PriorityThresholds{
			High:   75,
			Medium: 50,
		},
		ModelLimits: map[string]ModelLimit{
			"gpt-4o":                     {MaxRequestsPerDay: 20, CostPerRequest: 0.15},
			"gpt-4o-mini":                {MaxRequestsPerDay: 100, CostPerRequest: 0.03},
			"claude-3-5-sonnet-20241022": {MaxRequestsPerDay: 25, CostPerRequest: 0.12},
			"claude-3-5-haiku-20241022":  {MaxRequestsPerDay: 80, CostPerRequest: 0.04},
		},
		CandidateLimit: 200,
		InterCallDelay: time.Second,
	}
}

// CostPerRequest returns the configured price of one request to model
func (c JobConfig) CostPerRequest(model string) float64 {
	if limit, ok := c.ModelLimits[model]; ok {
		return limit.CostPerRequest
	}
	return DefaultCostPerRequest
}

// Validate checks the invariants the scheduler relies on
func (c JobConfig) Validate() error {
	if c.RetestIntervalDays <= 0 {
		return fmt.Errorf("retest interval must be positive, got %d", c.RetestIntervalDays)
	}
	if c.MaxCostPerDay <= 0 {
		return fmt.Errorf("max cost per day must be positive, got %.2f", c.MaxCostPerDay)
	}
	high, medium := c.PriorityThresholds.High, c.PriorityThresholds.Medium
	if medium < 0 || high > 100 || high <= medium {
		return fmt.Errorf("priority thresholds must satisfy 0 <= medium < high <= 100, got high=%.1f medium=%.1f", high, medium)
	}
	if c.CandidateLimit <= 0 {
		return fmt.Errorf("candidate limit must be positive, got %d", c.CandidateLimit)
	}
	if c.InterCallDelay < 0 {
		return fmt.Errorf("inter-call delay cannot be negative")
	}
	for model, limit := range c.ModelLimits {
		if limit.CostPerRequest < 0 || limit.MaxRequestsPerDay < 0 {
			return fmt.Errorf("model %s has negative limits", model)
		}
	}
	return nil
}
