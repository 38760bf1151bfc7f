// Package costs aggregates spend, token usage and request counts from the
// evaluation ledger. Nothing here keeps counters: every figure is recomputed
// from persisted records.
package costs

import (
	"fmt"
	"time"

	"github.com/aristath/dreamengine/internal/modules/evaluation"
	"github.com/rs/zerolog"
)

// RecordLister is the read side of the evaluation ledger
type RecordLister interface {
	List(f evaluation.Filter) ([]evaluation.Record, error)
	CountSince(userID string, since time.Time) (int, error)
}

// ProviderCost is the per-provider part of a Summary
type ProviderCost struct {
	Cost     float64        `json:"cost"`
	Tokens   int            `json:"tokens"`
	Requests int            `json:"requests"`
	Models   map[string]int `json:"models"` // model -> request count
}

// Summary aggregates completed evaluations over a date range
type Summary struct {
	Start         time.Time               `json:"start"`
	End           time.Time               `json:"end"`
	UserID        string                  `json:"user_id,omitempty"`
	TotalCost     float64                 `json:"total_cost"`
	TotalTokens   int                     `json:"total_tokens"`
	TotalRequests int                     `json:"total_requests"`
	Breakdown     map[string]ProviderCost `json:"breakdown"`
}

// RateLimit is the outcome of a per-user daily limit check
type RateLimit struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// Usage is today's completed spend
type Usage struct {
	Cost     float64 `json:"cost"`
	Requests int     `json:"requests"`
	Tokens   int     `json:"tokens"`
}

// Tracker answers budget and rate-limit questions from the ledger
type Tracker struct {
	records RecordLister
	now     func() time.Time
	log     zerolog.Logger
}

// NewTracker creates a new cost tracker
func NewTracker(records RecordLister, log zerolog.Logger) *Tracker {
	return &Tracker{
		records: records,
		now:     time.Now,
		log:     log.With().Str("service", "costs").Logger(),
	}
}

// StartOfDay returns local midnight of t's day
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Summarize totals completed evaluations created in [start, end], optionally for one user
func (t *Tracker) Summarize(start, end time.Time, userID string) (*Summary, error) {
	records, err := t.records.List(evaluation.Filter{
		Start:  start,
		End:    end.Add(time.Millisecond),
		UserID: userID,
		Status: evaluation.StatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluations for cost summary: %w", err)
	}

	summary := &Summary{
		Start:         start,
		End:           end,
		UserID:        userID,
		TotalRequests: len(records),
		Breakdown:     make(map[string]ProviderCost),
	}

	for _, rec := range records {
		entry, ok := summary.Breakdown[rec.Provider]
		if !ok {
			entry = ProviderCost{Models: make(map[string]int)}
		}
		entry.Cost += rec.Cost
		entry.Tokens += rec.TokensUsed
		entry.Requests++
		entry.Models[rec.Model]++
		summary.Breakdown[rec.Provider] = entry

		summary.TotalCost += rec.Cost
		summary.TotalTokens += rec.TokensUsed
	}

	return summary, nil
}

// CheckRateLimit counts every record (any status) the user created today
func (t *Tracker) CheckRateLimit(userID string, dailyLimit int) (*RateLimit, error) {
	today := StartOfDay(t.now())
	tomorrow := today.AddDate(0, 0, 1)

	count, err := t.records.CountSince(userID, today)
	if err != nil {
		return nil, err
	}

	remaining := dailyLimit - count
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimit{
		Allowed:   count < dailyLimit,
		Remaining: remaining,
		ResetTime: tomorrow,
	}, nil
}

// DailyUsage returns today's completed spend, requests and tokens
func (t *Tracker) DailyUsage() (*Usage, error) {
	records, err := t.records.List(evaluation.Filter{
		Start:  StartOfDay(t.now()),
		Status: evaluation.StatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load today's evaluations: %w", err)
	}

	usage := &Usage{Requests: len(records)}
	for _, rec := range records {
		usage.Cost += rec.Cost
		usage.Tokens += rec.TokensUsed
	}
	return usage, nil
}

// ModelRequestsToday counts today's provider requests per model, failed ones included
func (t *Tracker) ModelRequestsToday() (map[string]int, error) {
	records, err := t.records.List(evaluation.Filter{Start: StartOfDay(t.now())})
	if err != nil {
		return nil, fmt.Errorf("failed to load today's evaluations: %w", err)
	}

	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Model]++
	}
	return counts, nil
}
