package analytics

import (
	"time"

	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
)

// Metric selects which sections a report carries
type Metric string

const (
	MetricAll      Metric = "all"
	MetricOverview Metric = "overview"
	MetricTrends   Metric = "trends"
	MetricCosts    Metric = "costs"
	MetricDreams   Metric = "dreams"
)

// Valid reports whether m is a known metric
func (m Metric) Valid() bool {
	switch m {
	case MetricAll, MetricOverview, MetricTrends, MetricCosts, MetricDreams:
		return true
	}
	return false
}

func (m Metric) includes(section Metric) bool {
	return m == MetricAll || m == section
}

// DateRange is the window a report covers
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// Overview is the headline block of a report
type Overview struct {
	TotalDreams          int     `json:"total_dreams"`
	TotalEvaluations     int     `json:"total_evaluations"`
	AverageImpossibility float64 `json:"average_impossibility"`
	ImprovedDreams       int     `json:"improved_dreams"`
}

// ModelStats aggregates completed evaluations of one provider/model
type ModelStats struct {
	Count                int     `json:"count"`
	AverageImpossibility float64 `json:"average_impossibility"`
	AverageConfidence    float64 `json:"average_confidence"`
}

// Trends groups the time-based sections
type Trends struct {
	ImpossibilityDecay  []evaluation.Trend    `json:"impossibility_decay"`
	EvaluationFrequency map[string]int        `json:"evaluation_frequency"` // YYYY-MM-DD -> count
	ModelPerformance    map[string]ModelStats `json:"model_performance"`    // provider/model -> stats
}

// DreamSummary is one row of the per-dream section
type DreamSummary struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Category         string     `json:"category"`
	TotalEvaluations int        `json:"total_evaluations"`
	FirstScore       *float64   `json:"first_score"`
	LatestScore      *float64   `json:"latest_score"`
	Improvement      *float64   `json:"improvement"` // first - latest, when there are two or more evaluations
	LastTested       *time.Time `json:"last_tested"`
}

// Benchmarks are anonymised figures across all users
type Benchmarks struct {
	Overall    ModelStats            `json:"overall"`
	ByCategory map[string]ModelStats `json:"by_category"`
	ByModel    map[string]ModelStats `json:"by_model"`
}

// Report is the analytics response for one user
type Report struct {
	UserID     string         `json:"user_id"`
	DateRange  DateRange      `json:"date_range"`
	Overview   *Overview      `json:"overview,omitempty"`
	Trends     *Trends        `json:"trends,omitempty"`
	Costs      *costs.Summary `json:"costs,omitempty"`
	Dreams     []DreamSummary `json:"dreams,omitempty"`
	Benchmarks *Benchmarks    `json:"benchmarks,omitempty"`
}

// Options controls report generation
type Options struct {
	Days          int
	Metric        Metric
	IncludeGlobal bool
}
