package evaluation

import (
	"sort"

	"github.com/aristath/dreamengine/pkg/formulas"
)

const smoothingPeriod = 3

// Trend summarizes a dream's impossibility history across many samples
type Trend struct {
	DreamID          string   `json:"dream_id"`
	Title            string   `json:"title,omitempty"`
	Samples          int      `json:"samples"`
	FirstScore       float64  `json:"first_score"`
	LastScore        float64  `json:"last_score"`
	Slope            float64  `json:"slope"` // Impossibility change per evaluation; negative is improvement
	Intercept        float64  `json:"intercept"`
	TotalImprovement float64  `json:"total_improvement"` // first - last
	SmoothedScore    *float64 `json:"smoothed_score"`    // EMA of the series at the latest sample
	MeanConfidence   float64  `json:"mean_confidence"`
	SpanDays         float64  `json:"span_days"`
}

// ComputeTrend fits an OLS slope of impossibility against sample index.
// samples must be ordered oldest first and contain at least two points.
func ComputeTrend(dreamID string, samples []Sample) (Trend, bool) {
	if len(samples) < 2 {
		return Trend{}, false
	}

	scores := make([]float64, len(samples))
	confidences := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = s.ImpossibilityScore
		confidences[i] = s.Confidence
	}

	slope, intercept := formulas.LinearTrend(scores)
	first, last := scores[0], scores[len(scores)-1]

	return Trend{
		DreamID:          dreamID,
		Samples:          len(samples),
		FirstScore:       first,
		LastScore:        last,
		Slope:            slope,
		Intercept:        intercept,
		TotalImprovement: first - last,
		SmoothedScore:    formulas.CalculateEMA(scores, smoothingPeriod),
		MeanConfidence:   formulas.Mean(confidences),
		SpanDays:         samples[len(samples)-1].CreatedAt.Sub(samples[0].CreatedAt).Hours() / 24,
	}, true
}

// RankByImprovement orders trends most improved first. Ties keep input order.
func RankByImprovement(trends []Trend) {
	sort.SliceStable(trends, func(i, j int) bool {
		return trends[i].TotalImprovement > trends[j].TotalImprovement
	})
}
