package evaluation

import (
	"fmt"
	"math"
	"strings"
)

// Consensus combines per-model results into one confidence-weighted result.
//
// A single result is returned unchanged. For two or more, each dimension is
// the confidence-weighted mean across inputs and the overall score is the mean
// of those aggregated dimensions (not a weighted mean of each input's own
// overall score). Zero total confidence falls back to uniform weights.
func Consensus(results []Result) (Result, error) {
	switch len(results) {
	case 0:
		return Result{}, ErrNoResults
	case 1:
		return results[0], nil
	}

	weights := consensusWeights(results)

	var scores DimensionScores
	var confidence, cost float64
	var maxDuration int64
	tokens := 0
	models := make([]string, len(results))
	reasoning := make([]string, len(results))
	latest := results[0].CreatedAt

	for i, r := range results {
		w := weights[i]
		scores.Comprehension += r.Scores.Comprehension * w
		scores.Quality += r.Scores.Quality * w
		scores.Innovation += r.Scores.Innovation * w
		scores.Feasibility += r.Scores.Feasibility * w
		confidence += r.Confidence * w

		if r.Metadata.DurationMs > maxDuration {
			maxDuration = r.Metadata.DurationMs
		}
		tokens += r.Metadata.TokensUsed
		cost += r.Cost
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}

		models[i] = r.Metadata.Provider + "/" + r.Metadata.Model
		reasoning[i] = fmt.Sprintf("Model %d (%s): %s", i+1, r.Metadata.Model, r.Reasoning)
	}

	overall := scores.Mean()

	return Result{
		DreamID: results[0].DreamID,
		Scores: DimensionScores{
			Comprehension: round2(scores.Comprehension),
			Quality:       round2(scores.Quality),
			Innovation:    round2(scores.Innovation),
			Feasibility:   round2(scores.Feasibility),
		},
		OverallScore:       round2(overall),
		ImpossibilityScore: round2(100 - overall),
		Confidence:         round2(confidence),
		Reasoning: fmt.Sprintf("Consensus evaluation from %d models:\n\n%s",
			len(results), strings.Join(reasoning, "\n\n")),
		Metadata: Metadata{
			Provider:   ConsensusProvider,
			Model:      fmt.Sprintf("consensus-%d-models", len(results)),
			TokensUsed: tokens,
			DurationMs: maxDuration,
			Parameters: map[string]interface{}{
				"modelCount":      len(results),
				"models":          models,
				"consensusMethod": "confidence-weighted-average",
			},
		},
		Cost:      cost,
		CreatedAt: latest,
	}, nil
}

// consensusWeights normalizes confidences to weights summing to 1
func consensusWeights(results []Result) []float64 {
	weights := make([]float64, len(results))

	total := 0.0
	for _, r := range results {
		total += r.Confidence
	}

	for i, r := range results {
		if total > 0 {
			weights[i] = r.Confidence / total
		} else {
			weights[i] = 1 / float64(len(results))
		}
	}

	return weights
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
