package evaluation

import "math"

const (
	stableBand       = 5.0
	baseConfidence   = 50.0
	stableConfidence = 70.0
	maxConfidence    = 90.0
)

// AnalyzeDecay compares the two most recent samples of a history ordered
// newest first. A positive decay rate means impossibility fell.
func AnalyzeDecay(history []Sample) (DecayAnalysis, error) {
	if len(history) == 0 {
		return DecayAnalysis{}, ErrNoHistory
	}

	analysis := DecayAnalysis{
		CurrentScore:   history[0].ImpossibilityScore,
		TrendDirection: TrendStable,
		Confidence:     baseConfidence,
		SampleCount:    len(history),
	}

	if len(history) == 1 {
		return analysis, nil
	}

	previous := history[1].ImpossibilityScore
	analysis.PreviousScore = &previous

	if previous == 0 {
		return analysis, nil
	}

	analysis.DecayRate = (previous - analysis.CurrentScore) / previous * 100

	switch {
	case math.Abs(analysis.DecayRate) < stableBand:
		analysis.TrendDirection = TrendStable
		if len(history) >= 3 {
			analysis.Confidence = stableConfidence
		}
	case analysis.DecayRate > 0:
		analysis.TrendDirection = TrendImproving
		analysis.Confidence = math.Min(maxConfidence, baseConfidence+10*float64(len(history)))
	default:
		analysis.TrendDirection = TrendWorsening
		analysis.Confidence = math.Min(maxConfidence, baseConfidence+10*float64(len(history)))
	}

	return analysis, nil
}
