package evaluation

import (
	"math"
	"sort"
)

// Milestone names the best impossibility band a dream has reached
type Milestone string

const (
	MilestoneHighlyAchievable Milestone = "highly_achievable"
	MilestoneAchievable       Milestone = "achievable"
	MilestoneChallenging      Milestone = "challenging"
	MilestoneDifficult        Milestone = "difficult"
)

// Distribution counts completed evaluations per impossibility band
type Distribution struct {
	VeryAchievable int `json:"very_achievable"` // <= 10
	Achievable     int `json:"achievable"`      // (10, 25]
	Challenging    int `json:"challenging"`     // (25, 50]
	Difficult      int `json:"difficult"`       // (50, 75]
	VeryDifficult  int `json:"very_difficult"`  // > 75
}

// Progress is a point-in-time snapshot of a dream's completed evaluations
type Progress struct {
	TestCount            int          `json:"test_count"`
	AverageImpossibility float64      `json:"average_impossibility"`
	BestScore            float64      `json:"best_score"`
	Milestone            *Milestone   `json:"milestone"` // nil while the best score is above 75
	ActiveModels         []string     `json:"active_models"`
	Distribution         Distribution `json:"distribution"`
}

// MilestoneFor maps a best impossibility score to its milestone
func MilestoneFor(best float64) *Milestone {
	var m Milestone
	switch {
	case best <= 10:
		m = MilestoneHighlyAchievable
	case best <= 25:
		m = MilestoneAchievable
	case best <= 50:
		m = MilestoneChallenging
	case best <= 75:
		m = MilestoneDifficult
	default:
		return nil
	}
	return &m
}

// SummarizeProgress builds a snapshot from completed records. Failed
// records are ignored. ok is false when nothing completed.
func SummarizeProgress(records []Record) (Progress, bool) {
	var (
		p      Progress
		sum    float64
		models = make(map[string]struct{})
	)
	p.BestScore = math.Inf(1)

	for _, rec := range records {
		if rec.Status != StatusCompleted {
			continue
		}
		score := rec.ImpossibilityScore
		p.TestCount++
		sum += score
		if score < p.BestScore {
			p.BestScore = score
		}
		models[rec.Provider+"/"+rec.Model] = struct{}{}

		switch {
		case score <= 10:
			p.Distribution.VeryAchievable++
		case score <= 25:
			p.Distribution.Achievable++
		case score <= 50:
			p.Distribution.Challenging++
		case score <= 75:
			p.Distribution.Difficult++
		default:
			p.Distribution.VeryDifficult++
		}
	}

	if p.TestCount == 0 {
		return Progress{}, false
	}

	p.AverageImpossibility = sum / float64(p.TestCount)
	p.Milestone = MilestoneFor(p.BestScore)
	p.ActiveModels = make([]string, 0, len(models))
	for m := range models {
		p.ActiveModels = append(p.ActiveModels, m)
	}
	sort.Strings(p.ActiveModels)

	return p, true
}
