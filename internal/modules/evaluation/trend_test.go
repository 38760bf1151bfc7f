package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTrend_RequiresTwoSamples(t *testing.T) {
	_, ok := ComputeTrend("d", samples(50))
	assert.False(t, ok)
}

func TestComputeTrend(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []Sample{
		{ImpossibilityScore: 80, Confidence: 60, CreatedAt: base},
		{ImpossibilityScore: 70, Confidence: 70, CreatedAt: base.Add(24 * time.Hour)},
		{ImpossibilityScore: 60, Confidence: 80, CreatedAt: base.Add(48 * time.Hour)},
		{ImpossibilityScore: 50, Confidence: 90, CreatedAt: base.Add(72 * time.Hour)},
	}

	trend, ok := ComputeTrend("dream-1", history)
	require.True(t, ok)

	assert.Equal(t, "dream-1", trend.DreamID)
	assert.Equal(t, 4, trend.Samples)
	assert.InDelta(t, -10, trend.Slope, 1e-9)
	assert.InDelta(t, 80, trend.Intercept, 1e-9)
	assert.InDelta(t, 30, trend.TotalImprovement, 1e-9)
	assert.InDelta(t, 75, trend.MeanConfidence, 1e-9)
	assert.InDelta(t, 3, trend.SpanDays, 1e-9)
	require.NotNil(t, trend.SmoothedScore)
	// SMA(80,70,60)=70 then 70 + (50-70)*0.5 = 60
	assert.InDelta(t, 60, *trend.SmoothedScore, 1e-9)
}

func TestRankByImprovement(t *testing.T) {
	trends := []Trend{
		{DreamID: "a", TotalImprovement: 5},
		{DreamID: "b", TotalImprovement: -10},
		{DreamID: "c", TotalImprovement: 20},
		{DreamID: "d", TotalImprovement: 5},
	}

	RankByImprovement(trends)

	ids := make([]string, len(trends))
	for i, tr := range trends {
		ids[i] = tr.DreamID
	}
	assert.Equal(t, []string{"c", "a", "d", "b"}, ids)
}
