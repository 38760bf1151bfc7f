package analytics

import (
	"testing"
	"time"

	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	testingpkg "github.com/aristath/dreamengine/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service *Service
	dreams  *dreams.Repository
	records *evaluation.Repository
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dreamsDB, cleanupDreams := testingpkg.NewTestDB(t, "dreams")
	t.Cleanup(cleanupDreams)
	ledgerDB, cleanupLedger := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)

	dreamRepo := dreams.NewRepository(dreamsDB.Conn(), zerolog.Nop())
	records := evaluation.NewRepository(ledgerDB.Conn(), zerolog.Nop())
	svc := NewService(dreamRepo, records, costs.NewTracker(records, zerolog.Nop()), zerolog.Nop())

	now := time.Now()
	svc.now = func() time.Time { return now }
	return &fixture{service: svc, dreams: dreamRepo, records: records, now: now}
}

func (f *fixture) dream(t *testing.T, userID, title, category string) *dreams.Dream {
	t.Helper()
	d := &dreams.Dream{UserID: userID, Title: title, Description: title, Category: category}
	require.NoError(t, f.dreams.Create(d))
	return d
}

func (f *fixture) record(t *testing.T, d *dreams.Dream, provider, model string, impossibility, confidence float64, daysAgo int) {
	t.Helper()
	require.NoError(t, f.records.Create(&evaluation.Record{
		DreamID:            d.ID,
		UserID:             d.UserID,
		Provider:           provider,
		Model:              model,
		Status:             evaluation.StatusCompleted,
		ImpossibilityScore: impossibility,
		Confidence:         confidence,
		Cost:               0.1,
		TokensUsed:         100,
		CreatedAt:          f.now.AddDate(0, 0, -daysAgo),
	}))
}

func TestForUser_FullReport(t *testing.T) {
	f := newFixture(t)

	improving := f.dream(t, "u1", "Run a marathon", "health")
	worsening := f.dream(t, "u1", "Learn Mandarin", "learning")
	single := f.dream(t, "u1", "Visit Mars", "space")
	paused := f.dream(t, "u1", "Paused dream", "misc")
	require.NoError(t, f.dreams.UpdateStatus(paused.ID, dreams.StatusPaused))
	other := f.dream(t, "u2", "Someone else", "health")

	f.record(t, improving, "openai", "gpt-4o", 80, 60, 20)
	f.record(t, improving, "openai", "gpt-4o", 60, 70, 10)
	f.record(t, improving, "anthropic", "claude-3-5-sonnet-20241022", 40, 80, 1)
	f.record(t, worsening, "openai", "gpt-4o", 30, 50, 5)
	f.record(t, worsening, "openai", "gpt-4o", 50, 50, 2)
	f.record(t, single, "anthropic", "claude-3-5-sonnet-20241022", 90, 40, 3)
	f.record(t, improving, "openai", "gpt-4o", 99, 10, 60) // outside the window
	f.record(t, other, "openai", "gpt-4o", 10, 90, 1)
	require.NoError(t, f.records.Create(&evaluation.Record{
		DreamID: single.ID, UserID: "u1", Provider: "openai", Model: "gpt-4o",
		Status: evaluation.StatusFailed, CreatedAt: f.now.AddDate(0, 0, -1),
	}))

	report, err := f.service.ForUser("u1", 30)
	require.NoError(t, err)

	require.NotNil(t, report.Overview)
	assert.Equal(t, 3, report.Overview.TotalDreams)
	assert.Equal(t, 6, report.Overview.TotalEvaluations)
	assert.InDelta(t, (80+60+40+30+50+90)/6.0, report.Overview.AverageImpossibility, 1e-9)
	assert.Equal(t, 1, report.Overview.ImprovedDreams)

	require.NotNil(t, report.Trends)
	decay := report.Trends.ImpossibilityDecay
	require.Len(t, decay, 2)
	assert.Equal(t, improving.ID, decay[0].DreamID)
	assert.Equal(t, "Run a marathon", decay[0].Title)
	assert.InDelta(t, 40, decay[0].TotalImprovement, 1e-9)
	assert.InDelta(t, -20, decay[0].Slope, 1e-9)
	assert.Equal(t, worsening.ID, decay[1].DreamID)
	assert.InDelta(t, -20, decay[1].TotalImprovement, 1e-9)

	gpt := report.Trends.ModelPerformance["openai/gpt-4o"]
	assert.Equal(t, 4, gpt.Count)
	assert.InDelta(t, 55, gpt.AverageImpossibility, 1e-9)
	assert.InDelta(t, 57.5, gpt.AverageConfidence, 1e-9)
	assert.Equal(t, 2, report.Trends.ModelPerformance["anthropic/claude-3-5-sonnet-20241022"].Count)

	total := 0
	for _, n := range report.Trends.EvaluationFrequency {
		total += n
	}
	assert.Equal(t, 6, total)

	require.NotNil(t, report.Costs)
	assert.Equal(t, 6, report.Costs.TotalRequests)
	assert.InDelta(t, 0.6, report.Costs.TotalCost, 1e-9)

	require.Len(t, report.Dreams, 3)
	byID := make(map[string]DreamSummary)
	for _, d := range report.Dreams {
		byID[d.ID] = d
	}
	imp := byID[improving.ID]
	assert.Equal(t, 3, imp.TotalEvaluations)
	require.NotNil(t, imp.Improvement)
	assert.InDelta(t, 40, *imp.Improvement, 1e-9)
	assert.Equal(t, 80.0, *imp.FirstScore)
	assert.Equal(t, 40.0, *imp.LatestScore)
	assert.Nil(t, byID[single.ID].Improvement)

	assert.Nil(t, report.Benchmarks)
}

func TestReport_MetricSelection(t *testing.T) {
	f := newFixture(t)
	d := f.dream(t, "u1", "Write a novel", "creative")
	f.record(t, d, "openai", "gpt-4o", 70, 60, 1)

	report, err := f.service.Report("u1", Options{Days: 7, Metric: MetricCosts})
	require.NoError(t, err)
	assert.Nil(t, report.Overview)
	assert.Nil(t, report.Trends)
	assert.Nil(t, report.Dreams)
	require.NotNil(t, report.Costs)
	assert.Equal(t, 7, report.DateRange.Days)

	_, err = f.service.Report("u1", Options{Metric: "everything"})
	assert.Error(t, err)

	_, err = f.service.Report("", Options{})
	assert.Error(t, err)
}

func TestReport_Benchmarks(t *testing.T) {
	f := newFixture(t)
	a := f.dream(t, "u1", "Climb Everest", "adventure")
	b := f.dream(t, "u2", "Sail solo", "adventure")
	c := f.dream(t, "u3", "Open a bakery", "business")
	f.record(t, a, "openai", "gpt-4o", 80, 60, 1)
	f.record(t, b, "openai", "gpt-4o-mini", 60, 40, 1)
	f.record(t, c, "anthropic", "claude-3-5-sonnet-20241022", 20, 80, 1)

	report, err := f.service.Report("u1", Options{Metric: MetricOverview, IncludeGlobal: true})
	require.NoError(t, err)
	require.NotNil(t, report.Benchmarks)

	assert.Equal(t, 3, report.Benchmarks.Overall.Count)
	assert.InDelta(t, 160/3.0, report.Benchmarks.Overall.AverageImpossibility, 1e-9)
	assert.Equal(t, 2, report.Benchmarks.ByCategory["adventure"].Count)
	assert.InDelta(t, 70, report.Benchmarks.ByCategory["adventure"].AverageImpossibility, 1e-9)
	assert.Len(t, report.Benchmarks.ByModel, 3)
}

func TestReport_EmptyUser(t *testing.T) {
	f := newFixture(t)

	report, err := f.service.ForUser("nobody", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDays, report.DateRange.Days)
	assert.Equal(t, 0, report.Overview.TotalEvaluations)
	assert.Equal(t, 0.0, report.Overview.AverageImpossibility)
	assert.Empty(t, report.Trends.ImpossibilityDecay)
	assert.Empty(t, report.Dreams)
}
