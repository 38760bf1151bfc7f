package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/llm"
	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	testingpkg "github.com/aristath/dreamengine/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router  chi.Router
	dreams  *dreams.Repository
	records *evaluation.Repository
	bus     *events.Bus
	dream   *dreams.Dream
}

func newFixture(t *testing.T, dailyLimit int, providers ...llm.Provider) *fixture {
	t.Helper()

	dreamsDB, cleanupDreams := testingpkg.NewTestDB(t, "dreams")
	t.Cleanup(cleanupDreams)
	ledgerDB, cleanupLedger := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)

	dreamRepo := dreams.NewRepository(dreamsDB.Conn(), zerolog.Nop())
	records := evaluation.NewRepository(ledgerDB.Conn(), zerolog.Nop())
	costOf := func(model string) float64 { return 0.1 }
	service := evaluation.NewService(records, llm.NewRegistry(providers...), costOf, time.Second, zerolog.Nop())
	tracker := costs.NewTracker(records, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())

	dream := &dreams.Dream{UserID: "u1", Title: "Teleportation", Description: "Instant travel", Category: "physics"}
	require.NoError(t, dreamRepo.Create(dream))

	router := chi.NewRouter()
	NewHandler(service, records, dreamRepo, tracker, bus, dailyLimit, zerolog.Nop()).RegisterRoutes(router)

	return &fixture{router: router, dreams: dreamRepo, records: records, bus: bus, dream: dream}
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleEvaluate_MultiModelWithConsensus(t *testing.T) {
	openai := testingpkg.ScoringProvider("openai", 40, 80)
	anthropic := testingpkg.ScoringProvider("anthropic", 60, 60)
	f := newFixture(t, 10, openai, anthropic)
	_, sub := f.bus.Subscribe(4)

	rec := f.do(http.MethodPost, "/api/dreams/"+f.dream.ID+"/evaluate", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp evaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Evaluations, 2)
	require.NotNil(t, resp.Consensus)
	assert.Equal(t, "consensus-2-models", resp.Consensus.Metadata.Model)
	require.NotNil(t, resp.Decay)
	assert.Equal(t, 2, resp.Decay.SampleCount)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, 2, resp.Progress.TestCount)
	assert.Equal(t, 2, resp.TotalTests)
	assert.InDelta(t, 0.2, resp.Cost, 1e-9)

	select {
	case e := <-sub:
		assert.Equal(t, events.EvaluationCompleted, e.Type)
	case <-time.After(time.Second):
		t.Fatal("no evaluation event")
	}
}

func TestHandleEvaluate_SingleResultSkipsConsensus(t *testing.T) {
	f := newFixture(t, 10, testingpkg.ScoringProvider("openai", 40, 80))

	rec := f.do(http.MethodPost, "/api/dreams/"+f.dream.ID+"/evaluate", map[string]interface{}{"providers": []string{"openai"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp evaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Evaluations, 1)
	assert.Nil(t, resp.Consensus)
}

func TestHandleEvaluate_ReturnsRecentEvaluationUnlessRetest(t *testing.T) {
	provider := testingpkg.ScoringProvider("openai", 40, 80)
	f := newFixture(t, 10, provider)

	require.NoError(t, f.records.Create(&evaluation.Record{
		DreamID: f.dream.ID, UserID: "u1", Provider: "openai", Model: "gpt-4o",
		Status: evaluation.StatusCompleted, ImpossibilityScore: 55, Confidence: 70,
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	rec := f.do(http.MethodPost, "/api/dreams/"+f.dream.ID+"/evaluate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var existing struct {
		UseExisting    bool           `json:"use_existing"`
		LastEvaluation lastEvaluation `json:"last_evaluation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &existing))
	assert.True(t, existing.UseExisting)
	assert.Equal(t, 55.0, existing.LastEvaluation.ImpossibilityScore)
	assert.Equal(t, 0, provider.Calls())

	rec = f.do(http.MethodPost, "/api/dreams/"+f.dream.ID+"/evaluate", map[string]bool{"retest": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, provider.Calls())
}

func TestHandleEvaluate_OldEvaluationDoesNotShortCircuit(t *testing.T) {
	provider := testingpkg.ScoringProvider("openai", 40, 80)
	f := newFixture(t, 10, provider)

	require.NoError(t, f.records.Create(&evaluation.Record{
		DreamID: f.dream.ID, UserID: "u1", Provider: "openai", Model: "gpt-4o",
		Status: evaluation.StatusCompleted, ImpossibilityScore: 55, Confidence: 70,
		CreatedAt: time.Now().Add(-25 * time.Hour),
	}))

	rec := f.do(http.MethodPost, "/api/dreams/"+f.dream.ID+"/evaluate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, provider.Calls())
}

func TestHandleEvaluate_DailyLimit(t *testing.T) {
	provider := testingpkg.ScoringProvider("openai", 40, 80)
	f := newFixture(t, 1, provider)

	require.NoError(t, f.records.Create(&evaluation.Record{
		DreamID: "other", UserID: "u1", Provider: "openai", Model: "gpt-4o", Status: evaluation.StatusFailed,
	}))

	rec := f.do(http.MethodPost, "/api/dreams/"+f.dream.ID+"/evaluate", map[string]bool{"retest": true})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 0, provider.Calls())
}

func TestHandleEvaluate_AllProvidersFail(t *testing.T) {
	f := newFixture(t, 10,
		testingpkg.FailingProvider("openai", errors.New("boom")),
		testingpkg.FailingProvider("anthropic", errors.New("boom")),
	)

	rec := f.do(http.MethodPost, "/api/dreams/"+f.dream.ID+"/evaluate", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	failed, err := f.records.List(evaluation.Filter{DreamID: f.dream.ID, Status: evaluation.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestHandleEvaluate_NoConfiguredProvider(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.do(http.MethodPost, "/api/dreams/"+f.dream.ID+"/evaluate", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleEvaluate_UnknownDream(t *testing.T) {
	f := newFixture(t, 10, testingpkg.ScoringProvider("openai", 40, 80))

	rec := f.do(http.MethodPost, "/api/dreams/missing/evaluate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	f := newFixture(t, 10)
	now := time.Now()

	for i, score := range []float64{80, 70, 60} {
		require.NoError(t, f.records.Create(&evaluation.Record{
			DreamID: f.dream.ID, UserID: "u1", Provider: "openai", Model: "gpt-4o",
			Status: evaluation.StatusCompleted, ImpossibilityScore: score, Confidence: 60,
			CreatedAt: now.Add(time.Duration(i-3) * time.Hour),
		}))
	}
	require.NoError(t, f.records.Create(&evaluation.Record{
		DreamID: f.dream.ID, UserID: "u1", Provider: "anthropic", Model: "claude-3-5-sonnet-20241022",
		Status: evaluation.StatusCompleted, ImpossibilityScore: 20, Confidence: 90, CreatedAt: now,
	}))

	rec := f.do(http.MethodGet, "/api/dreams/"+f.dream.ID+"/evaluations?analysis=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Evaluations []evaluation.Result `json:"evaluations"`
		Analysis    *historyAnalysis    `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Evaluations, 4)
	assert.Equal(t, 20.0, body.Evaluations[0].ImpossibilityScore)

	require.NotNil(t, body.Analysis)
	assert.Equal(t, 4, body.Analysis.Summary.TotalEvaluations)
	assert.Equal(t, 20.0, body.Analysis.Summary.LatestScore)
	assert.Equal(t, 80.0, body.Analysis.Summary.OldestScore)
	assert.Equal(t, 3, body.Analysis.ProviderStats["openai"].Count)
	assert.InDelta(t, 70.0, body.Analysis.ProviderStats["openai"].AvgImpossibility, 1e-9)
	require.NotNil(t, body.Analysis.Decay)
	assert.Equal(t, evaluation.TrendImproving, body.Analysis.Decay.TrendDirection)
	require.NotNil(t, body.Analysis.Progress)
	require.NotNil(t, body.Analysis.Progress.Milestone)
	assert.Equal(t, evaluation.MilestoneAchievable, *body.Analysis.Progress.Milestone)

	rec = f.do(http.MethodGet, "/api/dreams/"+f.dream.ID+"/evaluations?provider=anthropic&limit=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var filtered struct {
		Evaluations []evaluation.Result `json:"evaluations"`
		Analysis    *historyAnalysis    `json:"analysis"`
		Pagination  map[string]int      `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	assert.Len(t, filtered.Evaluations, 1)
	assert.Nil(t, filtered.Analysis)
	assert.Equal(t, maxHistoryLimit, filtered.Pagination["limit"])

	rec = f.do(http.MethodGet, "/api/dreams/"+f.dream.ID+"/evaluations?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDecay(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.do(http.MethodGet, "/api/dreams/"+f.dream.ID+"/decay", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	now := time.Now()
	require.NoError(t, f.records.Create(&evaluation.Record{
		DreamID: f.dream.ID, Provider: "openai", Model: "gpt-4o", Status: evaluation.StatusCompleted,
		ImpossibilityScore: 80, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, f.records.Create(&evaluation.Record{
		DreamID: f.dream.ID, Provider: "openai", Model: "gpt-4o", Status: evaluation.StatusCompleted,
		ImpossibilityScore: 90, CreatedAt: now,
	}))

	rec = f.do(http.MethodGet, "/api/dreams/"+f.dream.ID+"/decay", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var decay evaluation.DecayAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decay))
	assert.Equal(t, evaluation.TrendWorsening, decay.TrendDirection)
	assert.Equal(t, 90.0, decay.CurrentScore)
	assert.Equal(t, f.dream.ID, decay.DreamID)
}
