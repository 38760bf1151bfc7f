package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	testingpkg "github.com/aristath/dreamengine/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (chi.Router, *evaluation.Repository) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)

	repo := evaluation.NewRepository(db.Conn(), zerolog.Nop())
	handler := NewHandler(costs.NewTracker(repo, zerolog.Nop()), 2, zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, repo
}

func TestHandleSummary(t *testing.T) {
	router, repo := setupRouter(t)

	require.NoError(t, repo.Create(&evaluation.Record{
		DreamID: "d1", UserID: "u1", Provider: "openai", Model: "gpt-4o",
		Status: evaluation.StatusCompleted, Cost: 0.15, TokensUsed: 800,
	}))

	today := time.Now().Format(dateLayout)
	req := httptest.NewRequest(http.MethodGet, "/api/costs/summary?start="+today+"&end="+today, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary costs.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalRequests)
	assert.InDelta(t, 0.15, summary.TotalCost, 1e-9)
	assert.Equal(t, 800, summary.Breakdown["openai"].Tokens)
}

func TestHandleSummary_InvalidDates(t *testing.T) {
	router, _ := setupRouter(t)

	for _, query := range []string{"start=yesterday", "end=2026-13-01", "start=2026-05-10&end=2026-05-01"} {
		req := httptest.NewRequest(http.MethodGet, "/api/costs/summary?"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestHandleRateLimit(t *testing.T) {
	router, repo := setupRouter(t)

	require.NoError(t, repo.Create(&evaluation.Record{
		DreamID: "d1", UserID: "u1", Provider: "openai", Model: "gpt-4o", Status: evaluation.StatusFailed,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/costs/rate-limit?user_id=u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var limit costs.RateLimit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &limit))
	assert.True(t, limit.Allowed)
	assert.Equal(t, 1, limit.Remaining)

	req = httptest.NewRequest(http.MethodGet, "/api/costs/rate-limit?user_id=u1&limit=1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &limit))
	assert.False(t, limit.Allowed)

	req = httptest.NewRequest(http.MethodGet, "/api/costs/rate-limit?user_id=u1&limit=-3", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/costs/rate-limit", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleToday(t *testing.T) {
	router, repo := setupRouter(t)

	require.NoError(t, repo.Create(&evaluation.Record{
		DreamID: "d1", UserID: "u1", Provider: "anthropic", Model: "claude-3-5-haiku-20241022",
		Status: evaluation.StatusCompleted, Cost: 0.04, TokensUsed: 300,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/costs/today", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Usage  costs.Usage    `json:"usage"`
		Models map[string]int `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Usage.Requests)
	assert.Equal(t, 1, body.Models["claude-3-5-haiku-20241022"])
}
