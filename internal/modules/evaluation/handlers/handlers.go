// Package handlers provides HTTP handlers for dream evaluation.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/aristath/dreamengine/internal/modules/evaluation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	recentWindow        = 24 * time.Hour
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// Handler handles evaluation HTTP requests
type Handler struct {
	service    *evaluation.Service
	records    *evaluation.Repository
	dreams     *dreams.Repository
	tracker    *costs.Tracker
	bus        *events.Bus
	dailyLimit int
	log        zerolog.Logger
}

// NewHandler creates a new evaluation handler. dailyLimit caps the direct
// evaluations a single user may trigger per day.
func NewHandler(
	service *evaluation.Service,
	records *evaluation.Repository,
	dreamRepo *dreams.Repository,
	tracker *costs.Tracker,
	bus *events.Bus,
	dailyLimit int,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:    service,
		records:    records,
		dreams:     dreamRepo,
		tracker:    tracker,
		bus:        bus,
		dailyLimit: dailyLimit,
		log:        log.With().Str("handler", "evaluation").Logger(),
	}
}

type evaluateRequest struct {
	UserID            string   `json:"user_id"`
	Providers         []string `json:"providers"`
	EnableMultiModel  *bool    `json:"enable_multi_model"`
	GenerateConsensus *bool    `json:"generate_consensus"`
	Retest            bool     `json:"retest"`
}

type lastEvaluation struct {
	ID                 string    `json:"id"`
	ImpossibilityScore float64   `json:"impossibility_score"`
	Confidence         float64   `json:"confidence"`
	CreatedAt          time.Time `json:"created_at"`
}

type evaluateResponse struct {
	Success     bool                      `json:"success"`
	DreamID     string                    `json:"dream_id"`
	DreamTitle  string                    `json:"dream_title"`
	Evaluations []evaluation.Result       `json:"evaluations"`
	Consensus   *evaluation.Result        `json:"consensus"`
	Decay       *evaluation.DecayAnalysis `json:"decay"`
	Progress    *evaluation.Progress      `json:"progress"`
	TotalTests  int                       `json:"total_tests"`
	Cost        float64                   `json:"cost"`
}

// HandleEvaluate handles POST /api/dreams/{id}/evaluate
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	dreamID := chi.URLParam(r, "id")

	var req evaluateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	dream, ok := h.loadDream(w, dreamID)
	if !ok {
		return
	}

	if !req.Retest {
		recent, err := h.records.List(evaluation.Filter{
			DreamID: dreamID,
			Status:  evaluation.StatusCompleted,
			Start:   time.Now().Add(-recentWindow),
			Limit:   1,
		})
		if err != nil {
			h.log.Error().Err(err).Str("dream_id", dreamID).Msg("Failed to check recent evaluations")
			h.writeError(w, http.StatusInternalServerError, "Failed to evaluate dream")
			return
		}
		if len(recent) > 0 {
			h.writeJSON(w, http.StatusOK, map[string]interface{}{
				"message":      "Recent evaluation found",
				"use_existing": true,
				"last_evaluation": lastEvaluation{
					ID:                 recent[0].ID,
					ImpossibilityScore: recent[0].ImpossibilityScore,
					Confidence:         recent[0].Confidence,
					CreatedAt:          recent[0].CreatedAt,
				},
			})
			return
		}
	}

	userID := req.UserID
	if userID == "" {
		userID = dream.UserID
	}

	limit, err := h.tracker.CheckRateLimit(userID, h.dailyLimit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to check rate limit")
		h.writeError(w, http.StatusInternalServerError, "Failed to evaluate dream")
		return
	}
	if !limit.Allowed {
		h.writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":      "Daily evaluation limit reached",
			"remaining":  limit.Remaining,
			"reset_time": limit.ResetTime,
		})
		return
	}

	multiModel := req.EnableMultiModel == nil || *req.EnableMultiModel
	generateConsensus := req.GenerateConsensus == nil || *req.GenerateConsensus

	results, err := h.service.Evaluate(r.Context(), evaluation.Request{
		DreamID:          dream.ID,
		UserID:           userID,
		Title:            dream.Title,
		Description:      dream.Description,
		OriginalPrompt:   dream.OriginalPrompt,
		Category:         dream.Category,
		Providers:        req.Providers,
		EnableMultiModel: multiModel,
	})
	if err != nil {
		switch {
		case errors.Is(err, evaluation.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, evaluation.ErrNoModels):
			h.writeError(w, http.StatusServiceUnavailable, "No configured provider matches the request")
		default:
			h.log.Error().Err(err).Str("dream_id", dreamID).Msg("Dream evaluation error")
			h.writeError(w, http.StatusInternalServerError, "Failed to evaluate dream")
		}
		return
	}

	event := &events.EvaluationData{DreamID: dream.ID, Source: "direct", Succeeded: len(results)}
	for _, res := range results {
		event.Models = append(event.Models, res.Metadata.Provider+"/"+res.Metadata.Model)
		event.Cost += res.Cost
	}

	if len(results) == 0 {
		event.Error = "all evaluations failed"
		h.bus.Emit("evaluation", event)
		h.writeError(w, http.StatusBadGateway, "All evaluations failed. Please try again.")
		return
	}

	resp := evaluateResponse{
		Success:     true,
		DreamID:     dream.ID,
		DreamTitle:  dream.Title,
		Evaluations: results,
		Cost:        event.Cost,
	}

	if generateConsensus && len(results) > 1 {
		consensus, err := evaluation.Consensus(results)
		if err != nil {
			h.log.Warn().Err(err).Str("dream_id", dreamID).Msg("Failed to generate consensus")
		} else {
			resp.Consensus = &consensus
		}
	}

	if resp.Consensus != nil {
		event.ImpossibilityScore = &resp.Consensus.ImpossibilityScore
	} else {
		event.ImpossibilityScore = &results[0].ImpossibilityScore
	}
	h.bus.Emit("evaluation", event)

	if decay, err := h.service.Decay(dreamID); err != nil {
		h.log.Warn().Err(err).Str("dream_id", dreamID).Msg("Could not calculate decay analysis")
	} else {
		resp.Decay = &decay
	}

	all, err := h.records.List(evaluation.Filter{DreamID: dreamID})
	if err != nil {
		h.log.Warn().Err(err).Str("dream_id", dreamID).Msg("Could not load evaluation totals")
	} else {
		resp.TotalTests = len(all)
		if progress, ok := evaluation.SummarizeProgress(all); ok {
			resp.Progress = &progress
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type providerStats struct {
	Count            int      `json:"count"`
	AvgImpossibility float64  `json:"avg_impossibility"`
	AvgConfidence    float64  `json:"avg_confidence"`
	Models           []string `json:"models"`
}

type historySummary struct {
	TotalEvaluations     int     `json:"total_evaluations"`
	AverageImpossibility float64 `json:"average_impossibility"`
	AverageConfidence    float64 `json:"average_confidence"`
	LatestScore          float64 `json:"latest_score"`
	OldestScore          float64 `json:"oldest_score"`
}

type trendPoint struct {
	Date               time.Time `json:"date"`
	ImpossibilityScore float64   `json:"impossibility_score"`
	Confidence         float64   `json:"confidence"`
	Provider           string    `json:"provider"`
	Model              string    `json:"model"`
}

type historyAnalysis struct {
	Decay         *evaluation.DecayAnalysis `json:"decay"`
	ScoreTrend    []trendPoint              `json:"score_trend"`
	ProviderStats map[string]*providerStats `json:"provider_stats"`
	Summary       historySummary            `json:"summary"`
	Progress      *evaluation.Progress      `json:"progress"`
}

// HandleHistory handles GET /api/dreams/{id}/evaluations?limit=&provider=&analysis=true
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	dreamID := chi.URLParam(r, "id")
	query := r.URL.Query()

	limit := defaultHistoryLimit
	if v := query.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	dream, ok := h.loadDream(w, dreamID)
	if !ok {
		return
	}

	records, err := h.records.List(evaluation.Filter{
		DreamID:  dreamID,
		Provider: strings.ToLower(query.Get("provider")),
		Status:   evaluation.StatusCompleted,
		Limit:    limit,
	})
	if err != nil {
		h.log.Error().Err(err).Str("dream_id", dreamID).Msg("Failed to fetch evaluation history")
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch evaluation history")
		return
	}

	results := make([]evaluation.Result, len(records))
	for i, rec := range records {
		results[i] = rec.Result()
	}

	var analysis *historyAnalysis
	if query.Get("analysis") == "true" && len(records) > 0 {
		analysis = h.analyze(dreamID, records)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"dream_id":    dreamID,
		"dream_title": dream.Title,
		"evaluations": results,
		"analysis":    analysis,
		"pagination": map[string]int{
			"limit": limit,
			"total": len(results),
		},
	})
}

// analyze builds the optional history analysis. records are newest first.
func (h *Handler) analyze(dreamID string, records []evaluation.Record) *historyAnalysis {
	a := &historyAnalysis{
		ScoreTrend:    make([]trendPoint, len(records)),
		ProviderStats: make(map[string]*providerStats),
	}

	if decay, err := h.service.Decay(dreamID); err == nil {
		a.Decay = &decay
	} else {
		h.log.Warn().Err(err).Str("dream_id", dreamID).Msg("Failed to generate decay analysis")
	}

	var sumImpossibility, sumConfidence float64
	seenModels := make(map[string]map[string]bool)
	for i, rec := range records {
		a.ScoreTrend[i] = trendPoint{
			Date:               rec.CreatedAt,
			ImpossibilityScore: rec.ImpossibilityScore,
			Confidence:         rec.Confidence,
			Provider:           rec.Provider,
			Model:              rec.Model,
		}

		stats, ok := a.ProviderStats[rec.Provider]
		if !ok {
			stats = &providerStats{Models: []string{}}
			a.ProviderStats[rec.Provider] = stats
			seenModels[rec.Provider] = make(map[string]bool)
		}
		prev := float64(stats.Count)
		stats.Count++
		stats.AvgImpossibility = (stats.AvgImpossibility*prev + rec.ImpossibilityScore) / float64(stats.Count)
		stats.AvgConfidence = (stats.AvgConfidence*prev + rec.Confidence) / float64(stats.Count)
		if !seenModels[rec.Provider][rec.Model] {
			seenModels[rec.Provider][rec.Model] = true
			stats.Models = append(stats.Models, rec.Model)
		}

		sumImpossibility += rec.ImpossibilityScore
		sumConfidence += rec.Confidence
	}

	n := float64(len(records))
	a.Summary = historySummary{
		TotalEvaluations:     len(records),
		AverageImpossibility: sumImpossibility / n,
		AverageConfidence:    sumConfidence / n,
		LatestScore:          records[0].ImpossibilityScore,
		OldestScore:          records[len(records)-1].ImpossibilityScore,
	}

	if progress, ok := evaluation.SummarizeProgress(records); ok {
		a.Progress = &progress
	}

	return a
}

// HandleDecay handles GET /api/dreams/{id}/decay
func (h *Handler) HandleDecay(w http.ResponseWriter, r *http.Request) {
	dreamID := chi.URLParam(r, "id")

	if _, ok := h.loadDream(w, dreamID); !ok {
		return
	}

	decay, err := h.service.Decay(dreamID)
	if err != nil {
		if errors.Is(err, evaluation.ErrNoHistory) {
			h.writeError(w, http.StatusNotFound, "No completed evaluations for dream")
			return
		}
		h.log.Error().Err(err).Str("dream_id", dreamID).Msg("Failed to analyze decay")
		h.writeError(w, http.StatusInternalServerError, "Failed to analyze decay")
		return
	}

	h.writeJSON(w, http.StatusOK, decay)
}

func (h *Handler) loadDream(w http.ResponseWriter, id string) (*dreams.Dream, bool) {
	dream, err := h.dreams.GetByID(id)
	if err != nil {
		if errors.Is(err, dreams.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Dream not found")
			return nil, false
		}
		h.log.Error().Err(err).Str("dream_id", id).Msg("Failed to load dream")
		h.writeError(w, http.StatusInternalServerError, "Failed to load dream")
		return nil, false
	}
	return dream, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
