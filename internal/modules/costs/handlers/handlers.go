// Package handlers provides HTTP handlers for cost reporting and rate limits.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/dreamengine/internal/modules/costs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Handler handles cost HTTP requests
type Handler struct {
	tracker      *costs.Tracker
	defaultLimit int
	log          zerolog.Logger
}

// NewHandler creates a new cost handler. defaultLimit is used by the
// rate-limit endpoint when the request does not carry its own limit.
func NewHandler(tracker *costs.Tracker, defaultLimit int, log zerolog.Logger) *Handler {
	return &Handler{
		tracker:      tracker,
		defaultLimit: defaultLimit,
		log:          log.With().Str("handler", "costs").Logger(),
	}
}

// RegisterRoutes registers cost routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/costs", func(r chi.Router) {
		r.Get("/summary", h.HandleSummary)
		r.Get("/today", h.HandleToday)
		r.Get("/rate-limit", h.HandleRateLimit)
	})
}

// HandleSummary handles GET /api/costs/summary?start=YYYY-MM-DD&end=YYYY-MM-DD&user_id=
// Defaults to the last 30 days. The end date covers the whole day.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	end := now
	start := costs.StartOfDay(now).AddDate(0, 0, -30)

	if v := r.URL.Query().Get("start"); v != "" {
		parsed, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid start date (expected YYYY-MM-DD)")
			return
		}
		start = parsed
	}
	if v := r.URL.Query().Get("end"); v != "" {
		parsed, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid end date (expected YYYY-MM-DD)")
			return
		}
		end = parsed.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	if end.Before(start) {
		h.writeError(w, http.StatusBadRequest, "End date is before start date")
		return
	}

	summary, err := h.tracker.Summarize(start, end, r.URL.Query().Get("user_id"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to summarize costs")
		h.writeError(w, http.StatusInternalServerError, "Failed to summarize costs")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// HandleToday handles GET /api/costs/today
func (h *Handler) HandleToday(w http.ResponseWriter, r *http.Request) {
	usage, err := h.tracker.DailyUsage()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get daily usage")
		h.writeError(w, http.StatusInternalServerError, "Failed to get daily usage")
		return
	}

	models, err := h.tracker.ModelRequestsToday()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get model requests")
		h.writeError(w, http.StatusInternalServerError, "Failed to get model requests")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"usage":  usage,
		"models": models,
	})
}

// HandleRateLimit handles GET /api/costs/rate-limit?user_id=&limit=N
func (h *Handler) HandleRateLimit(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := h.defaultLimit

	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	result, err := h.tracker.CheckRateLimit(userID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to check rate limit")
		h.writeError(w, http.StatusInternalServerError, "Failed to check rate limit")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
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
