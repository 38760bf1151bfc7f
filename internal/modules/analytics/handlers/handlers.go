// Package handlers provides HTTP handlers for analytics reports.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/aristath/dreamengine/internal/modules/analytics"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxRangeDays = 365

// Handler handles analytics HTTP requests
type Handler struct {
	service *analytics.Service
	log     zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analytics").Logger(),
	}
}

// RegisterRoutes registers analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/analytics", h.HandleReport)
}

// HandleReport handles GET /api/analytics?user_id=&range=&metric=&global=
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := strings.TrimSpace(q.Get("user_id"))
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	opts := analytics.Options{
		Days:          analytics.DefaultDays,
		Metric:        analytics.MetricAll,
		IncludeGlobal: q.Get("global") == "true",
	}
	if raw := q.Get("range"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 || days > maxRangeDays {
			h.writeError(w, http.StatusBadRequest, "range must be a number of days between 1 and 365")
			return
		}
		opts.Days = days
	}
	if raw := q.Get("metric"); raw != "" {
		opts.Metric = analytics.Metric(raw)
		if !opts.Metric.Valid() {
			h.writeError(w, http.StatusBadRequest, "metric must be one of all, overview, trends, costs, dreams")
			return
		}
	}

	report, err := h.service.Report(userID, opts)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to build analytics report")
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch analytics")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
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
