// Package handlers provides HTTP handlers for dream management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/modules/dreams"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles dream HTTP requests
type Handler struct {
	repo *dreams.Repository
	bus  *events.Bus
	log  zerolog.Logger
}

// NewHandler creates a new dreams handler
func NewHandler(repo *dreams.Repository, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("handler", "dreams").Logger(),
	}
}

// RegisterRoutes registers dream routes.
// Paths are registered in full so evaluation routes can share the /api/dreams prefix.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/dreams", h.HandleCreate)
	r.Get("/api/dreams", h.HandleList)
	r.Get("/api/dreams/{id}", h.HandleGet)
	r.Put("/api/dreams/{id}/status", h.HandleUpdateStatus)
}

type createRequest struct {
	UserID         string `json:"user_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	OriginalPrompt string `json:"original_prompt"`
	Category       string `json:"category"`
}

// HandleCreate handles POST /api/dreams
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	dream := &dreams.Dream{
		UserID:         strings.TrimSpace(req.UserID),
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		OriginalPrompt: req.OriginalPrompt,
		Category:       req.Category,
	}
	if err := h.repo.Create(dream); err != nil {
		if errors.Is(err, dreams.ErrInvalid) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to create dream")
		h.writeError(w, http.StatusInternalServerError, "Failed to create dream")
		return
	}

	h.bus.Emit("dreams", &events.DreamCreatedData{
		DreamID: dream.ID,
		UserID:  dream.UserID,
		Title:   dream.Title,
	})

	h.writeJSON(w, http.StatusCreated, dream)
}

// HandleGet handles GET /api/dreams/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dream, err := h.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, dreams.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Dream not found")
			return
		}
		h.log.Error().Err(err).Str("dream_id", id).Msg("Failed to get dream")
		h.writeError(w, http.StatusInternalServerError, "Failed to get dream")
		return
	}

	h.writeJSON(w, http.StatusOK, dream)
}

// HandleList handles GET /api/dreams?user_id=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	list, err := h.repo.ListByUser(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list dreams")
		h.writeError(w, http.StatusInternalServerError, "Failed to list dreams")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"dreams": list,
		"count":  len(list),
	})
}

// HandleUpdateStatus handles PUT /api/dreams/{id}/status
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status dreams.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.repo.UpdateStatus(id, req.Status); err != nil {
		switch {
		case errors.Is(err, dreams.ErrInvalid):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, dreams.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "Dream not found")
		default:
			h.log.Error().Err(err).Str("dream_id", id).Msg("Failed to update dream status")
			h.writeError(w, http.StatusInternalServerError, "Failed to update dream status")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(req.Status),
	})
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
