// Package handlers provides HTTP handlers for runtime settings.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ChangeHook applies stored settings to running components. An error
// rejects the change and the previous value is restored.
type ChangeHook func() error

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service  *settings.Service
	bus      *events.Bus
	onChange ChangeHook
	log      zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		bus:     bus,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// SetChangeHook sets the hook run after every successful write
func (h *Handler) SetChangeHook(hook ChangeHook) {
	h.onChange = hook
}

// RegisterRoutes registers settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/{key}", h.HandleGet)
		r.Put("/{key}", h.HandleUpdate)
		r.Delete("/{key}", h.HandleReset)
	})
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get all settings")
		h.writeError(w, http.StatusInternalServerError, "Failed to get settings")
		return
	}
	h.writeJSON(w, http.StatusOK, all)
}

// HandleGet handles GET /api/settings/{key}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	setting, err := h.service.Get(chi.URLParam(r, "key"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, setting)
}

// HandleUpdate handles PUT /api/settings/{key}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var update settings.SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.apply(w, key, func() (settings.Setting, error) {
		return h.service.Set(key, update.Value)
	})
}

// HandleReset handles DELETE /api/settings/{key}
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	h.apply(w, key, func() (settings.Setting, error) {
		return h.service.Reset(key)
	})
}

// apply performs a write, runs the change hook and rolls back when the hook
// rejects the resulting configuration
func (h *Handler) apply(w http.ResponseWriter, key string, write func() (settings.Setting, error)) {
	if _, err := h.service.Get(key); err != nil {
		h.handleServiceError(w, err)
		return
	}

	previous, err := h.service.Repository().Get(key)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	setting, err := write()
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if h.onChange != nil {
		if err := h.onChange(); err != nil {
			if rerr := h.service.Restore(key, previous); rerr != nil {
				h.log.Error().Err(rerr).Str("key", key).Msg("Failed to restore setting after rejected change")
			}
			h.log.Warn().Err(err).Str("key", key).Msg("Setting change rejected")
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	h.bus.Emit("settings", &events.SettingsChangedData{Key: key, Value: setting.Value})
	h.writeJSON(w, http.StatusOK, setting)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settings.ErrUnknownSetting):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settings.ErrInvalidValue):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Settings operation failed")
		h.writeError(w, http.StatusInternalServerError, "Settings operation failed")
	}
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
