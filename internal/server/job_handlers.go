package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/dreamengine/internal/di"
	"github.com/aristath/dreamengine/internal/scheduler"
)

// JobHandlers exposes manual job triggers
type JobHandlers struct {
	retest *scheduler.RetestScheduler
	jobs   *di.JobInstances
	log    zerolog.Logger
}

// NewJobHandlers creates new job handlers
func NewJobHandlers(retest *scheduler.RetestScheduler, jobs *di.JobInstances, log zerolog.Logger) *JobHandlers {
	return &JobHandlers{
		retest: retest,
		jobs:   jobs,
		log:    log.With().Str("handler", "jobs").Logger(),
	}
}

// RegisterRoutes registers job routes that finish quickly.
// POST /api/jobs/retest/run is registered separately without a deadline.
func (h *JobHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/api/jobs", h.HandleList)
	r.Get("/api/jobs/retest/status", h.HandleRetestStatus)
	r.Post("/api/jobs/{name}/run", h.HandleRunJob)
}

// HandleList handles GET /api/jobs
func (h *JobHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.jobs.Scheduler.Jobs(),
	})
}

// HandleRunRetest handles POST /api/jobs/retest/run. The pass runs
// synchronously and the summary is returned; an overlapping request gets
// 409 with a rejected summary.
func (h *JobHandlers) HandleRunRetest(w http.ResponseWriter, r *http.Request) {
	summary, err := h.retest.RunOnce(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual retest pass failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if summary.Rejected {
		writeJSON(w, http.StatusConflict, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleRetestStatus handles GET /api/jobs/retest/status
func (h *JobHandlers) HandleRetestStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": h.retest.Status(),
		"config": h.retest.Config(),
	})
}

// HandleRunJob handles POST /api/jobs/{name}/run for the maintenance jobs
func (h *JobHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == h.retest.Name() {
		h.HandleRunRetest(w, r)
		return
	}

	job, ok := h.jobs.ByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if err := h.jobs.Scheduler.RunNow(job); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "failed",
			"job":    name,
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "completed",
		"job":    name,
	})
}
