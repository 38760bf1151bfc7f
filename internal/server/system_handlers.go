package server

import (
	"context"
	"io/fs"
	"net/http"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/dreamengine/internal/database"
	"github.com/aristath/dreamengine/internal/events"
	"github.com/aristath/dreamengine/internal/llm"
	"github.com/aristath/dreamengine/internal/scheduler"
)

const healthCheckTimeout = 5 * time.Second

// JobLister reports registered cron jobs
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// SystemHandlers serves health and status endpoints
type SystemHandlers struct {
	dataDir   string
	databases map[string]*database.DB
	jobs      JobLister
	bus       *events.Bus
	providers *llm.Registry
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(
	dataDir string,
	databases map[string]*database.DB,
	jobs JobLister,
	bus *events.Bus,
	providers *llm.Registry,
	startedAt time.Time,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		dataDir:   dataDir,
		databases: databases,
		jobs:      jobs,
		bus:       bus,
		providers: providers,
		startedAt: startedAt,
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/system", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/status", h.HandleStatus)
	})
}

// HealthResponse reports per-database health
type HealthResponse struct {
	Status    string            `json:"status"` // "healthy" or "degraded"
	Version   string            `json:"version"`
	Databases map[string]string `json:"databases"`
}

// HandleHealth handles GET /api/system/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Databases: make(map[string]string, len(h.databases)),
	}

	for name, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Database health check failed")
			response.Databases[name] = err.Error()
			response.Status = "degraded"
			continue
		}
		response.Databases[name] = "ok"
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// StatusResponse is the operational snapshot served by /api/system/status
type StatusResponse struct {
	Status           string                     `json:"status"`
	Version          string                     `json:"version"`
	UptimeSeconds    int64                      `json:"uptime_seconds"`
	Goroutines       int                        `json:"goroutines"`
	CPUPercent       float64                    `json:"cpu_percent"`
	MemoryPercent    float64                    `json:"memory_percent"`
	DiskPercent      float64                    `json:"disk_percent"`
	DiskFreeMB       float64                    `json:"disk_free_mb"`
	DataDirSizeMB    float64                    `json:"data_dir_size_mb"`
	Databases        map[string]*database.Stats `json:"databases"`
	Providers        []string                   `json:"providers"`
	Jobs             []scheduler.JobInfo        `json:"jobs"`
	EventSubscribers int                        `json:"event_subscribers"`
	EventsDropped    int64                      `json:"events_dropped"`
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()
	diskPercent, diskFree := h.getDiskStats()

	response := StatusResponse{
		Status:        "healthy",
		Version:       Version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DiskPercent:   diskPercent,
		DiskFreeMB:    diskFree,
		DataDirSizeMB: getDirSize(h.dataDir),
		Databases:     make(map[string]*database.Stats, len(h.databases)),
		Providers:     []string{},
		Jobs:          []scheduler.JobInfo{},
	}

	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats, err := h.databases[name].GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			response.Status = "degraded"
			continue
		}
		response.Databases[name] = stats
	}

	if h.providers != nil {
		response.Providers = h.providers.Names()
	}
	if h.jobs != nil {
		response.Jobs = h.jobs.Jobs()
	}
	if h.bus != nil {
		response.EventSubscribers = h.bus.Subscribers()
		response.EventsDropped = h.bus.Dropped()
	}

	writeJSON(w, http.StatusOK, response)
}

// getSystemStats returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}

// getDiskStats returns usage percent and free MB of the data directory's filesystem
func (h *SystemHandlers) getDiskStats() (float64, float64) {
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("path", h.dataDir).Msg("Failed to get disk usage")
		return 0, 0
	}
	return usage.UsedPercent, float64(usage.Free) / 1024 / 1024
}

// getDirSize returns the total size of regular files under path in MB
func getDirSize(path string) float64 {
	var totalSize int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				totalSize += info.Size()
			}
		}
		return nil
	})
	return float64(totalSize) / 1024 / 1024
}
