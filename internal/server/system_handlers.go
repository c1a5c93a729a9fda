package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/regret/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves the monitoring endpoints: liveness, host
// resource usage and per-database integrity status.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases map[string]*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
	}
}

// HandleHealth handles GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	for name, db := range h.databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Health check failed")
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
	})
}

// HandleSystemInfo handles GET /api/system/info
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		info["cpu_percent"] = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}
	if usage, err := disk.Usage(h.dataDir); err == nil {
		info["disk"] = map[string]interface{}{
			"total_gb":     usage.Total / 1024 / 1024 / 1024,
			"free_gb":      usage.Free / 1024 / 1024 / 1024,
			"used_percent": usage.UsedPercent,
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": info,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDatabaseStatus handles GET /api/system/databases
func (h *SystemHandlers) HandleDatabaseStatus(w http.ResponseWriter, r *http.Request) {
	statuses := make(map[string]interface{}, len(h.databases))
	for name, db := range h.databases {
		status := map[string]interface{}{"path": db.Path(), "ok": true}
		if err := db.QuickCheck(r.Context()); err != nil {
			status["ok"] = false
			status["error"] = err.Error()
		}
		statuses[name] = status
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": statuses,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
