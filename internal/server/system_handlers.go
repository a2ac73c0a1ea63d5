package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/advisor/internal/engine"
)

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status             string  `json:"status"`
	Version            string  `json:"version"`
	UptimeSeconds      int64   `json:"uptime_seconds"`
	CPUPercent         float64 `json:"cpu_percent"`
	RAMPercent         float64 `json:"ram_percent"`
	TrackedInstruments int     `json:"tracked_instruments"`
	CachedEntries      int     `json:"cached_entries"`
	RegistryGeneration uint64  `json:"registry_generation"`
}

// handleSystemStatus handles GET /api/v1/system/status
func (h *handlers) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:             "ok",
		Version:            engine.Version,
		UptimeSeconds:      int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:         cpuPercent,
		RAMPercent:         ramPercent,
		TrackedInstruments: len(h.ordered),
		CachedEntries:      h.cache.Len(),
		RegistryGeneration: h.registry.Generation(),
	})
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a short sampling interval (100ms) to keep the endpoint responsive.
func (h *handlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
