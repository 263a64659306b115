package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/finvoice/riskengine/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves host and storage status
type SystemHandlers struct {
	databases []*database.DB
	events    EventCounter
	providers []string
	startedAt time.Time
	log       zerolog.Logger

	// swapped in tests
	hostStats func() (float64, float64)
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status             string            `json:"status"`
	StartedAt          time.Time         `json:"started_at"`
	UptimeSeconds      int64             `json:"uptime_seconds"`
	CPUPercent         float64           `json:"cpu_percent"`
	MemoryPercent      float64           `json:"memory_percent"`
	Goroutines         int               `json:"goroutines"`
	ActiveCrisisEvents int               `json:"active_crisis_events"`
	QuoteProviders     []string          `json:"quote_providers"`
	Databases          []*database.Stats `json:"databases"`
}

// DatabaseHealth is one entry of GET /api/system/databases
type DatabaseHealth struct {
	Stats   *database.Stats `json:"stats,omitempty"`
	Name    string          `json:"name"`
	Error   string          `json:"error,omitempty"`
	Healthy bool            `json:"healthy"`
}

// NewSystemHandlers creates the system handlers. Nil databases are skipped.
func NewSystemHandlers(databases []*database.DB, events EventCounter, providers []string, log zerolog.Logger) *SystemHandlers {
	var dbs []*database.DB
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}

	h := &SystemHandlers{
		databases: dbs,
		events:    events,
		providers: providers,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
	h.hostStats = h.getSystemStats
	return h
}

// HandleSystemStatus reports host load, uptime, database sizes and the
// number of active crisis events
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.hostStats()

	response := SystemStatusResponse{
		Status:         "healthy",
		StartedAt:      h.startedAt.UTC(),
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		Goroutines:     runtime.NumGoroutine(),
		QuoteProviders: h.providers,
		Databases:      []*database.Stats{},
	}
	if response.QuoteProviders == nil {
		response.QuoteProviders = []string{}
	}
	if h.events != nil {
		response.ActiveCrisisEvents = h.events.Count()
	}

	for _, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			response.Status = "degraded"
			continue
		}
		response.Databases = append(response.Databases, stats)
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleDatabaseStats runs a health check against every database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make([]DatabaseHealth, 0, len(h.databases))
	for _, db := range h.databases {
		entry := DatabaseHealth{Name: db.Name(), Healthy: true}
		if err := db.HealthCheck(ctx); err != nil {
			entry.Healthy = false
			entry.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else if stats, err := db.GetStats(); err == nil {
			entry.Stats = stats
		}
		results = append(results, entry)
	}

	writeJSON(w, status, map[string]interface{}{"databases": results}, h.log)
}

// getSystemStats calculates CPU and RAM usage percentages over a short
// sampling window
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
