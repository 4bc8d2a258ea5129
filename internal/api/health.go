package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/minigames/internal/games"
)

// HealthStatus is the overall health of the server.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse is the body of GET /health.
type HealthCheckResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   VersionInfo            `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	Sessions  SessionCounts          `json:"sessions"`
	System    SystemInfo             `json:"system"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HealthCheck is one component check.
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SessionCounts reports live sessions.
type SessionCounts struct {
	Lotteries int `json:"lotteries"`
	Races     int `json:"races"`
}

// SystemInfo contains runtime information.
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]HealthCheck{
		"games":   s.checkGamesHealth(),
		"history": s.checkHistoryHealth(r.Context()),
	}

	overall := HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case c.Status == HealthStatusDegraded && overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}

	lotteries, races := s.sessions.Counts()
	response := HealthCheckResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   GetVersionInfo(),
		Uptime:    time.Since(s.startTime).String(),
		Checks:    checks,
		Sessions:  SessionCounts{Lotteries: lotteries, Races: races},
		System:    getSystemInfo(),
		RequestID: middleware.GetReqID(r.Context()),
	}

	status := http.StatusOK
	if overall == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, response)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alive":      true,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    Version,
		"uptime":     time.Since(s.startTime).String(),
		"request_id": middleware.GetReqID(r.Context()),
	})
}

func (s *Server) checkGamesHealth() HealthCheck {
	start := time.Now()
	specs := games.ListGames()
	status := HealthStatusHealthy
	message := fmt.Sprintf("%d games available", len(specs))
	if len(specs) == 0 {
		status = HealthStatusUnhealthy
		message = "No games available"
	}
	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

// checkHistoryHealth pings the database. A disabled ledger only degrades.
func (s *Server) checkHistoryHealth(ctx context.Context) HealthCheck {
	start := time.Now()
	status := HealthStatusHealthy
	message := "Database connection healthy"

	if s.history == nil {
		status = HealthStatusDegraded
		message = "History disabled"
	} else {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.history.Ping(ctx); err != nil {
			status = HealthStatusUnhealthy
			message = fmt.Sprintf("Database ping failed: %v", err)
		}
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		MemoryAlloc:   m.Alloc,
		GCCycles:      m.NumGC,
	}
}
