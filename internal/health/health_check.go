package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/store"
	"go.uber.org/zap"
)

// HealthChecker provides liveness and readiness endpoints
type HealthChecker struct {
	cache         store.DeviceCache
	settingsStore store.SettingsStore
	logger        *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(cache store.DeviceCache, settingsStore store.SettingsStore, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		cache:         cache,
		settingsStore: settingsStore,
		logger:        logger,
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler handles readiness probe requests
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.cache.Ping(ctx); err != nil {
		h.logger.Error("Device cache health check failed", zap.Error(err))
		checks["device_cache"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["device_cache"] = "healthy"
	}

	if err := h.settingsStore.Ping(ctx); err != nil {
		h.logger.Error("Settings store health check failed", zap.Error(err))
		checks["settings_store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["settings_store"] = "healthy"
	}

	status := HealthStatus{
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")

	if allHealthy {
		status.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		status.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(status)
}
