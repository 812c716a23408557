// Package handler provides HTTP request handlers for the monitor API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/david-crosby/Jamf-Monitor/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DeviceEvaluator evaluates a single device's health
type DeviceEvaluator interface {
	Evaluate(ctx context.Context, deviceID int, useCache bool) (*model.DeviceHealthRecord, error)
}

// InventoryEvaluator evaluates the whole inventory
type InventoryEvaluator interface {
	EvaluateAll(ctx context.Context, useCache bool) (*service.BulkResult, error)
}

// SettingsManager reads and writes threshold and group configuration
type SettingsManager interface {
	GetThresholds(ctx context.Context) (model.HealthThresholds, error)
	SetThresholds(ctx context.Context, t model.HealthThresholds) error
	GetComplianceGroup(ctx context.Context) (string, error)
	SetComplianceGroup(ctx context.Context, name string) error
	GetMonitoredGroups(ctx context.Context) ([]string, error)
	SetMonitoredGroups(ctx context.Context, groups []string) error
}

// CacheSweeper removes expired cache entries on demand
type CacheSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// SmartGroupLister lists the smart groups defined upstream
type SmartGroupLister interface {
	ListSmartGroups(ctx context.Context) ([]model.SmartGroup, error)
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	evaluator   DeviceEvaluator
	bulk        InventoryEvaluator
	settings    SettingsManager
	sweeper     CacheSweeper
	smartGroups SmartGroupLister
	errWriter   *ErrorWriter
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	evaluator DeviceEvaluator,
	bulk InventoryEvaluator,
	settings SettingsManager,
	sweeper CacheSweeper,
	smartGroups SmartGroupLister,
	errWriter *ErrorWriter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		evaluator:   evaluator,
		bulk:        bulk,
		settings:    settings,
		sweeper:     sweeper,
		smartGroups: smartGroups,
		errWriter:   errWriter,
		logger:      logger,
	}
}

// DeviceListResponse is the payload for GET /v1/devices.
type DeviceListResponse struct {
	Total          int                         `json:"total"`
	Devices        []*model.DeviceHealthRecord `json:"devices"`
	HealthyCount   int                         `json:"healthy_count"`
	CautionCount   int                         `json:"caution_count"`
	UnhealthyCount int                         `json:"unhealthy_count"`
	FailedCount    int                         `json:"failed_count"`
	Failures       []service.DeviceFailure     `json:"failures,omitempty"`
}

// StatusSummaryResponse is the payload for GET /v1/devices/status/summary.
type StatusSummaryResponse struct {
	Total       int                `json:"total"`
	Healthy     int                `json:"healthy"`
	Caution     int                `json:"caution"`
	Unhealthy   int                `json:"unhealthy"`
	Failed      int                `json:"failed"`
	Percentages map[string]float64 `json:"percentages"`
}

// GroupSettingsResponse is the payload for the monitored-groups endpoints.
type GroupSettingsResponse struct {
	ComplianceGroup string   `json:"compliance_group"`
	MonitoredGroups []string `json:"monitored_groups"`
}

// useCacheParam reads the use_cache query parameter, defaulting to true
func useCacheParam(r *http.Request) bool {
	value := r.URL.Query().Get("use_cache")
	if value == "" {
		return true
	}
	useCache, err := strconv.ParseBool(value)
	if err != nil {
		return true
	}
	return useCache
}

// ListDevices handles GET /v1/devices requests.
func (h *Handlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	result, err := h.bulk.EvaluateAll(r.Context(), useCacheParam(r))
	if err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	records := result.Records
	if filter := r.URL.Query().Get("status"); filter != "" {
		status := model.HealthStatus(filter)
		if !status.IsValid() {
			h.errWriter.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest,
				"status must be one of: healthy, caution, unhealthy", r.Header.Get("X-Request-ID"))
			return
		}
		filtered := make([]*model.DeviceHealthRecord, 0, len(records))
		for _, rec := range records {
			if rec.Status == status {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	counts := make(map[model.HealthStatus]int, 3)
	for _, rec := range records {
		counts[rec.Status]++
	}

	h.writeJSONResponse(w, http.StatusOK, DeviceListResponse{
		Total:          len(records),
		Devices:        records,
		HealthyCount:   counts[model.StatusHealthy],
		CautionCount:   counts[model.StatusCaution],
		UnhealthyCount: counts[model.StatusUnhealthy],
		FailedCount:    len(result.Failures),
		Failures:       result.Failures,
	})
}

// GetDevice handles GET /v1/devices/{device_id} requests.
func (h *Handlers) GetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := strconv.Atoi(mux.Vars(r)["device_id"])
	if err != nil {
		h.errWriter.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest,
			"device_id must be an integer", r.Header.Get("X-Request-ID"))
		return
	}

	record, err := h.evaluator.Evaluate(r.Context(), deviceID, useCacheParam(r))
	if err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, record)
}

// GetStatusSummary handles GET /v1/devices/status/summary requests.
func (h *Handlers) GetStatusSummary(w http.ResponseWriter, r *http.Request) {
	result, err := h.bulk.EvaluateAll(r.Context(), useCacheParam(r))
	if err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	counts := result.CountByStatus()
	total := len(result.Records)

	percentage := func(n int) float64 {
		if total == 0 {
			return 0
		}
		return float64(int(float64(n)/float64(total)*1000+0.5)) / 10
	}

	h.writeJSONResponse(w, http.StatusOK, StatusSummaryResponse{
		Total:     total,
		Healthy:   counts[model.StatusHealthy],
		Caution:   counts[model.StatusCaution],
		Unhealthy: counts[model.StatusUnhealthy],
		Failed:    len(result.Failures),
		Percentages: map[string]float64{
			"healthy":   percentage(counts[model.StatusHealthy]),
			"caution":   percentage(counts[model.StatusCaution]),
			"unhealthy": percentage(counts[model.StatusUnhealthy]),
		},
	})
}

// GetThresholds handles GET /v1/settings/thresholds requests.
func (h *Handlers) GetThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := h.settings.GetThresholds(r.Context())
	if err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, thresholds)
}

// UpdateThresholds handles PUT /v1/settings/thresholds requests.
func (h *Handlers) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var thresholds model.HealthThresholds
	if err := json.NewDecoder(r.Body).Decode(&thresholds); err != nil {
		h.errWriter.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest,
			"request body must be valid JSON thresholds", r.Header.Get("X-Request-ID"))
		return
	}

	if err := h.settings.SetThresholds(r.Context(), thresholds); err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, thresholds)
}

// GetMonitoredGroups handles GET /v1/settings/monitored-groups requests.
func (h *Handlers) GetMonitoredGroups(w http.ResponseWriter, r *http.Request) {
	resp, err := h.groupSettings(r.Context())
	if err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// UpdateMonitoredGroups handles PUT /v1/settings/monitored-groups requests.
func (h *Handlers) UpdateMonitoredGroups(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ComplianceGroup *string  `json:"compliance_group"`
		MonitoredGroups []string `json:"monitored_groups"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.errWriter.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest,
			"request body must be valid JSON", r.Header.Get("X-Request-ID"))
		return
	}

	if body.ComplianceGroup != nil {
		if err := h.settings.SetComplianceGroup(r.Context(), *body.ComplianceGroup); err != nil {
			h.errWriter.HandleError(w, r, err)
			return
		}
	}
	if body.MonitoredGroups != nil {
		if err := h.settings.SetMonitoredGroups(r.Context(), body.MonitoredGroups); err != nil {
			h.errWriter.HandleError(w, r, err)
			return
		}
	}

	resp, err := h.groupSettings(r.Context())
	if err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) groupSettings(ctx context.Context) (*GroupSettingsResponse, error) {
	complianceGroup, err := h.settings.GetComplianceGroup(ctx)
	if err != nil {
		return nil, err
	}
	monitoredGroups, err := h.settings.GetMonitoredGroups(ctx)
	if err != nil {
		return nil, err
	}
	return &GroupSettingsResponse{
		ComplianceGroup: complianceGroup,
		MonitoredGroups: monitoredGroups,
	}, nil
}

// ListSmartGroups handles GET /v1/groups/smart requests.
func (h *Handlers) ListSmartGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.smartGroups.ListSmartGroups(r.Context())
	if err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string][]model.SmartGroup{"groups": groups})
}

// SweepCache handles POST /v1/cache/sweep requests.
func (h *Handlers) SweepCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.errWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
