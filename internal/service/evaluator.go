package service

import (
	"context"
	"fmt"
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/metrics"
	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/david-crosby/Jamf-Monitor/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DeviceAPI is the slice of the upstream client the evaluator depends on
type DeviceAPI interface {
	ListInventory(ctx context.Context) ([]model.DeviceRef, error)
	GetDeviceDetail(ctx context.Context, deviceID int) (*model.DeviceDetail, error)
	GetFailedPolicies(ctx context.Context, deviceID int) ([]model.FailedPolicy, error)
	GetMDMCommands(ctx context.Context, deviceID int) (*model.CommandSplit, error)
	GetGroupMemberships(ctx context.Context, deviceID int) ([]string, error)
}

// Evaluator orchestrates a single device's health evaluation: consult the
// cache, on miss fetch the raw signals, classify, and write the record
// through to the cache. It owns no persistent state of its own.
type Evaluator struct {
	api      DeviceAPI
	cache    store.DeviceCache
	settings *SettingsService
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// testable clock
	now func() time.Time
}

// NewEvaluator creates a new health evaluator
func NewEvaluator(
	api DeviceAPI,
	cache store.DeviceCache,
	settings *SettingsService,
	cacheTTL time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		api:      api,
		cache:    cache,
		settings: settings,
		cacheTTL: cacheTTL,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate returns the health record for one device. With useCache set, a
// non-expired cached record is returned unchanged with no upstream calls.
// Otherwise the four independent signal fetches run concurrently; if any of
// them fails the whole evaluation fails and nothing is cached.
func (e *Evaluator) Evaluate(ctx context.Context, deviceID int, useCache bool) (*model.DeviceHealthRecord, error) {
	if useCache {
		cached, err := e.cache.Get(ctx, deviceID)
		if err == nil {
			e.metrics.RecordCacheHit()
			e.logger.Debug("Serving device health from cache", zap.Int("device_id", deviceID))
			return cached, nil
		}
		if err != store.ErrNotFound {
			e.logger.Warn("Cache read failed, evaluating from upstream",
				zap.Int("device_id", deviceID),
				zap.Error(err))
		}
		e.metrics.RecordCacheMiss()
	}

	start := e.now()

	var (
		detail      *model.DeviceDetail
		failed      []model.FailedPolicy
		commands    *model.CommandSplit
		memberships []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail, err = e.api.GetDeviceDetail(gctx, deviceID)
		return err
	})
	g.Go(func() error {
		var err error
		failed, err = e.api.GetFailedPolicies(gctx, deviceID)
		return err
	})
	g.Go(func() error {
		var err error
		commands, err = e.api.GetMDMCommands(gctx, deviceID)
		return err
	})
	g.Go(func() error {
		var err error
		memberships, err = e.api.GetGroupMemberships(gctx, deviceID)
		return err
	})
	if err := g.Wait(); err != nil {
		e.metrics.RecordEvaluation("error", e.now().Sub(start).Seconds())
		return nil, err
	}

	thresholds, err := e.settings.GetThresholds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds: %w", err)
	}
	complianceGroup, err := e.settings.GetComplianceGroup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read compliance group: %w", err)
	}
	monitoredGroups, err := e.settings.GetMonitoredGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read monitored groups: %w", err)
	}

	evaluatedAt := e.now().UTC()
	signals := model.RawDeviceSignals{
		LastContactTime:     detail.LastContactTime,
		LastInventoryUpdate: detail.LastInventoryUpdate,
		FailedPolicyCount:   len(failed),
		FailedCommandCount:  len(commands.Failed),
		PendingCommands:     commands.Pending,
		GroupMemberships:    memberships,
	}

	status, summary := Classify(evaluatedAt, signals, thresholds, complianceGroup, monitoredGroups)

	record := &model.DeviceHealthRecord{
		Identity:    detail.Identity,
		Signals:     summary,
		Status:      status,
		EvaluatedAt: evaluatedAt,
	}

	// The record is already computed; a failed cache write degrades
	// staleness bounds, not correctness
	if err := e.cache.Put(ctx, record, e.cacheTTL); err != nil {
		e.logger.Warn("Failed to cache health record",
			zap.Int("device_id", deviceID),
			zap.Error(err))
	}

	e.metrics.RecordEvaluation(string(status), e.now().Sub(start).Seconds())
	e.logger.Debug("Evaluated device health",
		zap.Int("device_id", deviceID),
		zap.String("status", string(status)))

	return record, nil
}
