package service

import (
	"context"
	"fmt"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/david-crosby/Jamf-Monitor/internal/store"
	"go.uber.org/zap"
)

// SettingsService funnels every read and write of thresholds and group
// configuration through the settings store. No component holds settings in
// process-wide mutable state; evaluations read fresh values per run.
type SettingsService struct {
	settingsStore store.SettingsStore
	logger        *zap.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(settingsStore store.SettingsStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		settingsStore: settingsStore,
		logger:        logger,
	}
}

// GetThresholds returns the current health thresholds
func (s *SettingsService) GetThresholds(ctx context.Context) (model.HealthThresholds, error) {
	return s.settingsStore.GetThresholds(ctx)
}

// SetThresholds validates and persists new health thresholds. Out-of-range
// values are rejected here, at the configuration boundary.
func (s *SettingsService) SetThresholds(ctx context.Context, t model.HealthThresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.settingsStore.SetThresholds(ctx, t); err != nil {
		return fmt.Errorf("failed to persist thresholds: %w", err)
	}

	s.logger.Info("Updated health thresholds",
		zap.Int("check_in_hours", t.CheckInHours),
		zap.Int("recon_hours", t.ReconHours),
		zap.Int("pending_command_hours", t.PendingCommandHours))
	return nil
}

// GetComplianceGroup returns the compliance group name
func (s *SettingsService) GetComplianceGroup(ctx context.Context) (string, error) {
	return s.settingsStore.GetComplianceGroup(ctx)
}

// SetComplianceGroup persists the compliance group name
func (s *SettingsService) SetComplianceGroup(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("compliance group name must not be empty")
	}
	if err := s.settingsStore.SetComplianceGroup(ctx, name); err != nil {
		return fmt.Errorf("failed to persist compliance group: %w", err)
	}

	s.logger.Info("Updated compliance group", zap.String("group", name))
	return nil
}

// GetMonitoredGroups returns the monitored group names
func (s *SettingsService) GetMonitoredGroups(ctx context.Context) ([]string, error) {
	return s.settingsStore.GetMonitoredGroups(ctx)
}

// SetMonitoredGroups persists the monitored group names
func (s *SettingsService) SetMonitoredGroups(ctx context.Context, groups []string) error {
	if err := s.settingsStore.SetMonitoredGroups(ctx, groups); err != nil {
		return fmt.Errorf("failed to persist monitored groups: %w", err)
	}

	s.logger.Info("Updated monitored groups", zap.Strings("groups", groups))
	return nil
}
