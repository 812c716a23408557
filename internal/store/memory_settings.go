package store

import (
	"context"
	"sync"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
)

// MemorySettingsStore implements SettingsStore with in-process state.
// Used when no database is configured.
type MemorySettingsStore struct {
	mu              sync.RWMutex
	thresholds      model.HealthThresholds
	complianceGroup string
	monitoredGroups []string
}

// NewMemorySettingsStore creates a settings store seeded with defaults
func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{
		thresholds:      model.DefaultThresholds(),
		complianceGroup: model.DefaultComplianceGroup,
		monitoredGroups: []string{},
	}
}

// GetThresholds returns the current health thresholds
func (s *MemorySettingsStore) GetThresholds(ctx context.Context) (model.HealthThresholds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds, nil
}

// SetThresholds replaces the health thresholds
func (s *MemorySettingsStore) SetThresholds(ctx context.Context, t model.HealthThresholds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = t
	return nil
}

// GetComplianceGroup returns the compliance group name
func (s *MemorySettingsStore) GetComplianceGroup(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.complianceGroup, nil
}

// SetComplianceGroup replaces the compliance group name
func (s *MemorySettingsStore) SetComplianceGroup(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complianceGroup = name
	return nil
}

// GetMonitoredGroups returns the monitored group names
func (s *MemorySettingsStore) GetMonitoredGroups(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]string, len(s.monitoredGroups))
	copy(groups, s.monitoredGroups)
	return groups, nil
}

// SetMonitoredGroups replaces the monitored group names
func (s *MemorySettingsStore) SetMonitoredGroups(ctx context.Context, groups []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitoredGroups = make([]string, len(groups))
	copy(s.monitoredGroups, groups)
	return nil
}

// Ping always succeeds for the in-memory store
func (s *MemorySettingsStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemorySettingsStore) Close() {}
