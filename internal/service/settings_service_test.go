package service

import (
	"context"
	"testing"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/david-crosby/Jamf-Monitor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSettingsService_DefaultsBeforeAnyWrite(t *testing.T) {
	svc := NewSettingsService(store.NewMemorySettingsStore(), zap.NewNop())
	ctx := context.Background()

	thresholds, err := svc.GetThresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultThresholds(), thresholds)

	group, err := svc.GetComplianceGroup(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultComplianceGroup, group)

	monitored, err := svc.GetMonitoredGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, monitored)
}

func TestSettingsService_SetThresholdsRoundTrip(t *testing.T) {
	svc := NewSettingsService(store.NewMemorySettingsStore(), zap.NewNop())
	ctx := context.Background()

	updated := model.HealthThresholds{CheckInHours: 12, ReconHours: 48, PendingCommandHours: 3}
	require.NoError(t, svc.SetThresholds(ctx, updated))

	got, err := svc.GetThresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestSettingsService_RejectsOutOfRangeThresholds(t *testing.T) {
	svc := NewSettingsService(store.NewMemorySettingsStore(), zap.NewNop())
	ctx := context.Background()

	err := svc.SetThresholds(ctx, model.HealthThresholds{CheckInHours: 0, ReconHours: 24, PendingCommandHours: 6})
	assert.Error(t, err)

	var invalid *model.InvalidThresholdError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, "check_in_hours", invalid.Field)

	// The stored value is untouched
	got, err := svc.GetThresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultThresholds(), got)
}

func TestSettingsService_RejectsEmptyComplianceGroup(t *testing.T) {
	svc := NewSettingsService(store.NewMemorySettingsStore(), zap.NewNop())

	err := svc.SetComplianceGroup(context.Background(), "")
	assert.Error(t, err)
}

func TestSettingsService_MonitoredGroupsRoundTrip(t *testing.T) {
	svc := NewSettingsService(store.NewMemorySettingsStore(), zap.NewNop())
	ctx := context.Background()

	groups := []string{"Legacy OS", "Executive Laptops"}
	require.NoError(t, svc.SetMonitoredGroups(ctx, groups))

	got, err := svc.GetMonitoredGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, groups, got)
}
