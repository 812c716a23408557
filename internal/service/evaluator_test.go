package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/metrics"
	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/david-crosby/Jamf-Monitor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// Prometheus collectors register globally, so all tests in this package
// share one instance
var testMetrics = metrics.NewMetrics()

// MockDeviceAPI is a mock implementation of DeviceAPI
type MockDeviceAPI struct {
	mock.Mock
}

func (m *MockDeviceAPI) ListInventory(ctx context.Context) ([]model.DeviceRef, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DeviceRef), args.Error(1)
}

func (m *MockDeviceAPI) GetDeviceDetail(ctx context.Context, deviceID int) (*model.DeviceDetail, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeviceDetail), args.Error(1)
}

func (m *MockDeviceAPI) GetFailedPolicies(ctx context.Context, deviceID int) ([]model.FailedPolicy, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FailedPolicy), args.Error(1)
}

func (m *MockDeviceAPI) GetMDMCommands(ctx context.Context, deviceID int) (*model.CommandSplit, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommandSplit), args.Error(1)
}

func (m *MockDeviceAPI) GetGroupMemberships(ctx context.Context, deviceID int) ([]string, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockDeviceCache is a mock implementation of store.DeviceCache
type MockDeviceCache struct {
	mock.Mock
}

func (m *MockDeviceCache) Get(ctx context.Context, deviceID int) (*model.DeviceHealthRecord, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeviceHealthRecord), args.Error(1)
}

func (m *MockDeviceCache) Put(ctx context.Context, record *model.DeviceHealthRecord, ttl time.Duration) error {
	args := m.Called(ctx, record, ttl)
	return args.Error(0)
}

func (m *MockDeviceCache) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeviceCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDeviceCache) Close() {
	m.Called()
}

func healthyAPIExpectations(api *MockDeviceAPI, deviceID int, now time.Time) {
	lastContact := now.Add(-1 * time.Hour)
	lastRecon := now.Add(-2 * time.Hour)
	api.On("GetDeviceDetail", mock.Anything, deviceID).Return(&model.DeviceDetail{
		Identity: model.DeviceIdentity{
			ID:           deviceID,
			Name:         "mac-001",
			SerialNumber: "C02XK1ABCDE",
			Model:        "MacBookPro18,3",
			OSVersion:    "14.5",
		},
		LastContactTime:     &lastContact,
		LastInventoryUpdate: &lastRecon,
	}, nil)
	api.On("GetFailedPolicies", mock.Anything, deviceID).Return([]model.FailedPolicy{}, nil)
	api.On("GetMDMCommands", mock.Anything, deviceID).Return(&model.CommandSplit{}, nil)
	api.On("GetGroupMemberships", mock.Anything, deviceID).Return([]string{"Compliance"}, nil)
}

func newTestEvaluator(api *MockDeviceAPI, cache *MockDeviceCache) *Evaluator {
	settings := NewSettingsService(store.NewMemorySettingsStore(), zap.NewNop())
	return NewEvaluator(api, cache, settings, 5*time.Minute, testMetrics, zap.NewNop())
}

func TestEvaluator_CacheHitSkipsUpstream(t *testing.T) {
	api := new(MockDeviceAPI)
	cache := new(MockDeviceCache)
	eval := newTestEvaluator(api, cache)

	cached := &model.DeviceHealthRecord{
		Identity:    model.DeviceIdentity{ID: 42, Name: "mac-042"},
		Status:      model.StatusHealthy,
		EvaluatedAt: time.Now().UTC().Add(-1 * time.Minute),
	}
	cache.On("Get", mock.Anything, 42).Return(cached, nil)

	record, err := eval.Evaluate(context.Background(), 42, true)

	assert.NoError(t, err)
	assert.Equal(t, cached, record)
	api.AssertNotCalled(t, "GetDeviceDetail", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluator_CacheMissEvaluatesAndWritesThrough(t *testing.T) {
	api := new(MockDeviceAPI)
	cache := new(MockDeviceCache)
	eval := newTestEvaluator(api, cache)

	now := time.Now().UTC()
	cache.On("Get", mock.Anything, 42).Return(nil, store.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything, 5*time.Minute).Return(nil)
	healthyAPIExpectations(api, 42, now)

	record, err := eval.Evaluate(context.Background(), 42, true)

	assert.NoError(t, err)
	assert.Equal(t, model.StatusHealthy, record.Status)
	assert.Equal(t, "mac-001", record.Identity.Name)
	assert.True(t, record.Signals.CheckInOK)
	assert.True(t, record.Signals.IsCompliant)
	cache.AssertCalled(t, "Put", mock.Anything, record, 5*time.Minute)
}

func TestEvaluator_BypassCacheNeverReads(t *testing.T) {
	api := new(MockDeviceAPI)
	cache := new(MockDeviceCache)
	eval := newTestEvaluator(api, cache)

	now := time.Now().UTC()
	cache.On("Put", mock.Anything, mock.Anything, 5*time.Minute).Return(nil)
	healthyAPIExpectations(api, 42, now)

	record, err := eval.Evaluate(context.Background(), 42, false)

	assert.NoError(t, err)
	assert.Equal(t, model.StatusHealthy, record.Status)
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	// A forced evaluation still refreshes the cache
	cache.AssertCalled(t, "Put", mock.Anything, record, 5*time.Minute)
}

func TestEvaluator_FetchFailureCachesNothing(t *testing.T) {
	api := new(MockDeviceAPI)
	cache := new(MockDeviceCache)
	eval := newTestEvaluator(api, cache)

	now := time.Now().UTC()
	lastContact := now.Add(-1 * time.Hour)
	cache.On("Get", mock.Anything, 42).Return(nil, store.ErrNotFound)
	api.On("GetDeviceDetail", mock.Anything, 42).Return(&model.DeviceDetail{
		Identity:        model.DeviceIdentity{ID: 42},
		LastContactTime: &lastContact,
	}, nil)
	api.On("GetFailedPolicies", mock.Anything, 42).Return([]model.FailedPolicy{}, nil)
	api.On("GetMDMCommands", mock.Anything, 42).Return(nil, errors.New("upstream exploded"))
	api.On("GetGroupMemberships", mock.Anything, 42).Return([]string{}, nil)

	record, err := eval.Evaluate(context.Background(), 42, true)

	assert.Error(t, err)
	assert.Nil(t, record)
	cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluator_CacheWriteFailureDoesNotFailEvaluation(t *testing.T) {
	api := new(MockDeviceAPI)
	cache := new(MockDeviceCache)
	eval := newTestEvaluator(api, cache)

	now := time.Now().UTC()
	cache.On("Get", mock.Anything, 42).Return(nil, store.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything, 5*time.Minute).Return(errors.New("cache down"))
	healthyAPIExpectations(api, 42, now)

	record, err := eval.Evaluate(context.Background(), 42, true)

	assert.NoError(t, err)
	assert.Equal(t, model.StatusHealthy, record.Status)
}

func TestEvaluator_CacheReadFailureFallsBackToUpstream(t *testing.T) {
	api := new(MockDeviceAPI)
	cache := new(MockDeviceCache)
	eval := newTestEvaluator(api, cache)

	now := time.Now().UTC()
	cache.On("Get", mock.Anything, 42).Return(nil, errors.New("cache down"))
	cache.On("Put", mock.Anything, mock.Anything, 5*time.Minute).Return(nil)
	healthyAPIExpectations(api, 42, now)

	record, err := eval.Evaluate(context.Background(), 42, true)

	assert.NoError(t, err)
	assert.Equal(t, model.StatusHealthy, record.Status)
}

func TestEvaluator_ClassifiesFromFetchedSignals(t *testing.T) {
	api := new(MockDeviceAPI)
	cache := new(MockDeviceCache)
	eval := newTestEvaluator(api, cache)

	now := time.Now().UTC()
	lastContact := now.Add(-1 * time.Hour)
	lastRecon := now.Add(-2 * time.Hour)
	cache.On("Get", mock.Anything, 7).Return(nil, store.ErrNotFound)
	cache.On("Put", mock.Anything, mock.Anything, 5*time.Minute).Return(nil)
	api.On("GetDeviceDetail", mock.Anything, 7).Return(&model.DeviceDetail{
		Identity:            model.DeviceIdentity{ID: 7, Name: "mac-007"},
		LastContactTime:     &lastContact,
		LastInventoryUpdate: &lastRecon,
	}, nil)
	api.On("GetFailedPolicies", mock.Anything, 7).Return([]model.FailedPolicy{
		{ID: "12", Name: "FileVault Enforcement"},
	}, nil)
	api.On("GetMDMCommands", mock.Anything, 7).Return(&model.CommandSplit{}, nil)
	api.On("GetGroupMemberships", mock.Anything, 7).Return([]string{"Compliance"}, nil)

	record, err := eval.Evaluate(context.Background(), 7, true)

	assert.NoError(t, err)
	assert.Equal(t, model.StatusUnhealthy, record.Status)
	assert.True(t, record.Signals.HasFailedPolicies)
	assert.False(t, record.EvaluatedAt.IsZero())
}
