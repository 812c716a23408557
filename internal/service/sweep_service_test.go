package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestSweepService_SweepReportsRemovedCount(t *testing.T) {
	cache := new(MockDeviceCache)
	cache.On("SweepExpired", mock.Anything).Return(int64(3), nil)

	svc := NewSweepService(cache, time.Hour, testMetrics, zap.NewNop())

	removed, err := svc.Sweep(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}

func TestSweepService_SweepError(t *testing.T) {
	cache := new(MockDeviceCache)
	cache.On("SweepExpired", mock.Anything).Return(int64(0), errors.New("backend down"))

	svc := NewSweepService(cache, time.Hour, testMetrics, zap.NewNop())

	removed, err := svc.Sweep(context.Background())

	assert.Error(t, err)
	assert.Zero(t, removed)
}

func TestSweepService_StopIsIdempotent(t *testing.T) {
	cache := new(MockDeviceCache)
	svc := NewSweepService(cache, time.Hour, testMetrics, zap.NewNop())

	svc.Start()
	svc.Stop()
	svc.Stop()
}
