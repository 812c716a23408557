package service

import (
	"context"
	"sync"
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/metrics"
	"github.com/david-crosby/Jamf-Monitor/internal/store"
	"go.uber.org/zap"
)

// SweepService periodically removes expired rows from the device cache.
// Gets never return expired data regardless; the sweep only reclaims
// storage occupied by rows nothing will read again.
type SweepService struct {
	cache    store.DeviceCache
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewSweepService creates a new sweep service
func NewSweepService(cache store.DeviceCache, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *SweepService {
	if interval == 0 {
		interval = 10 * time.Minute
	}

	return &SweepService{
		cache:    cache,
		interval: interval,
		metrics:  m,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background sweep loop
func (s *SweepService) Start() {
	go s.run()
	s.logger.Info("Cache sweep service started", zap.Duration("interval", s.interval))
}

func (s *SweepService) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Scheduled cache sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Sweep removes expired cache entries once and returns the number removed.
// Also exposed for on-demand sweeps.
func (s *SweepService) Sweep(ctx context.Context) (int64, error) {
	removed, err := s.cache.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}

	s.metrics.RecordSweep(removed)
	if removed > 0 {
		s.logger.Info("Removed expired cache entries", zap.Int64("removed", removed))
	}
	return removed, nil
}

// Stop terminates the background sweep loop
func (s *SweepService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}
