package store

import (
	"context"
	"sync"
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"go.uber.org/zap"
)

// MemoryDeviceCache implements DeviceCache using an in-memory map.
// Used when no database is configured; entries do not survive restarts.
type MemoryDeviceCache struct {
	data   map[int]*cacheEntry
	mu     sync.RWMutex
	logger *zap.Logger
}

type cacheEntry struct {
	record    *model.DeviceHealthRecord
	expiresAt time.Time
}

// NewMemoryDeviceCache creates a new in-memory device cache
func NewMemoryDeviceCache(logger *zap.Logger) *MemoryDeviceCache {
	return &MemoryDeviceCache{
		data:   make(map[int]*cacheEntry),
		logger: logger,
	}
}

// Get retrieves a non-expired record for a device
func (c *MemoryDeviceCache) Get(ctx context.Context, deviceID int) (*model.DeviceHealthRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[deviceID]
	if !exists {
		return nil, ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}

	return entry.record, nil
}

// Put stores a record, overwriting any prior entry for the same device
func (c *MemoryDeviceCache) Put(ctx context.Context, record *model.DeviceHealthRecord, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[record.Identity.ID] = &cacheEntry{
		record:    record,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// SweepExpired removes expired entries and returns the number removed
func (c *MemoryDeviceCache) SweepExpired(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var removed int64
	for id, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, id)
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debug("Swept expired cache entries", zap.Int64("removed", removed))
	}
	return removed, nil
}

// Size returns the number of entries, expired or not
func (c *MemoryDeviceCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Ping always succeeds for the in-memory cache
func (c *MemoryDeviceCache) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory cache
func (c *MemoryDeviceCache) Close() {}
