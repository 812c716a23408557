package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDeviceCache implements DeviceCache backed by Redis. Entries carry
// their TTL on the key, so Redis itself removes expired data and
// SweepExpired has nothing left to do.
type RedisDeviceCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisDeviceCache creates a new Redis device cache
func NewRedisDeviceCache(host string, port int, password string, db int, logger *zap.Logger) (*RedisDeviceCache, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDeviceCache{
		client: client,
		logger: logger,
	}, nil
}

func (c *RedisDeviceCache) key(deviceID int) string {
	return fmt.Sprintf("device:health:%d", deviceID)
}

// Get retrieves a non-expired record for a device
func (c *RedisDeviceCache) Get(ctx context.Context, deviceID int) (*model.DeviceHealthRecord, error) {
	data, err := c.client.Get(ctx, c.key(deviceID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached record: %w", err)
	}

	var record model.DeviceHealthRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached record: %w", err)
	}

	return &record, nil
}

// Put stores a record with the supplied TTL, overwriting any prior entry
func (c *RedisDeviceCache) Put(ctx context.Context, record *model.DeviceHealthRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return c.client.Set(ctx, c.key(record.Identity.ID), data, ttl).Err()
}

// SweepExpired is a no-op: Redis expires keys on its own
func (c *RedisDeviceCache) SweepExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// Ping checks the Redis connection
func (c *RedisDeviceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisDeviceCache) Close() {
	if err := c.client.Close(); err != nil {
		c.logger.Warn("Failed to close Redis client", zap.Error(err))
	}
}
