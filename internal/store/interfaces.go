package store

import (
	"context"
	"errors"
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
)

// ErrNotFound is returned when a key is absent or its entry has expired
var ErrNotFound = errors.New("not found")

// DeviceCache stores previously computed health classifications keyed by
// device id. Get never returns expired data; Put overwrites any prior entry
// for the same device; SweepExpired is an explicit maintenance operation.
type DeviceCache interface {
	Get(ctx context.Context, deviceID int) (*model.DeviceHealthRecord, error)
	Put(ctx context.Context, record *model.DeviceHealthRecord, ttl time.Duration) error
	SweepExpired(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// SettingsStore persists health thresholds and group configuration.
// Reads fall back to defaults when nothing has been stored yet.
type SettingsStore interface {
	GetThresholds(ctx context.Context) (model.HealthThresholds, error)
	SetThresholds(ctx context.Context, t model.HealthThresholds) error
	GetComplianceGroup(ctx context.Context) (string, error)
	SetComplianceGroup(ctx context.Context, name string) error
	GetMonitoredGroups(ctx context.Context) ([]string, error)
	SetMonitoredGroups(ctx context.Context, groups []string) error
	Ping(ctx context.Context) error
	Close()
}
