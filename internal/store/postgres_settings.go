package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	settingKeyThresholds      = "health_thresholds"
	settingKeyComplianceGroup = "compliance_group"
	settingKeyMonitoredGroups = "monitored_groups"
)

// PostgresSettingsStore implements SettingsStore as a key-value table.
// Expected schema:
//
//	CREATE TABLE app_settings (
//	    setting_key   TEXT PRIMARY KEY,
//	    setting_value TEXT NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PostgresSettingsStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresSettingsStore creates a settings store on an existing pool
func NewPostgresSettingsStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresSettingsStore {
	return &PostgresSettingsStore{
		pool:   pool,
		logger: logger,
	}
}

func (s *PostgresSettingsStore) getSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT setting_value FROM app_settings WHERE setting_key = $1`, key,
	).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresSettingsStore) setSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_settings (setting_key, setting_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (setting_key) DO UPDATE
		SET setting_value = EXCLUDED.setting_value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetThresholds returns the stored thresholds, or defaults when unset
func (s *PostgresSettingsStore) GetThresholds(ctx context.Context) (model.HealthThresholds, error) {
	value, err := s.getSetting(ctx, settingKeyThresholds)
	if err == ErrNotFound {
		return model.DefaultThresholds(), nil
	}
	if err != nil {
		return model.HealthThresholds{}, err
	}

	var t model.HealthThresholds
	if err := json.Unmarshal([]byte(value), &t); err != nil {
		s.logger.Warn("Stored thresholds are malformed, using defaults", zap.Error(err))
		return model.DefaultThresholds(), nil
	}
	return t, nil
}

// SetThresholds persists the health thresholds
func (s *PostgresSettingsStore) SetThresholds(ctx context.Context, t model.HealthThresholds) error {
	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal thresholds: %w", err)
	}
	return s.setSetting(ctx, settingKeyThresholds, string(value))
}

// GetComplianceGroup returns the stored compliance group, or the default
func (s *PostgresSettingsStore) GetComplianceGroup(ctx context.Context) (string, error) {
	value, err := s.getSetting(ctx, settingKeyComplianceGroup)
	if err == ErrNotFound {
		return model.DefaultComplianceGroup, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetComplianceGroup persists the compliance group name
func (s *PostgresSettingsStore) SetComplianceGroup(ctx context.Context, name string) error {
	return s.setSetting(ctx, settingKeyComplianceGroup, name)
}

// GetMonitoredGroups returns the stored monitored groups, or an empty list
func (s *PostgresSettingsStore) GetMonitoredGroups(ctx context.Context) ([]string, error) {
	value, err := s.getSetting(ctx, settingKeyMonitoredGroups)
	if err == ErrNotFound {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var groups []string
	if err := json.Unmarshal([]byte(value), &groups); err != nil {
		s.logger.Warn("Stored monitored groups are malformed, using empty list", zap.Error(err))
		return []string{}, nil
	}
	return groups, nil
}

// SetMonitoredGroups persists the monitored group names
func (s *PostgresSettingsStore) SetMonitoredGroups(ctx context.Context, groups []string) error {
	value, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("failed to marshal monitored groups: %w", err)
	}
	return s.setSetting(ctx, settingKeyMonitoredGroups, string(value))
}

// Ping checks the database connection
func (s *PostgresSettingsStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op: the pool is owned by the caller that created it
func (s *PostgresSettingsStore) Close() {}
