package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresDeviceCache implements DeviceCache backed by PostgreSQL.
// Expected schema:
//
//	CREATE TABLE device_health_cache (
//	    device_id    INTEGER PRIMARY KEY,
//	    record       JSONB NOT NULL,
//	    status       TEXT NOT NULL,
//	    evaluated_at TIMESTAMPTZ NOT NULL,
//	    expires_at   TIMESTAMPTZ NOT NULL
//	);
type PostgresDeviceCache struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresDeviceCache creates a device cache on an existing pool
func NewPostgresDeviceCache(pool *pgxpool.Pool, logger *zap.Logger) *PostgresDeviceCache {
	return &PostgresDeviceCache{
		pool:   pool,
		logger: logger,
	}
}

// NewPostgresPool creates and pings a PostgreSQL connection pool shared by
// the postgres-backed stores
func NewPostgresPool(host string, port int, database, user, password string, maxConns, minConns int) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Get retrieves a non-expired record for a device
func (c *PostgresDeviceCache) Get(ctx context.Context, deviceID int) (*model.DeviceHealthRecord, error) {
	query := `
		SELECT record
		FROM device_health_cache
		WHERE device_id = $1 AND expires_at > NOW()
	`

	var raw []byte
	err := c.pool.QueryRow(ctx, query, deviceID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached record: %w", err)
	}

	var record model.DeviceHealthRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached record: %w", err)
	}

	return &record, nil
}

// Put stores a record, overwriting any prior entry for the same device
func (c *PostgresDeviceCache) Put(ctx context.Context, record *model.DeviceHealthRecord, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO device_health_cache (device_id, record, status, evaluated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id) DO UPDATE
		SET record = EXCLUDED.record,
		    status = EXCLUDED.status,
		    evaluated_at = EXCLUDED.evaluated_at,
		    expires_at = EXCLUDED.expires_at
	`

	_, err = c.pool.Exec(ctx, query,
		record.Identity.ID,
		raw,
		string(record.Status),
		record.EvaluatedAt,
		time.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}

	return nil
}

// SweepExpired removes expired rows and returns the number removed
func (c *PostgresDeviceCache) SweepExpired(ctx context.Context) (int64, error) {
	result, err := c.pool.Exec(ctx, `DELETE FROM device_health_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired cache rows: %w", err)
	}

	removed := result.RowsAffected()
	if removed > 0 {
		c.logger.Debug("Swept expired cache rows", zap.Int64("removed", removed))
	}
	return removed, nil
}

// Ping checks the database connection
func (c *PostgresDeviceCache) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close is a no-op: the pool is owned by the caller that created it
func (c *PostgresDeviceCache) Close() {}
