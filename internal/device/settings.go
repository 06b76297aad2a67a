package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// systemConfigID is the primary key of the singleton system_config row.
const systemConfigID = 1

// SettingsRepository reads and writes the singleton SystemConfig row.
type SettingsRepository interface {
	// Get returns the current configuration.
	// Returns ErrSystemConfigNotFound if the row has not been seeded.
	Get(ctx context.Context) (*SystemConfig, error)

	// Save replaces the configuration row, creating it if needed.
	Save(ctx context.Context, cfg *SystemConfig) error

	// EnsureDefaults inserts cfg only when no row exists yet.
	// Reports whether a row was created.
	EnsureDefaults(ctx context.Context, cfg *SystemConfig) (bool, error)
}

// SQLiteSettingsRepository implements SettingsRepository using SQLite.
type SQLiteSettingsRepository struct {
	db *sql.DB
}

// NewSQLiteSettingsRepository creates a new SQLite-backed settings repository.
func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

// Get returns the current configuration.
func (r *SQLiteSettingsRepository) Get(ctx context.Context) (*SystemConfig, error) {
	var cfg SystemConfig
	var updatedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT remote_host, remote_user, remote_secret, remote_port,
			polling_interval_seconds, default_timeout_ms, default_interval_seconds, updated_at
		FROM system_config WHERE id = ?`, systemConfigID,
	).Scan(
		&cfg.RemoteHost,
		&cfg.RemoteUser,
		&cfg.RemoteSecret,
		&cfg.RemotePort,
		&cfg.PollingIntervalSeconds,
		&cfg.DefaultTimeoutMs,
		&cfg.DefaultIntervalSeconds,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSystemConfigNotFound
		}
		return nil, fmt.Errorf("querying system config: %w", err)
	}

	if cfg.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &cfg, nil
}

// Save replaces the configuration row.
func (r *SQLiteSettingsRepository) Save(ctx context.Context, cfg *SystemConfig) error {
	if err := ValidateSystemConfig(cfg); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_config (
			id, remote_host, remote_user, remote_secret, remote_port,
			polling_interval_seconds, default_timeout_ms, default_interval_seconds, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_host = excluded.remote_host,
			remote_user = excluded.remote_user,
			remote_secret = excluded.remote_secret,
			remote_port = excluded.remote_port,
			polling_interval_seconds = excluded.polling_interval_seconds,
			default_timeout_ms = excluded.default_timeout_ms,
			default_interval_seconds = excluded.default_interval_seconds,
			updated_at = excluded.updated_at`,
		systemConfigID,
		cfg.RemoteHost,
		cfg.RemoteUser,
		cfg.RemoteSecret,
		cfg.RemotePort,
		cfg.PollingIntervalSeconds,
		cfg.DefaultTimeoutMs,
		cfg.DefaultIntervalSeconds,
		cfg.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving system config: %w", err)
	}
	return nil
}

// EnsureDefaults inserts cfg only when no row exists yet.
func (r *SQLiteSettingsRepository) EnsureDefaults(ctx context.Context, cfg *SystemConfig) (bool, error) {
	if err := ValidateSystemConfig(cfg); err != nil {
		return false, err
	}
	cfg.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO system_config (
			id, remote_host, remote_user, remote_secret, remote_port,
			polling_interval_seconds, default_timeout_ms, default_interval_seconds, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		systemConfigID,
		cfg.RemoteHost,
		cfg.RemoteUser,
		cfg.RemoteSecret,
		cfg.RemotePort,
		cfg.PollingIntervalSeconds,
		cfg.DefaultTimeoutMs,
		cfg.DefaultIntervalSeconds,
		cfg.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("seeding system config: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}
