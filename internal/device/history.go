package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HistoryRepository persists the insert-only status change log.
type HistoryRepository interface {
	// Append writes one history row and sets entry.ID.
	Append(ctx context.Context, entry *StatusHistoryEntry) error

	// ListSince returns a device's rows recorded at or after since,
	// oldest first. Rows with equal timestamps keep insertion order.
	ListSince(ctx context.Context, deviceID string, since time.Time) ([]StatusHistoryEntry, error)

	// LastBefore returns the newest row recorded strictly before t, or
	// nil when there is none.
	LastBefore(ctx context.Context, deviceID string, t time.Time) (*StatusHistoryEntry, error)

	// Recent returns up to limit rows for a device, newest first.
	Recent(ctx context.Context, deviceID string, limit int) ([]StatusHistoryEntry, error)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a new SQLite-backed history repository.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// Append writes one history row.
func (r *SQLiteHistoryRepository) Append(ctx context.Context, entry *StatusHistoryEntry) error {
	if entry.DeviceID == "" {
		return fmt.Errorf("%w: history entry needs a device id", ErrInvalidDevice)
	}
	if err := ValidateStatus(entry.Status); err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO status_history (device_id, device_ip, status, recorded_at)
		VALUES (?, ?, ?, ?)`,
		entry.DeviceID, entry.DeviceIP, string(entry.Status), formatTimestamp(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting status history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading status history id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListSince returns rows at or after since, oldest first.
func (r *SQLiteHistoryRepository) ListSince(ctx context.Context, deviceID string, since time.Time) ([]StatusHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, device_ip, status, recorded_at
		FROM status_history
		WHERE device_id = ? AND recorded_at >= ?
		ORDER BY recorded_at, id`,
		deviceID, formatTimestamp(since),
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

// LastBefore returns the newest row before t, or nil.
func (r *SQLiteHistoryRepository) LastBefore(ctx context.Context, deviceID string, t time.Time) (*StatusHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, device_ip, status, recorded_at
		FROM status_history
		WHERE device_id = ? AND recorded_at < ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`,
		deviceID, formatTimestamp(t),
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	entries, err := scanHistoryRows(rows)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// Recent returns up to limit rows, newest first.
func (r *SQLiteHistoryRepository) Recent(ctx context.Context, deviceID string, limit int) ([]StatusHistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, device_ip, status, recorded_at
		FROM status_history
		WHERE device_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

func insertHistory(ctx context.Context, exec execer, entry StatusHistoryEntry) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO status_history (device_id, device_ip, status, recorded_at)
		VALUES (?, ?, ?, ?)`,
		entry.DeviceID, entry.DeviceIP, string(entry.Status), formatTimestamp(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting status history: %w", err)
	}
	return nil
}

func scanHistoryRows(rows *sql.Rows) ([]StatusHistoryEntry, error) {
	var entries []StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		var status, recordedAt string
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.DeviceIP, &status, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning status history: %w", err)
		}
		e.Status = Status(status)
		ts, err := parseTimestamp(recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		e.Timestamp = ts
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}
	return entries, nil
}
