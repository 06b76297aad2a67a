package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/netwatch-core/internal/infrastructure/database"
)

// timestampFormat is fixed-width so stored timestamps sort as text.
const timestampFormat = "2006-01-02T15:04:05.000Z"

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByIP retrieves a device by its IP address.
	// Returns ErrDeviceNotFound if no device has that IP.
	GetByIP(ctx context.Context, ip string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListIPs returns the IP of every registered device.
	ListIPs(ctx context.Context) ([]string, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if the IP (or ID) is already registered.
	Create(ctx context.Context, device *Device) error

	// Update modifies the configuration fields of an existing device.
	// Status fields are left alone; use ApplyStatus for those.
	// Returns ErrDeviceNotFound if the device does not exist and
	// ErrDeviceExists if the new IP belongs to another device.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// ApplyStatus writes observed status fields and, when requested, the
	// matching history row in a single transaction.
	// Returns ErrDeviceNotFound if the device does not exist.
	ApplyStatus(ctx context.Context, update StatusUpdate) error
}

// StatusUpdate describes one poll outcome for a single device.
type StatusUpdate struct {
	DeviceID string
	DeviceIP string
	Status   Status

	// StatusSince and LastSeen are only written when non-nil.
	StatusSince *time.Time
	LastSeen    *time.Time

	// AppendHistory adds a status_history row stamped RecordedAt.
	AppendHistory bool
	RecordedAt    time.Time
}

// deviceColumns is the column list shared by every device SELECT.
const deviceColumns = `id, ip, name, type, lane, watch_timeout_ms, watch_interval_s,
	up_script, down_script, status, status_since, last_seen, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// GetByIP retrieves a device by its IP address.
func (r *SQLiteRepository) GetByIP(ctx context.Context, ip string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE ip = ?", ip)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by ip: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by name, then IP.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY name, ip")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// ListIPs returns the IP of every registered device.
func (r *SQLiteRepository) ListIPs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT ip FROM devices")
	if err != nil {
		return nil, fmt.Errorf("querying device ips: %w", err)
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, fmt.Errorf("scanning device ip: %w", err)
		}
		ips = append(ips, ip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device ips: %w", err)
	}

	return ips, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = StatusUnknown
	}
	if d.Type == "" {
		d.Type = DefaultType
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.IP,
		d.Name,
		d.Type,
		d.Lane,
		d.WatchTimeoutMs,
		d.WatchIntervalS,
		nullableString(d.UpScript),
		nullableString(d.DownScript),
		string(d.Status),
		nullableTime(d.StatusSince),
		nullableTime(d.LastSeen),
		d.CreatedAt.UTC().Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update modifies the configuration fields of an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	d.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			ip = ?, name = ?, type = ?, lane = ?,
			watch_timeout_ms = ?, watch_interval_s = ?,
			up_script = ?, down_script = ?, updated_at = ?
		WHERE id = ?`,
		d.IP,
		d.Name,
		d.Type,
		d.Lane,
		d.WatchTimeoutMs,
		d.WatchIntervalS,
		nullableString(d.UpScript),
		nullableString(d.DownScript),
		d.UpdatedAt.Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("updating device: %w", err)
	}

	return requireRowAffected(result)
}

// Delete removes a device by ID. Its status history is kept.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRowAffected(result)
}

// ApplyStatus writes the observed status and optional history row atomically.
func (r *SQLiteRepository) ApplyStatus(ctx context.Context, u StatusUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx, `
		UPDATE devices SET
			status = ?,
			status_since = COALESCE(?, status_since),
			last_seen = COALESCE(?, last_seen),
			updated_at = ?
		WHERE id = ?`,
		string(u.Status),
		nullableTime(u.StatusSince),
		nullableTime(u.LastSeen),
		time.Now().UTC().Format(time.RFC3339),
		u.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}
	if err := requireRowAffected(result); err != nil {
		return err
	}

	if u.AppendHistory {
		if err := insertHistory(ctx, tx, StatusHistoryEntry{
			DeviceID:  u.DeviceID,
			DeviceIP:  u.DeviceIP,
			Status:    u.Status,
			Timestamp: u.RecordedAt,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing status update: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var upScript, downScript sql.NullString
	var statusSince, lastSeen sql.NullString
	var status, createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.IP,
		&d.Name,
		&d.Type,
		&d.Lane,
		&d.WatchTimeoutMs,
		&d.WatchIntervalS,
		&upScript,
		&downScript,
		&status,
		&statusSince,
		&lastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)
	if upScript.Valid {
		d.UpScript = &upScript.String
	}
	if downScript.Valid {
		d.DownScript = &downScript.String
	}

	if d.StatusSince, err = parseNullableTime(statusSince); err != nil {
		return nil, fmt.Errorf("parsing status_since: %w", err)
	}
	if d.LastSeen, err = parseNullableTime(lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	if d.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}

// requireRowAffected maps a zero-row UPDATE/DELETE to ErrDeviceNotFound.
func requireRowAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// parseTimestamp accepts the fixed-width format and plain RFC3339
// (fractional seconds are optional when parsing RFC3339).
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
