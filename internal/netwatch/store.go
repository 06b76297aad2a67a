package netwatch

import (
	"context"
	"time"

	"github.com/nerrad567/netwatch-core/internal/bridges/mikrotik"
	"github.com/nerrad567/netwatch-core/internal/device"
)

// CategoryStore marks a result that failed on the local store rather than
// the router.
const CategoryStore mikrotik.Category = "store"

// Fallback watch parameters used when the system config row is missing.
const (
	fallbackTimeoutMs = 1000
	fallbackIntervalS = 10
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceStore is the registry access used by the poller, importer and sync
// adapter. *device.SQLiteRepository satisfies it.
type DeviceStore interface {
	List(ctx context.Context) ([]device.Device, error)
	ListIPs(ctx context.Context) ([]string, error)
	GetByIP(ctx context.Context, ip string) (*device.Device, error)
	Create(ctx context.Context, d *device.Device) error
	ApplyStatus(ctx context.Context, update device.StatusUpdate) error
}

// SettingsReader reads the singleton system configuration.
type SettingsReader interface {
	Get(ctx context.Context) (*device.SystemConfig, error)
}

// HistoryReader reads the status change log.
type HistoryReader interface {
	ListSince(ctx context.Context, deviceID string, since time.Time) ([]device.StatusHistoryEntry, error)
	LastBefore(ctx context.Context, deviceID string, t time.Time) (*device.StatusHistoryEntry, error)
}

// connectionParams builds router connection parameters from the stored
// configuration and the process-level channel timeout.
func connectionParams(cfg *device.SystemConfig, timeout time.Duration) mikrotik.ConnectionParams {
	return mikrotik.ConnectionParams{
		Host:     cfg.RemoteHost,
		Port:     cfg.RemotePort,
		Username: cfg.RemoteUser,
		Password: cfg.RemoteSecret,
		Timeout:  timeout,
	}
}

// closeSession closes sess and logs a failure. Close errors never change
// the outcome of the operation that used the session.
func closeSession(sess mikrotik.Session, logger Logger) {
	if err := sess.Close(); err != nil {
		logger.Warn("closing router session", "error", err)
	}
}
