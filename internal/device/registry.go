package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Fallback watch parameters used when the system config row is missing.
const (
	fallbackTimeoutMs = 1000
	fallbackIntervalS = 10
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// ChangeHook is notified after a device write has been committed.
// Hooks run synchronously on the caller's goroutine and cannot fail the write.
type ChangeHook interface {
	// DeviceSaved is called after create (previousIP is empty) and after
	// update (previousIP is the IP before the update).
	DeviceSaved(ctx context.Context, d *Device, previousIP string)

	// DeviceRemoved is called after a device has been deleted.
	DeviceRemoved(ctx context.Context, d *Device)
}

// Registry is the write path for devices. It validates input, fills
// defaults from the system config, persists through a Repository and
// notifies hooks once the row is committed.
//
// The registry holds no device cache: every read goes to the repository.
//
// All public methods are thread-safe.
type Registry struct {
	repo     Repository
	settings SettingsRepository
	logger   Logger

	hooksMu sync.RWMutex
	hooks   []ChangeHook
}

// NewRegistry creates a new device registry.
// settings may be nil, in which case built-in watch defaults are used.
func NewRegistry(repo Repository, settings SettingsRepository) *Registry {
	return &Registry{
		repo:     repo,
		settings: settings,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// AddHook registers a hook for committed device writes.
func (r *Registry) AddHook(h ChangeHook) {
	r.hooksMu.Lock()
	r.hooks = append(r.hooks, h)
	r.hooksMu.Unlock()
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	return r.repo.GetByID(ctx, id)
}

// GetDeviceByIP retrieves a device by IP.
// Returns ErrDeviceNotFound if no device has that IP.
func (r *Registry) GetDeviceByIP(ctx context.Context, ip string) (*Device, error) {
	return r.repo.GetByIP(ctx, NormaliseIP(ip))
}

// ListDevices retrieves all devices.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	return r.repo.List(ctx)
}

// CreateDevice creates a new device.
// It assigns an ID, fills watch defaults, validates and persists the device,
// then notifies hooks.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if d.ID == "" {
		d.ID = GenerateID()
	}
	d.IP = NormaliseIP(d.IP)
	if d.Type == "" {
		d.Type = DefaultType
	}
	if d.Status == "" {
		d.Status = StatusUnknown
	}
	r.applyWatchDefaults(ctx, d)

	if err := ValidateDevice(d); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.logger.Info("device created", "id", d.ID, "ip", d.IP, "name", d.Name)
	r.notifySaved(ctx, d, "")
	return nil
}

// UpdateDevice updates an existing device's configuration fields.
// Hooks receive the IP the device had before the update.
func (r *Registry) UpdateDevice(ctx context.Context, d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	existing, err := r.repo.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}

	d.IP = NormaliseIP(d.IP)
	if d.Type == "" {
		d.Type = existing.Type
	}
	// Observed fields are owned by the poller.
	d.Status = existing.Status
	d.StatusSince = existing.StatusSince
	d.LastSeen = existing.LastSeen
	r.applyWatchDefaults(ctx, d)

	if err := ValidateDevice(d); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, d); err != nil {
		return err
	}

	r.logger.Info("device updated", "id", d.ID, "ip", d.IP, "previous_ip", existing.IP)
	r.notifySaved(ctx, d, existing.IP)
	return nil
}

// DeleteDevice removes a device. Its status history is kept.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	existing, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.logger.Info("device deleted", "id", id, "ip", existing.IP)

	r.hooksMu.RLock()
	hooks := append([]ChangeHook(nil), r.hooks...)
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h.DeviceRemoved(ctx, existing)
	}
	return nil
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	ByStatus     map[Status]int
}

// GetStats counts devices by status.
func (r *Registry) GetStats(ctx context.Context) (Stats, error) {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing devices: %w", err)
	}

	stats := Stats{
		TotalDevices: len(devices),
		ByStatus:     make(map[Status]int, len(AllStatuses())),
	}
	for _, d := range devices {
		stats.ByStatus[d.Status]++
	}
	return stats, nil
}

// applyWatchDefaults fills zero watch parameters from the system config.
func (r *Registry) applyWatchDefaults(ctx context.Context, d *Device) {
	if d.WatchTimeoutMs != 0 && d.WatchIntervalS != 0 {
		return
	}

	timeoutMs, intervalS := fallbackTimeoutMs, fallbackIntervalS
	if r.settings != nil {
		cfg, err := r.settings.Get(ctx)
		switch {
		case err == nil:
			timeoutMs, intervalS = cfg.DefaultTimeoutMs, cfg.DefaultIntervalSeconds
		case errors.Is(err, ErrSystemConfigNotFound):
		default:
			r.logger.Warn("reading system config for watch defaults", "error", err)
		}
	}

	if d.WatchTimeoutMs == 0 {
		d.WatchTimeoutMs = timeoutMs
	}
	if d.WatchIntervalS == 0 {
		d.WatchIntervalS = intervalS
	}
}

func (r *Registry) notifySaved(ctx context.Context, d *Device, previousIP string) {
	r.hooksMu.RLock()
	hooks := append([]ChangeHook(nil), r.hooks...)
	r.hooksMu.RUnlock()

	for _, h := range hooks {
		h.DeviceSaved(ctx, d.DeepCopy(), previousIP)
	}
}
