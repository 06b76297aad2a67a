package device

import "time"

// Device is a monitored network endpoint.
// This matches the devices table in migrations/20260301_090000_initial_schema.up.sql.
type Device struct {
	// Identity. IP is the natural key used to match watch rules on the
	// router; ID is the local surrogate key.
	ID string `json:"id"`
	IP string `json:"ip"`

	// Presentation
	Name string `json:"name"`
	Type string `json:"type"`
	Lane string `json:"lane"`

	// Watch rule parameters pushed to the router
	WatchTimeoutMs int     `json:"watch_timeout_ms"`
	WatchIntervalS int     `json:"watch_interval_s"`
	UpScript       *string `json:"up_script,omitempty"`
	DownScript     *string `json:"down_script,omitempty"`

	// Observed reachability
	Status      Status     `json:"status"`
	StatusSince *time.Time `json:"status_since,omitempty"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cp := *d
	cp.UpScript = copyString(d.UpScript)
	cp.DownScript = copyString(d.DownScript)
	cp.StatusSince = copyTime(d.StatusSince)
	cp.LastSeen = copyTime(d.LastSeen)
	return &cp
}

// Status is the reachability state of a device as reported by the router.
type Status string

// Status constants.
const (
	StatusUp      Status = "up"
	StatusDown    Status = "down"
	StatusUnknown Status = "unknown"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{StatusUp, StatusDown, StatusUnknown}
}

// Default device type for rows created without one.
const DefaultType = "host"

// StatusHistoryEntry is one immutable row of the status change log.
// A row is written for every detected transition and for the first
// observation of a device.
type StatusHistoryEntry struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	DeviceIP  string    `json:"device_ip"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemConfig is the singleton router and polling configuration row.
type SystemConfig struct {
	RemoteHost             string    `json:"remote_host"`
	RemoteUser             string    `json:"remote_user"`
	RemoteSecret           string    `json:"-"`
	RemotePort             int       `json:"remote_port"`
	PollingIntervalSeconds int       `json:"polling_interval_seconds"`
	DefaultTimeoutMs       int       `json:"default_timeout_ms"`
	DefaultIntervalSeconds int       `json:"default_interval_seconds"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// PollingInterval returns the configured polling period.
func (c SystemConfig) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSeconds) * time.Second
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
