package device

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength   = 100
	maxTypeLength   = 50
	maxLaneLength   = 50
	maxScriptLength = 4096

	// Router-side bounds for netwatch. Anything outside is rejected by
	// RouterOS with a less helpful message.
	maxWatchTimeoutMs = 60 * 1000
	maxWatchIntervalS = 24 * 60 * 60
)

// validStatuses is the O(1) lookup set for Status values.
var validStatuses = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		set[s] = struct{}{}
	}
	return set
}()

// ValidateDevice checks a device before it is written.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if err := ValidateIP(d.IP); err != nil {
		return err
	}

	if len(d.Type) > maxTypeLength {
		return fmt.Errorf("%w: type exceeds %d characters", ErrInvalidDevice, maxTypeLength)
	}
	if len(d.Lane) > maxLaneLength {
		return fmt.Errorf("%w: lane exceeds %d characters", ErrInvalidDevice, maxLaneLength)
	}

	if d.WatchTimeoutMs <= 0 || d.WatchTimeoutMs > maxWatchTimeoutMs {
		return fmt.Errorf("%w: timeout must be 1-%d ms", ErrInvalidWatchParams, maxWatchTimeoutMs)
	}
	if d.WatchIntervalS <= 0 || d.WatchIntervalS > maxWatchIntervalS {
		return fmt.Errorf("%w: interval must be 1-%d s", ErrInvalidWatchParams, maxWatchIntervalS)
	}

	for _, script := range []*string{d.UpScript, d.DownScript} {
		if script != nil && len(*script) > maxScriptLength {
			return fmt.Errorf("%w: script exceeds %d characters", ErrInvalidDevice, maxScriptLength)
		}
	}

	if d.Status != "" {
		if err := ValidateStatus(d.Status); err != nil {
			return err
		}
	}

	return nil
}

// ValidateName checks that a device name is non-empty and within length limits.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateIP checks that ip is a literal IPv4 or IPv6 address.
// Hostnames are rejected: the IP is the key used to match router rules.
func ValidateIP(ip string) error {
	if ip == "" {
		return fmt.Errorf("%w: ip is required", ErrInvalidIP)
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	return nil
}

// ValidateStatus checks that a status value is recognised.
func ValidateStatus(s Status) error {
	if _, ok := validStatuses[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return nil
}

// NormaliseIP returns the canonical text form of ip, or ip unchanged when
// it does not parse. Router rules are compared against this form.
func NormaliseIP(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return strings.TrimSpace(ip)
	}
	return addr.String()
}

// ValidateSystemConfig checks the singleton configuration before it is written.
func ValidateSystemConfig(cfg *SystemConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidSystemConfig)
	}
	if strings.TrimSpace(cfg.RemoteHost) == "" {
		return fmt.Errorf("%w: remote host is required", ErrInvalidSystemConfig)
	}
	if strings.TrimSpace(cfg.RemoteUser) == "" {
		return fmt.Errorf("%w: remote user is required", ErrInvalidSystemConfig)
	}
	if cfg.RemotePort < 1 || cfg.RemotePort > 65535 {
		return fmt.Errorf("%w: remote port must be 1-65535", ErrInvalidSystemConfig)
	}
	if cfg.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("%w: polling interval must be positive", ErrInvalidSystemConfig)
	}
	if cfg.DefaultTimeoutMs <= 0 || cfg.DefaultTimeoutMs > maxWatchTimeoutMs {
		return fmt.Errorf("%w: default timeout must be 1-%d ms", ErrInvalidSystemConfig, maxWatchTimeoutMs)
	}
	if cfg.DefaultIntervalSeconds <= 0 || cfg.DefaultIntervalSeconds > maxWatchIntervalS {
		return fmt.Errorf("%w: default interval must be 1-%d s", ErrInvalidSystemConfig, maxWatchIntervalS)
	}
	return nil
}

// GenerateID creates a new UUID for device identification.
func GenerateID() string {
	return uuid.New().String()
}
