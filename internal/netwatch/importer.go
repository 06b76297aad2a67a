package netwatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/netwatch-core/internal/bridges/mikrotik"
	"github.com/nerrad567/netwatch-core/internal/device"
)

// ImportedType is the device type given to rows created from router rules.
const ImportedType = "imported"

// Candidate is one device proposed for import.
// Zero watch parameters are filled from the system config defaults.
type Candidate struct {
	Name   string        `json:"name"`
	IP     string        `json:"ip"`
	Type   string        `json:"type"`
	Status device.Status `json:"status"`

	WatchTimeoutMs int    `json:"watch_timeout_ms,omitempty"`
	WatchIntervalS int    `json:"watch_interval_s,omitempty"`
	UpScript       string `json:"up_script,omitempty"`
	DownScript     string `json:"down_script,omitempty"`
}

// ImportResult counts the outcome of a batch.
// Imported + Skipped always equals the number of candidates processed.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImporterOptions configures an Importer.
type ImporterOptions struct {
	// Timeout bounds connecting and each router command.
	Timeout time.Duration
}

// Importer creates local devices for hosts the router watches but the
// registry does not know yet. Existing rows are never modified.
type Importer struct {
	store    DeviceStore
	dialer   mikrotik.Dialer
	settings SettingsReader
	timeout  time.Duration
	logger   Logger
}

// NewImporter creates an import reconciler.
func NewImporter(store DeviceStore, dialer mikrotik.Dialer, settings SettingsReader, opts ImporterOptions) *Importer {
	return &Importer{
		store:    store,
		dialer:   dialer,
		settings: settings,
		timeout:  opts.Timeout,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the importer.
func (im *Importer) SetLogger(logger Logger) {
	im.logger = logger
}

// ImportDevices creates a device for every candidate whose IP is not yet
// registered, in input order.
//
// Registered IPs are read once up front. A candidate whose IP is already
// registered, appeared earlier in the batch, or loses a race with a
// concurrent writer is counted as skipped. Candidates that fail validation
// are also skipped and logged. Any other store error stops the batch and is
// returned with the counts so far.
func (im *Importer) ImportDevices(ctx context.Context, candidates []Candidate) (ImportResult, error) {
	var result ImportResult

	ips, err := im.store.ListIPs(ctx)
	if err != nil {
		return result, fmt.Errorf("listing registered ips: %w", err)
	}

	committed := make(map[string]struct{}, len(ips)+len(candidates))
	for _, ip := range ips {
		committed[device.NormaliseIP(ip)] = struct{}{}
	}

	timeoutMs, intervalS := im.watchDefaults(ctx)

	for _, c := range candidates {
		ip := device.NormaliseIP(c.IP)
		if _, seen := committed[ip]; seen {
			result.Skipped++
			continue
		}

		d := candidateDevice(c, ip, timeoutMs, intervalS)
		if err := device.ValidateDevice(d); err != nil {
			im.logger.Warn("skipping invalid import candidate", "ip", c.IP, "name", c.Name, "error", err)
			result.Skipped++
			continue
		}

		if err := im.store.Create(ctx, d); err != nil {
			if errors.Is(err, device.ErrDeviceExists) {
				committed[ip] = struct{}{}
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("creating device %s: %w", ip, err)
		}

		committed[ip] = struct{}{}
		result.Imported++
	}

	im.logger.Info("import finished", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// ImportFromRemote lists the router's watch rules and imports them.
// The session is closed before any local writes happen.
func (im *Importer) ImportFromRemote(ctx context.Context) (ImportResult, error) {
	cfg, err := im.settings.Get(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("reading system config: %w", err)
	}

	sess, err := im.dialer.Open(ctx, connectionParams(cfg, im.timeout))
	if err != nil {
		return ImportResult{}, err
	}
	rules, err := sess.ListRules(ctx)
	closeSession(sess, im.logger)
	if err != nil {
		return ImportResult{}, err
	}

	return im.ImportDevices(ctx, CandidatesFromRules(rules))
}

// CandidatesFromRules maps router rules onto import candidates.
// The display name is the rule comment, or the host when it has none.
func CandidatesFromRules(rules []mikrotik.WatchRule) []Candidate {
	candidates := make([]Candidate, 0, len(rules))
	for _, r := range rules {
		name := strings.TrimSpace(r.Comment)
		if name == "" {
			name = r.Host
		}

		status := device.StatusDown
		if r.IsUp() {
			status = device.StatusUp
		}

		candidates = append(candidates, Candidate{
			Name:           name,
			IP:             r.Host,
			Type:           ImportedType,
			Status:         status,
			WatchTimeoutMs: int(r.Timeout / time.Millisecond),
			WatchIntervalS: int(r.Interval / time.Second),
			UpScript:       r.UpScript,
			DownScript:     r.DownScript,
		})
	}
	return candidates
}

// watchDefaults returns the configured default timeout and interval.
func (im *Importer) watchDefaults(ctx context.Context) (timeoutMs, intervalS int) {
	cfg, err := im.settings.Get(ctx)
	if err != nil {
		if !errors.Is(err, device.ErrSystemConfigNotFound) {
			im.logger.Warn("reading system config for watch defaults", "error", err)
		}
		return fallbackTimeoutMs, fallbackIntervalS
	}
	return cfg.DefaultTimeoutMs, cfg.DefaultIntervalSeconds
}

func candidateDevice(c Candidate, ip string, timeoutMs, intervalS int) *device.Device {
	d := &device.Device{
		ID:             device.GenerateID(),
		IP:             ip,
		Name:           strings.TrimSpace(c.Name),
		Type:           c.Type,
		WatchTimeoutMs: c.WatchTimeoutMs,
		WatchIntervalS: c.WatchIntervalS,
		Status:         c.Status,
	}
	if d.Type == "" {
		d.Type = ImportedType
	}
	if d.Status == "" {
		d.Status = device.StatusUnknown
	}
	if d.WatchTimeoutMs <= 0 {
		d.WatchTimeoutMs = timeoutMs
	}
	if d.WatchIntervalS <= 0 {
		d.WatchIntervalS = intervalS
	}
	if c.UpScript != "" {
		d.UpScript = &c.UpScript
	}
	if c.DownScript != "" {
		d.DownScript = &c.DownScript
	}
	return d
}
