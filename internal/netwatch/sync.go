package netwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/netwatch-core/internal/bridges/mikrotik"
	"github.com/nerrad567/netwatch-core/internal/device"
)

// Sync actions reported in SyncResult.Action.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionRemoved = "removed"
	ActionAbsent  = "absent"
)

// SyncResult is the outcome of pushing one device to the router.
// Failures are values: Success is false and Message explains why.
type SyncResult struct {
	IP       string            `json:"ip"`
	Success  bool              `json:"success"`
	Action   string            `json:"action,omitempty"`
	Message  string            `json:"message"`
	Category mikrotik.Category `json:"category,omitempty"`
}

// SyncerOptions configures a Syncer.
type SyncerOptions struct {
	// Timeout bounds connecting and each router command.
	Timeout time.Duration
}

// Syncer makes the router's netwatch rules match local devices.
//
// Rules are matched by host and updated in place when found, so router-side
// counters and logs survive a device edit. A rule is only created when no
// rule watches the host yet.
type Syncer struct {
	dialer   mikrotik.Dialer
	settings SettingsReader
	store    DeviceStore
	timeout  time.Duration
	logger   Logger
}

// NewSyncer creates a sync adapter. store is only needed by SyncAll and may
// be nil otherwise.
func NewSyncer(dialer mikrotik.Dialer, settings SettingsReader, store DeviceStore, opts SyncerOptions) *Syncer {
	return &Syncer{
		dialer:   dialer,
		settings: settings,
		store:    store,
		timeout:  opts.Timeout,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the syncer.
func (s *Syncer) SetLogger(logger Logger) {
	s.logger = logger
}

// SyncDevice upserts the watch rule for d. When previousIP is non-empty
// the rule is looked up at previousIP so an IP change moves the existing
// rule instead of creating a second one.
//
// SyncDevice never returns an error; every failure is reported in the result.
func (s *Syncer) SyncDevice(ctx context.Context, d *device.Device, previousIP string) SyncResult {
	if d == nil {
		return SyncResult{Message: "no device given", Category: mikrotik.CategoryUnclassified}
	}
	result := SyncResult{IP: d.IP}

	lookupHost := d.IP
	if previousIP != "" {
		lookupHost = previousIP
	}

	sess, failure, ok := s.open(ctx, result)
	if !ok {
		return failure
	}
	defer closeSession(sess, s.logger)

	rules, err := sess.ListRules(ctx)
	if err != nil {
		return s.fail(result, "listing watch rules", err)
	}

	spec := ruleSpecFor(d)
	if rule, found := mikrotik.FindByHost(rules, lookupHost); found {
		if err := sess.UpdateRule(ctx, rule.ID, spec); err != nil {
			return s.fail(result, "updating watch rule", err)
		}
		result.Action = ActionUpdated
		result.Message = fmt.Sprintf("updated watch rule for %s", d.IP)
	} else {
		if err := sess.CreateRule(ctx, spec); err != nil {
			return s.fail(result, "creating watch rule", err)
		}
		result.Action = ActionCreated
		result.Message = fmt.Sprintf("created watch rule for %s", d.IP)
	}

	result.Success = true
	s.logger.Info("device synced to router", "ip", d.IP, "previous_ip", previousIP, "action", result.Action)
	return result
}

// RemoveDevice deletes the watch rule for ip. A missing rule is success.
func (s *Syncer) RemoveDevice(ctx context.Context, ip string) SyncResult {
	result := SyncResult{IP: ip}

	sess, failure, ok := s.open(ctx, result)
	if !ok {
		return failure
	}
	defer closeSession(sess, s.logger)

	rules, err := sess.ListRules(ctx)
	if err != nil {
		return s.fail(result, "listing watch rules", err)
	}

	rule, found := mikrotik.FindByHost(rules, ip)
	if !found {
		result.Success = true
		result.Action = ActionAbsent
		result.Message = fmt.Sprintf("no watch rule for %s", ip)
		return result
	}

	if err := sess.RemoveRule(ctx, rule.ID); err != nil {
		return s.fail(result, "removing watch rule", err)
	}

	result.Success = true
	result.Action = ActionRemoved
	result.Message = fmt.Sprintf("removed watch rule for %s", ip)
	s.logger.Info("device removed from router", "ip", ip)
	return result
}

// SyncAll pushes every registered device, one session per device.
func (s *Syncer) SyncAll(ctx context.Context) []SyncResult {
	if s.store == nil {
		return []SyncResult{{Message: "no device store configured", Category: CategoryStore}}
	}

	devices, err := s.store.List(ctx)
	if err != nil {
		return []SyncResult{{
			Message:  fmt.Sprintf("listing devices: %v", err),
			Category: CategoryStore,
		}}
	}

	results := make([]SyncResult, 0, len(devices))
	for i := range devices {
		results = append(results, s.SyncDevice(ctx, &devices[i], ""))
	}
	return results
}

// DeviceSaved implements device.ChangeHook.
func (s *Syncer) DeviceSaved(ctx context.Context, d *device.Device, previousIP string) {
	if previousIP == d.IP {
		previousIP = ""
	}
	if result := s.SyncDevice(ctx, d, previousIP); !result.Success {
		s.logger.Warn("device sync failed", "ip", d.IP, "category", result.Category, "message", result.Message)
	}
}

// DeviceRemoved implements device.ChangeHook.
func (s *Syncer) DeviceRemoved(ctx context.Context, d *device.Device) {
	if result := s.RemoveDevice(ctx, d.IP); !result.Success {
		s.logger.Warn("device removal sync failed", "ip", d.IP, "category", result.Category, "message", result.Message)
	}
}

// open reads the connection settings and opens a session. On failure it
// returns the failed result and ok=false.
func (s *Syncer) open(ctx context.Context, result SyncResult) (mikrotik.Session, SyncResult, bool) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("reading system config: %v", err)
		result.Category = CategoryStore
		return nil, result, false
	}

	sess, err := s.dialer.Open(ctx, connectionParams(cfg, s.timeout))
	if err != nil {
		return nil, s.fail(result, "connecting to router", err), false
	}
	return sess, result, true
}

func (s *Syncer) fail(result SyncResult, op string, err error) SyncResult {
	c := mikrotik.Classify(err)
	result.Success = false
	result.Category = c.Category
	result.Message = fmt.Sprintf("%s: %s", op, c.Message)
	s.logger.Warn("router sync step failed", "ip", result.IP, "op", op, "category", c.Category, "error", err)
	return result
}

// ruleSpecFor projects a device onto a watch rule. The comment is always
// the device's display name.
func ruleSpecFor(d *device.Device) mikrotik.RuleSpec {
	spec := mikrotik.RuleSpec{
		Host:     d.IP,
		Comment:  d.Name,
		Timeout:  time.Duration(d.WatchTimeoutMs) * time.Millisecond,
		Interval: time.Duration(d.WatchIntervalS) * time.Second,
	}
	if d.UpScript != nil {
		spec.UpScript = *d.UpScript
	}
	if d.DownScript != nil {
		spec.DownScript = *d.DownScript
	}
	return spec
}

var _ device.ChangeHook = (*Syncer)(nil)
