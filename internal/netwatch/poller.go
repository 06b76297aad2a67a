package netwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/netwatch-core/internal/bridges/mikrotik"
	"github.com/nerrad567/netwatch-core/internal/device"
)

// StatusEvent describes a status row written by the poller: either a
// transition or the first observation of a device.
type StatusEvent struct {
	DeviceID         string        `json:"device_id"`
	DeviceIP         string        `json:"device_ip"`
	Name             string        `json:"name"`
	Previous         device.Status `json:"previous"`
	Status           device.Status `json:"status"`
	FirstObservation bool          `json:"first_observation"`
	At               time.Time     `json:"at"`
}

// StatusObserver is notified after a status event has been committed.
type StatusObserver interface {
	StatusObserved(ctx context.Context, event StatusEvent)
}

// CycleObserver is optionally implemented by observers that also want a
// summary of every cycle, including failed ones.
type CycleObserver interface {
	CycleCompleted(ctx context.Context, report CycleReport, err error)
}

// CycleReport summarises one poll cycle.
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Rules   int `json:"rules"`
	Devices int `json:"devices"`

	Transitions       int `json:"transitions"`
	FirstObservations int `json:"first_observations"`
	Refreshed         int `json:"refreshed"`
	Unchanged         int `json:"unchanged"`

	// Unmatched counts devices with no watch rule on the router.
	Unmatched int `json:"unmatched"`

	// Failed counts devices whose status write failed.
	Failed int `json:"failed"`
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	// Interval is the fixed tick period. It is read once at startup; a
	// changed setting takes effect on restart.
	Interval time.Duration

	// Timeout bounds connecting and each router command.
	Timeout time.Duration

	// Clock defaults to the system clock.
	Clock Clock
}

// Poller folds the router's netwatch status into the device registry.
//
// Each cycle opens one session, lists every rule once, closes the session
// and then walks the local devices sequentially. Cycles never overlap.
type Poller struct {
	dialer   mikrotik.Dialer
	store    DeviceStore
	settings SettingsReader
	interval time.Duration
	timeout  time.Duration
	clock    Clock
	logger   Logger

	observersMu sync.RWMutex
	observers   []StatusObserver

	// cycleMu serialises Poll between the scheduler and manual triggers.
	cycleMu sync.Mutex
}

// NewPoller creates a status poller.
func NewPoller(dialer mikrotik.Dialer, store DeviceStore, settings SettingsReader, opts PollerOptions) *Poller {
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Poller{
		dialer:   dialer,
		store:    store,
		settings: settings,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		clock:    clock,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// AddObserver registers an observer for committed status events.
func (p *Poller) AddObserver(o StatusObserver) {
	p.observersMu.Lock()
	p.observers = append(p.observers, o)
	p.observersMu.Unlock()
}

// Interval returns the fixed tick period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls once immediately and then on every tick until ctx is cancelled.
//
// Cycle failures are logged and never stop the loop. Each cycle runs on a
// context detached from ctx so cancellation cannot tear a status write;
// Run returns once the in-flight cycle has finished.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return ErrInvalidInterval
	}

	p.logger.Info("status poller started", "interval", p.interval)

	p.runCycle(ctx)

	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("status poller stopped")
			return nil
		case <-ticker.Chan():
			p.runCycle(ctx)
		}
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	report, err := p.Poll(context.WithoutCancel(ctx))
	if err != nil {
		c := mikrotik.Classify(err)
		p.logger.Warn("poll cycle failed",
			"category", c.Category,
			"message", c.Message,
			"error", err,
		)
		return
	}

	p.logger.Debug("poll cycle complete",
		"rules", report.Rules,
		"devices", report.Devices,
		"transitions", report.Transitions,
		"first_observations", report.FirstObservations,
		"unmatched", report.Unmatched,
		"failed", report.Failed,
		"duration", report.Duration,
	)
}

// Poll runs a single cycle.
//
// Connect and list failures, and failure to read the device list, abort the
// cycle with an error. A failed write for one device is logged and counted
// and the walk continues.
func (p *Poller) Poll(ctx context.Context) (report CycleReport, err error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	report.StartedAt = p.clock.Now().UTC()
	defer func() {
		report.Duration = p.clock.Now().Sub(report.StartedAt)
		p.notifyCycle(ctx, report, err)
	}()

	rules, err := p.listRules(ctx)
	if err != nil {
		return report, err
	}
	report.Rules = len(rules)

	devices, err := p.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("listing devices: %w", err)
	}
	report.Devices = len(devices)

	byHost := make(map[string]mikrotik.WatchRule, len(rules))
	for _, r := range rules {
		host := device.NormaliseIP(r.Host)
		if _, dup := byHost[host]; !dup {
			byHost[host] = r
		}
	}

	for i := range devices {
		p.reconcile(ctx, &devices[i], byHost, &report)
	}

	return report, nil
}

// listRules opens a session, lists rules once and closes the session.
func (p *Poller) listRules(ctx context.Context) ([]mikrotik.WatchRule, error) {
	cfg, err := p.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading system config: %w", err)
	}

	sess, err := p.dialer.Open(ctx, connectionParams(cfg, p.timeout))
	if err != nil {
		return nil, err
	}
	defer closeSession(sess, p.logger)

	rules, err := sess.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// reconcile applies one rule observation to one device.
func (p *Poller) reconcile(ctx context.Context, d *device.Device, byHost map[string]mikrotik.WatchRule, report *CycleReport) {
	rule, ok := byHost[d.IP]
	if !ok {
		report.Unmatched++
		p.logger.Debug("no watch rule for device", "ip", d.IP, "name", d.Name)
		return
	}

	newStatus := device.StatusDown
	if rule.IsUp() {
		newStatus = device.StatusUp
	}

	now := p.clock.Now().UTC()
	update := device.StatusUpdate{
		DeviceID:   d.ID,
		DeviceIP:   d.IP,
		Status:     newStatus,
		RecordedAt: now,
	}

	var event *StatusEvent
	var tally *int
	switch {
	case d.Status != newStatus:
		update.StatusSince = &now
		update.LastSeen = &now
		update.AppendHistory = true
		event = p.newEvent(d, newStatus, now)
		tally = &report.Transitions

	case d.StatusSince == nil:
		update.StatusSince = &now
		if newStatus == device.StatusUp {
			update.LastSeen = &now
		}
		update.AppendHistory = true
		event = p.newEvent(d, newStatus, now)
		tally = &report.FirstObservations

	case newStatus == device.StatusUp:
		update.LastSeen = &now
		tally = &report.Refreshed

	default:
		report.Unchanged++
		return
	}

	if err := p.store.ApplyStatus(ctx, update); err != nil {
		report.Failed++
		p.logger.Error("writing device status", "ip", d.IP, "status", newStatus, "error", err)
		return
	}
	*tally++

	if event != nil {
		p.logger.Info("device status changed",
			"ip", d.IP,
			"name", d.Name,
			"from", d.Status,
			"to", newStatus,
		)
		p.notifyStatus(ctx, *event)
	}
}

func (p *Poller) newEvent(d *device.Device, status device.Status, at time.Time) *StatusEvent {
	return &StatusEvent{
		DeviceID:         d.ID,
		DeviceIP:         d.IP,
		Name:             d.Name,
		Previous:         d.Status,
		Status:           status,
		FirstObservation: d.StatusSince == nil,
		At:               at,
	}
}

func (p *Poller) snapshotObservers() []StatusObserver {
	p.observersMu.RLock()
	defer p.observersMu.RUnlock()
	return append([]StatusObserver(nil), p.observers...)
}

func (p *Poller) notifyStatus(ctx context.Context, event StatusEvent) {
	for _, o := range p.snapshotObservers() {
		o.StatusObserved(ctx, event)
	}
}

func (p *Poller) notifyCycle(ctx context.Context, report CycleReport, err error) {
	for _, o := range p.snapshotObservers() {
		if co, ok := o.(CycleObserver); ok {
			co.CycleCompleted(ctx, report, err)
		}
	}
}
