package netwatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/netwatch-core/internal/bridges/mikrotik"
	"github.com/nerrad567/netwatch-core/internal/device"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/database"
	_ "github.com/nerrad567/netwatch-core/migrations" // registers the embedded schema
)

// errRefused is what the API dialer returns when nothing listens.
var errRefused = fmt.Errorf("%w: dial tcp 192.0.2.1:8728: connect: connection refused", mikrotik.ErrConnect)

// =============================================================================
// Router fake
// =============================================================================

// fakeRouter is an in-memory netwatch table behind the Dialer interface.
type fakeRouter struct {
	mu     sync.Mutex
	rules  []mikrotik.WatchRule
	nextID int

	openErr   error
	listErr   error
	createErr error
	updateErr error
	removeErr error

	opens      int
	lists      int
	closes     int
	lastParams mikrotik.ConnectionParams
}

func (r *fakeRouter) Open(_ context.Context, params mikrotik.ConnectionParams) (mikrotik.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	r.lastParams = params
	if r.openErr != nil {
		return nil, r.openErr
	}
	return &fakeSession{router: r}, nil
}

func (r *fakeRouter) addRule(host, comment, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.rules = append(r.rules, mikrotik.WatchRule{
		ID:       fmt.Sprintf("*%X", r.nextID),
		Host:     host,
		Comment:  comment,
		Timeout:  time.Second,
		Interval: 10 * time.Second,
		Status:   status,
	})
}

func (r *fakeRouter) setStatus(host, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].Host == host {
			r.rules[i].Status = status
		}
	}
}

func (r *fakeRouter) setOpenErr(err error) {
	r.mu.Lock()
	r.openErr = err
	r.mu.Unlock()
}

func (r *fakeRouter) snapshot() []mikrotik.WatchRule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mikrotik.WatchRule(nil), r.rules...)
}

func (r *fakeRouter) rulesFor(host string) []mikrotik.WatchRule {
	var out []mikrotik.WatchRule
	for _, rule := range r.snapshot() {
		if rule.Host == host {
			out = append(out, rule)
		}
	}
	return out
}

func (r *fakeRouter) counts() (opens, lists, closes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens, r.lists, r.closes
}

type fakeSession struct {
	router *fakeRouter
}

func (s *fakeSession) ListRules(context.Context) ([]mikrotik.WatchRule, error) {
	r := s.router
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]mikrotik.WatchRule(nil), r.rules...), nil
}

func (s *fakeSession) CreateRule(_ context.Context, spec mikrotik.RuleSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	r := s.router
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	r.rules = append(r.rules, ruleFromSpec(fmt.Sprintf("*%X", r.nextID), spec, "unknown"))
	return nil
}

func (s *fakeSession) UpdateRule(_ context.Context, id string, spec mikrotik.RuleSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	r := s.router
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules[i] = ruleFromSpec(id, spec, r.rules[i].Status)
			return nil
		}
	}
	return fmt.Errorf("%w: no such item", mikrotik.ErrRemote)
}

func (s *fakeSession) RemoveRule(_ context.Context, id string) error {
	r := s.router
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removeErr != nil {
		return r.removeErr
	}
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: no such item", mikrotik.ErrRemote)
}

func (s *fakeSession) Close() error {
	s.router.mu.Lock()
	s.router.closes++
	s.router.mu.Unlock()
	return nil
}

func ruleFromSpec(id string, spec mikrotik.RuleSpec, status string) mikrotik.WatchRule {
	return mikrotik.WatchRule{
		ID:         id,
		Host:       spec.Host,
		Comment:    spec.Comment,
		Timeout:    spec.Timeout,
		Interval:   spec.Interval,
		UpScript:   spec.UpScript,
		DownScript: spec.DownScript,
		Status:     status,
	}
}

// =============================================================================
// Settings and store
// =============================================================================

type fakeSettings struct {
	cfg *device.SystemConfig
	err error
}

func (s *fakeSettings) Get(context.Context) (*device.SystemConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.cfg
	return &cp, nil
}

func testSystemConfig() *device.SystemConfig {
	return &device.SystemConfig{
		RemoteHost:             "192.0.2.1",
		RemoteUser:             "netwatch",
		RemoteSecret:           "secret",
		RemotePort:             8728,
		PollingIntervalSeconds: 30,
		DefaultTimeoutMs:       1500,
		DefaultIntervalSeconds: 20,
	}
}

// testStores holds the SQLite repositories behind one in-memory database.
type testStores struct {
	devices *device.SQLiteRepository
	history *device.SQLiteHistoryRepository
}

func setupStores(t *testing.T) testStores {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Path: ":memory:", BusyTimeout: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	require.NoError(t, db.Migrate(context.Background()))

	return testStores{
		devices: device.NewSQLiteRepository(db.DB),
		history: device.NewSQLiteHistoryRepository(db.DB),
	}
}

// seedDevice inserts a device with default watch parameters.
func seedDevice(t *testing.T, store DeviceStore, ip, name string) *device.Device {
	t.Helper()
	d := &device.Device{
		ID:             device.GenerateID(),
		IP:             ip,
		Name:           name,
		Type:           device.DefaultType,
		WatchTimeoutMs: 1000,
		WatchIntervalS: 10,
		Status:         device.StatusUnknown,
	}
	require.NoError(t, store.Create(context.Background(), d))
	return d
}

// faultyStore wraps a real store and fails selected writes.
type faultyStore struct {
	DeviceStore

	listErr      error
	listIPsErr   error
	failCreateIP string
	createErr    error
	failApplyIP  string
}

func (s *faultyStore) List(ctx context.Context) ([]device.Device, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.DeviceStore.List(ctx)
}

func (s *faultyStore) ListIPs(ctx context.Context) ([]string, error) {
	if s.listIPsErr != nil {
		return nil, s.listIPsErr
	}
	return s.DeviceStore.ListIPs(ctx)
}

func (s *faultyStore) Create(ctx context.Context, d *device.Device) error {
	if d.IP == s.failCreateIP {
		return s.createErr
	}
	return s.DeviceStore.Create(ctx, d)
}

func (s *faultyStore) ApplyStatus(ctx context.Context, u device.StatusUpdate) error {
	if u.DeviceIP == s.failApplyIP {
		return fmt.Errorf("updating device status: database is locked")
	}
	return s.DeviceStore.ApplyStatus(ctx, u)
}

// =============================================================================
// Clock
// =============================================================================

// fakeClock is a manually advanced clock. Tickers it creates are announced
// on created so tests can drive them.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	created chan *fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, created: make(chan *fakeTicker, 1)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *fakeClock) Ticker(d time.Duration) Ticker {
	t := &fakeTicker{interval: d, ch: make(chan time.Time)}
	c.created <- t
	return t
}

type fakeTicker struct {
	interval time.Duration
	ch       chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) Chan() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// =============================================================================
// Observers and publishers
// =============================================================================

type cycleRecord struct {
	report CycleReport
	err    error
}

type recordingObserver struct {
	mu     sync.Mutex
	events []StatusEvent
	cycles []cycleRecord
}

func (o *recordingObserver) StatusObserved(_ context.Context, e StatusEvent) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func (o *recordingObserver) CycleCompleted(_ context.Context, r CycleReport, err error) {
	o.mu.Lock()
	o.cycles = append(o.cycles, cycleRecord{report: r, err: err})
	o.mu.Unlock()
}

func (o *recordingObserver) cycleCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.cycles)
}

type published struct {
	topic    string
	payload  any
	retained bool
}

// fakeBroker records publishes and subscriptions.
type fakeBroker struct {
	mu            sync.Mutex
	messages      []published
	subscriptions map[string]func(string, []byte) error
	publishErr    error
	subscribeErr  error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subscriptions: make(map[string]func(string, []byte) error)}
}

func (b *fakeBroker) PublishJSON(topic string, v any, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.messages = append(b.messages, published{topic: topic, payload: v, retained: retained})
	return nil
}

func (b *fakeBroker) published() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.messages...)
}
