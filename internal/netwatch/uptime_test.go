package netwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/netwatch-core/internal/device"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func sample(status device.Status, offset time.Duration) StatusSample {
	return StatusSample{Status: status, Timestamp: t0.Add(offset)}
}

func TestComputeUptime(t *testing.T) {
	tests := []struct {
		name    string
		history []StatusSample
		now     time.Time
		want    Uptime
	}{
		{
			name: "empty history",
			now:  t0,
			want: Uptime{},
		},
		{
			name:    "window closes at the transition",
			history: []StatusSample{sample(device.StatusUp, 0), sample(device.StatusDown, 60*time.Second)},
			now:     t0.Add(60 * time.Second),
			want: Uptime{
				Percentage:   100,
				UpCount:      1,
				DownCount:    1,
				TotalChanges: 2,
				UpDuration:   60 * time.Second,
				Window:       60 * time.Second,
			},
		},
		{
			name:    "down half the window",
			history: []StatusSample{sample(device.StatusUp, 0), sample(device.StatusDown, 60*time.Second)},
			now:     t0.Add(120 * time.Second),
			want: Uptime{
				Percentage:   50,
				UpCount:      1,
				DownCount:    1,
				TotalChanges: 2,
				UpDuration:   60 * time.Second,
				Window:       120 * time.Second,
			},
		},
		{
			name: "open interval after final up",
			history: []StatusSample{
				sample(device.StatusDown, 0),
				sample(device.StatusUp, 30*time.Second),
			},
			now: t0.Add(120 * time.Second),
			want: Uptime{
				Percentage:   75,
				UpCount:      1,
				DownCount:    1,
				TotalChanges: 2,
				UpDuration:   90 * time.Second,
				Window:       120 * time.Second,
			},
		},
		{
			name:    "single up sample",
			history: []StatusSample{sample(device.StatusUp, 0)},
			now:     t0.Add(time.Hour),
			want: Uptime{
				Percentage:   100,
				UpCount:      1,
				TotalChanges: 1,
				UpDuration:   time.Hour,
				Window:       time.Hour,
			},
		},
		{
			name:    "single up sample observed now",
			history: []StatusSample{sample(device.StatusUp, 0)},
			now:     t0,
			want:    Uptime{UpCount: 1, TotalChanges: 1},
		},
		{
			name:    "single down sample",
			history: []StatusSample{sample(device.StatusDown, 0)},
			now:     t0.Add(time.Hour),
			want: Uptime{
				DownCount:    1,
				TotalChanges: 1,
				Window:       time.Hour,
			},
		},
		{
			name: "unknown counts as a change but not up or down",
			history: []StatusSample{
				sample(device.StatusUnknown, 0),
				sample(device.StatusUp, 50*time.Second),
				sample(device.StatusDown, 100*time.Second),
			},
			now: t0.Add(100 * time.Second),
			want: Uptime{
				Percentage:   50,
				UpCount:      1,
				DownCount:    1,
				TotalChanges: 3,
				UpDuration:   50 * time.Second,
				Window:       100 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeUptime(tt.history, tt.now))
		})
	}
}

func TestComputeUptime_Deterministic(t *testing.T) {
	history := []StatusSample{
		sample(device.StatusUp, 0),
		sample(device.StatusDown, 7*time.Second),
		sample(device.StatusUp, 20*time.Second),
	}
	now := t0.Add(31 * time.Second)

	first := ComputeUptime(history, now)
	second := ComputeUptime(history, now)
	assert.Equal(t, first, second)
	assert.InDelta(t, 18.0/31.0*100, first.Percentage, 1e-9)
}

type fakeHistory struct {
	prior   *device.StatusHistoryEntry
	entries []device.StatusHistoryEntry
	err     error

	gotDeviceID string
	gotSince    time.Time
	gotBefore   time.Time
}

func (h *fakeHistory) LastBefore(_ context.Context, deviceID string, t time.Time) (*device.StatusHistoryEntry, error) {
	h.gotDeviceID = deviceID
	h.gotBefore = t
	return h.prior, h.err
}

func (h *fakeHistory) ListSince(_ context.Context, deviceID string, since time.Time) ([]device.StatusHistoryEntry, error) {
	h.gotDeviceID = deviceID
	h.gotSince = since
	return h.entries, h.err
}

func TestUptimeReporter_DeviceUptime(t *testing.T) {
	history := &fakeHistory{entries: []device.StatusHistoryEntry{
		{DeviceID: "dev-1", Status: device.StatusUp, Timestamp: t0},
		{DeviceID: "dev-1", Status: device.StatusDown, Timestamp: t0.Add(30 * time.Minute)},
	}}
	clock := newFakeClock(t0.Add(time.Hour))
	r := NewUptimeReporter(history, clock)

	got, err := r.DeviceUptime(context.Background(), "dev-1", 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", history.gotDeviceID)
	assert.True(t, history.gotSince.Equal(t0.Add(-23*time.Hour)))
	assert.InDelta(t, 50.0, got.Percentage, 1e-9)
	assert.Equal(t, 2, got.TotalChanges)
}

func TestUptimeReporter_Errors(t *testing.T) {
	r := NewUptimeReporter(&fakeHistory{err: errors.New("database is locked")}, newFakeClock(t0))

	_, err := r.DeviceUptime(context.Background(), "dev-1", time.Hour)
	assert.Error(t, err)

	_, err = r.DeviceUptime(context.Background(), "dev-1", 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestUptimeReporter_ReadsStoredHistory(t *testing.T) {
	f := newPollerFixture(t)
	d := seedDevice(t, f.stores.devices, "10.0.0.2", "Printer")
	f.router.addRule("10.0.0.2", "", "up")
	ctx := context.Background()

	_, err := f.poller.Poll(ctx)
	require.NoError(t, err)
	f.clock.Advance(45 * time.Second)
	f.router.setStatus("10.0.0.2", "down")
	_, err = f.poller.Poll(ctx)
	require.NoError(t, err)
	f.clock.Advance(15 * time.Second)

	got, err := NewUptimeReporter(f.stores.history, f.clock).DeviceUptime(ctx, d.ID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalChanges)
	assert.Equal(t, 45*time.Second, got.UpDuration)
	assert.Equal(t, time.Minute, got.Window)
	assert.InDelta(t, 75.0, got.Percentage, 1e-9)
}

func TestUptimeReporter_CarriesStateIntoWindow(t *testing.T) {
	// Down 30h ago, back up 20h ago: the first 4h of a 24h window are down.
	now := t0.Add(30 * time.Hour)
	history := &fakeHistory{
		prior: &device.StatusHistoryEntry{DeviceID: "dev-1", Status: device.StatusDown, Timestamp: t0},
		entries: []device.StatusHistoryEntry{
			{DeviceID: "dev-1", Status: device.StatusUp, Timestamp: t0.Add(10 * time.Hour)},
		},
	}
	r := NewUptimeReporter(history, newFakeClock(now))

	got, err := r.DeviceUptime(context.Background(), "dev-1", 24*time.Hour)
	require.NoError(t, err)

	assert.True(t, history.gotBefore.Equal(now.Add(-24*time.Hour)))
	assert.Equal(t, 24*time.Hour, got.Window)
	assert.Equal(t, 20*time.Hour, got.UpDuration)
	assert.InDelta(t, 20.0/24.0*100, got.Percentage, 1e-9)
	assert.Equal(t, 1, got.UpCount)
	assert.Equal(t, 1, got.DownCount)
}

func TestUptimeReporter_SteadyDeviceOverLongWindow(t *testing.T) {
	f := newPollerFixture(t)
	d := seedDevice(t, f.stores.devices, "10.0.0.2", "Printer")
	f.router.addRule("10.0.0.2", "", "up")
	ctx := context.Background()

	for i := 0; i < 48; i++ {
		_, err := f.poller.Poll(ctx)
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
	}

	got, err := NewUptimeReporter(f.stores.history, f.clock).DeviceUptime(ctx, d.ID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, got.Window)
	assert.Equal(t, 24*time.Hour, got.UpDuration)
	assert.InDelta(t, 100.0, got.Percentage, 1e-9)
	assert.Equal(t, 1, got.UpCount)
	assert.Equal(t, 1, got.TotalChanges)
}
