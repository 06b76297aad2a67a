package netwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/netwatch-core/internal/device"
)

// StatusSample is one status change used for uptime calculation.
type StatusSample struct {
	Status    device.Status
	Timestamp time.Time
}

// Uptime summarises availability over a sequence of status changes.
type Uptime struct {
	// Percentage is up-time over the observed window, 0-100. Unrounded.
	Percentage float64 `json:"percentage"`

	UpCount      int `json:"up_count"`
	DownCount    int `json:"down_count"`
	TotalChanges int `json:"total_changes"`

	UpDuration time.Duration `json:"up_duration"`
	Window     time.Duration `json:"window"`
}

// ComputeUptime derives availability from history ordered oldest first.
//
// With two or more samples the window runs from the first sample to the
// later of the last sample and now. Every interval that starts with an up
// sample counts as up time, and so does the open interval after a final up
// sample. A single up sample gives 100 when now is after it; a single down
// sample gives 0. No samples gives zero values.
//
// The result depends only on its inputs.
func ComputeUptime(history []StatusSample, now time.Time) Uptime {
	var u Uptime
	u.TotalChanges = len(history)

	for _, h := range history {
		switch h.Status {
		case device.StatusUp:
			u.UpCount++
		case device.StatusDown:
			u.DownCount++
		}
	}

	switch len(history) {
	case 0:
		return u

	case 1:
		only := history[0]
		if since := now.Sub(only.Timestamp); since > 0 {
			u.Window = since
			if only.Status == device.StatusUp {
				u.UpDuration = since
				u.Percentage = 100
			}
		}
		return u
	}

	first, last := history[0], history[len(history)-1]
	u.Window = last.Timestamp.Sub(first.Timestamp)
	if toNow := now.Sub(first.Timestamp); toNow > u.Window {
		u.Window = toNow
	}

	for i := 0; i < len(history)-1; i++ {
		if history[i].Status == device.StatusUp {
			u.UpDuration += history[i+1].Timestamp.Sub(history[i].Timestamp)
		}
	}
	if last.Status == device.StatusUp {
		if open := now.Sub(last.Timestamp); open > 0 {
			u.UpDuration += open
		}
	}

	if u.Window > 0 {
		u.Percentage = float64(u.UpDuration) / float64(u.Window) * 100
	}
	return u
}

// UptimeReporter computes uptime for stored devices.
type UptimeReporter struct {
	history HistoryReader
	clock   Clock
}

// NewUptimeReporter creates a reporter over the status history. A nil
// clock uses the system clock.
func NewUptimeReporter(history HistoryReader, clock Clock) *UptimeReporter {
	if clock == nil {
		clock = realClock{}
	}
	return &UptimeReporter{history: history, clock: clock}
}

// DeviceUptime computes uptime over the last window. The newest change
// recorded before the window opens is carried in as the state at its start,
// so a device that has not changed state during the window still reports.
func (r *UptimeReporter) DeviceUptime(ctx context.Context, deviceID string, window time.Duration) (Uptime, error) {
	if window <= 0 {
		return Uptime{}, ErrInvalidWindow
	}

	now := r.clock.Now().UTC()
	start := now.Add(-window)

	prior, err := r.history.LastBefore(ctx, deviceID, start)
	if err != nil {
		return Uptime{}, fmt.Errorf("reading status history: %w", err)
	}
	entries, err := r.history.ListSince(ctx, deviceID, start)
	if err != nil {
		return Uptime{}, fmt.Errorf("reading status history: %w", err)
	}

	samples := make([]StatusSample, 0, len(entries)+1)
	if prior != nil {
		samples = append(samples, StatusSample{Status: prior.Status, Timestamp: start})
	}
	for _, e := range entries {
		samples = append(samples, StatusSample{Status: e.Status, Timestamp: e.Timestamp})
	}
	return ComputeUptime(samples, now), nil
}
