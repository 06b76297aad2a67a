package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by netwatch-core.
const (
	MeasurementDeviceStatus = "device_status"
	MeasurementPollCycle    = "poll_cycle"
)

// CycleStats summarises one status poll for the poll_cycle measurement.
type CycleStats struct {
	Success     bool
	Rules       int
	Devices     int
	Transitions int
	Failed      int
	Duration    time.Duration
}

// WriteDeviceStatus records one reachability observation for a device.
//
// The up field is 1 or 0 so that mean() over a window gives the uptime
// fraction directly in Flux.
//
// Example:
//
//	client.WriteDeviceStatus("3f2c...", "10.0.0.2", "down", now)
func (c *Client) WriteDeviceStatus(deviceID, ip, status string, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(deviceStatusPoint(deviceID, ip, status, ts))
}

// WritePollCycle records the outcome of a status poll.
func (c *Client) WritePollCycle(stats CycleStats, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(pollCyclePoint(stats, ts))
}

func deviceStatusPoint(deviceID, ip, status string, ts time.Time) *write.Point {
	up := 0
	if status == "up" {
		up = 1
	}
	return write.NewPoint(
		MeasurementDeviceStatus,
		map[string]string{
			"device_id": deviceID,
			"ip":        ip,
		},
		map[string]interface{}{
			"status": status,
			"up":     up,
		},
		ts,
	)
}

func pollCyclePoint(stats CycleStats, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPollCycle,
		map[string]string{},
		map[string]interface{}{
			"success":     stats.Success,
			"rules":       stats.Rules,
			"devices":     stats.Devices,
			"transitions": stats.Transitions,
			"failed":      stats.Failed,
			"duration_ms": stats.Duration.Milliseconds(),
		},
		ts,
	)
}
