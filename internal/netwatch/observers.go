package netwatch

import (
	"context"
	"time"

	"github.com/nerrad567/netwatch-core/internal/bridges/mikrotik"
	"github.com/nerrad567/netwatch-core/internal/device"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/mqtt"
)

// Publisher is the MQTT surface used by StatusPublisher.
// *mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// deviceStatusMessage is the retained payload on netwatch/device/{ip}/status.
type deviceStatusMessage struct {
	DeviceID string        `json:"device_id"`
	IP       string        `json:"ip"`
	Name     string        `json:"name"`
	Status   device.Status `json:"status"`
	Since    time.Time     `json:"since"`
}

// pollCycleMessage is published on netwatch/event/poll_cycle.
type pollCycleMessage struct {
	CycleReport
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StatusPublisher mirrors committed status events onto MQTT.
//
// The device status topic is retained so a late subscriber sees the current
// state. Events and cycle summaries are not retained. Publish failures are
// logged and never reach the poller.
type StatusPublisher struct {
	pub    Publisher
	topics mqtt.Topics
	logger Logger
}

// NewStatusPublisher creates an MQTT status observer.
func NewStatusPublisher(pub Publisher) *StatusPublisher {
	return &StatusPublisher{pub: pub, logger: noopLogger{}}
}

// SetLogger sets the logger for the publisher.
func (p *StatusPublisher) SetLogger(logger Logger) {
	p.logger = logger
}

// StatusObserved implements StatusObserver.
func (p *StatusPublisher) StatusObserved(_ context.Context, event StatusEvent) {
	status := deviceStatusMessage{
		DeviceID: event.DeviceID,
		IP:       event.DeviceIP,
		Name:     event.Name,
		Status:   event.Status,
		Since:    event.At,
	}
	if err := p.pub.PublishJSON(p.topics.DeviceStatus(event.DeviceIP), status, true); err != nil {
		p.logger.Warn("publishing device status", "ip", event.DeviceIP, "error", err)
	}

	if err := p.pub.PublishJSON(p.topics.Event(mqtt.EventStatusChanged), event, false); err != nil {
		p.logger.Warn("publishing status event", "ip", event.DeviceIP, "error", err)
	}
}

// CycleCompleted implements CycleObserver.
func (p *StatusPublisher) CycleCompleted(_ context.Context, report CycleReport, err error) {
	msg := pollCycleMessage{CycleReport: report, Success: err == nil}
	if err != nil {
		msg.Error = mikrotik.Classify(err).Message
	}
	if pubErr := p.pub.PublishJSON(p.topics.Event(mqtt.EventPollCycle), msg, false); pubErr != nil {
		p.logger.Warn("publishing poll cycle", "error", pubErr)
	}
}

// StatusWriter is the time-series surface used by InfluxRecorder.
// *influxdb.Client satisfies it.
type StatusWriter interface {
	WriteDeviceStatus(deviceID, ip, status string, ts time.Time)
	WritePollCycle(stats influxdb.CycleStats, ts time.Time)
}

// InfluxRecorder writes status events and cycle summaries as points.
// Writes are batched by the client and never block the poller.
type InfluxRecorder struct {
	writer StatusWriter
}

// NewInfluxRecorder creates a time-series observer.
func NewInfluxRecorder(writer StatusWriter) *InfluxRecorder {
	return &InfluxRecorder{writer: writer}
}

// StatusObserved implements StatusObserver.
func (r *InfluxRecorder) StatusObserved(_ context.Context, event StatusEvent) {
	r.writer.WriteDeviceStatus(event.DeviceID, event.DeviceIP, string(event.Status), event.At)
}

// CycleCompleted implements CycleObserver.
func (r *InfluxRecorder) CycleCompleted(_ context.Context, report CycleReport, err error) {
	r.writer.WritePollCycle(influxdb.CycleStats{
		Success:     err == nil,
		Rules:       report.Rules,
		Devices:     report.Devices,
		Transitions: report.Transitions,
		Failed:      report.Failed,
		Duration:    report.Duration,
	}, report.StartedAt)
}

var (
	_ StatusObserver = (*StatusPublisher)(nil)
	_ CycleObserver  = (*StatusPublisher)(nil)
	_ StatusObserver = (*InfluxRecorder)(nil)
	_ CycleObserver  = (*InfluxRecorder)(nil)
)
