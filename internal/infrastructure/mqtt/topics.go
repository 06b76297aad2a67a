package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every netwatch-core topic.
//
// Topic hierarchy:
//
//	netwatch/device/{ip}/status     retained current status per device
//	netwatch/event/{type}           status_changed, poll_cycle
//	netwatch/command/{action}       import, sync, poll, uptime
//	netwatch/response/{action}      result of a command
//	netwatch/system/status          online/offline (LWT)
const TopicPrefix = "netwatch"

// Event types published under netwatch/event/.
const (
	EventStatusChanged = "status_changed"
	EventPollCycle     = "poll_cycle"
)

// Topics provides builders for netwatch MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.DeviceStatus("10.0.0.2")
//	// Returns: "netwatch/device/10.0.0.2/status"
type Topics struct{}

// DeviceStatus returns the retained status topic for one device.
//
// Example: netwatch/device/10.0.0.2/status
func (Topics) DeviceStatus(ip string) string {
	return fmt.Sprintf("%s/device/%s/status", TopicPrefix, ip)
}

// Event returns the topic for an event type.
//
// Example: netwatch/event/status_changed
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// Command returns the topic a command is received on.
//
// Example: netwatch/command/import
func (Topics) Command(action string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, action)
}

// Response returns the topic a command result is published on.
//
// Example: netwatch/response/import
func (Topics) Response(action string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefix, action)
}

// SystemStatus returns the service status topic.
//
// Example: netwatch/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: netwatch/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllDeviceStatuses returns a pattern matching every device status topic.
//
// Pattern: netwatch/device/+/status
func (Topics) AllDeviceStatuses() string {
	return fmt.Sprintf("%s/device/+/status", TopicPrefix)
}

// AllEvents returns a pattern matching every event topic.
//
// Pattern: netwatch/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all netwatch topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: netwatch/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// CommandAction extracts the action from a command topic.
// Returns false when topic is not a netwatch/command/{action} topic.
func CommandAction(topic string) (string, bool) {
	action, found := strings.CutPrefix(topic, TopicPrefix+"/command/")
	if !found || action == "" || strings.Contains(action, "/") {
		return "", false
	}
	return action, true
}
