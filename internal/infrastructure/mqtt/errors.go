package mqtt

import "errors"

// Errors returned by the client. Failures from paho are wrapped in the
// matching Err*Failed value so callers can use errors.Is.
var (
	ErrDisabled          = errors.New("mqtt: disabled in configuration")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
	ErrInvalidQoS        = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic      = errors.New("mqtt: topic cannot be empty")
)
