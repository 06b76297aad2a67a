package netwatch

import "errors"

// Domain errors for the netwatch package.
var (
	// ErrInvalidInterval is returned when the poller is started with a
	// non-positive interval.
	ErrInvalidInterval = errors.New("netwatch: polling interval must be positive")

	// ErrInvalidWindow is returned when an uptime window is not positive.
	ErrInvalidWindow = errors.New("netwatch: uptime window must be positive")

	// ErrUnknownCommand is returned for a command topic with no handler.
	ErrUnknownCommand = errors.New("netwatch: unknown command")

	// ErrInvalidCommand is returned when a command payload cannot be decoded.
	ErrInvalidCommand = errors.New("netwatch: invalid command payload")

	// ErrCommandQueueFull is returned when commands arrive faster than
	// they can be executed.
	ErrCommandQueueFull = errors.New("netwatch: command queue full")
)
