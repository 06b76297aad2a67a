package mikrotik

import "errors"

// Domain errors for the RouterOS channel.
var (
	// ErrConnect is returned when the router cannot be reached or the login
	// is rejected.
	ErrConnect = errors.New("mikrotik: connect failed")

	// ErrRemote is returned when the router rejects or fails a command.
	ErrRemote = errors.New("mikrotik: remote command failed")

	// ErrInvalidDuration is returned when a RouterOS duration cannot be parsed.
	ErrInvalidDuration = errors.New("mikrotik: invalid duration")

	// ErrInvalidRule is returned when a rule spec is missing required fields.
	ErrInvalidRule = errors.New("mikrotik: invalid rule")

	// ErrSessionClosed is returned when a command is issued on a closed session.
	ErrSessionClosed = errors.New("mikrotik: session closed")
)
