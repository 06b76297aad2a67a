package mikrotik

import (
	"context"
	"net"
	"strconv"
	"time"
)

// DefaultPort is the RouterOS API plain-text port.
const DefaultPort = 8728

// DefaultTimeout bounds connecting and each command when
// ConnectionParams.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// ConnectionParams identify and authenticate against one router.
type ConnectionParams struct {
	Host     string
	Port     int
	Username string
	Password string

	// Timeout bounds the TCP connect plus login, and every later command.
	Timeout time.Duration
}

// Address returns host:port, applying DefaultPort when Port is zero.
func (p ConnectionParams) Address() string {
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

func (p ConnectionParams) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// Dialer opens sessions to a router.
type Dialer interface {
	// Open connects and logs in. Failures wrap ErrConnect.
	Open(ctx context.Context, params ConnectionParams) (Session, error)
}

// Session is a single logged-in connection. It is not safe for concurrent
// use: the RouterOS API processes one command at a time per connection.
type Session interface {
	// ListRules returns every netwatch entry. Failures wrap ErrRemote.
	ListRules(ctx context.Context) ([]WatchRule, error)

	// CreateRule adds a netwatch entry. Failures wrap ErrRemote.
	CreateRule(ctx context.Context, spec RuleSpec) error

	// UpdateRule overwrites the entry with the given session-local ID.
	// Failures wrap ErrRemote.
	UpdateRule(ctx context.Context, id string, spec RuleSpec) error

	// RemoveRule deletes the entry with the given session-local ID.
	// Failures wrap ErrRemote.
	RemoveRule(ctx context.Context, id string) error

	// Close releases the connection. Safe to call more than once.
	Close() error
}
