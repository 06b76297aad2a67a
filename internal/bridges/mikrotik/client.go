package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-routeros/routeros/v3"
)

// RouterOS API command paths for netwatch.
const (
	cmdNetwatchPrint  = "/tool/netwatch/print"
	cmdNetwatchAdd    = "/tool/netwatch/add"
	cmdNetwatchSet    = "/tool/netwatch/set"
	cmdNetwatchRemove = "/tool/netwatch/remove"
)

// Logger defines the logging interface used by the channel.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// commandRunner is the subset of *routeros.Client used by a session.
type commandRunner interface {
	RunArgsContext(ctx context.Context, sentence []string) (*routeros.Reply, error)
}

// APIDialer opens sessions over the RouterOS API using go-routeros.
type APIDialer struct {
	logger Logger
}

// NewAPIDialer creates a dialer for the RouterOS API.
func NewAPIDialer() *APIDialer {
	return &APIDialer{logger: noopLogger{}}
}

// SetLogger sets the logger for the dialer and the sessions it opens.
func (d *APIDialer) SetLogger(logger Logger) {
	d.logger = logger
}

// Open dials the router, honouring ctx and params.Timeout, and logs in.
func (d *APIDialer) Open(ctx context.Context, params ConnectionParams) (Session, error) {
	if params.Host == "" {
		return nil, fmt.Errorf("%w: router host is not configured", ErrConnect)
	}

	timeout := params.timeout()
	addr := params.Address()

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrConnect, addr, err)
	}

	// The login exchange is bounded by the same timeout as the dial.
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: setting deadline: %w", ErrConnect, err)
	}

	client, err := routeros.NewClient(conn)
	if err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: starting api client: %w", ErrConnect, err)
	}
	if err := client.LoginContext(ctx, params.Username, params.Password); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: login as %q: %w", ErrConnect, params.Username, err)
	}

	d.logger.Debug("router session opened", "address", addr)

	return &apiSession{
		runner:  client,
		conn:    conn,
		timeout: timeout,
		logger:  d.logger,
	}, nil
}

// apiSession is a Session over one RouterOS API connection.
type apiSession struct {
	runner  commandRunner
	conn    net.Conn
	timeout time.Duration
	logger  Logger

	mu     sync.Mutex
	closed bool
}

// ListRules runs /tool/netwatch/print.
func (s *apiSession) ListRules(ctx context.Context) ([]WatchRule, error) {
	reply, err := s.run(ctx, []string{cmdNetwatchPrint})
	if err != nil {
		return nil, err
	}

	rules := make([]WatchRule, 0, len(reply.Re))
	for _, re := range reply.Re {
		rules = append(rules, ruleFromMap(re.Map))
	}
	return rules, nil
}

// CreateRule runs /tool/netwatch/add.
func (s *apiSession) CreateRule(ctx context.Context, spec RuleSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrRemote, err)
	}
	_, err := s.run(ctx, append([]string{cmdNetwatchAdd}, spec.args()...))
	return err
}

// UpdateRule runs /tool/netwatch/set on id.
func (s *apiSession) UpdateRule(ctx context.Context, id string, spec RuleSpec) error {
	if id == "" {
		return fmt.Errorf("%w: %w: rule id is required", ErrRemote, ErrInvalidRule)
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrRemote, err)
	}
	sentence := append([]string{cmdNetwatchSet, "=.id=" + id}, spec.args()...)
	_, err := s.run(ctx, sentence)
	return err
}

// RemoveRule runs /tool/netwatch/remove on id.
func (s *apiSession) RemoveRule(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %w: rule id is required", ErrRemote, ErrInvalidRule)
	}
	_, err := s.run(ctx, []string{cmdNetwatchRemove, "=.id=" + id})
	return err
}

// Close closes the underlying connection.
func (s *apiSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("closing router session: %w", err)
	}
	return nil
}

// run executes one command under ctx. The connection deadline is taken
// from ctx or the session timeout, whichever is sooner, since a synchronous
// client only stops reading when the socket does.
func (s *apiSession) run(ctx context.Context, sentence []string) (*routeros.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: %w", ErrRemote, ErrSessionClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRemote, sentence[0], err)
	}

	if s.conn != nil {
		deadline := time.Now().Add(s.timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := s.conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: setting deadline: %w", ErrRemote, err)
		}
	}

	s.logger.Debug("router command", "command", sentence[0])

	reply, err := s.runner.RunArgsContext(ctx, sentence)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRemote, sentence[0], err)
	}
	return reply, nil
}
