// Package driver is the top-level façade: it ties internal/dsn (target
// parsing), internal/bolt (the wire connection), tofu (host trust), and
// stream (the result-stream engine) into the Driver/Session shape a
// caller actually programs against.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vanshika/corebolt/internal/bolt"
	"github.com/vanshika/corebolt/internal/config"
	"github.com/vanshika/corebolt/internal/dotdir"
	"github.com/vanshika/corebolt/internal/dsn"
	"github.com/vanshika/corebolt/stream"
	"github.com/vanshika/corebolt/tofu"
)

// AuthToken carries the credentials presented on every new connection.
type AuthToken = bolt.AuthToken

// AccessMode distinguishes a read from a write session, mirroring the
// distinction the source protocol's sessions carry for routing purposes.
// This driver dials a single server directly, so the mode is informational
// only: it is stored on the Session and not acted on.
type AccessMode int

const (
	AccessModeWrite AccessMode = iota
	AccessModeRead
)

func (m AccessMode) String() string {
	if m == AccessModeRead {
		return "read"
	}
	return "write"
}

// Driver holds the connection parameters and trust policy needed to open
// sessions. It does not itself hold open connections: each Session dials
// independently, since connection pooling is a collaborator this module's
// core result-stream/tofu scope explicitly leaves external (see
// SPEC_FULL.md §2).
type Driver struct {
	target         dsn.Target
	auth           AuthToken
	knownHostsPath string
	skipVerify     bool
	verify         tofu.Verifier
	logger         *slog.Logger
}

// Option customizes Open beyond what config.Config expresses.
type Option func(*Driver)

// WithVerifier overrides the host verifier consulted for a host with no
// known-hosts entry, or a fingerprint that contradicts one. The default
// is tofu.StaticVerifier(tofu.Reject), which refuses every unattended
// first contact, or tofu.StaticVerifier(tofu.TrustAndStore) when
// cfg.TOFU.AlwaysTrust is set — callers building an interactive client
// should supply one that prompts the operator.
func WithVerifier(v tofu.Verifier) Option {
	return func(d *Driver) { d.verify = v }
}

// WithLogger attaches a structured logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// Open parses cfg.Driver.URI, resolves the known-hosts path (falling back
// to dotdir.DefaultKnownHostsPath when cfg.TOFU.KnownHostsFile is unset),
// verifies connectivity by dialing and closing one connection, and
// returns a Driver ready to open sessions.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Driver, error) {
	target, err := dsn.Parse(cfg.Driver.URI)
	if err != nil {
		return nil, err
	}

	knownHostsPath := cfg.TOFU.KnownHostsFile
	if knownHostsPath == "" && !cfg.TOFU.InsecureSkipVerify {
		knownHostsPath, err = dotdir.DefaultKnownHostsPath()
		if err != nil {
			return nil, fmt.Errorf("driver: resolving default known-hosts path: %w", err)
		}
	}

	verify := tofu.Verifier(tofu.StaticVerifier(tofu.Reject))
	if cfg.TOFU.AlwaysTrust {
		verify = tofu.StaticVerifier(tofu.TrustAndStore)
	}

	d := &Driver{
		target:         target,
		auth:           AuthToken{Scheme: "basic", Principal: cfg.Driver.Username, Credentials: cfg.Driver.Password},
		knownHostsPath: knownHostsPath,
		skipVerify:     cfg.TOFU.InsecureSkipVerify,
		verify:         verify,
		logger:         slog.Default(),
	}
	if cfg.Driver.Username == "" {
		d.auth = AuthToken{Scheme: "none"}
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// VerifyConnectivity dials a connection, performs the handshake and HELLO
// exchange, and closes it — confirming the server is reachable and the
// host fingerprint is trusted without running a statement.
func (d *Driver) VerifyConnectivity(ctx context.Context) error {
	conn, err := bolt.Dial(ctx, d.target, d.auth, d.knownHostsPath, d.skipVerify, d.verify, d.logger)
	if err != nil {
		return fmt.Errorf("driver: verifying connectivity: %w", err)
	}
	return conn.Close()
}

// Runner is the subset of Session's contract RunMany needs. Both *Session
// and *MemorySession implement it, so tests can exercise RunMany without
// dialing a real server.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (stream.ResultStream, error)
	Close(ctx context.Context) error
}

// SessionOpener is the subset of Driver's contract RunMany needs.
type SessionOpener interface {
	NewSession(ctx context.Context, mode AccessMode) (Runner, error)
}

// NewSession opens a fresh connection and returns a Session bound to it.
// mode is currently advisory; see AccessMode.
func (d *Driver) NewSession(ctx context.Context, mode AccessMode) (Runner, error) {
	conn, err := bolt.Dial(ctx, d.target, d.auth, d.knownHostsPath, d.skipVerify, d.verify, d.logger)
	if err != nil {
		return nil, fmt.Errorf("driver: opening session: %w", err)
	}
	return &Session{conn: conn, mode: mode, logger: d.logger}, nil
}

// Close is a no-op: Driver holds no connections of its own to release.
// It exists so callers can defer driver.Close() symmetrically with
// session lifecycles, matching the shape of the client libraries this
// package is modeled on.
func (d *Driver) Close(context.Context) error {
	return nil
}

// Session runs statements against a single dialed connection.
type Session struct {
	conn   *bolt.Connection
	mode   AccessMode
	logger *slog.Logger
}

// Run sends cypher/params and returns a stream.ResultStream for its
// results. The returned stream's Close aborts the connection if the
// statement is still streaming.
func (s *Session) Run(ctx context.Context, cypher string, params map[string]any) (stream.ResultStream, error) {
	live, feeder := stream.NewLive(s.conn.AbortRun, 64, s.logger)
	if err := s.conn.Run(ctx, cypher, params, feeder); err != nil {
		feeder.Done()
		return stream.NewError(toStreamError(err)), nil
	}
	return live, nil
}

// Close closes the session's underlying connection.
func (s *Session) Close(context.Context) error {
	return s.conn.Close()
}

func toStreamError(err error) *stream.StreamError {
	var streamErr *stream.StreamError
	if errors.As(err, &streamErr) {
		return streamErr
	}
	return &stream.StreamError{Kind: stream.ErrorKindTransport, Message: err.Error(), Cause: err}
}
