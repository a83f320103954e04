package bolt

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/vanshika/corebolt/internal/dsn"
	"github.com/vanshika/corebolt/internal/framing"
	"github.com/vanshika/corebolt/stream"
	"github.com/vanshika/corebolt/tofu"
)

// handshakeMagic precedes the version proposal on every new connection,
// distinguishing this protocol's bytes from an unrelated one on the same
// port.
var handshakeMagic = [4]byte{0x60, 0x60, 0xB0, 0x17}

// proposedVersion is the single protocol version this client speaks. A
// real multi-version negotiation would propose up to four candidates;
// this client only ever has one to offer.
var proposedVersion = [4]byte{0x00, 0x00, 0x01, 0x00}

// Connection is a single dialed, handshaken, authenticated connection to
// a server, ready to run statements.
type Connection struct {
	conn   net.Conn
	writer *framing.Writer
	reader *framing.Reader
	logger *slog.Logger

	writeMu sync.Mutex
}

// Dial opens a TCP (optionally TLS) connection to target, performs the
// handshake and HELLO exchange, and returns a ready Connection.
//
// When target.RequiresTLS and neither target.TrustAllCertificates nor
// skipVerify is set, the server's leaf certificate fingerprint is checked
// against knownHostsPath via verify before the connection is trusted — see
// tofu.CheckKnownHost. skipVerify lets a driver-level configuration flag
// disable verification independent of the URI scheme.
func Dial(ctx context.Context, target dsn.Target, auth AuthToken, knownHostsPath string, skipVerify bool, verify tofu.Verifier, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var d net.Dialer
	rawConn, err := d.DialContext(ctx, "tcp", target.HostLabel())
	if err != nil {
		return nil, fmt.Errorf("bolt: dialing %s: %w", target.HostLabel(), err)
	}

	conn, err := secureConn(ctx, rawConn, target, knownHostsPath, skipVerify, verify)
	if err != nil {
		rawConn.Close()
		return nil, err
	}

	c, err := newConnection(conn, auth, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("bolt: connection established", "host", target.HostLabel(), "tls", target.RequiresTLS())
	return c, nil
}

// newConnection runs the handshake and HELLO exchange over an
// already-dialed (and, if required, already TLS-wrapped) conn. Split out
// from Dial so tests can exercise the protocol state machine over an
// in-memory net.Pipe instead of a real socket.
func newConnection(conn net.Conn, auth AuthToken, logger *slog.Logger) (*Connection, error) {
	if err := performHandshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	c := &Connection{
		conn:   conn,
		writer: framing.NewWriter(conn),
		reader: framing.NewReader(conn),
		logger: logger,
	}

	if err := c.hello(auth); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func secureConn(ctx context.Context, rawConn net.Conn, target dsn.Target, knownHostsPath string, skipVerify bool, verify tofu.Verifier) (net.Conn, error) {
	if !target.RequiresTLS() {
		return rawConn, nil
	}

	// Certificate chain verification is deliberately disabled here: this
	// client does its own trust decision via TOFU against the leaf
	// fingerprint instead of relying on a CA chain, matching how the
	// source protocol's C client verifies hosts.
	tlsConn := tls.Client(rawConn, &tls.Config{InsecureSkipVerify: true})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("bolt: TLS handshake with %s: %w", target.HostLabel(), err)
	}

	if target.TrustAllCertificates() || skipVerify {
		return tlsConn, nil
	}

	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("bolt: %s presented no certificate", target.HostLabel())
	}
	fingerprint := fingerprintOf(state.PeerCertificates[0].Raw)

	if err := tofu.CheckKnownHost(ctx, knownHostsPath, target.HostLabel(), fingerprint, verify); err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}
	return tlsConn, nil
}

func fingerprintOf(der []byte) string {
	sum := sha256.Sum256(der)
	hexStr := hex.EncodeToString(sum[:])
	parts := make([]string, len(hexStr)/2)
	for i := range parts {
		parts[i] = hexStr[i*2 : i*2+2]
	}
	return strings.Join(parts, ":")
}

func performHandshake(conn net.Conn) error {
	request := append(append([]byte{}, handshakeMagic[:]...), proposedVersion[:]...)
	if _, err := conn.Write(request); err != nil {
		return fmt.Errorf("bolt: sending handshake: %w", err)
	}
	var response [4]byte
	if _, err := readFull(conn, response[:]); err != nil {
		return fmt.Errorf("bolt: reading handshake response: %w", err)
	}
	if binary.BigEndian.Uint32(response[:]) == 0 {
		return fmt.Errorf("bolt: server rejected every proposed protocol version")
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Connection) hello(auth AuthToken) error {
	payload, err := encodeMessage(tagHello, auth.asMap())
	if err != nil {
		return fmt.Errorf("bolt: encoding HELLO: %w", err)
	}
	if err := c.writer.WriteMessage(payload); err != nil {
		return fmt.Errorf("bolt: sending HELLO: %w", err)
	}
	raw, err := c.reader.ReadMessage()
	if err != nil {
		return fmt.Errorf("bolt: reading HELLO response: %w", err)
	}
	msg, err := decodeMessage(raw)
	if err != nil {
		return fmt.Errorf("bolt: decoding HELLO response: %w", err)
	}
	if msg.tag == tagFailure {
		return streamErrorFromFailure(msg.fields)
	}
	return nil
}

// Run sends a RUN message for cypher/params, blocks for its SUCCESS or
// FAILURE summary, and on success feeds the field header and every
// subsequent PULLed record into feeder from a background goroutine. The
// caller's abort (passed to stream.NewLive) should close the Connection to
// unblock the goroutine if the stream is closed before it reaches End.
func (c *Connection) Run(ctx context.Context, cypher string, params map[string]any, feeder *stream.Feeder) error {
	payload, err := encodeMessage(tagRun, cypher, params, map[string]any{})
	if err != nil {
		return fmt.Errorf("bolt: encoding RUN: %w", err)
	}

	c.writeMu.Lock()
	writeErr := c.writer.WriteMessage(payload)
	c.writeMu.Unlock()
	if writeErr != nil {
		return fmt.Errorf("bolt: sending RUN: %w", writeErr)
	}

	raw, err := c.reader.ReadMessage()
	if err != nil {
		return fmt.Errorf("bolt: reading RUN response: %w", err)
	}
	msg, err := decodeMessage(raw)
	if err != nil {
		return fmt.Errorf("bolt: decoding RUN response: %w", err)
	}
	if msg.tag == tagFailure {
		return streamErrorFromFailure(msg.fields)
	}

	feeder.Header(fieldNamesFromSuccess(msg.fields))
	go c.pullLoop(ctx, feeder)
	return nil
}

func (c *Connection) pullLoop(ctx context.Context, feeder *stream.Feeder) {
	defer feeder.Done()

outer:
	for {
		payload, err := encodeMessage(tagPull, map[string]any{"n": pullAll})
		if err != nil {
			_ = feeder.Fail(&stream.StreamError{Kind: stream.ErrorKindProtocolError, Message: err.Error(), Cause: err})
			return
		}
		c.writeMu.Lock()
		writeErr := c.writer.WriteMessage(payload)
		c.writeMu.Unlock()
		if writeErr != nil {
			_ = feeder.Fail(&stream.StreamError{Kind: stream.ErrorKindTransport, Message: writeErr.Error(), Cause: writeErr})
			return
		}

		for {
			raw, err := c.reader.ReadMessage()
			if err != nil {
				_ = feeder.Fail(&stream.StreamError{Kind: stream.ErrorKindConnectionClosed, Message: err.Error(), Cause: err})
				return
			}
			msg, err := decodeMessage(raw)
			if err != nil {
				_ = feeder.Fail(&stream.StreamError{Kind: stream.ErrorKindProtocolError, Message: err.Error(), Cause: err})
				return
			}

			switch msg.tag {
			case tagRecord:
				if err := feeder.PushRecord(ctx, msg.record); err != nil {
					return
				}
			case tagSuccess:
				if hasMore, _ := msg.fields["has_more"].(stream.BoolValue); bool(hasMore) {
					continue outer
				}
				_ = feeder.End()
				return
			case tagFailure:
				_ = feeder.Fail(streamErrorFromFailure(msg.fields))
				return
			}
		}
	}
}

// AbortRun tells the server to discard whatever remains of the
// most-recently RUN result, then closes the connection. It is the Abort
// hook passed to stream.NewLive (see driver.Session.Run), invoked when a
// stream is closed before reaching StateEnd or StateFailed, so an early
// Close leaves a DISCARD on the wire rather than only severing the TCP
// connection. The DISCARD's response is not read back: pullLoop owns all
// reads on this connection, and the Close that follows tears the
// connection down regardless of whether the server ever answers.
func (c *Connection) AbortRun() error {
	payload, err := encodeMessage(tagDiscard, map[string]any{"n": pullAll})
	if err == nil {
		c.writeMu.Lock()
		_ = c.writer.WriteMessage(payload)
		c.writeMu.Unlock()
	}
	return c.Close()
}

// Close sends a best-effort GOODBYE and closes the underlying connection.
// Closing unblocks any in-flight pullLoop read, which reports
// ErrorKindConnectionClosed to its feeder.
func (c *Connection) Close() error {
	payload, err := encodeMessage(tagGoodbye)
	if err == nil {
		c.writeMu.Lock()
		_ = c.writer.WriteMessage(payload)
		c.writeMu.Unlock()
	}
	return c.conn.Close()
}

func streamErrorFromFailure(fields map[string]stream.Value) *stream.StreamError {
	code, _ := fields["code"].(stream.StringValue)
	message, _ := fields["message"].(stream.StringValue)
	return &stream.StreamError{
		Kind:    stream.ErrorKindStatementEvaluationFailed,
		Code:    string(code),
		Message: string(message),
	}
}

func fieldNamesFromSuccess(fields map[string]stream.Value) []string {
	list, _ := fields["fields"].(stream.ListValue)
	names := make([]string, len(list))
	for i, v := range list {
		if s, ok := v.(stream.StringValue); ok {
			names[i] = string(s)
		}
	}
	return names
}
