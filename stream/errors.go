package stream

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the category of a stream failure. Values are stable
// numeric identifiers exposed to callers via StreamError.Kind.
type ErrorKind int

const (
	// ErrorKindNone means no failure has occurred.
	ErrorKindNone ErrorKind = iota

	// ErrorKindStatementEvaluationFailed means the server rejected or
	// failed to evaluate the submitted statement. Code and Message on the
	// StreamError carry the server-supplied details.
	ErrorKindStatementEvaluationFailed

	// ErrorKindProtocolError means the decoder observed malformed framing
	// or an unexpected message; the underlying connection is considered
	// poisoned.
	ErrorKindProtocolError

	// ErrorKindConnectionClosed means the transport collaborator closed or
	// reset the connection before the stream completed.
	ErrorKindConnectionClosed

	// ErrorKindOutOfMemory means a local allocation failure occurred while
	// decoding or buffering records.
	ErrorKindOutOfMemory

	// ErrorKindTransport wraps a failure surfaced by the transport
	// collaborator (dial, read, write, TLS) that doesn't otherwise fit one
	// of the kinds above.
	ErrorKindTransport
)

// String renders the error kind for logging.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindStatementEvaluationFailed:
		return "statement_evaluation_failed"
	case ErrorKindProtocolError:
		return "protocol_error"
	case ErrorKindConnectionClosed:
		return "connection_closed"
	case ErrorKindOutOfMemory:
		return "out_of_memory"
	case ErrorKindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// StreamError is the sticky failure a ResultStream carries once it
// transitions to FAILED. Once set, every subsequent stream operation
// returns it, and the server-supplied Code/Message (when the kind is
// ErrorKindStatementEvaluationFailed) remain readable for the lifetime of
// the stream.
//
// Callers can recover the structured fields with errors.As:
//
//	var streamErr *stream.StreamError
//	if errors.As(err, &streamErr) {
//	    if streamErr.Kind == stream.ErrorKindStatementEvaluationFailed { ... }
//	}
type StreamError struct {
	Kind ErrorKind

	// Code is the server-supplied short error code (e.g.
	// "Neo.ClientError.Statement.SyntaxError"). Only meaningful when Kind
	// is ErrorKindStatementEvaluationFailed.
	Code string

	// Message is the server-supplied human-readable error message. Only
	// meaningful when Kind is ErrorKindStatementEvaluationFailed.
	Message string

	// Cause is the underlying error, if any (e.g. the transport error that
	// produced ErrorKindTransport or ErrorKindConnectionClosed).
	Cause error
}

func (e *StreamError) Error() string {
	switch e.Kind {
	case ErrorKindStatementEvaluationFailed:
		return fmt.Sprintf("stream: statement evaluation failed: %s: %s", e.Code, e.Message)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("stream: %s: %v", e.Kind, e.Cause)
		}
		return fmt.Sprintf("stream: %s", e.Kind)
	}
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// IsStatementFailure reports whether err is a *StreamError carrying a
// server-side statement evaluation failure.
func IsStatementFailure(err error) bool {
	var streamErr *StreamError
	return errors.As(err, &streamErr) && streamErr.Kind == ErrorKindStatementEvaluationFailed
}

// IsProtocolError reports whether err is a *StreamError from malformed
// framing or an unexpected message.
func IsProtocolError(err error) bool {
	var streamErr *StreamError
	return errors.As(err, &streamErr) && streamErr.Kind == ErrorKindProtocolError
}

// IsConnectionClosed reports whether err is a *StreamError raised because
// the transport closed the connection before the stream completed.
func IsConnectionClosed(err error) bool {
	var streamErr *StreamError
	return errors.As(err, &streamErr) && streamErr.Kind == ErrorKindConnectionClosed
}

// ErrStreamClosed is returned by operations attempted on a stream that has
// already been closed via Close. Unlike StreamError, this is a local
// argument-style failure and does not poison any in-flight state — it
// simply reports that there is nothing left to operate on.
var ErrStreamClosed = errors.New("stream: already closed")
