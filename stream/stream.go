package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// State is one state in a ResultStream's lifecycle.
type State int

const (
	// StateInit is the state immediately after creation, before any
	// header or record has arrived.
	StateInit State = iota
	// StateHeaderPending is the only state in which NFields/FieldName may
	// block awaiting bytes from the transport.
	StateHeaderPending
	// StateStreaming means the header has arrived and records may be
	// fetched.
	StateStreaming
	// StateEnd means the server signaled a clean end of stream. FetchNext
	// returns (nil, nil) forever after.
	StateEnd
	// StateFailed means the stream has a sticky failure. FetchNext and
	// CheckFailure report it forever after.
	StateFailed
	// StateClosed is terminal; reachable from any other state via Close.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHeaderPending:
		return "header_pending"
	case StateStreaming:
		return "streaming"
	case StateEnd:
		return "end"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ResultStream is the public façade over a streamed statement result: lazy
// record fetch, field metadata, failure status, and close. It is
// implemented by a live, network-backed stream (see NewLive) as well as by
// two test/utility doubles, ReplayStream and ErrorStream, all three
// satisfying the same capability set.
type ResultStream interface {
	// CheckFailure returns ErrorKindNone if the stream is healthy, or the
	// kind of the sticky failure otherwise. Pure query, no I/O.
	CheckFailure() ErrorKind

	// ErrorCode returns the server-supplied error code and true, but only
	// when CheckFailure reports ErrorKindStatementEvaluationFailed.
	ErrorCode() (string, bool)

	// ErrorMessage returns the server-supplied error message and true,
	// under the same condition as ErrorCode.
	ErrorMessage() (string, bool)

	// NFields returns the number of fields in the result, blocking until
	// the header has been decoded or the stream fails.
	NFields(ctx context.Context) (int, error)

	// FieldName returns the name of the field at index, blocking under the
	// same condition as NFields. An out-of-range index is an error.
	FieldName(ctx context.Context, index int) (string, error)

	// FetchNext returns the next record, or (nil, nil) at a clean
	// end-of-stream, or (nil, err) on failure. It invalidates the
	// previously returned record unless that record was retained.
	FetchNext(ctx context.Context) (*Record, error)

	// Close releases the stream. It is legal from any state and is
	// terminal: every record and value obtained from the stream becomes
	// invalid, regardless of outstanding retains.
	Close() error
}

// Abort is the hook a live stream calls on Close while the underlying
// request has not yet reached a terminal state, so the collaborator
// driving the connection can send a discard/reset signal per the wire
// protocol and stop feeding this stream. Implemented by the connection
// collaborator (internal/bolt), never by a stream consumer.
type Abort func() error

// LiveResultStream is the network-backed ResultStream implementation. It
// is constructed together with a *Feeder: the Feeder is the decoder's only
// way to deliver header metadata, records, and terminal state into the
// stream; LiveResultStream itself exposes only the consumer-facing
// ResultStream methods.
type LiveResultStream struct {
	sessionID uuid.UUID
	logger    *slog.Logger
	abort     Abort
	buffer    *recordBuffer

	headerReady chan struct{}
	headerOnce  sync.Once
	fieldNames  []string

	mu          sync.Mutex
	state       State
	err         *StreamError
	current     *Record
	allRecords  []*Record
	closed      bool
}

// NewLive creates a new live result stream and the Feeder used to populate
// it. capacity bounds the number of decoded-but-unconsumed records the
// buffer will hold before the decoder blocks pushing more (back-pressure).
// abort is invoked at most once, by Close, if the stream has not already
// reached StateEnd or StateFailed.
func NewLive(abort Abort, capacity int, logger *slog.Logger) (*LiveResultStream, *Feeder) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LiveResultStream{
		sessionID:   uuid.New(),
		logger:      logger,
		abort:       abort,
		buffer:      newRecordBuffer(capacity),
		headerReady: make(chan struct{}),
		state:       StateInit,
	}
	return s, &Feeder{stream: s}
}

// SessionID identifies this stream for log correlation across NFields,
// FetchNext, and Close calls.
func (s *LiveResultStream) SessionID() uuid.UUID {
	return s.sessionID
}

func (s *LiveResultStream) CheckFailure() ErrorKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed && s.err != nil {
		return s.err.Kind
	}
	return ErrorKindNone
}

func (s *LiveResultStream) ErrorCode() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed && s.err != nil && s.err.Kind == ErrorKindStatementEvaluationFailed {
		return s.err.Code, true
	}
	return "", false
}

func (s *LiveResultStream) ErrorMessage() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed && s.err != nil && s.err.Kind == ErrorKindStatementEvaluationFailed {
		return s.err.Message, true
	}
	return "", false
}

func (s *LiveResultStream) NFields(ctx context.Context) (int, error) {
	if err := s.awaitHeader(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed && len(s.fieldNames) == 0 {
		return 0, s.err
	}
	return len(s.fieldNames), nil
}

func (s *LiveResultStream) FieldName(ctx context.Context, index int) (string, error) {
	if err := s.awaitHeader(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.fieldNames) {
		return "", fmt.Errorf("stream: field index %d out of range [0,%d)", index, len(s.fieldNames))
	}
	return s.fieldNames[index], nil
}

// awaitHeader blocks until Feeder.Header has delivered the field names or
// ctx is cancelled, holding the stream in StateHeaderPending while it
// waits. A failure passed to Feeder.Fail does not wake it; only the header
// or ctx does.
func (s *LiveResultStream) awaitHeader(ctx context.Context) error {
	select {
	case <-s.headerReady:
		return nil
	default:
	}
	s.mu.Lock()
	if s.state == StateInit {
		s.state = StateHeaderPending
	}
	s.mu.Unlock()

	select {
	case <-s.headerReady:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *LiveResultStream) FetchNext(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	if s.state == StateFailed {
		err := s.err
		s.mu.Unlock()
		return nil, err
	}
	if s.state == StateEnd {
		s.mu.Unlock()
		return nil, nil
	}
	if s.current != nil {
		s.current.advancePast()
		s.current = nil
	}
	s.mu.Unlock()

	env, ok, err := s.buffer.pop(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if env.record != nil {
			env.record.forceInvalidate()
		}
		return nil, ErrStreamClosed
	}

	switch {
	case !ok:
		// Buffer closed without an explicit end/fail envelope: treat as a
		// protocol error, since a well-behaved decoder always sends one.
		s.state = StateFailed
		s.err = &StreamError{Kind: ErrorKindProtocolError}
		return nil, s.err
	case env.err != nil:
		s.state = StateFailed
		s.err = env.err
		s.logger.Debug("result stream failed", "session", s.sessionID, "kind", env.err.Kind)
		return nil, env.err
	case env.end:
		s.state = StateEnd
		return nil, nil
	default:
		s.state = StateStreaming
		s.current = env.record
		s.allRecords = append(s.allRecords, env.record)
		return env.record, nil
	}
}

func (s *LiveResultStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	needsAbort := s.state != StateEnd && s.state != StateFailed
	records := s.allRecords
	s.allRecords = nil
	s.mu.Unlock()

	var abortErr error
	if needsAbort && s.abort != nil {
		abortErr = s.abort()
	}

	for _, rec := range records {
		rec.forceInvalidate()
	}
	for _, env := range s.buffer.drain() {
		if env.record != nil {
			env.record.forceInvalidate()
		}
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	return abortErr
}

// Feeder is the decoder collaborator's handle for populating a
// LiveResultStream. It is returned once, by NewLive, and is not part of
// the consumer-facing ResultStream contract.
type Feeder struct {
	stream *LiveResultStream
}

// Header delivers field metadata. Must be called at most once, before any
// PushRecord/PushBatch/Fail/End call. Safe to call even if a consumer is
// already blocked in NFields/FieldName.
func (f *Feeder) Header(fieldNames []string) {
	f.stream.headerOnce.Do(func() {
		f.stream.mu.Lock()
		f.stream.fieldNames = fieldNames
		if f.stream.state == StateInit || f.stream.state == StateHeaderPending {
			f.stream.state = StateStreaming
		}
		f.stream.mu.Unlock()
		close(f.stream.headerReady)
	})
}

// PushRecord delivers a single decoded record, each with its own
// single-record arena. Blocks if the stream's buffer is full
// (back-pressure) or until ctx is cancelled.
func (f *Feeder) PushRecord(ctx context.Context, values []Value) error {
	rec := newRecord(values, newArena(1))
	return f.stream.buffer.push(ctx, envelope{record: rec})
}

// PushBatch delivers several decoded records that share one arena (e.g.
// because the decoder materialized them from a single network frame).
// Retaining any one of them keeps the whole batch's arena alive until all
// of them are dead.
func (f *Feeder) PushBatch(ctx context.Context, batch [][]Value) error {
	if len(batch) == 0 {
		return nil
	}
	shared := newArena(len(batch))
	for _, values := range batch {
		rec := newRecord(values, shared)
		if err := f.stream.buffer.push(ctx, envelope{record: rec}); err != nil {
			return err
		}
	}
	return nil
}

// Fail delivers a terminal failure. Any records already pushed remain
// fetchable until the buffer empties, after which FetchNext returns err.
// Must be the last call made through this Feeder (followed by closing the
// buffer via the collaborator's teardown path, see Done).
func (f *Feeder) Fail(err *StreamError) error {
	ctx := context.Background()
	return f.stream.buffer.push(ctx, envelope{err: err})
}

// End delivers a clean end-of-stream marker. Must be the last data sent
// through this Feeder before Done.
func (f *Feeder) End() error {
	ctx := context.Background()
	return f.stream.buffer.push(ctx, envelope{end: true})
}

// Done closes the underlying buffer. The decoder collaborator must call
// this exactly once, after its final Fail or End call, to let FetchNext
// observe buffer closure as a (handled) protocol error if no terminal
// envelope was ever sent.
func (f *Feeder) Done() {
	f.stream.buffer.close()
}
