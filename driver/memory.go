package driver

import (
	"context"
	"sync"

	"github.com/vanshika/corebolt/stream"
)

// MemorySession is an in-memory stand-in for Session used to unit test
// code that runs statements without dialing a real server.
type MemorySession struct {
	mu      sync.Mutex
	calls   []Statement
	scripts []scriptedResponse
}

type scriptedResponse struct {
	fields []string
	rows   [][]stream.Value
	err    *stream.StreamError
}

// NewMemorySession returns an empty MemorySession; queue responses with
// PushResult or PushError before calling Run.
func NewMemorySession() *MemorySession {
	return &MemorySession{}
}

// PushResult queues the next Run call to return a ReplayStream over rows.
func (m *MemorySession) PushResult(fields []string, rows [][]stream.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, scriptedResponse{fields: fields, rows: rows})
}

// PushError queues the next Run call to return an ErrorStream.
func (m *MemorySession) PushError(err *stream.StreamError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, scriptedResponse{err: err})
}

// Run returns the next queued response, or an empty ReplayStream if none
// was queued.
func (m *MemorySession) Run(_ context.Context, cypher string, params map[string]any) (stream.ResultStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Statement{Cypher: cypher, Params: params})

	if len(m.scripts) == 0 {
		return stream.NewReplay(nil, nil), nil
	}
	next := m.scripts[0]
	m.scripts = m.scripts[1:]
	if next.err != nil {
		return stream.NewError(next.err), nil
	}
	return stream.NewReplay(next.fields, next.rows), nil
}

// Close is a no-op; MemorySession holds no resources.
func (m *MemorySession) Close(context.Context) error {
	return nil
}

// Calls returns a snapshot of every statement submitted to Run.
func (m *MemorySession) Calls() []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Statement(nil), m.calls...)
}

// MemoryDriver is an in-memory SessionOpener that always hands back the
// same MemorySession, for testing code written against SessionOpener
// (e.g. RunMany) without a real connection.
type MemoryDriver struct {
	session *MemorySession
}

// NewMemoryDriver wraps session as a SessionOpener.
func NewMemoryDriver(session *MemorySession) *MemoryDriver {
	return &MemoryDriver{session: session}
}

// NewSession returns the wrapped MemorySession, ignoring mode.
func (d *MemoryDriver) NewSession(context.Context, AccessMode) (Runner, error) {
	return d.session, nil
}
