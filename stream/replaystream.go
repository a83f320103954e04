package stream

import (
	"context"
	"fmt"
	"sync"
)

// ReplayStream is a ResultStream backed by a fixed, in-memory set of field
// names and records instead of a live decoder. It exists so code built on
// top of ResultStream can be tested without a server — the "replay/test
// stream" variant the polymorphic-façade design note calls for alongside
// the live and pre-materialised-error implementations.
//
// ReplayStream honors the same ordering, advance-invalidates-previous, and
// close-invalidates-everything contract as LiveResultStream; the only
// difference is where records come from.
type ReplayStream struct {
	fieldNames []string

	mu      sync.Mutex
	records []*Record
	pos     int
	current *Record
	closed  bool
}

// NewReplay builds a ReplayStream that will yield fieldNames as its header
// and then, in order, one record per element of rows (each row is the
// ordered list of field values for that record).
func NewReplay(fieldNames []string, rows [][]Value) *ReplayStream {
	records := make([]*Record, len(rows))
	for i, row := range rows {
		records[i] = newRecord(row, newArena(1))
	}
	return &ReplayStream{fieldNames: fieldNames, records: records}
}

func (s *ReplayStream) CheckFailure() ErrorKind {
	return ErrorKindNone
}

func (s *ReplayStream) ErrorCode() (string, bool) {
	return "", false
}

func (s *ReplayStream) ErrorMessage() (string, bool) {
	return "", false
}

func (s *ReplayStream) NFields(_ context.Context) (int, error) {
	return len(s.fieldNames), nil
}

func (s *ReplayStream) FieldName(_ context.Context, index int) (string, error) {
	if index < 0 || index >= len(s.fieldNames) {
		return "", fmt.Errorf("stream: field index %d out of range [0,%d)", index, len(s.fieldNames))
	}
	return s.fieldNames[index], nil
}

func (s *ReplayStream) FetchNext(_ context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.current != nil {
		s.current.advancePast()
		s.current = nil
	}
	if s.pos >= len(s.records) {
		return nil, nil
	}
	rec := s.records[s.pos]
	s.pos++
	s.current = rec
	return rec, nil
}

func (s *ReplayStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, rec := range s.records {
		rec.forceInvalidate()
	}
	return nil
}
