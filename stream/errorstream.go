package stream

import "context"

// ErrorStream is a ResultStream that is already FAILED at construction. It
// is the "pre-materialised error stream" the polymorphic-façade design
// note calls for: a way to return a ResultStream when statement submission
// itself failed before any network round-trip, so callers always deal
// with a ResultStream rather than a special-cased error return.
type ErrorStream struct {
	err *StreamError
}

// NewError builds a ResultStream that reports err from every operation.
func NewError(err *StreamError) *ErrorStream {
	return &ErrorStream{err: err}
}

func (s *ErrorStream) CheckFailure() ErrorKind {
	return s.err.Kind
}

func (s *ErrorStream) ErrorCode() (string, bool) {
	if s.err.Kind == ErrorKindStatementEvaluationFailed {
		return s.err.Code, true
	}
	return "", false
}

func (s *ErrorStream) ErrorMessage() (string, bool) {
	if s.err.Kind == ErrorKindStatementEvaluationFailed {
		return s.err.Message, true
	}
	return "", false
}

func (s *ErrorStream) NFields(_ context.Context) (int, error) {
	return 0, s.err
}

func (s *ErrorStream) FieldName(_ context.Context, _ int) (string, error) {
	return "", s.err
}

func (s *ErrorStream) FetchNext(_ context.Context) (*Record, error) {
	return nil, s.err
}

func (s *ErrorStream) Close() error {
	return nil
}
