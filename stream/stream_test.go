package stream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLiveResultStream_TwoRecordHappyPath(t *testing.T) {
	// Scenario S5: a two-record server response [[1,"a"],[2,"b"]].
	s, feeder := NewLive(nil, 4, nil)
	feeder.Header([]string{"n", "s"})

	go func() {
		ctx := context.Background()
		_ = feeder.PushRecord(ctx, []Value{IntValue(1), StringValue("a")})
		_ = feeder.PushRecord(ctx, []Value{IntValue(2), StringValue("b")})
		_ = feeder.End()
		feeder.Done()
	}()

	ctx := context.Background()

	n, err := s.NFields(ctx)
	if err != nil {
		t.Fatalf("NFields: %v", err)
	}
	if n != 2 {
		t.Fatalf("NFields = %d, want 2", n)
	}

	name, err := s.FieldName(ctx, 0)
	if err != nil || name != "n" {
		t.Fatalf("FieldName(0) = %q, %v, want \"n\", nil", name, err)
	}

	rec1, err := s.FetchNext(ctx)
	if err != nil || rec1 == nil {
		t.Fatalf("fetch 1: %v, %v", rec1, err)
	}
	if rec1.Field(0) != IntValue(1) {
		t.Fatalf("rec1.Field(0) = %v", rec1.Field(0))
	}

	rec2, err := s.FetchNext(ctx)
	if err != nil || rec2 == nil {
		t.Fatalf("fetch 2: %v, %v", rec2, err)
	}
	if rec2.Field(1) != StringValue("b") {
		t.Fatalf("rec2.Field(1) = %v", rec2.Field(1))
	}

	rec3, err := s.FetchNext(ctx)
	if err != nil || rec3 != nil {
		t.Fatalf("fetch 3 should be end-of-stream, got %v, %v", rec3, err)
	}

	// Invariant 1: fetch after end never changes state and stays absent.
	rec4, err := s.FetchNext(ctx)
	if err != nil || rec4 != nil {
		t.Fatalf("fetch after end should stay absent, got %v, %v", rec4, err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLiveResultStream_StatementEvaluationFailure(t *testing.T) {
	// Scenario S6: header then a server-side evaluation failure.
	s, feeder := NewLive(nil, 4, nil)
	feeder.Header([]string{"n"})

	go func() {
		_ = feeder.Fail(&StreamError{
			Kind:    ErrorKindStatementEvaluationFailed,
			Code:    "Neo.ClientError.Statement.SyntaxError",
			Message: "Invalid input",
		})
		feeder.Done()
	}()

	ctx := context.Background()
	_, err := s.FetchNext(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsStatementFailure(err) {
		t.Fatalf("expected statement failure, got %v", err)
	}

	if kind := s.CheckFailure(); kind != ErrorKindStatementEvaluationFailed {
		t.Fatalf("CheckFailure = %v", kind)
	}
	code, ok := s.ErrorCode()
	if !ok || code != "Neo.ClientError.Statement.SyntaxError" {
		t.Fatalf("ErrorCode = %q, %v", code, ok)
	}
	msg, ok := s.ErrorMessage()
	if !ok || msg != "Invalid input" {
		t.Fatalf("ErrorMessage = %q, %v", msg, ok)
	}

	// The failure is sticky: repeated operations keep reporting it.
	_, err2 := s.FetchNext(ctx)
	if !IsStatementFailure(err2) {
		t.Fatalf("second fetch should repeat the failure, got %v", err2)
	}
}

func TestLiveResultStream_RecordsBufferedBeforeMidStreamFailure(t *testing.T) {
	s, feeder := NewLive(nil, 8, nil)
	feeder.Header([]string{"n"})

	ctx := context.Background()
	_ = feeder.PushRecord(ctx, []Value{IntValue(1)})
	_ = feeder.PushRecord(ctx, []Value{IntValue(2)})
	_ = feeder.Fail(&StreamError{Kind: ErrorKindProtocolError})
	feeder.Done()

	rec1, err := s.FetchNext(ctx)
	if err != nil || rec1 == nil {
		t.Fatalf("buffered record 1 should still be fetchable: %v, %v", rec1, err)
	}
	rec2, err := s.FetchNext(ctx)
	if err != nil || rec2 == nil {
		t.Fatalf("buffered record 2 should still be fetchable: %v, %v", rec2, err)
	}
	_, err = s.FetchNext(ctx)
	if !IsProtocolError(err) {
		t.Fatalf("expected protocol error once buffer drained, got %v", err)
	}
}

func TestRecord_RetainReleaseBalanced(t *testing.T) {
	// Invariant 2: retain k times, release k times, values readable
	// through the k-th release and inaccessible after.
	s, feeder := NewLive(nil, 4, nil)
	feeder.Header([]string{"n"})

	ctx := context.Background()
	_ = feeder.PushRecord(ctx, []Value{IntValue(42)})
	_ = feeder.PushRecord(ctx, []Value{IntValue(43)})
	_ = feeder.End()
	feeder.Done()

	rec, err := s.FetchNext(ctx)
	if err != nil || rec == nil {
		t.Fatalf("fetch: %v, %v", rec, err)
	}

	const k = 3
	for i := 0; i < k; i++ {
		rec.Retain()
	}

	// Advance past rec; it must stay alive because it is retained.
	if _, err := s.FetchNext(ctx); err != nil {
		t.Fatalf("fetch 2: %v", err)
	}
	if rec.Field(0) != IntValue(42) {
		t.Fatalf("retained record should still read 42, got %v", rec.Field(0))
	}

	for i := 0; i < k-1; i++ {
		rec.Release()
		if rec.Field(0) != IntValue(42) {
			t.Fatalf("record should stay readable through release %d/%d", i+1, k)
		}
	}
	rec.Release() // k-th release
	if rec.Field(0) != Null {
		t.Fatalf("record should be inaccessible after matching releases, got %v", rec.Field(0))
	}
}

func TestResultStream_CloseInvalidatesEvenRetained(t *testing.T) {
	// Invariant 3: after Close, every record is invalid regardless of
	// retain count.
	s, feeder := NewLive(nil, 4, nil)
	feeder.Header([]string{"n"})

	ctx := context.Background()
	_ = feeder.PushRecord(ctx, []Value{IntValue(7)})
	_ = feeder.End()
	feeder.Done()

	rec, err := s.FetchNext(ctx)
	if err != nil || rec == nil {
		t.Fatalf("fetch: %v, %v", rec, err)
	}
	rec.Retain()
	rec.Retain()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rec.Field(0) != Null {
		t.Fatalf("record should be invalid after Close even though retained twice, got %v", rec.Field(0))
	}
}

func TestResultStream_NFieldsStableAfterFirstSuccess(t *testing.T) {
	// Invariant 4.
	s, feeder := NewLive(nil, 4, nil)
	feeder.Header([]string{"a", "b", "c"})
	ctx := context.Background()

	n1, err := s.NFields(ctx)
	if err != nil {
		t.Fatalf("NFields 1: %v", err)
	}
	_ = feeder.End()
	feeder.Done()
	if _, err := s.FetchNext(ctx); err != nil {
		t.Fatalf("FetchNext: %v", err)
	}
	n2, err := s.NFields(ctx)
	if err != nil {
		t.Fatalf("NFields 2: %v", err)
	}
	if n1 != n2 || n1 != 3 {
		t.Fatalf("NFields changed: %d vs %d", n1, n2)
	}
}

func TestResultStream_OrderPreserved(t *testing.T) {
	// Invariant 5: no reordering, no skipping.
	s, feeder := NewLive(nil, 16, nil)
	feeder.Header([]string{"n"})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_ = feeder.PushRecord(ctx, []Value{IntValue(int64(i))})
	}
	_ = feeder.End()
	feeder.Done()

	for i := 0; i < 10; i++ {
		rec, err := s.FetchNext(ctx)
		if err != nil || rec == nil {
			t.Fatalf("fetch %d: %v, %v", i, rec, err)
		}
		if rec.Field(0) != IntValue(int64(i)) {
			t.Fatalf("record %d out of order: got %v", i, rec.Field(0))
		}
	}
}

func TestResultStream_CloseAbortsWhileStreaming(t *testing.T) {
	aborted := false
	abort := func() error {
		aborted = true
		return nil
	}
	s, feeder := NewLive(abort, 4, nil)
	feeder.Header([]string{"n"})

	// Never send End/Fail — simulate a decoder still blocked on the
	// network when Close is called.
	_ = feeder

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !aborted {
		t.Fatal("Close should invoke abort when the stream hasn't reached a terminal state")
	}
}

func TestResultStream_FetchNextBlocksUntilBufferReady(t *testing.T) {
	s, feeder := NewLive(nil, 1, nil)
	feeder.Header([]string{"n"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.FetchNext(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("FetchNext returned early with %v, want blocked", err)
	case <-time.After(10 * time.Millisecond):
	}

	_ = feeder.PushRecord(context.Background(), []Value{IntValue(1)})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("FetchNext: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("FetchNext never returned")
	}
}

func TestResultStream_ClosedStreamRejectsFurtherFetch(t *testing.T) {
	s, feeder := NewLive(nil, 4, nil)
	feeder.Header([]string{"n"})
	feeder.Done()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := s.FetchNext(context.Background())
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("FetchNext after Close = %v, want ErrStreamClosed", err)
	}
}

func TestRecord_FieldOutOfRangeReturnsNull(t *testing.T) {
	rec := newRecord([]Value{IntValue(1)}, newArena(1))
	if rec.Field(5) != Null {
		t.Fatalf("out-of-range field should be Null, got %v", rec.Field(5))
	}
	if rec.Field(-1) != Null {
		t.Fatalf("negative field index should be Null, got %v", rec.Field(-1))
	}
}
