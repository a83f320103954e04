package driver

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/corebolt/stream"
)

// Statement is one cypher/params pair submitted to RunMany.
type Statement struct {
	Cypher string
	Params map[string]any
}

// StatementResult pairs a Statement's index with its outcome, preserving
// correspondence to the input slice regardless of completion order.
type StatementResult struct {
	Index  int
	Stream stream.ResultStream
	Err    error
}

// RunMany runs each of statements concurrently, each on its own session,
// bounded by concurrency simultaneous in flight. It replaces a hand-rolled
// worker-pool of a fixed goroutine count draining a shared index channel
// with errgroup.Group's SetLimit, which does the same bounding without the
// channel/WaitGroup bookkeeping.
//
// RunMany itself never returns an error: a session-open or Run failure is
// reported per-statement in StatementResult.Err, because the scenario
// RunMany exists for — bulk-submitting independent statements — treats one
// statement's failure as data, not grounds to abort the rest.
func RunMany(ctx context.Context, d SessionOpener, mode AccessMode, statements []Statement, concurrency int) []StatementResult {
	results := make([]StatementResult, len(statements))
	if len(statements) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for i, stmt := range statements {
		i, stmt := i, stmt
		group.Go(func() error {
			results[i] = runOne(gctx, d, mode, stmt)
			results[i].Index = i
			return nil
		})
	}
	// Errors are captured per-result above; RunMany has nothing left to
	// propagate, but Wait still blocks until every statement finishes.
	_ = group.Wait()
	return results
}

// runOne opens a session and runs stmt on it. The session must stay open
// until the returned stream has been drained or abandoned by the caller;
// closing it as soon as Run returns would tear down a live connection
// while its pullLoop goroutine is still feeding records, handing the
// caller a connection-closed error instead of the result.
// sessionClosingStream binds the session's lifetime to the stream's
// instead.
func runOne(ctx context.Context, d SessionOpener, mode AccessMode, stmt Statement) StatementResult {
	session, err := d.NewSession(ctx, mode)
	if err != nil {
		return StatementResult{Err: err}
	}

	resultStream, err := session.Run(ctx, stmt.Cypher, stmt.Params)
	if err != nil {
		session.Close(ctx)
		return StatementResult{Err: err}
	}
	return StatementResult{Stream: &sessionClosingStream{ResultStream: resultStream, session: session}}
}

// sessionClosingStream closes its session the moment the wrapped stream is
// closed, whether that happens after a full drain or because the caller
// abandons the result early. Close is the one signal that the caller is
// done with the session's connection.
type sessionClosingStream struct {
	stream.ResultStream
	session Runner

	once     sync.Once
	closeErr error
}

func (s *sessionClosingStream) Close() error {
	s.once.Do(func() {
		s.closeErr = s.ResultStream.Close()
		if err := s.session.Close(context.Background()); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
