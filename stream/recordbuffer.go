package stream

import "context"

// envelope is one item flowing from the decoder collaborator through the
// record buffer to the consumer-facing stream. Exactly one of record,
// end, or err is meaningful for a given envelope.
type envelope struct {
	record *Record
	end    bool
	err    *StreamError
}

// recordBuffer is the bounded, back-pressured channel between the
// protocol decoder and the result stream's FetchNext loop. It is
// deliberately thin: ordering and back-pressure both fall out of using a
// buffered Go channel, which is what the teacher's worker pool
// (internal/service/worker.go in the application this module's host
// project shipped) already leaned on for bounded concurrent hand-off.
type recordBuffer struct {
	items chan envelope
}

// newRecordBuffer creates a record buffer with room for capacity
// undelivered envelopes before the decoder blocks on push.
func newRecordBuffer(capacity int) *recordBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &recordBuffer{items: make(chan envelope, capacity)}
}

// push delivers an envelope to the buffer, blocking if it is full. Returns
// ctx.Err() if ctx is cancelled first.
func (b *recordBuffer) push(ctx context.Context, env envelope) error {
	select {
	case b.items <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pop removes the next envelope, blocking until one is available or the
// buffer is closed. The second return value is false once the buffer has
// been closed and drained.
func (b *recordBuffer) pop(ctx context.Context) (envelope, bool, error) {
	select {
	case env, ok := <-b.items:
		return env, ok, nil
	case <-ctx.Done():
		return envelope{}, false, ctx.Err()
	}
}

// drain removes and returns any envelopes already sitting in the buffer
// without blocking. Used by Close to find records that were decoded but
// never handed to the consumer, so their arenas can still be released.
func (b *recordBuffer) drain() []envelope {
	var drained []envelope
	for {
		select {
		case env, ok := <-b.items:
			if !ok {
				return drained
			}
			drained = append(drained, env)
		default:
			return drained
		}
	}
}

// close closes the underlying channel. Must be called by the producer
// (decoder) side exactly once, after the final envelope has been pushed.
func (b *recordBuffer) close() {
	close(b.items)
}
