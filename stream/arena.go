package stream

import "sync"

// arena is the release unit backing one or more Records produced by the
// same fetch (the implementer may pool a separate arena per record, or
// share one arena across a decoded batch; this type supports both without
// the caller-visible contract changing). An arena is released exactly once,
// when every Record that keeps it alive has become dead (see
// Record.maybeDie). Release here only means "drop the reference to the
// decoded values so they can be collected" — Go's garbage collector, not
// manual memory management, does the actual reclamation, but the counting
// still has to be correct so the observable contract (retained values stay
// readable, non-retained ones don't survive the next fetch) holds.
type arena struct {
	mu       sync.Mutex
	pending  int // records from this arena not yet fully dead
	released bool
}

// newArena creates an arena backing n records (n is normally 1; batching
// decoders may share one arena across several records from the same
// network round-trip).
func newArena(n int) *arena {
	return &arena{pending: n}
}

// recordDied decrements the arena's live-record count and releases the
// arena once it reaches zero. Safe to call more than once is NOT
// guaranteed by this method alone; callers must ensure each record reports
// death exactly once (Record.kill uses sync.Once for this).
func (a *arena) recordDied() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	a.pending--
	if a.pending <= 0 {
		a.released = true
	}
}
