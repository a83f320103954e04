package stream

import (
	"sync"
	"sync/atomic"
)

// Record is one row of a result set: an ordered tuple of Values borrowed
// from an arena shared with zero or more sibling records from the same
// decoded batch.
//
// A Record's values remain readable while its retain count is greater than
// zero, OR it has not yet been advanced past by a subsequent FetchNext
// call. Once both conditions are false, the record is dead and Field
// returns Null for every index. Close invalidates every record a stream
// has ever produced regardless of retain count.
//
// Retain/release bookkeeping uses an atomic counter unconditionally. The
// source this package is modeled on leaves that decision to the
// implementer and only requires atomicity when records cross threads; this
// package always pays the (negligible) cost of atomics rather than
// document a single-threaded-only caveat callers could easily violate.
type Record struct {
	values       []Value
	owner        *arena
	retainCount  atomic.Int32
	advancedPast atomic.Bool
	deadOnce     sync.Once
}

// newRecord builds a Record over values, backed by owner. The record starts
// with a retain count of zero and is considered live until the stream
// advances past it.
func newRecord(values []Value, owner *arena) *Record {
	return &Record{values: values, owner: owner}
}

// Field returns the index-th value in the record. Out-of-range indices
// (including negative ones, and any index on a dead record) return Null
// rather than an error, per the field-access contract.
func (r *Record) Field(index int) Value {
	if index < 0 || index >= len(r.values) {
		return Null
	}
	return r.values[index]
}

// Len returns the number of fields in the record as currently live. A dead
// record reports zero.
func (r *Record) Len() int {
	return len(r.values)
}

// Retain increments the record's retain count and returns the same record,
// extending its (and its arena's) lifetime beyond the next FetchNext. Close
// still invalidates it regardless of the retain count. Every Retain must be
// matched by a later Release.
func (r *Record) Retain() *Record {
	r.retainCount.Add(1)
	return r
}

// Release decrements the retain count. When it reaches zero and the record
// has already been advanced past by the stream, the record's values are
// dropped and its arena is notified.
func (r *Record) Release() {
	if r.retainCount.Add(-1) < 0 {
		// Unbalanced release: restore to zero rather than go negative, so a
		// caller bug here cannot resurrect an already-dead record.
		r.retainCount.Store(0)
		return
	}
	r.maybeDie()
}

// advancePast marks the record as superseded by a subsequent fetch. Called
// by the stream itself, never by the caller.
func (r *Record) advancePast() {
	if r.advancedPast.CompareAndSwap(false, true) {
		r.maybeDie()
	}
}

// maybeDie invalidates the record's values once both liveness conditions
// (retain count, advanced-past) have lapsed.
func (r *Record) maybeDie() {
	if r.advancedPast.Load() && r.retainCount.Load() <= 0 {
		r.kill()
	}
}

// forceInvalidate unconditionally kills the record, bypassing retain
// count. Used by ResultStream.Close, which must invalidate every record it
// has ever produced regardless of outstanding retains.
func (r *Record) forceInvalidate() {
	r.advancedPast.Store(true)
	r.retainCount.Store(0)
	r.kill()
}

func (r *Record) kill() {
	r.deadOnce.Do(func() {
		r.values = nil
		if r.owner != nil {
			r.owner.recordDied()
		}
	})
}
