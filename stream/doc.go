// Package stream implements the result-stream engine: a lazy,
// reference-counted, back-pressured channel of decoded records between a
// protocol decoder and the caller of a submitted statement.
//
// The package is organized around the data flow from decoder to consumer:
//
//   - value.go: the tagged Value sum type records are built from
//   - arena.go: the allocation region a batch of records shares
//   - record.go: Record, its retain/release lifetime, and field access
//   - recordbuffer.go: the bounded channel between decoder and stream
//   - stream.go: ResultStream, the public façade, and LiveResultStream
//   - replaystream.go, errorstream.go: test/utility ResultStream variants
//   - errors.go: the sticky StreamError and its ErrorKind taxonomy
package stream

// Compile-time interface checks.
var (
	_ ResultStream = (*LiveResultStream)(nil)
	_ ResultStream = (*ReplayStream)(nil)
	_ ResultStream = (*ErrorStream)(nil)
)
