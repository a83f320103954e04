// Package bolt is the protocol collaborator that feeds stream.Feeder: it
// owns the TCP/TLS dial, the handshake, and the request/response message
// loop, and translates wire records into stream.Value batches.
//
// The wire format here is a compact tagged encoding built for this
// module, not a byte-exact reimplementation of any existing protocol's
// PackStream encoding — see DESIGN.md for why a full reimplementation was
// out of scope. The message shapes (HELLO/RUN/PULL/SUCCESS/RECORD/FAILURE)
// and the chunked framing they ride on (internal/framing) follow the real
// protocol's structure closely enough to exercise the same client-side
// state machine.
package bolt

// Message tags. Client-to-server requests and server-to-client summaries
// are disjoint tag spaces by convention, matching how message dispatch
// reads the first byte of a decoded message.
const (
	tagHello   byte = 0x01
	tagGoodbye byte = 0x02
	tagRun     byte = 0x10
	tagDiscard byte = 0x2F
	tagPull    byte = 0x3F
	tagSuccess byte = 0x70
	tagRecord  byte = 0x71
	tagIgnored byte = 0x7E
	tagFailure byte = 0x7F
)

// pullAll requests every remaining record in one PULL, the same contract
// LiveResultStream's back-pressured buffer expects from its Feeder: the
// decoder may produce records faster than the consumer drains them, and
// the buffer is what applies back-pressure, not the fetch size.
const pullAll int64 = -1

// AuthToken carries the credentials sent in a HELLO message.
type AuthToken struct {
	Scheme      string // "none" or "basic"
	Principal   string
	Credentials string
}

func (a AuthToken) asMap() map[string]any {
	if a.Scheme == "" || a.Scheme == "none" {
		return map[string]any{"scheme": "none"}
	}
	return map[string]any{
		"scheme":      a.Scheme,
		"principal":   a.Principal,
		"credentials": a.Credentials,
	}
}
