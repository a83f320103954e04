// Package framing implements the chunked message framing that sits
// between internal/bolt's message codec and the raw connection: each
// logical message is split into one or more chunks, each prefixed by a
// 2-byte big-endian length, and terminated by a zero-length chunk.
//
// See DESIGN.md for why this package, rather than a full wire-protocol
// library, is what internal/bolt is built on.
package framing

import (
	"encoding/binary"
	"fmt"
	"io"
)

// chunkHeaderLength is the size of a chunk's length prefix.
const chunkHeaderLength = 2

// MaxChunkSize is the largest payload a single chunk may carry.
const MaxChunkSize = 0xFFFF

// endMarker terminates a message: a chunk header of zero length with no
// payload.
var endMarker = [chunkHeaderLength]byte{0x00, 0x00}

// Writer splits messages into length-prefixed chunks and writes them to
// an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w as a chunk Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage splits payload into chunks of at most MaxChunkSize bytes
// and writes them followed by the end marker. An empty payload is written
// as the end marker alone, which ReadMessage returns as an empty message.
func (cw *Writer) WriteMessage(payload []byte) error {
	remaining := payload
	for len(remaining) > 0 {
		n := len(remaining)
		if n > MaxChunkSize {
			n = MaxChunkSize
		}
		if err := cw.writeChunk(remaining[:n]); err != nil {
			return err
		}
		remaining = remaining[n:]
	}
	if _, err := cw.w.Write(endMarker[:]); err != nil {
		return fmt.Errorf("framing: writing end marker: %w", err)
	}
	return nil
}

func (cw *Writer) writeChunk(chunk []byte) error {
	var header [chunkHeaderLength]byte
	binary.BigEndian.PutUint16(header[:], uint16(len(chunk)))
	if _, err := cw.w.Write(header[:]); err != nil {
		return fmt.Errorf("framing: writing chunk header: %w", err)
	}
	if len(chunk) > 0 {
		if _, err := cw.w.Write(chunk); err != nil {
			return fmt.Errorf("framing: writing chunk payload: %w", err)
		}
	}
	return nil
}

// Reader reassembles chunked messages from an underlying io.Reader.
type Reader struct {
	r io.Reader
}

// NewReader wraps r as a chunk Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadMessage reads chunks until the end marker and returns their
// concatenated payload.
func (cr *Reader) ReadMessage() ([]byte, error) {
	var message []byte
	for {
		var header [chunkHeaderLength]byte
		if _, err := io.ReadFull(cr.r, header[:]); err != nil {
			return nil, fmt.Errorf("framing: reading chunk header: %w", err)
		}
		size := binary.BigEndian.Uint16(header[:])
		if size == 0 {
			return message, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(cr.r, chunk); err != nil {
			return nil, fmt.Errorf("framing: reading chunk payload: %w", err)
		}
		message = append(message, chunk...)
	}
}
