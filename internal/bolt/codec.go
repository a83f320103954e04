package bolt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/vanshika/corebolt/stream"
)

// Value wire-type tags.
const (
	vtNull    byte = 0x00
	vtTrue    byte = 0x01
	vtFalse   byte = 0x02
	vtInt     byte = 0x03
	vtFloat   byte = 0x04
	vtString  byte = 0x05
	vtBytes   byte = 0x06
	vtList    byte = 0x07
	vtMap     byte = 0x08
	vtNode    byte = 0x09
	vtRelType byte = 0x0A
	vtPath    byte = 0x0B
)

// encodeMessage prepends tag to the wire encoding of fields (each either a
// string, a map[string]any, or a []any) and returns the complete message
// payload, ready for framing.Writer.WriteMessage.
func encodeMessage(tag byte, fields ...any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(tag)
	for _, f := range fields {
		if err := encodeAny(&buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// encodeAny encodes a plain Go value (as passed to Session.Run's params,
// or assembled for a request message) using the wire tags above.
func encodeAny(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteByte(vtNull)
	case bool:
		if val {
			buf.WriteByte(vtTrue)
		} else {
			buf.WriteByte(vtFalse)
		}
	case int:
		return encodeInt(buf, int64(val))
	case int64:
		return encodeInt(buf, val)
	case float64:
		buf.WriteByte(vtFloat)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(val))
		buf.Write(b[:])
	case string:
		return encodeString(buf, val)
	case []byte:
		buf.WriteByte(vtBytes)
		return encodeLengthPrefixed(buf, val)
	case []any:
		buf.WriteByte(vtList)
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(val)))
		buf.Write(countBuf[:])
		for _, elem := range val {
			if err := encodeAny(buf, elem); err != nil {
				return err
			}
		}
	case map[string]any:
		buf.WriteByte(vtMap)
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(val)))
		buf.Write(countBuf[:])
		for k, elem := range val {
			if err := encodeLengthPrefixed(buf, []byte(k)); err != nil {
				return err
			}
			if err := encodeAny(buf, elem); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("bolt: cannot encode parameter of type %T", v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, v int64) error {
	buf.WriteByte(vtInt)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	buf.WriteByte(vtString)
	return encodeLengthPrefixed(buf, []byte(s))
}

func encodeLengthPrefixed(buf *bytes.Buffer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
	return nil
}

// decodedMessage is a parsed response: its tag plus the decoded fields, in
// the representation the response's tag defines (see decodeMessage).
type decodedMessage struct {
	tag    byte
	fields map[string]stream.Value
	record []stream.Value
}

// decodeMessage interprets a complete message payload (as returned by
// framing.Reader.ReadMessage). SUCCESS and FAILURE carry a metadata map;
// RECORD carries a field list.
func decodeMessage(payload []byte) (decodedMessage, error) {
	if len(payload) == 0 {
		return decodedMessage{}, fmt.Errorf("bolt: empty message")
	}
	r := bytes.NewReader(payload)
	tag, _ := r.ReadByte()

	switch tag {
	case tagSuccess, tagFailure, tagIgnored:
		v, err := decodeValue(r)
		if err != nil {
			return decodedMessage{}, fmt.Errorf("bolt: decoding metadata: %w", err)
		}
		m, ok := v.(stream.MapValue)
		if !ok {
			return decodedMessage{}, fmt.Errorf("bolt: expected map metadata, got %T", v)
		}
		return decodedMessage{tag: tag, fields: map[string]stream.Value(m)}, nil
	case tagRecord:
		v, err := decodeValue(r)
		if err != nil {
			return decodedMessage{}, fmt.Errorf("bolt: decoding record: %w", err)
		}
		l, ok := v.(stream.ListValue)
		if !ok {
			return decodedMessage{}, fmt.Errorf("bolt: expected list record, got %T", v)
		}
		return decodedMessage{tag: tag, record: []stream.Value(l)}, nil
	default:
		return decodedMessage{}, fmt.Errorf("bolt: unexpected response tag 0x%02X", tag)
	}
}

// decodeValue decodes one wire-tagged value from r into a stream.Value.
func decodeValue(r *bytes.Reader) (stream.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case vtNull:
		return stream.Null, nil
	case vtTrue:
		return stream.BoolValue(true), nil
	case vtFalse:
		return stream.BoolValue(false), nil
	case vtInt:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return stream.IntValue(int64(binary.BigEndian.Uint64(b[:]))), nil
	case vtFloat:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return stream.FloatValue(math.Float64frombits(binary.BigEndian.Uint64(b[:]))), nil
	case vtString:
		s, err := decodeLengthPrefixedString(r)
		if err != nil {
			return nil, err
		}
		return stream.StringValue(s), nil
	case vtBytes:
		b, err := decodeLengthPrefixed(r)
		if err != nil {
			return nil, err
		}
		return stream.BytesValue(b), nil
	case vtList:
		n, err := decodeCount(r)
		if err != nil {
			return nil, err
		}
		list := make(stream.ListValue, n)
		for i := range list {
			list[i], err = decodeValue(r)
			if err != nil {
				return nil, err
			}
		}
		return list, nil
	case vtMap:
		n, err := decodeCount(r)
		if err != nil {
			return nil, err
		}
		m := make(stream.MapValue, n)
		for i := uint32(0); i < n; i++ {
			key, err := decodeLengthPrefixedString(r)
			if err != nil {
				return nil, err
			}
			val, err := decodeValue(r)
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
		return m, nil
	case vtNode:
		return decodeNode(r)
	case vtRelType:
		return decodeRelationship(r)
	case vtPath:
		return decodePath(r)
	default:
		return nil, fmt.Errorf("bolt: unknown value tag 0x%02X", tag)
	}
}

func decodeNode(r *bytes.Reader) (stream.Value, error) {
	id, err := decodeLengthPrefixedString(r)
	if err != nil {
		return nil, err
	}
	n, err := decodeCount(r)
	if err != nil {
		return nil, err
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i], err = decodeLengthPrefixedString(r)
		if err != nil {
			return nil, err
		}
	}
	props, err := decodeValue(r)
	if err != nil {
		return nil, err
	}
	propsMap, _ := props.(stream.MapValue)
	return stream.NodeValue{ElementID: id, Labels: labels, Properties: propsMap}, nil
}

func decodeRelationship(r *bytes.Reader) (stream.Value, error) {
	id, err := decodeLengthPrefixedString(r)
	if err != nil {
		return nil, err
	}
	start, err := decodeLengthPrefixedString(r)
	if err != nil {
		return nil, err
	}
	end, err := decodeLengthPrefixedString(r)
	if err != nil {
		return nil, err
	}
	relType, err := decodeLengthPrefixedString(r)
	if err != nil {
		return nil, err
	}
	props, err := decodeValue(r)
	if err != nil {
		return nil, err
	}
	propsMap, _ := props.(stream.MapValue)
	return stream.RelationshipValue{
		ElementID:      id,
		StartElementID: start,
		EndElementID:   end,
		Type:           relType,
		Properties:     propsMap,
	}, nil
}

func decodePath(r *bytes.Reader) (stream.Value, error) {
	nodeCount, err := decodeCount(r)
	if err != nil {
		return nil, err
	}
	nodes := make([]stream.NodeValue, nodeCount)
	for i := range nodes {
		v, err := decodeNode(r)
		if err != nil {
			return nil, err
		}
		nodes[i] = v.(stream.NodeValue)
	}
	relCount, err := decodeCount(r)
	if err != nil {
		return nil, err
	}
	rels := make([]stream.RelationshipValue, relCount)
	for i := range rels {
		v, err := decodeRelationship(r)
		if err != nil {
			return nil, err
		}
		rels[i] = v.(stream.RelationshipValue)
	}
	return stream.PathValue{Nodes: nodes, Relationships: rels}, nil
}

func decodeCount(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func decodeLengthPrefixed(r *bytes.Reader) ([]byte, error) {
	n, err := decodeCount(r)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func decodeLengthPrefixedString(r *bytes.Reader) (string, error) {
	data, err := decodeLengthPrefixed(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
