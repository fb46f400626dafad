package protocol

// Binary wire format: a uvarint message-type discriminant followed by a
// type-specific payload. Sync and awareness payloads are length-prefixed
// opaque byte blobs; query-awareness has no payload.
//
//	0  sync             uvarint len + delta bytes
//	1  awareness        uvarint len + presence delta bytes
//	2  auth             reserved
//	3  query-awareness  empty

const (
	wireSync           = 0
	wireAwareness      = 1
	wireAuth           = 2
	wireQueryAwareness = 3
)

// maxVarintLen is the most bytes a uvarint can occupy for a uint64.
const maxVarintLen = 10

// appendUvarint appends v to buf in 7-bits-per-byte varint encoding.
func appendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// readUvarint decodes a uvarint from buf. Returns (value, bytesRead);
// bytesRead is 0 when the buffer ends mid-varint or the varint overflows.
func readUvarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if i >= maxVarintLen {
			return 0, 0
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, 0
}

// appendLenBytes appends a uvarint length prefix followed by b.
func appendLenBytes(buf, b []byte) []byte {
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// readLenBytes decodes a length-prefixed blob, copying it out of buf.
func readLenBytes(buf []byte) ([]byte, int, error) {
	n, hdr := readUvarint(buf)
	if hdr == 0 {
		return nil, 0, ErrTruncated
	}
	rest := buf[hdr:]
	if uint64(len(rest)) < n {
		return nil, 0, ErrTruncated
	}
	b := make([]byte, n)
	copy(b, rest[:n])
	return b, hdr + int(n), nil
}

type binaryCodec struct{}

// Binary is the codec for the full sync/awareness protocol.
var Binary Codec = binaryCodec{}

func (binaryCodec) Name() string { return "binary" }

func (binaryCodec) Binary() bool { return true }

func (binaryCodec) Encode(m *Message) ([]byte, error) {
	switch m.Kind {
	case KindSync:
		buf := make([]byte, 0, 1+maxVarintLen+len(m.Payload))
		buf = appendUvarint(buf, wireSync)
		return appendLenBytes(buf, m.Payload), nil
	case KindAwareness:
		buf := make([]byte, 0, 1+maxVarintLen+len(m.Payload))
		buf = appendUvarint(buf, wireAwareness)
		return appendLenBytes(buf, m.Payload), nil
	case KindQueryAwareness:
		return appendUvarint(nil, wireQueryAwareness), nil
	case KindInit:
		// The binary protocol has no distinct init frame: the joining
		// client receives the full state as a sync step.
		buf := make([]byte, 0, 1+maxVarintLen+len(m.State))
		buf = appendUvarint(buf, wireSync)
		return appendLenBytes(buf, m.State), nil
	default:
		return nil, ErrUnsupportedKind
	}
}

func (binaryCodec) Decode(data []byte) (*Message, error) {
	disc, n := readUvarint(data)
	if n == 0 {
		return nil, ErrTruncated
	}
	rest := data[n:]

	switch disc {
	case wireSync:
		payload, _, err := readLenBytes(rest)
		if err != nil {
			return nil, err
		}
		return &Message{Kind: KindSync, Payload: payload}, nil
	case wireAwareness:
		payload, _, err := readLenBytes(rest)
		if err != nil {
			return nil, err
		}
		return &Message{Kind: KindAwareness, Payload: payload}, nil
	case wireAuth:
		return nil, ErrReservedKind
	case wireQueryAwareness:
		return &Message{Kind: KindQueryAwareness}, nil
	default:
		return nil, ErrUnknownKind
	}
}
