package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTripSync(t *testing.T) {
	delta := []byte{0x01, 0x02, 0xFF, 0x00, 0x7F}
	data, err := Binary.Encode(&Message{Kind: KindSync, Payload: delta})
	require.NoError(t, err)

	m, err := Binary.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindSync, m.Kind)
	assert.Equal(t, delta, m.Payload)
}

func TestBinaryRoundTripAwareness(t *testing.T) {
	delta := []byte("presence-bytes")
	data, err := Binary.Encode(&Message{Kind: KindAwareness, Payload: delta})
	require.NoError(t, err)

	m, err := Binary.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindAwareness, m.Kind)
	assert.Equal(t, delta, m.Payload)
}

func TestBinaryQueryAwarenessIsEmpty(t *testing.T) {
	data, err := Binary.Encode(&Message{Kind: KindQueryAwareness})
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, data)

	m, err := Binary.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindQueryAwareness, m.Kind)
}

func TestBinaryInitEncodesAsSyncStep(t *testing.T) {
	state := []byte{9, 8, 7}
	data, err := Binary.Encode(&Message{Kind: KindInit, State: state})
	require.NoError(t, err)

	m, err := Binary.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindSync, m.Kind)
	assert.Equal(t, state, m.Payload)
}

func TestBinaryEncodeUnsupportedKinds(t *testing.T) {
	for _, kind := range []Kind{KindCursor, KindUsers, KindUserJoined, KindUserLeft} {
		_, err := Binary.Encode(&Message{Kind: kind})
		assert.ErrorIs(t, err, ErrUnsupportedKind, "kind %v", kind)
	}
}

func TestBinaryDecodeEmptyPayload(t *testing.T) {
	data, err := Binary.Encode(&Message{Kind: KindSync})
	require.NoError(t, err)

	m, err := Binary.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, m.Payload)
}

func TestBinaryDecodeTruncated(t *testing.T) {
	full, err := Binary.Encode(&Message{Kind: KindSync, Payload: []byte("0123456789")})
	require.NoError(t, err)

	// Every proper prefix must fail with ErrTruncated, never panic.
	for i := 0; i < len(full); i++ {
		_, err := Binary.Decode(full[:i])
		assert.ErrorIs(t, err, ErrTruncated, "prefix length %d", i)
	}
}

func TestBinaryDecodeUnknownDiscriminant(t *testing.T) {
	_, err := Binary.Decode([]byte{42})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestBinaryDecodeReservedAuth(t *testing.T) {
	_, err := Binary.Decode([]byte{2})
	assert.ErrorIs(t, err, ErrReservedKind)
}

func TestUvarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 1<<32 - 1, 1<<63 + 5} {
		buf := appendUvarint(nil, v)
		got, n := readUvarint(buf)
		require.Equal(t, len(buf), n, "value %d", v)
		assert.Equal(t, v, got)
	}
}

func TestUvarintIncomplete(t *testing.T) {
	_, n := readUvarint([]byte{0x80, 0x80})
	assert.Zero(t, n)
}
