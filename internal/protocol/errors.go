package protocol

import "errors"

// Decode failures are non-fatal: the offending frame is dropped and the
// connection stays open.
var (
	ErrTruncated    = errors.New("protocol: truncated frame")
	ErrUnknownKind  = errors.New("protocol: unknown message kind")
	ErrReservedKind = errors.New("protocol: reserved message kind")
	ErrInvalidJSON  = errors.New("protocol: invalid JSON frame")
)

// ErrUnsupportedKind is returned by Encode when a codec has no
// representation for a message kind (the binary framing carries presence
// through awareness deltas and has no lifecycle messages). Callers skip
// the recipient rather than failing the broadcast.
var ErrUnsupportedKind = errors.New("protocol: kind not representable in this codec")
