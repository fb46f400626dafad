// Package session tracks the set of active connections for one room and
// their identity and presence metadata. A Manager is owned exclusively by
// its room and is not safe for concurrent use: the room's event loop
// serializes every call.
package session

import (
	"strconv"
	"time"

	"syncroom/internal/protocol"
)

// Peer is the session's back-reference into the transport layer. It is
// referenced, never owned: closing the underlying connection is the
// transport's job except when the room explicitly resets.
type Peer interface {
	// Send queues a frame for delivery. Frames queued on one peer are
	// delivered FIFO. A non-nil error means the connection is dead.
	Send(binary bool, data []byte) error
	// Close sends a close frame with the given code and reason, then
	// tears the connection down.
	Close(code int, reason string) error
}

// Identity is the client-supplied identity, already defaulted by the
// transport layer.
type Identity struct {
	UserID string
	Name   string
}

// Session is one client's membership in a room.
type Session struct {
	Peer     Peer
	Codec    protocol.Codec
	UserID   string
	Name     string
	Color    string
	ClientID uint64
	Cursor   *protocol.Cursor
	JoinedAt time.Time
	LastSeen time.Time
}

// Origin is the token identifying this connection as the source of a
// change, used to exclude it from echo broadcasts and to key presence.
func (s *Session) Origin() string {
	return "c" + strconv.FormatUint(s.ClientID, 10)
}

// View returns the public view broadcast to other clients.
func (s *Session) View() protocol.UserView {
	return protocol.UserView{
		UserID: s.UserID,
		Name:   s.Name,
		Color:  s.Color,
		Cursor: s.Cursor,
	}
}
