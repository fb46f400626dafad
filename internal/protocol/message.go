// Package protocol defines the tagged message union exchanged between the
// coordinator and its clients, together with the two codecs that carry it:
// a compact binary framing for the full sync/awareness protocol and a JSON
// text framing for the simplified cursor protocol.
package protocol

// Kind identifies a message variant.
type Kind int

const (
	// Client-originated kinds.
	KindSync           Kind = iota // opaque CRDT delta
	KindAwareness                  // opaque presence delta
	KindQueryAwareness             // request a full presence resend
	KindCursor                     // explicit anchor/head range (JSON variant)

	// Coordinator-generated kinds, never accepted from clients.
	KindInit
	KindUsers
	KindUserJoined
	KindUserLeft
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAwareness:
		return "awareness"
	case KindQueryAwareness:
		return "query-awareness"
	case KindCursor:
		return "cursor"
	case KindInit:
		return "init"
	case KindUsers:
		return "users"
	case KindUserJoined:
		return "user-joined"
	case KindUserLeft:
		return "user-left"
	default:
		return "unknown"
	}
}

// Cursor is an explicit selection extent.
type Cursor struct {
	Anchor int `json:"anchor"`
	Head   int `json:"head"`
}

// UserView is the lightweight public view of a session, safe to send to
// every client. It never carries the connection handle.
type UserView struct {
	UserID string  `json:"userId"`
	Name   string  `json:"userName"`
	Color  string  `json:"color"`
	Cursor *Cursor `json:"cursor,omitempty"`
}

// Message is the tagged union routed through a room. Which fields are
// meaningful depends on Kind:
//
//	Sync, Awareness        Payload
//	QueryAwareness         (none)
//	Cursor                 UserID, Cursor
//	Init                   UserID, Color, State, Users
//	Users                  Users
//	UserJoined, UserLeft   UserID, Name, Color
type Message struct {
	Kind     Kind
	Payload  []byte
	ClientID uint64
	UserID   string
	Name     string
	Color    string
	Cursor   *Cursor
	State    []byte
	Users    []UserView
}

// Codec translates between raw frames and Messages. Implementations are
// stateless and safe for concurrent use.
type Codec interface {
	// Name identifies the codec ("binary" or "json").
	Name() string
	// Binary reports whether frames should be sent as binary WebSocket
	// messages rather than text.
	Binary() bool
	Encode(m *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
}

// CodecByName resolves an admission parameter to a codec.
func CodecByName(name string) (Codec, bool) {
	switch name {
	case "", "json":
		return JSON, true
	case "binary":
		return Binary, true
	default:
		return nil, false
	}
}
