package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// byteArray marshals as a JSON array of byte values rather than base64,
// matching what browser clients produce from a Uint8Array.
type byteArray []byte

func (b byteArray) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *byteArray) UnmarshalJSON(data []byte) error {
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	out := make([]byte, len(vals))
	for i, v := range vals {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// jsonFrame is the superset of all text-protocol message shapes, used for
// decoding. Encoding builds per-kind shapes so absent fields stay absent.
type jsonFrame struct {
	Type     string     `json:"type"`
	Update   byteArray  `json:"update,omitempty"`
	ClientID uint64     `json:"clientId,omitempty"`
	UserID   string     `json:"userId,omitempty"`
	UserName string     `json:"userName,omitempty"`
	Color    string     `json:"color,omitempty"`
	Cursor   *Cursor    `json:"cursor,omitempty"`
	State    byteArray  `json:"yjsState,omitempty"`
	Users    []UserView `json:"users,omitempty"`
}

type jsonCodec struct{}

// JSON is the codec for the simplified text protocol.
var JSON Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(m *Message) ([]byte, error) {
	switch m.Kind {
	case KindSync:
		return json.Marshal(struct {
			Type   string    `json:"type"`
			Update byteArray `json:"update"`
		}{"sync", byteArray(m.Payload)})
	case KindCursor:
		return json.Marshal(struct {
			Type   string  `json:"type"`
			UserID string  `json:"userId"`
			Cursor *Cursor `json:"cursor"`
		}{"cursor", m.UserID, m.Cursor})
	case KindAwareness:
		return json.Marshal(struct {
			Type     string  `json:"type"`
			ClientID uint64  `json:"clientId"`
			UserID   string  `json:"userId"`
			UserName string  `json:"userName"`
			Color    string  `json:"color"`
			Cursor   *Cursor `json:"cursor,omitempty"`
		}{"awareness", m.ClientID, m.UserID, m.Name, m.Color, m.Cursor})
	case KindQueryAwareness:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{"query-awareness"})
	case KindInit:
		return json.Marshal(struct {
			Type   string     `json:"type"`
			UserID string     `json:"userId"`
			Color  string     `json:"color"`
			State  byteArray  `json:"yjsState"`
			Users  []UserView `json:"users"`
		}{"init", m.UserID, m.Color, byteArray(m.State), viewsOrEmpty(m.Users)})
	case KindUsers:
		return json.Marshal(struct {
			Type  string     `json:"type"`
			Users []UserView `json:"users"`
		}{"users", viewsOrEmpty(m.Users)})
	case KindUserJoined:
		return json.Marshal(struct {
			Type     string `json:"type"`
			UserID   string `json:"userId"`
			UserName string `json:"userName"`
			Color    string `json:"color"`
		}{"user-joined", m.UserID, m.Name, m.Color})
	case KindUserLeft:
		return json.Marshal(struct {
			Type   string `json:"type"`
			UserID string `json:"userId"`
		}{"user-left", m.UserID})
	default:
		return nil, ErrUnsupportedKind
	}
}

func (jsonCodec) Decode(data []byte) (*Message, error) {
	var f jsonFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	switch f.Type {
	case "sync":
		return &Message{Kind: KindSync, Payload: []byte(f.Update)}, nil
	case "awareness":
		return &Message{
			Kind:     KindAwareness,
			ClientID: f.ClientID,
			UserID:   f.UserID,
			Name:     f.UserName,
			Color:    f.Color,
			Cursor:   f.Cursor,
		}, nil
	case "cursor":
		return &Message{Kind: KindCursor, UserID: f.UserID, Cursor: f.Cursor}, nil
	case "query-awareness":
		return &Message{Kind: KindQueryAwareness}, nil
	case "":
		return nil, ErrInvalidJSON
	default:
		return nil, ErrUnknownKind
	}
}

// viewsOrEmpty keeps the users field an array, never null.
func viewsOrEmpty(users []UserView) []UserView {
	if users == nil {
		return []UserView{}
	}
	return users
}
