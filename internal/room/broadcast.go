package room

import (
	"errors"

	"syncroom/internal/metrics"
	"syncroom/internal/protocol"
	"syncroom/internal/session"
)

// broadcast fans a message out to every session except the origin
// connection. The message is encoded at most once per codec in use. A
// failed send removes that session inline and delivery continues to the
// rest of the room.
func (r *Room) broadcast(msg *protocol.Message, except session.Peer) {
	var failed []*session.Session
	encoded := make(map[protocol.Codec][]byte, 2)

	for _, s := range r.sessions.Sessions() {
		if except != nil && s.Peer == except {
			continue
		}
		data, cached := encoded[s.Codec]
		if !cached {
			var err error
			data, err = s.Codec.Encode(msg)
			if err != nil {
				// A kind the codec cannot carry is skipped for all
				// sessions on that codec, not an error.
				if !errors.Is(err, protocol.ErrUnsupportedKind) {
					r.log.Warn("broadcast encode failed", "codec", s.Codec.Name(), "kind", msg.Kind.String(), "error", err)
				}
				data = nil
			}
			encoded[s.Codec] = data
		}
		if data == nil {
			continue
		}
		if err := s.Peer.Send(s.Codec.Binary(), data); err != nil {
			r.evict(s)
			failed = append(failed, s)
		}
	}

	// Dead connections leave the room like any other disconnect.
	for _, s := range failed {
		r.broadcast(&protocol.Message{Kind: protocol.KindUserLeft, UserID: s.UserID}, nil)
	}
	if len(failed) > 0 {
		r.broadcast(&protocol.Message{Kind: protocol.KindUsers, Users: r.sessions.Snapshot()}, nil)
		if r.sessions.Len() == 0 {
			r.stopFlushTimer()
			r.doFlush()
		}
	}
}

// sendTo delivers a message to a single session, evicting it on failure.
// Reports whether the send succeeded.
func (r *Room) sendTo(s *session.Session, msg *protocol.Message) bool {
	data, err := s.Codec.Encode(msg)
	if err != nil {
		if !errors.Is(err, protocol.ErrUnsupportedKind) {
			r.log.Warn("encode failed", "codec", s.Codec.Name(), "kind", msg.Kind.String(), "error", err)
		}
		return true // nothing to deliver is not a dead connection
	}
	if err := s.Peer.Send(s.Codec.Binary(), data); err != nil {
		r.evict(s)
		r.broadcast(&protocol.Message{Kind: protocol.KindUserLeft, UserID: s.UserID}, nil)
		r.broadcast(&protocol.Message{Kind: protocol.KindUsers, Users: r.sessions.Snapshot()}, nil)
		if r.sessions.Len() == 0 {
			r.stopFlushTimer()
			r.doFlush()
		}
		return false
	}
	return true
}

// evict removes a session whose connection went dead mid-send.
func (r *Room) evict(s *session.Session) {
	if r.sessions.Remove(s.Peer) == nil {
		return
	}
	metrics.SessionsActive.Dec()
	metrics.SessionsDropped.Inc()
	r.holder.RemovePresence(s.Origin())
	_ = s.Peer.Close(CloseSendFailed, "send failed")
	r.log.Info("session dropped after failed send", "user", s.UserID, "sessions", r.sessions.Len())
}
