package session

import (
	"time"

	"syncroom/internal/protocol"
)

// Manager is one room's session set, keyed by connection.
type Manager struct {
	byPeer map[Peer]*Session
	order  []*Session // insertion order, for stable snapshots
	// admitted counts every admission ever made, ignoring removals, so
	// the Nth admitted session always gets palette[N mod len(palette)].
	admitted     int
	nextClientID uint64
}

// NewManager returns an empty session set.
func NewManager() *Manager {
	return &Manager{byPeer: make(map[Peer]*Session)}
}

// Admit registers a connection, assigning the next palette color and a
// room-unique numeric client id.
func (m *Manager) Admit(peer Peer, identity Identity, codec protocol.Codec) *Session {
	m.nextClientID++
	now := time.Now()
	s := &Session{
		Peer:     peer,
		Codec:    codec,
		UserID:   identity.UserID,
		Name:     identity.Name,
		Color:    palette[m.admitted%len(palette)],
		ClientID: m.nextClientID,
		JoinedAt: now,
		LastSeen: now,
	}
	m.admitted++
	m.byPeer[peer] = s
	m.order = append(m.order, s)
	return s
}

// Remove deletes a session and returns it. Removing an absent peer is a
// no-op returning nil.
func (m *Manager) Remove(peer Peer) *Session {
	s, ok := m.byPeer[peer]
	if !ok {
		return nil
	}
	delete(m.byPeer, peer)
	for i, cur := range m.order {
		if cur == s {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return s
}

// Get looks up the session for a connection.
func (m *Manager) Get(peer Peer) (*Session, bool) {
	s, ok := m.byPeer[peer]
	return s, ok
}

// UpdateCursor stores a cursor for the peer's session; no-op if the peer
// already disconnected.
func (m *Manager) UpdateCursor(peer Peer, cursor *protocol.Cursor) {
	if s, ok := m.byPeer[peer]; ok {
		s.Cursor = cursor
		s.LastSeen = time.Now()
	}
}

// Touch refreshes the last-activity timestamp.
func (m *Manager) Touch(peer Peer) {
	if s, ok := m.byPeer[peer]; ok {
		s.LastSeen = time.Now()
	}
}

// Len returns the number of active sessions.
func (m *Manager) Len() int { return len(m.byPeer) }

// Sessions returns the active sessions in insertion order. The slice is a
// copy: callers may remove sessions while iterating it.
func (m *Manager) Sessions() []*Session {
	out := make([]*Session, len(m.order))
	copy(out, m.order)
	return out
}

// Snapshot returns the public views of all sessions in insertion order.
func (m *Manager) Snapshot() []protocol.UserView {
	views := make([]protocol.UserView, 0, len(m.order))
	for _, s := range m.order {
		views = append(views, s.View())
	}
	return views
}
