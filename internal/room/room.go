// Package room implements the per-document coordinator: a serialized actor
// that owns one room's session set and merge state, routes protocol
// messages between clients, fans out updates, and schedules durable
// persistence of the merged state.
package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"syncroom/internal/merge"
	"syncroom/internal/metrics"
	"syncroom/internal/protocol"
	"syncroom/internal/session"
	"syncroom/internal/store"
)

// CloseRoomReset is the close code sent to every connection when a room is
// explicitly reset (RFC 6455 private-use range).
const CloseRoomReset = 4000

// CloseSendFailed is used when tearing down a connection whose writes
// started failing.
const CloseSendFailed = 1011

// ErrRoomClosed is returned when an operation races room shutdown.
var ErrRoomClosed = errors.New("room: closed")

// storageTimeout bounds individual load/persist/delete calls.
const storageTimeout = 15 * time.Second

// Config tunes per-room behavior.
type Config struct {
	// FlushInterval is the persistence debounce window.
	FlushInterval time.Duration
	// EventBuffer sizes the room's event channel.
	EventBuffer int
}

// Events processed by the room's run loop. A single channel keeps strict
// arrival order across connects, frames, disconnects, and resets.
type event any

type connectEvent struct {
	peer     session.Peer
	identity session.Identity
	codec    protocol.Codec
	reply    chan error
}

type frameEvent struct {
	peer session.Peer
	data []byte
}

type disconnectEvent struct {
	peer   session.Peer
	reason string
}

type resetEvent struct{ reply chan error }

type infoEvent struct{ reply chan Info }

type flushTickEvent struct{}

type flushDoneEvent struct{ err error }

type stopEvent struct{ reply chan struct{} }

// Info is the diagnostic view served by the REST surface.
type Info struct {
	ID        string              `json:"room"`
	Sessions  int                 `json:"sessions"`
	StateSize int                 `json:"state_size"`
	LastFlush *time.Time          `json:"last_flush,omitempty"`
	Users     []protocol.UserView `json:"users"`
}

// Room is one document's live coordination unit. All state below the
// events channel is touched only by the run goroutine.
type Room struct {
	id     string
	cfg    Config
	engine merge.Engine
	kv     store.KV
	log    *slog.Logger

	events chan event
	done   chan struct{}

	sessions      *session.Manager
	holder        *merge.Holder
	hydrated      bool
	dirty         bool
	flushTimer    *time.Timer
	flushInFlight bool
	flushQueued   bool
	lastFlush     time.Time
}

func newRoom(id string, engine merge.Engine, kv store.KV, cfg Config, log *slog.Logger) *Room {
	r := &Room{
		id:       id,
		cfg:      cfg,
		engine:   engine,
		kv:       kv,
		log:      log.With("room", id),
		events:   make(chan event, cfg.EventBuffer),
		done:     make(chan struct{}),
		sessions: session.NewManager(),
	}
	go r.run()
	return r
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

func (r *Room) enqueue(ctx context.Context, ev event) error {
	select {
	case r.events <- ev:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect admits a connection. It blocks until the room has hydrated (on
// the first session), registered the session, and sent the init message.
func (r *Room) Connect(ctx context.Context, peer session.Peer, identity session.Identity, codec protocol.Codec) error {
	ev := connectEvent{peer: peer, identity: identity, codec: codec, reply: make(chan error, 1)}
	if err := r.enqueue(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-ev.reply:
		return err
	case <-r.done:
		// The loop may have replied just before exiting.
		select {
		case err := <-ev.reply:
			return err
		default:
			return ErrRoomClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleFrame hands an inbound frame to the room. Blocking here applies
// backpressure to the producing read pump rather than dropping deltas.
func (r *Room) HandleFrame(peer session.Peer, data []byte) {
	select {
	case r.events <- frameEvent{peer: peer, data: data}:
	case <-r.done:
	}
}

// Disconnect removes a connection's session. Safe to call more than once.
func (r *Room) Disconnect(peer session.Peer, reason string) {
	select {
	case r.events <- disconnectEvent{peer: peer, reason: reason}:
	case <-r.done:
	}
}

// Reset tears down every session, discards in-memory and persisted state,
// and leaves the room empty but live. Observably atomic: the reset is one
// event in the loop, so no connection admitted around it sees mixed state.
func (r *Room) Reset(ctx context.Context) error {
	ev := resetEvent{reply: make(chan error, 1)}
	if err := r.enqueue(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-ev.reply:
		return err
	case <-r.done:
		select {
		case err := <-ev.reply:
			return err
		default:
			return ErrRoomClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Info returns the room's diagnostic view.
func (r *Room) Info(ctx context.Context) (Info, error) {
	ev := infoEvent{reply: make(chan Info, 1)}
	if err := r.enqueue(ctx, ev); err != nil {
		return Info{}, err
	}
	select {
	case info := <-ev.reply:
		return info, nil
	case <-r.done:
		select {
		case info := <-ev.reply:
			return info, nil
		default:
			return Info{}, ErrRoomClosed
		}
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
}

// stop flushes pending state and terminates the run loop.
func (r *Room) stop(ctx context.Context) error {
	ev := stopEvent{reply: make(chan struct{}, 1)}
	if err := r.enqueue(ctx, ev); err != nil {
		return err
	}
	select {
	case <-ev.reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the room's single event-processing goroutine.
func (r *Room) run() {
	defer close(r.done)
	for ev := range r.events {
		switch ev := ev.(type) {
		case connectEvent:
			ev.reply <- r.handleConnect(ev)
		case frameEvent:
			r.handleFrame(ev)
		case disconnectEvent:
			r.handleDisconnect(ev)
		case resetEvent:
			ev.reply <- r.handleReset()
		case infoEvent:
			ev.reply <- r.info()
		case flushTickEvent:
			r.flushTimer = nil
			r.doFlush()
		case flushDoneEvent:
			r.handleFlushDone(ev.err)
		case stopEvent:
			r.handleStop()
			ev.reply <- struct{}{}
			return
		}
	}
}

// hydrate loads the persisted snapshot before the first session is served.
// Storage failure degrades to an empty document; admission never blocks on
// storage availability beyond this one read.
func (r *Room) hydrate() {
	if r.hydrated {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	snapshot, err := r.kv.Get(ctx, store.DocKey(r.id))
	cancel()
	if err != nil {
		r.log.Warn("snapshot load failed, starting empty", "error", err)
		snapshot = nil
	}
	r.holder = merge.NewHolder(r.engine, snapshot, r.log)
	r.hydrated = true
	r.log.Info("room hydrated", "state_bytes", len(snapshot))
}

func (r *Room) handleConnect(ev connectEvent) error {
	r.hydrate()

	s := r.sessions.Admit(ev.peer, ev.identity, ev.codec)
	metrics.SessionsActive.Inc()
	r.log.Info("session joined", "user", s.UserID, "name", s.Name, "codec", s.Codec.Name(), "sessions", r.sessions.Len())

	init := &protocol.Message{
		Kind:   protocol.KindInit,
		UserID: s.UserID,
		Color:  s.Color,
		State:  r.holder.Snapshot(),
		Users:  r.sessions.Snapshot(),
	}
	if !r.sendTo(s, init) {
		return errors.New("room: init delivery failed")
	}
	// Binary clients learn presence through awareness deltas, not the
	// users list carried by init.
	if s.Codec.Binary() {
		if aw := r.holder.AwarenessSnapshot(); len(aw) > 0 {
			r.sendTo(s, &protocol.Message{Kind: protocol.KindAwareness, Payload: aw})
		}
	}

	r.broadcast(&protocol.Message{Kind: protocol.KindUserJoined, UserID: s.UserID, Name: s.Name, Color: s.Color}, s.Peer)
	r.broadcast(&protocol.Message{Kind: protocol.KindUsers, Users: r.sessions.Snapshot()}, s.Peer)
	return nil
}

func (r *Room) handleFrame(ev frameEvent) {
	s, ok := r.sessions.Get(ev.peer)
	if !ok {
		return // already disconnected
	}
	msg, err := s.Codec.Decode(ev.data)
	if err != nil {
		metrics.ProtocolErrors.Inc()
		r.log.Debug("dropping undecodable frame", "user", s.UserID, "error", err)
		return
	}
	metrics.FramesTotal.WithLabelValues(msg.Kind.String()).Inc()
	r.sessions.Touch(ev.peer)

	switch msg.Kind {
	case protocol.KindSync:
		if err := r.holder.ApplyUpdate(msg.Payload, s.Origin()); err != nil {
			metrics.MergeErrors.Inc()
			return
		}
		r.dirty = true
		r.broadcast(&protocol.Message{Kind: protocol.KindSync, Payload: msg.Payload}, s.Peer)
		r.scheduleFlush()

	case protocol.KindAwareness:
		r.handleAwareness(s, msg)

	case protocol.KindCursor:
		r.sessions.UpdateCursor(s.Peer, msg.Cursor)
		r.broadcast(&protocol.Message{Kind: protocol.KindCursor, UserID: s.UserID, Cursor: msg.Cursor}, s.Peer)
		// The simplified protocol resends the full presence list on every
		// presence change.
		r.broadcast(&protocol.Message{Kind: protocol.KindUsers, Users: r.sessions.Snapshot()}, s.Peer)

	case protocol.KindQueryAwareness:
		if s.Codec.Binary() {
			r.sendTo(s, &protocol.Message{Kind: protocol.KindAwareness, Payload: r.holder.AwarenessSnapshot()})
		} else {
			r.sendTo(s, &protocol.Message{Kind: protocol.KindUsers, Users: r.sessions.Snapshot()})
		}

	default:
		metrics.ProtocolErrors.Inc()
		r.log.Debug("dropping client frame with coordinator-only kind", "user", s.UserID, "kind", msg.Kind.String())
	}
}

// handleAwareness covers both protocol variants: the binary protocol
// carries an opaque presence delta, the text protocol carries structured
// identity and cursor fields.
func (r *Room) handleAwareness(s *session.Session, msg *protocol.Message) {
	if s.Codec.Binary() {
		if err := r.holder.ApplyAwareness(msg.Payload, s.Origin()); err != nil {
			return
		}
		r.broadcast(&protocol.Message{Kind: protocol.KindAwareness, Payload: msg.Payload}, s.Peer)
		return
	}

	r.sessions.UpdateCursor(s.Peer, msg.Cursor)
	// Identity fields are server-assigned; a client cannot claim another
	// name or color through an awareness frame.
	r.broadcast(&protocol.Message{
		Kind:     protocol.KindAwareness,
		ClientID: s.ClientID,
		UserID:   s.UserID,
		Name:     s.Name,
		Color:    s.Color,
		Cursor:   msg.Cursor,
	}, s.Peer)
	r.broadcast(&protocol.Message{Kind: protocol.KindUsers, Users: r.sessions.Snapshot()}, s.Peer)
}

func (r *Room) handleDisconnect(ev disconnectEvent) {
	s := r.sessions.Remove(ev.peer)
	if s == nil {
		return // idempotent
	}
	metrics.SessionsActive.Dec()
	r.holder.RemovePresence(s.Origin())
	r.log.Info("session left", "user", s.UserID, "reason", ev.reason, "sessions", r.sessions.Len())

	r.broadcast(&protocol.Message{Kind: protocol.KindUserLeft, UserID: s.UserID}, nil)
	r.broadcast(&protocol.Message{Kind: protocol.KindUsers, Users: r.sessions.Snapshot()}, nil)

	if r.sessions.Len() == 0 {
		// Last one out: flush immediately so an idle room never holds
		// unpersisted edits.
		r.stopFlushTimer()
		r.doFlush()
	}
}

func (r *Room) handleReset() error {
	for _, s := range r.sessions.Sessions() {
		_ = s.Peer.Close(CloseRoomReset, "room reset")
	}
	metrics.SessionsActive.Sub(float64(r.sessions.Len()))
	r.sessions = session.NewManager()
	r.holder = merge.NewHolder(r.engine, nil, r.log)
	r.hydrated = true // memory is authoritative from here on
	r.dirty = false
	r.flushQueued = false
	r.stopFlushTimer()

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := r.kv.Delete(ctx, store.DocKey(r.id)); err != nil {
		// Storage errors never fail the reset; the stale snapshot will be
		// overwritten by the next flush anyway.
		r.log.Error("deleting persisted snapshot failed", "error", err)
	}
	r.log.Info("room reset")
	return nil
}

func (r *Room) info() Info {
	info := Info{
		ID:       r.id,
		Sessions: r.sessions.Len(),
		Users:    r.sessions.Snapshot(),
	}
	if r.holder != nil {
		info.StateSize = len(r.holder.Snapshot())
	}
	if !r.lastFlush.IsZero() {
		t := r.lastFlush
		info.LastFlush = &t
	}
	return info
}

func (r *Room) handleStop() {
	r.stopFlushTimer()
	// Wait out an in-flight write so its result is known, then write any
	// remaining dirty state synchronously.
	deadline := time.After(storageTimeout)
	for r.flushInFlight {
		select {
		case ev := <-r.events:
			if done, ok := ev.(flushDoneEvent); ok {
				r.handleFlushDone(done.err)
			}
		case <-deadline:
			r.flushInFlight = false
		}
	}
	if r.dirty && r.holder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		if err := r.kv.Put(ctx, store.DocKey(r.id), r.holder.Snapshot()); err != nil {
			r.log.Error("final persist failed", "error", err)
		}
	}
	r.log.Info("room stopped")
}
