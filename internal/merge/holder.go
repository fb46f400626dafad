package merge

import (
	"fmt"
	"log/slog"
)

// Holder owns one room's document and awareness store. Engine failures are
// absorbed here: a delta the engine rejects is logged and dropped, never
// allowed to tear the room down.
type Holder struct {
	doc Document
	aw  Awareness
	log *slog.Logger
}

// NewHolder hydrates a holder from a persisted snapshot. A snapshot the
// engine rejects degrades to an empty document rather than failing room
// activation.
func NewHolder(engine Engine, snapshot []byte, log *slog.Logger) *Holder {
	doc, err := engine.NewDocument(snapshot)
	if err != nil {
		log.Warn("discarding unreadable snapshot, starting empty", "error", err, "bytes", len(snapshot))
		doc, _ = engine.NewDocument(nil)
	}
	return &Holder{doc: doc, aw: engine.NewAwareness(), log: log}
}

// ApplyUpdate feeds a remote delta into the document. The returned error is
// informational; the caller keeps serving the room either way.
func (h *Holder) ApplyUpdate(update []byte, origin string) error {
	if err := h.doc.ApplyUpdate(update, origin); err != nil {
		h.log.Warn("merge engine rejected update", "error", err, "origin", origin, "bytes", len(update))
		return fmt.Errorf("apply update: %w", err)
	}
	return nil
}

// ApplyAwareness feeds a presence delta into the awareness store.
func (h *Holder) ApplyAwareness(delta []byte, origin string) error {
	if err := h.aw.Apply(delta, origin); err != nil {
		h.log.Warn("awareness update rejected", "error", err, "origin", origin)
		return fmt.Errorf("apply awareness: %w", err)
	}
	return nil
}

// RemovePresence drops an origin's presence entry after its connection
// closes.
func (h *Holder) RemovePresence(origin string) {
	h.aw.Remove(origin)
}

// Snapshot returns the full document state encoding.
func (h *Holder) Snapshot() []byte { return h.doc.Snapshot() }

// AwarenessSnapshot returns the full presence encoding for a
// query-awareness resend.
func (h *Holder) AwarenessSnapshot() []byte { return h.aw.Snapshot() }

// OnUpdate registers a document change listener. The origin token lets the
// subscriber avoid echoing a change back to its source connection.
func (h *Holder) OnUpdate(fn func(update []byte, origin string)) {
	h.doc.OnUpdate(fn)
}
