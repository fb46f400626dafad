// Package merge wraps the external convergent-merge engine behind opaque
// capabilities. The coordinator never interprets delta bytes; it feeds them
// to a Document or Awareness instance and trusts the engine's contract that
// application is idempotent and order-independent.
package merge

// Document is one room's merge state. Implementations are not required to
// be thread-safe: a document is owned by exactly one room and touched only
// from that room's event loop.
type Document interface {
	// ApplyUpdate merges a remote delta. The origin token identifies the
	// connection the delta came from and is echoed to OnUpdate listeners
	// so the change is not sent back to its source.
	ApplyUpdate(update []byte, origin string) error

	// Snapshot returns the full current state encoding, suitable both for
	// initial sync to a joining client and for persistence.
	Snapshot() []byte

	// OnUpdate registers a listener invoked after every applied change.
	OnUpdate(fn func(update []byte, origin string))
}

// Awareness is one room's ephemeral presence store, keyed by origin. Its
// contents are broadcast but never persisted.
type Awareness interface {
	Apply(delta []byte, origin string) error
	Snapshot() []byte
	Remove(origin string)
}

// Engine constructs documents and awareness stores. A binding to any
// convergent replication library satisfies this; the built-in LogEngine
// relays deltas without merging them.
type Engine interface {
	// NewDocument builds a document from a persisted snapshot; a nil or
	// empty snapshot yields an empty document.
	NewDocument(snapshot []byte) (Document, error)
	NewAwareness() Awareness
}
