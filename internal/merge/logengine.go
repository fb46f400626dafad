package merge

import (
	"encoding/binary"
	"errors"
)

// LogEngine is the built-in relay engine: documents accumulate deltas
// verbatim in arrival order and the snapshot is the length-prefixed
// concatenation of the log. Clients replay the log through their own CRDT
// runtime, which converges regardless of the order entries were appended.
// Deployments with a native merge binding replace this via the Engine
// interface.
type LogEngine struct{}

// NewLogEngine returns the relay engine.
func NewLogEngine() *LogEngine { return &LogEngine{} }

var errCorruptSnapshot = errors.New("merge: corrupt update log snapshot")

func (e *LogEngine) NewDocument(snapshot []byte) (Document, error) {
	d := &logDocument{}
	for rest := snapshot; len(rest) > 0; {
		n, hdr := binary.Uvarint(rest)
		if hdr <= 0 || uint64(len(rest)-hdr) < n {
			return nil, errCorruptSnapshot
		}
		update := make([]byte, n)
		copy(update, rest[hdr:hdr+int(n)])
		d.updates = append(d.updates, update)
		rest = rest[hdr+int(n):]
	}
	return d, nil
}

func (e *LogEngine) NewAwareness() Awareness {
	return &logAwareness{entries: make(map[string][]byte)}
}

type logDocument struct {
	updates   [][]byte
	listeners []func(update []byte, origin string)
}

func (d *logDocument) ApplyUpdate(update []byte, origin string) error {
	entry := make([]byte, len(update))
	copy(entry, update)
	d.updates = append(d.updates, entry)
	for _, fn := range d.listeners {
		fn(entry, origin)
	}
	return nil
}

func (d *logDocument) Snapshot() []byte {
	size := 0
	for _, u := range d.updates {
		size += binary.MaxVarintLen64 + len(u)
	}
	buf := make([]byte, 0, size)
	for _, u := range d.updates {
		buf = binary.AppendUvarint(buf, uint64(len(u)))
		buf = append(buf, u...)
	}
	return buf
}

func (d *logDocument) OnUpdate(fn func(update []byte, origin string)) {
	d.listeners = append(d.listeners, fn)
}

// logAwareness keeps the latest presence delta per origin, in insertion
// order, so a query-awareness can be answered with one snapshot.
type logAwareness struct {
	entries map[string][]byte
	order   []string
}

func (a *logAwareness) Apply(delta []byte, origin string) error {
	if _, seen := a.entries[origin]; !seen {
		a.order = append(a.order, origin)
	}
	entry := make([]byte, len(delta))
	copy(entry, delta)
	a.entries[origin] = entry
	return nil
}

func (a *logAwareness) Snapshot() []byte {
	var buf []byte
	for _, origin := range a.order {
		buf = binary.AppendUvarint(buf, uint64(len(a.entries[origin])))
		buf = append(buf, a.entries[origin]...)
	}
	return buf
}

func (a *logAwareness) Remove(origin string) {
	if _, seen := a.entries[origin]; !seen {
		return
	}
	delete(a.entries, origin)
	for i, o := range a.order {
		if o == origin {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}
